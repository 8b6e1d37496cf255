// Package codec loads scalar stores from JSON or YAML sources and writes
// them back out.
//
// A source is tried in the hinted format first and, when that fails to
// parse, rewound and tried in the other format. Only a top-level object or
// mapping is accepted.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/heysubinoy/pyazkv/pkg/kv"
)

// JSON is the sonic configuration shared by every JSON encode and decode in
// the module. Numbers decode as json.Number so integers keep their text.
var JSON = sonic.Config{
	UseNumber:   true,
	SortMapKeys: true,
}.Froze()

var errNotMapping = errors.New("top level is not a mapping")

// Target receives a parsed source. *kv.MemStore implements it.
type Target interface {
	LoadFrom(src map[string]any) error
	SetFormat(f kv.Format)
}

// Source is a store that can be written out. *kv.MemStore implements it.
// Snapshot must return a copy, since writers may keep running while it is
// encoded.
type Source interface {
	Snapshot() map[string]kv.Value
	Format() kv.Format
}

// Resolver decides the format of config sources and drives the parsers.
type Resolver struct {
	logger *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger makes the resolver report format attempts at debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResolver creates a Resolver. Without WithLogger it logs nothing.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load parses src into dst and records the format that succeeded on dst.
// The hinted format is tried first; if it does not parse, src is rewound to
// its start and the other format is tried. When neither parses the error
// wraps kv.ErrUnreadableSource.
func (r *Resolver) Load(src io.ReadSeeker, dst Target, hint kv.Format) error {
	order := []kv.Format{kv.FormatJSON, kv.FormatYAML}
	if hint == kv.FormatYAML {
		order = []kv.Format{kv.FormatYAML, kv.FormatJSON}
	}

	var errs []error
	for i, format := range order {
		if i > 0 {
			if _, err := src.Seek(0, io.SeekStart); err != nil {
				return fmt.Errorf("failed to rewind config source: %w", err)
			}
		}

		data, err := io.ReadAll(src)
		if err != nil {
			return fmt.Errorf("failed to read config source: %w", err)
		}

		tree, err := parse(format, data)
		if err != nil {
			r.logger.Debug("config source is not valid in format",
				zap.Stringer("format", format), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", format, err))
			continue
		}

		if err := dst.LoadFrom(tree); err != nil {
			return fmt.Errorf("failed to load config source: %w", err)
		}
		dst.SetFormat(format)
		r.logger.Debug("config source loaded",
			zap.Stringer("format", format), zap.Int("keys", len(tree)))
		return nil
	}

	return fmt.Errorf("%w: %w", kv.ErrUnreadableSource, errors.Join(errs...))
}

// LoadFile opens path and loads it into dst. A .yml or .yaml extension makes
// YAML the first format tried; anything else starts with JSON.
func (r *Resolver) LoadFile(path string, dst Target) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	return r.Load(f, dst, kv.FormatForPath(path))
}

// LoadBytes loads an in-memory source into dst.
func (r *Resolver) LoadBytes(data []byte, dst Target, hint kv.Format) error {
	return r.Load(bytes.NewReader(data), dst, hint)
}

// LoadMapping loads an already-built mapping into dst. The format of dst is
// not touched.
func (r *Resolver) LoadMapping(src map[string]any, dst Target) error {
	return dst.LoadFrom(src)
}

// Save writes the contents of src to w in the format recorded on src.
func (r *Resolver) Save(w io.Writer, src Source) error {
	return Encode(w, src.Format(), src.Snapshot())
}

// SaveFile writes src to path, creating or truncating it. The file is
// only touched once encoding has succeeded.
func (r *Resolver) SaveFile(path string, src Source) error {
	data, err := Marshal(src.Format(), src.Snapshot())
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close config file: %w", err)
	}

	r.logger.Debug("config file saved",
		zap.String("path", path), zap.Stringer("format", src.Format()))
	return nil
}

// MergeInto copies the contents of src into dst as native Go values,
// overwriting keys dst already has.
func MergeInto(dst map[string]any, src Source) {
	for k, v := range src.Snapshot() {
		dst[k] = v.Interface()
	}
}

// Encode writes values to w in the given format.
func Encode(w io.Writer, format kv.Format, values map[string]kv.Value) error {
	data, err := Marshal(format, values)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Marshal serializes values in the given format. Keys come out sorted.
func Marshal(format kv.Format, values map[string]kv.Value) ([]byte, error) {
	native := make(map[string]any, len(values))
	for k, v := range values {
		native[k] = v.Interface()
	}

	switch format {
	case kv.FormatJSON:
		data, err := JSON.MarshalIndent(native, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode JSON: %w", err)
		}
		return append(data, '\n'), nil
	case kv.FormatYAML:
		data, err := yaml.Marshal(native)
		if err != nil {
			return nil, fmt.Errorf("failed to encode YAML: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w: %s", kv.ErrUnknownFormat, format)
	}
}

var defaultResolver = NewResolver()

// Load uses a Resolver without logging. See Resolver.Load.
func Load(src io.ReadSeeker, dst Target, hint kv.Format) error {
	return defaultResolver.Load(src, dst, hint)
}

// LoadFile uses a Resolver without logging. See Resolver.LoadFile.
func LoadFile(path string, dst Target) error {
	return defaultResolver.LoadFile(path, dst)
}

// LoadBytes uses a Resolver without logging. See Resolver.LoadBytes.
func LoadBytes(data []byte, dst Target, hint kv.Format) error {
	return defaultResolver.LoadBytes(data, dst, hint)
}

// Save uses a Resolver without logging. See Resolver.Save.
func Save(w io.Writer, src Source) error {
	return defaultResolver.Save(w, src)
}

// SaveFile uses a Resolver without logging. See Resolver.SaveFile.
func SaveFile(path string, src Source) error {
	return defaultResolver.SaveFile(path, src)
}
