package kv

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format selects the serialization used to load or save a store.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// String returns the format token, "json" or "yaml".
func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// Valid reports whether f is one of the supported formats.
func (f Format) Valid() bool {
	return f == FormatJSON || f == FormatYAML
}

// ParseFormat converts a format token into a Format.
// Tokens are case-sensitive: only "json" and "yaml" are accepted.
func ParseFormat(token string) (Format, error) {
	switch token {
	case "json":
		return FormatJSON, nil
	case "yaml":
		return FormatYAML, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, token)
	}
}

// FormatForPath returns the format to try first for a file path.
// .yml and .yaml (any case) select YAML, everything else selects JSON.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return FormatYAML
	default:
		return FormatJSON
	}
}
