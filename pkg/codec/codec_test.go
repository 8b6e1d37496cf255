package codec

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/heysubinoy/pyazkv/pkg/kv"
)

const sampleJSON = `{"foo": "bar", "bif": "baz", "true": true, "onetwothree": 123}`

const sampleYAML = `foo: bar
bif: baz
"true": true
onetwothree: 123
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func assertSample(t *testing.T, s *kv.MemStore) {
	t.Helper()
	assert.Equal(t, map[string]kv.Value{
		"foo":         kv.String("bar"),
		"bif":         kv.String("baz"),
		"true":        kv.Bool(true),
		"onetwothree": kv.Int(123),
	}, s.Snapshot())
}

func TestLoadJSON(t *testing.T) {
	s := kv.NewMemStore()
	require.NoError(t, Load(strings.NewReader(sampleJSON), s, kv.FormatJSON))

	assertSample(t, s)
	assert.Equal(t, kv.FormatJSON, s.Format())
}

func TestLoadYAML(t *testing.T) {
	s := kv.NewMemStore()
	require.NoError(t, Load(strings.NewReader(sampleYAML), s, kv.FormatJSON))

	assertSample(t, s)
	assert.Equal(t, kv.FormatYAML, s.Format())
}

func TestLoadYAMLHintTriesYAMLFirst(t *testing.T) {
	s := kv.NewMemStore()
	require.NoError(t, Load(strings.NewReader(sampleYAML), s, kv.FormatYAML))
	assertSample(t, s)
	assert.Equal(t, kv.FormatYAML, s.Format())
}

func TestLoadFileByExtension(t *testing.T) {
	for _, name := range []string{"conf.json", "conf.yml", "conf.YAML"} {
		t.Run(name, func(t *testing.T) {
			content := sampleJSON
			want := kv.FormatJSON
			if kv.FormatForPath(name) == kv.FormatYAML {
				content = sampleYAML
				want = kv.FormatYAML
			}

			s := kv.NewMemStore()
			require.NoError(t, LoadFile(writeFile(t, name, content), s))
			assertSample(t, s)
			assert.Equal(t, want, s.Format())
		})
	}
}

func TestLoadFileFallsBackToYAML(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := NewResolver(WithLogger(zap.New(core)))

	s := kv.NewMemStore()
	require.NoError(t, r.LoadFile(writeFile(t, "conf.txt", sampleYAML), s))

	assertSample(t, s)
	assert.Equal(t, kv.FormatYAML, s.Format())

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "config source is not valid in format", entries[0].Message)
	assert.Equal(t, "json", entries[0].ContextMap()["format"])
	assert.Equal(t, "config source loaded", entries[1].Message)
	assert.Equal(t, "yaml", entries[1].ContextMap()["format"])
}

func TestLoadUnreadableSource(t *testing.T) {
	inputs := map[string]string{
		"garbage":      "{not: [valid",
		"json array":   `[1, 2, 3]`,
		"yaml list":    "- a\n- b\n",
		"bare scalar":  "just text",
		"json null":    "null",
		"empty source": "",
	}

	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			s := kv.NewMemStore()
			err := Load(strings.NewReader(input), s, kv.FormatJSON)
			assert.ErrorIs(t, err, kv.ErrUnreadableSource)
			assert.Equal(t, 0, s.Len())
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	err := LoadFile(filepath.Join(t.TempDir(), "absent.json"), kv.NewMemStore())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadLeafCoercion(t *testing.T) {
	s := kv.NewMemStore()
	require.NoError(t, LoadBytes([]byte(`{"ratio": 1.5, "whole": 2.0, "none": null, "big": 12345678901234}`), s, kv.FormatJSON))

	assert.Equal(t, map[string]kv.Value{
		"ratio": kv.String("1.5"),
		"whole": kv.String("2.0"),
		"none":  kv.String(""),
		"big":   kv.Int(12345678901234),
	}, s.Snapshot())

	s = kv.NewMemStore()
	yamlSrc := "ratio: 1.5\nwhole: 2.0\nnone: ~\nhex: 0x1F\nquoted: \"42\"\nbase: &b text\nalias: *b\n"
	require.NoError(t, LoadBytes([]byte(yamlSrc), s, kv.FormatYAML))

	assert.Equal(t, map[string]kv.Value{
		"ratio":  kv.String("1.5"),
		"whole":  kv.String("2.0"),
		"none":   kv.String(""),
		"hex":    kv.Int(31),
		"quoted": kv.Int(42),
		"base":   kv.String("text"),
		"alias":  kv.String("text"),
	}, s.Snapshot())
}

func TestLoadRejectsEmptyKeyWithoutFallback(t *testing.T) {
	s := kv.NewMemStore()
	err := LoadBytes([]byte(`{"": 1}`), s, kv.FormatJSON)
	assert.ErrorIs(t, err, kv.ErrEmptyKey)
	assert.NotErrorIs(t, err, kv.ErrUnreadableSource)
}

func TestRoundTrip(t *testing.T) {
	for _, format := range []kv.Format{kv.FormatJSON, kv.FormatYAML} {
		t.Run(format.String(), func(t *testing.T) {
			original := kv.NewMemStore()
			require.NoError(t, LoadBytes([]byte(sampleJSON), original, kv.FormatJSON))
			original.SetFormat(format)

			var buf bytes.Buffer
			require.NoError(t, Save(&buf, original))

			reloaded := kv.NewMemStore()
			require.NoError(t, LoadBytes(buf.Bytes(), reloaded, format))
			assert.True(t, original.Equal(reloaded), buf.String())
			assert.Equal(t, format, reloaded.Format())
		})
	}
}

func TestSaveFileRoundTrip(t *testing.T) {
	path := writeFile(t, "conf.yaml", sampleYAML)

	s := kv.NewMemStore()
	require.NoError(t, LoadFile(path, s))
	require.NoError(t, s.Set("added", kv.Int(7)))
	require.NoError(t, SaveFile(path, s))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "added: 7")

	reloaded := kv.NewMemStore()
	require.NoError(t, LoadFile(path, reloaded))
	assert.True(t, s.Equal(reloaded))
}

func TestSaveJSONOutput(t *testing.T) {
	s := kv.NewMemStore()
	require.NoError(t, s.Set("b", kv.Int(2)))
	require.NoError(t, s.Set("a", kv.String("x")))

	var buf bytes.Buffer
	require.NoError(t, Save(&buf, s))
	assert.JSONEq(t, `{"a": "x", "b": 2}`, buf.String())
	assert.Less(t, strings.Index(buf.String(), `"a"`), strings.Index(buf.String(), `"b"`))
}

func TestSaveUnknownFormat(t *testing.T) {
	s := kv.NewMemStore()
	require.NoError(t, s.Set("a", kv.Int(1)))
	s.SetFormat(kv.Format(42))

	var buf bytes.Buffer
	assert.ErrorIs(t, Save(&buf, s), kv.ErrUnknownFormat)
	assert.Zero(t, buf.Len())

	path := writeFile(t, "keep.json", `{"keep": true}`)
	assert.ErrorIs(t, SaveFile(path, s), kv.ErrUnknownFormat)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"keep": true}`, string(data))
}

func TestMergeInto(t *testing.T) {
	s := kv.NewMemStore()
	require.NoError(t, s.Set("port", kv.Int(80)))
	require.NoError(t, s.Set("debug", kv.Bool(false)))

	dst := map[string]any{"port": "old", "other": 1}
	MergeInto(dst, s)

	assert.Equal(t, map[string]any{
		"port":  int64(80),
		"debug": false,
		"other": 1,
	}, dst)
}

func TestLoadMapping(t *testing.T) {
	s := kv.NewMemStore()
	s.SetFormat(kv.FormatYAML)
	require.NoError(t, NewResolver().LoadMapping(map[string]any{"n": 5, "t": "true"}, s))

	assert.Equal(t, map[string]kv.Value{"n": kv.Int(5), "t": kv.Bool(true)}, s.Snapshot())
	assert.Equal(t, kv.FormatYAML, s.Format())
}

func TestLoadYAMLRejectsDuplicateKeys(t *testing.T) {
	s := kv.NewMemStore()
	err := LoadBytes([]byte("a: 1\na: 2\n"), s, kv.FormatYAML)

	assert.ErrorIs(t, err, kv.ErrUnreadableSource)
	assert.ErrorIs(t, err, errDuplicateKey)
	assert.Equal(t, 0, s.Len())
}

func TestLoadYAMLMergeKeys(t *testing.T) {
	s := kv.NewMemStore()
	src := `base: &b
  x: 1
  y: 1
<<: *b
y: 2
`
	require.NoError(t, LoadBytes([]byte(src), s, kv.FormatYAML))

	snap := s.Snapshot()
	assert.NotContains(t, snap, "<<")
	assert.Equal(t, kv.Int(1), snap["x"])
	assert.Equal(t, kv.Int(2), snap["y"])
	assert.Equal(t, kv.KindString, snap["base"].Kind())
	assert.Len(t, snap, 3)
}

func TestLoadYAMLMergeSequence(t *testing.T) {
	s := kv.NewMemStore()
	src := `one: &one {a: first, b: first}
two: &two {b: second, c: second}
<<: [*one, *two]
`
	require.NoError(t, LoadBytes([]byte(src), s, kv.FormatYAML))

	snap := s.Snapshot()
	assert.Equal(t, kv.String("first"), snap["a"])
	assert.Equal(t, kv.String("first"), snap["b"])
	assert.Equal(t, kv.String("second"), snap["c"])
}

func TestLoadYAMLBadMerge(t *testing.T) {
	err := LoadBytes([]byte("<<: plain\n"), kv.NewMemStore(), kv.FormatYAML)
	assert.ErrorIs(t, err, errBadMerge)
}

func TestSaveWhileWriting(t *testing.T) {
	s := kv.NewMemStore()
	require.NoError(t, s.Set("seed", kv.Int(0)))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			s.Set("k"+strconv.Itoa(i), kv.Int(int64(i)))
		}
	}()

	for i := 0; i < 50; i++ {
		var buf bytes.Buffer
		require.NoError(t, Save(&buf, s))
		MergeInto(map[string]any{}, s)
	}
	wg.Wait()

	var buf bytes.Buffer
	require.NoError(t, Save(&buf, s))
	loaded := kv.NewMemStore()
	require.NoError(t, LoadBytes(buf.Bytes(), loaded, kv.FormatJSON))
	assert.Equal(t, 501, loaded.Len())
}
