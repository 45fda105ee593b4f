package service

import (
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ludo-technologies/decomb/domain"
	"github.com/ludo-technologies/decomb/internal/ir"
)

const diamondJSON = `{
  "binary": "sample.elf",
  "functions": [
    {
      "name": "diamond",
      "entry": 4096,
      "blocks": [
        {"address": 4096, "name": "A", "weight": 1, "successors": [{"target": 4112}, {"target": 4128}]},
        {"address": 4112, "name": "B", "weight": 2, "successors": [{"target": 4144}]},
        {"address": 4128, "name": "C", "weight": 1, "successors": [{"target": 4144}]},
        {"address": 4144, "name": "D", "weight": 1}
      ]
    }
  ]
}`

func createTestFile(t *testing.T, dirPath, fileName, content string) string {
	t.Helper()
	filePath := filepath.Join(dirPath, fileName)
	require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0755))
	require.NoError(t, os.WriteFile(filePath, []byte(content), 0644))
	return filePath
}

func sampleProgram() *ir.Program {
	fn := ir.NewFunctionBuilder("loop").
		Chain("head", "body", "head").
		Edge("body", "exit").
		MustBuild()
	return &ir.Program{Binary: "sample.elf", Functions: []*ir.Function{fn}}
}

func TestCFGReader_IsValidCFGFile(t *testing.T) {
	r := NewCFGReader()

	valid := []string{"a.json", "a.JSON", "a.yaml", "a.yml", "a.msgpack", "a.mpk", "a.json.gz", "a.yaml.xz", "dir/a.msgpack.gz"}
	for _, path := range valid {
		assert.True(t, r.IsValidCFGFile(path), path)
	}

	invalid := []string{"a.py", "a.gz", "a.txt.xz", "json", "a.toml"}
	for _, path := range invalid {
		assert.False(t, r.IsValidCFGFile(path), path)
	}
}

func TestCFGReader_DecodeProgram(t *testing.T) {
	r := NewCFGReader()

	t.Run("json program", func(t *testing.T) {
		prog, err := r.DecodeProgram("diamond.json", []byte(diamondJSON))
		require.NoError(t, err)
		assert.Equal(t, "sample.elf", prog.Binary)
		require.Len(t, prog.Functions, 1)
		fn := prog.Functions[0]
		assert.Equal(t, "diamond", fn.Name)
		assert.Len(t, fn.Blocks, 4)
		assert.NoError(t, fn.Validate())
	})

	t.Run("yaml single function", func(t *testing.T) {
		content := `name: straight
entry: 1
blocks:
  - address: 1
    weight: 1
    successors: [{target: 2}]
  - address: 2
    weight: 3
`
		prog, err := r.DecodeProgram("straight.yml", []byte(content))
		require.NoError(t, err)
		require.Len(t, prog.Functions, 1)
		assert.Equal(t, "straight", prog.Functions[0].Name)
		assert.Equal(t, 3, prog.Functions[0].Blocks[1].Weight)
	})

	t.Run("unnamed single function takes the file name", func(t *testing.T) {
		prog, err := r.DecodeProgram("dir/handler.json", []byte(`{"entry": 1, "blocks": [{"address": 1, "weight": 1}]}`))
		require.NoError(t, err)
		require.Len(t, prog.Functions, 1)
		assert.Equal(t, "handler", prog.Functions[0].Name)
	})

	t.Run("msgpack", func(t *testing.T) {
		data, err := msgpack.Marshal(sampleProgram())
		require.NoError(t, err)

		prog, err := r.DecodeProgram("loop.msgpack", data)
		require.NoError(t, err)
		require.Len(t, prog.Functions, 1)
		assert.Equal(t, "loop", prog.Functions[0].Name)
		assert.Len(t, prog.Functions[0].Blocks, 3)
	})

	t.Run("gzip", func(t *testing.T) {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		_, err := gz.Write([]byte(diamondJSON))
		require.NoError(t, err)
		require.NoError(t, gz.Close())

		prog, err := r.DecodeProgram("diamond.json.gz", buf.Bytes())
		require.NoError(t, err)
		assert.Len(t, prog.Functions, 1)
	})

	t.Run("xz", func(t *testing.T) {
		var buf bytes.Buffer
		w, err := xz.NewWriter(&buf)
		require.NoError(t, err)
		_, err = w.Write([]byte(diamondJSON))
		require.NoError(t, err)
		require.NoError(t, w.Close())

		prog, err := r.DecodeProgram("diamond.json.xz", buf.Bytes())
		require.NoError(t, err)
		assert.Len(t, prog.Functions, 1)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := r.DecodeProgram("broken.json", []byte(`{"functions": [`))
		require.Error(t, err)
		assert.Equal(t, domain.ErrCodeParseError, domain.ErrorCode(err))
	})

	t.Run("unsupported extension", func(t *testing.T) {
		_, err := r.DecodeProgram("cfg.txt", []byte(diamondJSON))
		require.Error(t, err)
		assert.Equal(t, domain.ErrCodeUnsupportedFormat, domain.ErrorCode(err))
	})

	t.Run("corrupt compression", func(t *testing.T) {
		_, err := r.DecodeProgram("diamond.json.gz", []byte(diamondJSON))
		assert.Error(t, err)
	})
}

func TestCFGReader_MaxFileSize(t *testing.T) {
	dir := t.TempDir()
	path := createTestFile(t, dir, "diamond.json", diamondJSON)

	r := NewCFGReader()
	r.SetMaxFileSize(16)
	_, err := r.ReadProgram(path)
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeInvalidInput, domain.ErrorCode(err))

	// Decompressed data is bounded too
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, _ = gz.Write([]byte(diamondJSON))
	require.NoError(t, gz.Close())
	r.SetMaxFileSize(int64(buf.Len()))
	_, err = r.DecodeProgram("diamond.json.gz", buf.Bytes())
	assert.Error(t, err)

	r.SetMaxFileSize(0)
	prog, err := r.ReadProgram(path)
	require.NoError(t, err)
	assert.Len(t, prog.Functions, 1)
}

func TestCFGReader_ReadProgramMissingFile(t *testing.T) {
	_, err := NewCFGReader().ReadProgram(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeFileNotFound, domain.ErrorCode(err))
}

func TestCFGReader_CollectCFGFiles(t *testing.T) {
	dir := t.TempDir()
	createTestFile(t, dir, "main.json", diamondJSON)
	createTestFile(t, dir, "lib.yaml", "functions: []")
	createTestFile(t, dir, "notes.txt", "not a cfg")
	createTestFile(t, dir, "nested/deep/sub.msgpack", "")
	createTestFile(t, dir, ".hidden/skip.json", "{}")
	createTestFile(t, dir, "vendor/skip.json", "{}")

	r := NewCFGReader()
	rel := func(files []string) []string {
		out := make([]string, 0, len(files))
		for _, f := range files {
			p, err := filepath.Rel(dir, f)
			require.NoError(t, err)
			out = append(out, filepath.ToSlash(p))
		}
		sort.Strings(out)
		return out
	}

	t.Run("recursive with defaults", func(t *testing.T) {
		files, err := r.CollectCFGFiles([]string{dir}, true, domain.DefaultIncludePatterns, []string{"vendor/**"})
		require.NoError(t, err)
		assert.Equal(t, []string{"lib.yaml", "main.json", "nested/deep/sub.msgpack"}, rel(files))
	})

	t.Run("non recursive", func(t *testing.T) {
		files, err := r.CollectCFGFiles([]string{dir}, false, domain.DefaultIncludePatterns, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"lib.yaml", "main.json"}, rel(files))
	})

	t.Run("include filter", func(t *testing.T) {
		files, err := r.CollectCFGFiles([]string{dir}, true, []string{"**/*.json"}, []string{"vendor/**"})
		require.NoError(t, err)
		assert.Equal(t, []string{"main.json"}, rel(files))
	})

	t.Run("explicit file", func(t *testing.T) {
		files, err := r.CollectCFGFiles([]string{filepath.Join(dir, "lib.yaml")}, true, []string{"**/*.json"}, nil)
		require.NoError(t, err)
		assert.Len(t, files, 1, "explicit files bypass include patterns")
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := r.CollectCFGFiles([]string{filepath.Join(dir, "nope")}, true, nil, nil)
		require.Error(t, err)
		assert.Equal(t, domain.ErrCodeFileNotFound, domain.ErrorCode(err))
	})
}

func TestCFGReader_GlobstarPatterns(t *testing.T) {
	r := NewCFGReader()

	tests := []struct {
		name     string
		pattern  string
		path     string
		expected bool
	}{
		{"directory globstar matches files below", "firmware/boot/**", "firmware/boot/main.json", true},
		{"directory globstar matches nested files", "firmware/boot/**", "firmware/boot/stage2/init.json", true},
		{"directory globstar stays inside", "firmware/boot/**", "firmware/net/init.json", false},
		{"suffix globstar matches anywhere", "**/main.json", "deep/nested/main.json", true},
		{"suffix globstar matches at root", "**/main.json", "main.json", true},
		{"report directory anywhere", ".decomb/**", "/work/project/.decomb/reports/run.json", true},
		{"simple wildcard", "sub_*.json", "sub_401000.json", true},
		{"simple wildcard no match", "sub_*.json", "main_sub.json", false},
		{"single level does not descend", "firmware/boot/*.json", "firmware/boot/stage2/init.json", false},
		{"globstar matches the directory itself", "build/**", "build", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, r.matchesPattern(tt.pattern, tt.path))
		})
	}
}
