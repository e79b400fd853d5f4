package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
}

func TestList_DefaultIgnoreAndIgnoreFile(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"README.md":             "# hi",
		"src/a.go":              "package a",
		"src/deep/b.go":         "package deep",
		"debug.log":             "noise",
		"out/bin.txt":           "artifact",
		"node_modules/x/i.js":   "js",
		"vendor/m/m.go":         "package m",
		".hidden/secret":        "s",
		".env":                  "K=V",
		".git/config":           "[core]",
		"src/__pycache__/a.pyc": "pyc",
		".gitignore":            "*.log\nout/\n",
	})

	paths, err := New(zerolog.Nop()).List(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"README.md", "src/a.go", "src/deep/b.go"}, paths)
}

func TestList_WithoutIgnoreFile(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"b.txt": "b", "a.txt": "a", "build/x": "x"})

	paths, err := New(zerolog.Nop()).List(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, paths)
}

func TestList_ExtraIgnore(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"keep.txt": "", "fixtures/big.json": "{}"})

	paths, err := New(zerolog.Nop(), WithIgnore("fixtures")).List(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.txt"}, paths)
}

func TestList_MissingRoot(t *testing.T) {
	_, err := New(zerolog.Nop()).List(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestRead(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "hello", "empty.txt": "", "dir/x": "x"})
	f := New(zerolog.Nop())

	assert.Equal(t, "hello", f.Read(root, "a.txt"))
	assert.Equal(t, "", f.Read(root, "empty.txt"))

	missing := f.Read(root, "missing.txt")
	assert.True(t, strings.HasPrefix(missing, "[error reading missing.txt:"), missing)

	assert.Contains(t, f.Read(root, "dir"), "[error reading dir:")
	assert.Contains(t, f.Read(root, "../etc/passwd"), "escapes repository root")
	assert.Contains(t, f.Read(root, "/etc/passwd"), "absolute path")
}

func TestRead_Truncates(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"big.txt": strings.Repeat("x", 100)})

	out := New(zerolog.Nop(), WithMaxFileSize(10)).Read(root, "big.txt")
	assert.Equal(t, strings.Repeat("x", 10)+TruncatedMarker, out)
}

func TestResolve(t *testing.T) {
	root := "/repo"
	got, err := Resolve(root, "a/./b/../c.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/repo", "a", "c.txt"), got)

	for _, bad := range []string{"", "/abs", "..", "../x", "a/../../x"} {
		_, err := Resolve(root, bad)
		assert.Error(t, err, bad)
	}
}
