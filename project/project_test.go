package project

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func TestRead(t *testing.T) {
	root := writeTree(t, map[string]string{
		"README.md":               "# Demo\n",
		"README.ja.md":            "# デモ\n",
		"main.go":                 "package main\n",
		"utils/helpers.go":        "package utils\n",
		"docs/notes.txt":          "notes\n",
		"node_modules/x/main.js":  "module.exports = 1\n",
		"secret/main.py":          "print('hidden')\n",
		"blob.bin":                "\x00\x01\x02",
		".gitignore":              "secret/\n",
		"examples/deep/parser.rs": "fn main() {}\n",
		"examples/deep/README.md": "# nested\n",
	})

	snap, err := Read(context.Background(), root, Options{})
	require.NoError(t, err)

	var paths []string
	for _, f := range snap.Files {
		paths = append(paths, f.Path)
	}
	// parser.rs scores 100-15=85, helpers.go 60-10=50.
	assert.Equal(t, []string{"README.md", "main.go", "examples/deep/parser.rs"}, paths)
	assert.True(t, snap.HasIgnore)
	// main.go, helpers.go, notes.txt, parser.rs, .gitignore
	assert.Equal(t, 5, snap.Candidates)

	text := snap.Text()
	assert.True(t, strings.HasPrefix(text, "=== README.md ===\n# Demo\n\n\n"), text)
	assert.Contains(t, text, "=== main.go ===\npackage main\n")
	assert.NotContains(t, text, "hidden")
	assert.NotContains(t, text, "デモ")
}

func TestReadExclude(t *testing.T) {
	root := writeTree(t, map[string]string{
		"README.md":     "# Demo\n",
		"docs/main.md":  "# generated\n",
		"src/config.go": "package src\n",
	})

	snap, err := Read(context.Background(), root, Options{Exclude: []string{"docs/"}, MaxFiles: 5})
	require.NoError(t, err)
	assert.False(t, snap.HasIgnore)
	require.Len(t, snap.Files, 2)
	assert.Equal(t, "src/config.go", snap.Files[1].Path)
}

func TestReadWithoutReadme(t *testing.T) {
	root := writeTree(t, map[string]string{"core.py": "x = 1\n"})

	snap, err := Read(context.Background(), root, Options{})
	require.NoError(t, err)
	require.Len(t, snap.Files, 1)
	assert.Equal(t, "=== core.py ===\nx = 1\n\n\n", snap.Text())
}

func TestReadCompressesLargeFiles(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 500; i++ {
		fmt.Fprintf(&b, "line %03d of the readme\n", i)
	}
	root := writeTree(t, map[string]string{"README.md": b.String()})

	snap, err := Read(context.Background(), root, Options{ReadmeLimit: 1000})
	require.NoError(t, err)
	require.Len(t, snap.Files, 1)
	f := snap.Files[0]
	assert.True(t, f.Compressed)
	assert.Equal(t, len(b.String()), f.Size)
	assert.Contains(t, f.Content, "(content compressed)")
}

func TestReadErrors(t *testing.T) {
	_, err := Read(context.Background(), filepath.Join(t.TempDir(), "missing"), Options{})
	assert.Error(t, err)

	root := writeTree(t, map[string]string{"README.md": "x"})
	_, err = Read(context.Background(), filepath.Join(root, "README.md"), Options{})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Read(ctx, root, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScore(t *testing.T) {
	assert.Equal(t, 95, Score("main.go"))
	assert.Equal(t, 70, Score("src/config.py"))
	assert.Equal(t, -10, Score("a/b/c/test_x.py"))
	assert.Equal(t, -5, Score("LICENSE"))
}

func TestCompress(t *testing.T) {
	t.Run("short content untouched", func(t *testing.T) {
		assert.Equal(t, "hello", Compress("hello", 10))
	})

	t.Run("collapses blank runs first", func(t *testing.T) {
		assert.Equal(t, "a\n\nb", Compress("a\n\n\n\nb", 4))
	})

	t.Run("keeps head and tail", func(t *testing.T) {
		var lines []string
		for i := 0; i < 200; i++ {
			lines = append(lines, fmt.Sprintf("row %03d", i))
		}
		in := strings.Join(lines, "\n")
		out := Compress(in, 500)

		head, tail, ok := strings.Cut(out, elision)
		require.True(t, ok, out)
		assert.True(t, strings.HasPrefix(head, "row 000\n"))
		assert.True(t, strings.HasSuffix(tail, "row 199"))
		assert.LessOrEqual(t, len([]rune(head)), 300)
		assert.LessOrEqual(t, len([]rune(tail)), 100)
		// snapped to line boundaries
		assert.True(t, strings.HasSuffix(head, "\nrow 036"), head)
		assert.True(t, strings.HasPrefix(tail, "\nrow 188"), tail)
	})

	t.Run("counts runes", func(t *testing.T) {
		in := strings.Repeat("中", 100)
		out := Compress(in, 50)
		head, tail, ok := strings.Cut(out, elision)
		require.True(t, ok)
		assert.Equal(t, 30, len([]rune(head)))
		assert.Equal(t, 10, len([]rune(tail)))
	})
}
