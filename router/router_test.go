package router

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duoreadme/duoreadme/langmeta"
	"github.com/duoreadme/duoreadme/normalize"
)

const enBanner = "> This is the English README. For other language versions, please see the [docs](./docs) directory.\n\n"

func TestRoutePromotesPrimary(t *testing.T) {
	c := normalize.NewContent(
		normalize.Document{Code: "en", Text: "# Hi"},
		normalize.Document{Code: "fr", Text: "# Salut"},
	)

	got := Route(c, Options{})
	want := []Assignment{
		{Code: "en", Path: "README.md", Promoted: true, Content: enBanner + "# Hi", Size: len(enBanner) + 4},
		{Code: "fr", Path: "docs/README.fr.md", Content: "# Salut", Size: 7},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Route mismatch (-want +got):\n%s", diff)
	}
}

func TestRouteFilenames(t *testing.T) {
	c := normalize.NewContent(
		normalize.Document{Code: "zh-Hans", Text: "中"},
		normalize.Document{Code: "zh-Hant", Text: "中"},
		normalize.Document{Code: "pt-PT", Text: "pt"},
		normalize.Document{Code: "fr-CA", Text: "fr"},
	)
	var paths []string
	for _, a := range Route(c, Options{}) {
		assert.False(t, a.Promoted)
		paths = append(paths, a.Path)
	}
	assert.Equal(t, []string{
		"docs/README.zh.md",
		"docs/README.zh-Hant.md",
		"docs/README.pt-PT.md",
		"docs/README.fr-ca.md",
	}, paths)
}

func TestRouteCustomPrimary(t *testing.T) {
	c := normalize.NewContent(
		normalize.Document{Code: "en", Text: "# Hi"},
		normalize.Document{Code: "ja", Text: "# こんにちは"},
	)
	got := Route(c, Options{Primary: "ja", DocsDir: "i18n", RootFilename: "README.markdown"})
	require.Len(t, got, 2)
	assert.Equal(t, "i18n/README.en.md", got[0].Path)
	assert.Equal(t, "README.markdown", got[1].Path)
	assert.True(t, got[1].Promoted)
	assert.Equal(t, "> This is the Japanese README. For other language versions, please see the [docs](./i18n) directory.\n\n# こんにちは", got[1].Content)
}

func TestRouteIsIdempotent(t *testing.T) {
	c := normalize.NewContent(
		normalize.Document{Code: "en", Text: "# Hi"},
		normalize.Document{Code: "de", Text: "# Hallo"},
		normalize.Document{Code: "ko", Text: "# 안녕"},
	)
	first := Route(c, Options{})
	second := Route(c, Options{})
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("routing changed between calls (-first +second):\n%s", diff)
	}
}

func TestRouteEmpty(t *testing.T) {
	assert.Empty(t, Route(normalize.NewContent(), Options{}))
	assert.Nil(t, Route(nil, Options{}))
}

// ----------------------------------------------------------------------------
// Publish
// ----------------------------------------------------------------------------

func TestPublishRecordsFailures(t *testing.T) {
	c := normalize.NewContent(
		normalize.Document{Code: "en", Text: "# Hi"},
		normalize.Document{Code: "fr", Text: "# Salut"},
		normalize.Document{Code: "de", Text: "# Hallo"},
	)
	written := map[string]string{}
	p := PersistFunc(func(path, content string) error {
		if path == "docs/README.fr.md" {
			return errors.New("disk full")
		}
		written[path] = content
		return nil
	})

	r := Publish(context.Background(), Route(c, Options{}), p, nil)
	require.Len(t, r.Saved, 2)
	require.Len(t, r.Failed, 1)
	assert.True(t, r.OK())
	assert.Equal(t, "fr", r.Failed[0].Code)
	assert.Equal(t, "docs/README.fr.md", r.Failed[0].Path)
	assert.Equal(t, "disk full", r.Failed[0].Err)
	assert.Equal(t, "# Hallo", written["docs/README.de.md"])
}

func TestPublishCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := normalize.NewContent(normalize.Document{Code: "en", Text: "# Hi"})
	r := Publish(ctx, Route(c, Options{}), PersistFunc(func(string, string) error {
		t.Fatal("persist called after cancellation")
		return nil
	}), nil)
	assert.False(t, r.OK())
	require.Len(t, r.Failed, 1)
	assert.Equal(t, context.Canceled.Error(), r.Failed[0].Err)
}

func TestFilePersister(t *testing.T) {
	root := t.TempDir()
	p := FilePersister{Root: root}

	require.NoError(t, p.Persist("docs/README.ja.md", "# こんにちは\n"))
	require.NoError(t, p.Persist("docs/README.ja.md", "# 更新\n"))

	data, err := os.ReadFile(filepath.Join(root, "docs", "README.ja.md"))
	require.NoError(t, err)
	assert.Equal(t, "# 更新\n", string(data))

	entries, err := os.ReadDir(filepath.Join(root, "docs"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files left behind")
}

func TestFilePersisterFailure(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs"), []byte("not a dir"), 0o644))

	err := FilePersister{Root: root}.Persist("docs/README.fr.md", "x")
	assert.Error(t, err)
}

// ----------------------------------------------------------------------------
// Prune
// ----------------------------------------------------------------------------

func TestPrune(t *testing.T) {
	root := t.TempDir()
	docs := filepath.Join(root, "docs")
	require.NoError(t, os.MkdirAll(docs, 0o755))
	for _, name := range []string{"README.zh.md", "README.fr.md", "README.de.md", "README.notes.md", "guide.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(docs, name), []byte("x"), 0o644))
	}

	stale, err := Stale(root, "", nil, []string{"zh-Hans", "de"})
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/README.fr.md"}, stale)

	removed, err := Prune(root, "docs", langmeta.Default(), []string{"zh-Hans", "de"}, nil)
	require.NoError(t, err)
	assert.Equal(t, stale, removed)
	assert.NoFileExists(t, filepath.Join(docs, "README.fr.md"))
	assert.FileExists(t, filepath.Join(docs, "README.notes.md"))
	assert.FileExists(t, filepath.Join(docs, "README.zh.md"))
}

func TestStaleWithoutDocsDir(t *testing.T) {
	stale, err := Stale(t.TempDir(), "docs", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, stale)
}

// ----------------------------------------------------------------------------
// Outline
// ----------------------------------------------------------------------------

func TestInspect(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want Outline
	}{
		{"atx", "# Hello *world*\n\ntext\n\n## Usage\n", Outline{Title: "Hello world", Headings: 2}},
		{"setext", "Title\n=====\n\nbody\n", Outline{Title: "Title", Headings: 1}},
		{"code span", "# The `gen` command\n", Outline{Title: "The gen command", Headings: 1}},
		{"fenced heading ignored", "```\n# not a heading\n```\n", Outline{}},
		{"banner first", enBanner + "# Hi\n", Outline{Title: "Hi", Headings: 1}},
		{"no headings", "just text", Outline{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Inspect(tc.doc))
		})
	}
}
