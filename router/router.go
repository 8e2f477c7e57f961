// Package router assigns each language document an output path. The primary
// language is promoted to the root README with a banner pointing readers at
// the docs directory; every other language is nested under that directory.
package router

import (
	"path"

	"github.com/duoreadme/duoreadme/langmeta"
	"github.com/duoreadme/duoreadme/normalize"
)

const (
	DefaultPrimary      = "en"
	DefaultDocsDir      = "docs"
	DefaultRootFilename = "README.md"
)

// Options configure routing. Paths are slash-separated and relative to the
// project root.
type Options struct {
	Registry     *langmeta.Registry
	Primary      string
	DocsDir      string
	RootFilename string
}

func (o Options) withDefaults() Options {
	if o.Registry == nil {
		o.Registry = langmeta.Default()
	}
	if o.Primary == "" {
		o.Primary = DefaultPrimary
	}
	if o.DocsDir == "" {
		o.DocsDir = DefaultDocsDir
	}
	if o.RootFilename == "" {
		o.RootFilename = DefaultRootFilename
	}
	return o
}

// Assignment is where one language document goes.
type Assignment struct {
	Code     string
	Path     string
	Promoted bool
	// Content is what will be written, banner included.
	Content string
	// Size is len(Content) in bytes.
	Size int
}

// Banner is the line prepended to the promoted document.
func Banner(reg *langmeta.Registry, code, docsDir string) string {
	name := reg.Resolve(code).English
	return "> This is the " + name + " README. For other language versions, please see the [docs](./" + docsDir + ") directory.\n\n"
}

// Route computes assignments in content order. It performs no I/O and
// returns the same result for the same input.
func Route(c *normalize.Content, opts Options) []Assignment {
	if c == nil {
		return nil
	}
	o := opts.withDefaults()
	out := make([]Assignment, 0, c.Len())
	for _, code := range c.Codes() {
		text, _ := c.Get(code)
		a := Assignment{Code: code}
		if code == o.Primary {
			a.Path = o.RootFilename
			a.Promoted = true
			a.Content = Banner(o.Registry, code, o.DocsDir) + text
		} else {
			a.Path = path.Join(o.DocsDir, o.Registry.Filename(code))
			a.Content = text
		}
		a.Size = len(a.Content)
		out = append(out, a)
	}
	return out
}
