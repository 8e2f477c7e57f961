// Package normalize maps the loosely keyed objects recovered from generator
// output onto canonical language codes.
package normalize

import (
	"strings"

	"go.uber.org/zap"

	"github.com/duoreadme/duoreadme/extract"
	"github.com/duoreadme/duoreadme/langmeta"
)

// Document is the text generated for one language.
type Document struct {
	Code string
	Text string
}

// Content is an immutable set of documents keyed by canonical code, kept in
// the order each code first appeared.
type Content struct {
	codes      []string
	docs       map[string]string
	unroutable []string
}

// NewContent builds content directly from documents. Text is trimmed,
// empty documents are skipped and a repeated code replaces the earlier text.
func NewContent(docs ...Document) *Content {
	c := &Content{docs: make(map[string]string, len(docs))}
	for _, d := range docs {
		c.put(d.Code, d.Text)
	}
	return c
}

func (c *Content) put(code, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	if _, ok := c.docs[code]; !ok {
		c.codes = append(c.codes, code)
	}
	c.docs[code] = text
	return true
}

// Len returns the number of languages.
func (c *Content) Len() int { return len(c.codes) }

// Codes returns canonical codes in first-seen order.
func (c *Content) Codes() []string {
	out := make([]string, len(c.codes))
	copy(out, c.codes)
	return out
}

// Get returns the document for code.
func (c *Content) Get(code string) (string, bool) {
	text, ok := c.docs[code]
	return text, ok
}

// Unroutable lists keys that matched no known language.
func (c *Content) Unroutable() []string {
	out := make([]string, len(c.unroutable))
	copy(out, c.unroutable)
	return out
}

// Merge returns c with the documents of later applied on top. A code in both
// takes the later text; codes keep the order they first appeared in.
// Unroutable keys of both are kept.
func (c *Content) Merge(later *Content) *Content {
	out := NewContent()
	for _, src := range []*Content{c, later} {
		if src == nil {
			continue
		}
		for _, code := range src.codes {
			out.put(code, src.docs[code])
		}
		out.unroutable = append(out.unroutable, src.unroutable...)
	}
	return out
}

// Options control normalization.
type Options struct {
	// Registry defaults to langmeta.Default().
	Registry *langmeta.Registry
	// Allowed restricts the result to these canonical codes when non-empty.
	Allowed []string
	Logger  *zap.Logger
}

// Normalize resolves each key by exact surface form, then by its trimmed
// case-insensitive form. Unknown keys and empty values are dropped; when two
// keys resolve to the same code the later one wins.
func Normalize(obj extract.Object, opts Options) *Content {
	reg := opts.Registry
	if reg == nil {
		reg = langmeta.Default()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	var allowed map[string]bool
	if len(opts.Allowed) > 0 {
		allowed = make(map[string]bool, len(opts.Allowed))
		for _, code := range opts.Allowed {
			allowed[code] = true
		}
	}

	c := NewContent()
	for _, f := range obj {
		code, ok := reg.Lookup(f.Key)
		if !ok {
			code, ok = reg.LookupFold(f.Key)
		}
		if !ok {
			log.Debug("unroutable language key", zap.String("key", f.Key))
			c.unroutable = append(c.unroutable, f.Key)
			continue
		}
		if allowed != nil && !allowed[code] {
			log.Debug("language not requested", zap.String("key", f.Key), zap.String("code", code))
			continue
		}
		if _, seen := c.docs[code]; seen {
			log.Debug("language repeated, keeping later text", zap.String("key", f.Key), zap.String("code", code))
		}
		if !c.put(code, f.Value) {
			log.Debug("empty document dropped", zap.String("code", code))
		}
	}
	return c
}
