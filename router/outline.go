package router

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Outline summarizes the heading structure of a document.
type Outline struct {
	// Title is the text of the first heading, if any.
	Title    string
	Headings int
}

var md = goldmark.New()

// Inspect parses doc as Markdown and collects its headings.
func Inspect(doc string) Outline {
	src := []byte(doc)
	root := md.Parser().Parse(text.NewReader(src))

	var o Outline
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		if o.Headings == 0 {
			o.Title = inlineText(h, src)
		}
		o.Headings++
		return ast.WalkSkipChildren, nil
	})
	return o
}

func inlineText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(t.Value)
		default:
			buf.WriteString(inlineText(c, src))
		}
	}
	return strings.TrimSpace(buf.String())
}
