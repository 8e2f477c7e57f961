// Package chunker splits project text into size-bounded batches along file
// marker lines so that no file header is ever separated from its content.
package chunker

import "strings"

const (
	markerOpen  = "=== "
	markerClose = " ==="
)

// Batch is a run of consecutive sections submitted together.
type Batch struct {
	// Index is 1-based.
	Index    int
	Text     string
	Sections int
}

// Len returns the batch size in bytes.
func (b Batch) Len() int { return len(b.Text) }

// Marker returns the header line that introduces path in project text.
func Marker(path string) string {
	return markerOpen + path + markerClose + "\n"
}

// ParseMarker reports whether line is a file marker and returns its path.
func ParseMarker(line string) (string, bool) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, markerOpen) || !strings.HasSuffix(line, markerClose) {
		return "", false
	}
	if len(line) <= len(markerOpen)+len(markerClose) {
		return "", false
	}
	path := strings.TrimSpace(line[len(markerOpen) : len(line)-len(markerClose)])
	if path == "" {
		return "", false
	}
	return path, true
}

// Split cuts text into sections, each beginning at a marker line (text
// preceding the first marker forms its own section). Sections are verbatim
// substrings: joining them yields text unchanged.
func Split(text string) []string {
	if text == "" {
		return nil
	}
	var sections []string
	start := 0
	for pos := 0; pos < len(text); {
		end := strings.IndexByte(text[pos:], '\n')
		lineEnd := len(text)
		if end >= 0 {
			lineEnd = pos + end + 1
		}
		if _, ok := ParseMarker(text[pos:lineEnd]); ok && pos > start {
			sections = append(sections, text[start:pos])
			start = pos
		}
		pos = lineEnd
	}
	return append(sections, text[start:])
}

// Chunk groups sections greedily into batches of at most maxLen bytes. A
// section larger than maxLen on its own becomes a single oversized batch
// rather than being cut. Empty text yields no batches.
func Chunk(text string, maxLen int) []Batch {
	var (
		batches []Batch
		cur     strings.Builder
		count   int
	)
	flush := func() {
		if count == 0 {
			return
		}
		batches = append(batches, Batch{Index: len(batches) + 1, Text: cur.String(), Sections: count})
		cur.Reset()
		count = 0
	}
	for _, sec := range Split(text) {
		if count > 0 && cur.Len()+len(sec) > maxLen {
			flush()
		}
		cur.WriteString(sec)
		count++
	}
	flush()
	return batches
}
