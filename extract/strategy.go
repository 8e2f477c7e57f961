package extract

import (
	"regexp"
	"strings"
)

// DefaultAnchor is the key generators are asked to emit first; its presence
// marks where a truncated object starts.
const DefaultAnchor = `"English readme"`

var (
	taggedFence = regexp.MustCompile("(?s)```[ \t]*(?i:json)[ \t]*\r?\n(.*?)```")
	anyFence    = regexp.MustCompile("(?s)```[^\n`]*\r?\n(.*?)```")
)

// FencedBlock takes the object from a ```json fence, or failing that from the
// first fence whose body looks like an object.
type FencedBlock struct{}

func (FencedBlock) Name() string { return "fenced-block" }

func (FencedBlock) Attempt(raw string) (Object, bool) {
	if m := taggedFence.FindStringSubmatch(raw); m != nil {
		obj, err := decodeObject(strings.TrimSpace(m[1]))
		return obj, err == nil
	}
	for _, m := range anyFence.FindAllStringSubmatch(raw, -1) {
		body := strings.TrimSpace(m[1])
		if !strings.HasPrefix(body, "{") || !strings.HasSuffix(body, "}") {
			continue
		}
		if obj, err := decodeObject(body); err == nil {
			return obj, true
		}
	}
	return nil, false
}

// BalancedObject parses the first complete brace-balanced object in the text.
type BalancedObject struct{}

func (BalancedObject) Name() string { return "balanced-object" }

func (BalancedObject) Attempt(raw string) (Object, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return nil, false
	}
	sc := scanObject(raw, start)
	if !sc.closed {
		return nil, false
	}
	obj, err := decodeObject(stripControl(raw[start:sc.end]))
	return obj, err == nil
}

// TruncationRepair salvages an object cut off mid-stream. It anchors on a
// known first key, backs up to the enclosing '{' and, if the object never
// closes, drops the incomplete trailing field.
type TruncationRepair struct {
	// Anchors default to DefaultAnchor. The first one found is used.
	Anchors []string
}

func (TruncationRepair) Name() string { return "truncation-repair" }

func (t TruncationRepair) Attempt(raw string) (Object, bool) {
	start := t.objectStart(raw)
	if start < 0 {
		return nil, false
	}
	if sc := scanObject(raw, start); sc.closed {
		obj, err := decodeObject(stripControl(raw[start:sc.end]))
		return obj, err == nil
	}

	body := strings.TrimRight(stripControl(raw[start:]), " ")
	if !strings.HasSuffix(body, "}") {
		if sc := scanObject(body, 0); sc.lastComma >= 0 {
			body = body[:sc.lastComma]
		}
		body += "}"
	}
	obj, err := decodeObject(body)
	return obj, err == nil
}

func (t TruncationRepair) objectStart(raw string) int {
	anchors := t.Anchors
	if len(anchors) == 0 {
		anchors = []string{DefaultAnchor}
	}
	for _, a := range anchors {
		if idx := strings.Index(raw, a); idx >= 0 {
			return strings.LastIndexByte(raw[:idx], '{')
		}
	}
	return -1
}

type scanResult struct {
	end       int
	closed    bool
	lastComma int
}

// scanObject walks s from the '{' at start, ignoring braces inside strings.
// lastComma is the offset of the last comma directly inside the outer object.
func scanObject(s string, start int) scanResult {
	depth := 0
	inStr, esc := false, false
	lastComma := -1
	for i := start; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case esc:
				esc = false
			case c == '\\':
				esc = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return scanResult{end: i + 1, closed: true, lastComma: lastComma}
			}
		case ',':
			if depth == 1 {
				lastComma = i
			}
		}
	}
	return scanResult{end: len(s), lastComma: lastComma}
}

// stripControl removes C0 and C1 control characters, including raw newlines
// and tabs, which generators leave unescaped inside JSON strings.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r <= 0x1f || (r >= 0x7f && r <= 0x9f) {
			return -1
		}
		return r
	}, s)
}
