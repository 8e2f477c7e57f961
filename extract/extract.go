// Package extract recovers a flat JSON object of language-keyed documents
// from free-form generator output. Extraction is an ordered chain of
// strategies; the first one that yields an object wins.
package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// ErrNoStructuredContent is matched by every error returned when no strategy
// could recover an object.
var ErrNoStructuredContent = errors.New("no structured content")

const previewLen = 200

// NoContentError reports an extraction failure with a preview of the input.
type NoContentError struct {
	Preview string
	Size    int
}

func (e *NoContentError) Error() string {
	return fmt.Sprintf("no structured content in response (%d bytes): %q", e.Size, e.Preview)
}

func (e *NoContentError) Is(target error) bool {
	return target == ErrNoStructuredContent
}

func newNoContentError(raw string) *NoContentError {
	return &NoContentError{Preview: preview(raw, previewLen), Size: len(raw)}
}

func preview(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}

// Field is one key/value pair of a recovered object.
type Field struct {
	Key   string
	Value string
}

// Object keeps the fields of a recovered JSON object in source order,
// duplicates included.
type Object []Field

// Get returns the value of the last field named key.
func (o Object) Get(key string) (string, bool) {
	for i := len(o) - 1; i >= 0; i-- {
		if o[i].Key == key {
			return o[i].Value, true
		}
	}
	return "", false
}

// Keys returns field keys in source order.
func (o Object) Keys() []string {
	keys := make([]string, len(o))
	for i, f := range o {
		keys[i] = f.Key
	}
	return keys
}

// Map flattens the object; later duplicates win.
func (o Object) Map() map[string]string {
	m := make(map[string]string, len(o))
	for _, f := range o {
		m[f.Key] = f.Value
	}
	return m
}

// Encode renders the object as compact JSON with keys in order.
func (o Object) Encode() string {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(f.Key)
		v, _ := json.Marshal(f.Value)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.String()
}

// Strategy is one extraction tier. Attempt must not panic and reports
// ok=false on any failure, including parse errors.
type Strategy interface {
	Name() string
	Attempt(raw string) (Object, bool)
}

// Chain runs strategies in order.
type Chain struct {
	strategies []Strategy
	log        *zap.Logger
}

// NewChain builds a chain from explicit strategies.
func NewChain(log *zap.Logger, strategies ...Strategy) *Chain {
	if log == nil {
		log = zap.NewNop()
	}
	return &Chain{strategies: strategies, log: log}
}

// DefaultChain is fenced block, then balanced object, then truncation repair.
func DefaultChain(log *zap.Logger) *Chain {
	return NewChain(log, FencedBlock{}, BalancedObject{}, TruncationRepair{})
}

// Extract returns the first object any strategy recovers, or a
// *NoContentError.
func (c *Chain) Extract(raw string) (Object, error) {
	for _, s := range c.strategies {
		obj, ok := s.Attempt(raw)
		if !ok {
			c.log.Debug("extraction strategy did not match", zap.String("strategy", s.Name()))
			continue
		}
		c.log.Debug("extracted structured content",
			zap.String("strategy", s.Name()),
			zap.Int("fields", len(obj)),
		)
		return obj, nil
	}
	err := newNoContentError(raw)
	c.log.Warn("no structured content", zap.Int("bytes", err.Size), zap.String("preview", preview(raw, 80)))
	return nil, err
}

// Extract runs the default chain without logging.
func Extract(raw string) (Object, error) {
	return DefaultChain(nil).Extract(raw)
}

// decodeObject parses s as a single JSON object, keeping field order.
// Non-string values are kept as compact JSON text; null becomes "".
func decodeObject(s string) (Object, error) {
	obj, err := decodeObjectStrict(s)
	if err == nil {
		return obj, nil
	}
	// Generators often leave backslashes from code samples unescaped.
	if fixed := fixInvalidEscapes(s); fixed != s {
		if obj, err2 := decodeObjectStrict(fixed); err2 == nil {
			return obj, nil
		}
	}
	return nil, err
}

func decodeObjectStrict(s string) (Object, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}
	obj := Object{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected string key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("value for %q: %w", key, err)
		}
		val, err := rawValue(raw)
		if err != nil {
			return nil, fmt.Errorf("value for %q: %w", key, err)
		}
		obj = append(obj, Field{Key: key, Value: val})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after object")
	}
	return obj, nil
}

func rawValue(raw json.RawMessage) (string, error) {
	switch {
	case len(raw) == 0 || string(raw) == "null":
		return "", nil
	case raw[0] == '"':
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fixInvalidEscapes doubles backslashes inside JSON strings that do not
// start a valid escape sequence (\d, \&, \[dq]).
func fixInvalidEscapes(s string) string {
	var fixed strings.Builder
	inQuote := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if c == '"' && !escaped {
			inQuote = !inQuote
			fixed.WriteByte(c)
			continue
		}

		if inQuote && c == '\\' && !escaped {
			if i+1 < len(s) && strings.IndexByte(`"\/bfnrtu`, s[i+1]) >= 0 {
				fixed.WriteByte(c)
				escaped = true
				continue
			}
			fixed.WriteString(`\\`)
			continue
		}

		fixed.WriteByte(c)
		escaped = false
	}
	return fixed.String()
}
