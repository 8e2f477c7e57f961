// Package sse reads a text/event-stream body one event at a time.
package sse

import (
	"bufio"
	"io"
	"strings"
)

const maxLine = 1024 * 1024

// Event is one dispatched server-sent event. Name defaults to "message".
type Event struct {
	Name string
	Data string
	ID   string
}

// Reader splits a stream into events.
type Reader struct {
	sc *bufio.Scanner
}

// NewReader wraps r. Lines up to 1 MiB are accepted.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	return &Reader{sc: sc}
}

// Next returns the next event, or io.EOF once the stream ends. A final event
// not followed by a blank line is still delivered.
func (r *Reader) Next() (Event, error) {
	var (
		ev      Event
		data    []string
		pending bool
	)
	for r.sc.Scan() {
		line := strings.TrimSuffix(r.sc.Text(), "\r")
		if line == "" {
			if pending {
				return finish(ev, data), nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			ev.Name = value
		case "data":
			data = append(data, value)
		case "id":
			ev.ID = value
		default:
			continue
		}
		pending = true
	}
	if err := r.sc.Err(); err != nil {
		return Event{}, err
	}
	if pending {
		return finish(ev, data), nil
	}
	return Event{}, io.EOF
}

func finish(ev Event, data []string) Event {
	if ev.Name == "" {
		ev.Name = "message"
	}
	ev.Data = strings.Join(data, "\n")
	return ev
}
