package sse

import (
	"bufio"
	"io"
	"strings"
)

// Reader parses SSE events from a byte stream. When built with NewTeeReader
// every raw line is also copied to a destination writer.
type Reader struct {
	scanner *bufio.Scanner
	tee     io.Writer
}

// NewReader returns a Reader over src.
func NewReader(src io.Reader) *Reader {
	return NewTeeReader(src, io.Discard)
}

// NewTeeReader returns a Reader over src that writes each raw line, newline
// included, to dest before parsing it.
func NewTeeReader(src io.Reader, dest io.Writer) *Reader {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	return &Reader{scanner: scanner, tee: dest}
}

// pending accumulates the fields of the event being read.
type pending struct {
	ev      Event
	data    []string
	started bool
}

func (p *pending) event() *Event {
	ev := p.ev
	ev.Data = strings.Join(p.data, "\n")
	return &ev
}

// apply folds one "field:value" line into p. Unknown fields are ignored.
func (p *pending) apply(line string) {
	field, value, _ := strings.Cut(line, ":")
	value = strings.TrimPrefix(value, " ")

	switch field {
	case "data":
		p.data = append(p.data, value)
	case "event":
		p.ev.Type = value
	case "id":
		p.ev.ID = value
	default:
		return
	}
	p.started = true
}

// Next blocks until a complete event is available and returns it. It returns
// nil, nil once src is exhausted. A final event without a trailing blank line
// is still returned.
func (r *Reader) Next() (*Event, error) {
	var p pending

	for r.scanner.Scan() {
		line := r.scanner.Text()
		if _, err := io.WriteString(r.tee, line+"\n"); err != nil {
			return nil, err
		}

		switch {
		case line == "":
			if p.started {
				return p.event(), nil
			}
		case strings.HasPrefix(line, ":"):
			// comment
		default:
			p.apply(line)
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	if p.started {
		return p.event(), nil
	}
	return nil, nil
}
