package sseclient

import (
	"bufio"
	"io"
	"strings"
)

// maxLineSize bounds a single line of the stream.
const maxLineSize = 1 << 20

// Event is a single server-sent event.
type Event struct {
	// Event is the type from the "event:" line. Empty for data-only events.
	Event string
	// Data is the payload. Several "data:" lines are joined with newlines.
	Data string
	// ID is the value of the "id:" line.
	ID string
}

// Reader reads events from a stream.
type Reader interface {
	// Next returns the next event, or io.EOF when the stream ends.
	Next() (*Event, error)
	// Close releases the underlying stream.
	Close() error
}

type reader struct {
	scanner *bufio.Scanner
	body    io.ReadCloser
}

// NewReader creates an event reader over body.
func NewReader(body io.ReadCloser) Reader {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)
	return &reader{scanner: scanner, body: body}
}

// Next returns the next complete event. An event cut off by the end of the
// stream is dropped, matching how browsers treat it.
func (r *reader) Next() (*Event, error) {
	var event Event
	var hasData bool

	for r.scanner.Scan() {
		line := strings.TrimSuffix(r.scanner.Text(), "\r")

		if line == "" {
			if hasData {
				return &event, nil
			}
			event = Event{}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value := parseLine(line)
		switch field {
		case "data":
			if hasData {
				event.Data += "\n" + value
			} else {
				event.Data = value
				hasData = true
			}
		case "event":
			event.Event = value
		case "id":
			event.ID = value
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (r *reader) Close() error {
	return r.body.Close()
}

// parseLine splits "field: value", dropping one space after the colon.
func parseLine(line string) (field, value string) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return line, ""
	}
	field = line[:idx]
	value = line[idx+1:]
	if value != "" && value[0] == ' ' {
		value = value[1:]
	}
	return field, value
}
