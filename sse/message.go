package sse

import (
	"strconv"
	"strings"
	"time"
)

// Message is a single Server-Sent Events message. Empty fields are omitted
// from the encoded frame.
type Message struct {
	ID    string
	Event string
	Data  string
}

// Encode renders the message in the text/event-stream format. Data holding
// newlines is split across several data lines so the frame never contains
// a blank line before its terminator.
func (m Message) Encode() []byte {
	var b strings.Builder
	b.Grow(len(m.ID) + len(m.Event) + len(m.Data) + 24)
	if m.ID != "" {
		b.WriteString("id: ")
		b.WriteString(oneLine(m.ID))
		b.WriteByte('\n')
	}
	if m.Event != "" {
		b.WriteString("event: ")
		b.WriteString(oneLine(m.Event))
		b.WriteByte('\n')
	}
	data := strings.ReplaceAll(m.Data, "\r\n", "\n")
	for _, line := range strings.Split(data, "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return []byte(b.String())
}

func oneLine(s string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(s)
}

// PingPrefix starts the payload of every ping frame.
const PingPrefix = "ping "

// Ping builds the ping message for t: "ping <milliseconds since epoch>".
func Ping(t time.Time) Message {
	return Message{Data: PingPrefix + strconv.FormatInt(t.UnixMilli(), 10)}
}
