// Package chat implements the streaming chat session: it sends a user
// message to the backend's streaming endpoint, incrementally decodes the
// response into a growing assistant message, and finalises it into the
// conversation transcript.
package chat

import (
	"encoding/json"
	"strings"
)

// dataPrefix marks payload-carrying lines in the stream. Lines without it
// (blank lines, keep-alives, unknown framing) are ignored.
const dataPrefix = "data: "

// EventKind discriminates the decoded stream payload shapes.
type EventKind int

// Stream payload shapes. Exactly one applies per decoded line.
const (
	// EventMeta carries the conversation identity; the first such event in a
	// stream is applied to session state before any further chunks.
	EventMeta EventKind = iota + 1
	// EventDelta carries an incremental assistant text fragment.
	EventDelta
	// EventDone signals the stream is finished.
	EventDone
)

// StreamEvent is the tagged union decoded once per line. Only the fields for
// the given Kind are meaningful.
type StreamEvent struct {
	Kind EventKind

	// EventMeta
	ConversationID string
	IsNew          bool
	Title          string

	// EventDelta
	Content string
}

// DecodeLine decodes one complete line into a StreamEvent. ok is false for
// lines without the data prefix, malformed payloads, and payloads matching
// no recognised shape; such lines are skipped and never abort the stream.
func DecodeLine(line string) (StreamEvent, bool) {
	if !strings.HasPrefix(line, dataPrefix) {
		return StreamEvent{}, false
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
	if payload == "" {
		return StreamEvent{}, false
	}

	var raw struct {
		ConversationID *string `json:"conversation_id"`
		IsNew          bool    `json:"is_new"`
		Title          string  `json:"title"`
		Content        *string `json:"content"`
		Done           bool    `json:"done"`
	}
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return StreamEvent{}, false
	}

	switch {
	case raw.Done:
		return StreamEvent{Kind: EventDone}, true
	case raw.ConversationID != nil:
		return StreamEvent{
			Kind:           EventMeta,
			ConversationID: *raw.ConversationID,
			IsNew:          raw.IsNew,
			Title:          raw.Title,
		}, true
	case raw.Content != nil:
		return StreamEvent{Kind: EventDelta, Content: *raw.Content}, true
	}
	return StreamEvent{}, false
}

// LineDecoder splits stream chunks into complete lines, buffering a trailing
// partial line across reads so that chunk boundaries falling mid-line never
// lose or duplicate a fragment.
type LineDecoder struct {
	rest string
}

// Lines returns the complete lines contained in chunk (prefixed with any
// remainder from the previous chunk). The trailing partial line, if any, is
// retained for the next call.
func (d *LineDecoder) Lines(chunk string) []string {
	buf := d.rest + chunk
	var lines []string
	for {
		i := strings.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, strings.TrimSuffix(buf[:i], "\r"))
		buf = buf[i+1:]
	}
	d.rest = buf
	return lines
}

// Flush returns the buffered remainder as a final line at end of stream, or
// "" when the stream ended on a line boundary.
func (d *LineDecoder) Flush() string {
	rest := strings.TrimSuffix(d.rest, "\r")
	d.rest = ""
	return rest
}
