package client

import "strings"

// EventKind tags one parsed stream line.
type EventKind int

const (
	// EventIgnored marks lines matching no known shape; they are skipped
	// so new server-side event types stay forward compatible.
	EventIgnored EventKind = iota
	// EventContent carries a reply fragment.
	EventContent
	// EventDone is the [DONE] sentinel, a no-op distinct from EventEnd.
	EventDone
	// EventEnd terminates the turn successfully.
	EventEnd
	// EventError terminates the turn with failure.
	EventError
	// EventSession announces the session id in the following data line.
	EventSession
)

// Event is the tagged result of parsing one stream line.
type Event struct {
	Kind EventKind
	Text string
}

// ParseLine classifies one line of the chat stream. Wire-format parsing is
// kept separate from display formatting; the caller decides how fragments
// are joined.
func ParseLine(line string) Event {
	if payload, ok := strings.CutPrefix(line, "data:"); ok {
		payload = strings.TrimPrefix(payload, " ")
		if payload == "[DONE]" {
			return Event{Kind: EventDone}
		}
		return Event{Kind: EventContent, Text: payload}
	}

	if name, ok := strings.CutPrefix(line, "event:"); ok {
		switch strings.TrimSpace(name) {
		case "end":
			return Event{Kind: EventEnd}
		case "error":
			return Event{Kind: EventError}
		case "session":
			return Event{Kind: EventSession}
		}
	}

	return Event{Kind: EventIgnored}
}
