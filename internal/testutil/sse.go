package testutil

import (
	"bufio"
	"encoding/json"
	"strings"
	"testing"
)

// StreamEvent is one parsed chat stream event. The stream frames every
// event as a bare "data: <JSON>" line; there are no "event:" lines.
type StreamEvent struct {
	Type          string          `json:"type"`
	Content       string          `json:"content"`
	Message       string          `json:"message"`
	WebSearchData json.RawMessage `json:"webSearchData"`
}

// ParseStream parses an SSE body into chat stream events. Fails the
// test on malformed framing or payloads.
func ParseStream(t *testing.T, body string) []StreamEvent {
	t.Helper()

	var events []StreamEvent
	scanner := bufio.NewScanner(strings.NewReader(body))
	pendingData := false
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "data: "):
			if pendingData {
				t.Fatalf("line %d: data line before previous event terminated", lineNum)
			}
			payload := strings.TrimPrefix(line, "data: ")
			var ev StreamEvent
			if err := json.Unmarshal([]byte(payload), &ev); err != nil {
				t.Fatalf("line %d: invalid event payload %q: %v", lineNum, payload, err)
			}
			if ev.Type == "" {
				t.Fatalf("line %d: event payload missing type: %q", lineNum, payload)
			}
			events = append(events, ev)
			pendingData = true

		case line == "":
			pendingData = false

		default:
			t.Fatalf("line %d: unexpected SSE line %q (only data: framing is used)", lineNum, line)
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scanning SSE body: %v", err)
	}
	if pendingData {
		t.Fatal("SSE body ended without terminating blank line")
	}

	return events
}

// FindEvent returns the first event of the given type, or nil.
func FindEvent(events []StreamEvent, eventType string) *StreamEvent {
	for i := range events {
		if events[i].Type == eventType {
			return &events[i]
		}
	}
	return nil
}

// EventsOfType returns all events of the given type.
func EventsOfType(events []StreamEvent, eventType string) []StreamEvent {
	var found []StreamEvent
	for _, e := range events {
		if e.Type == eventType {
			found = append(found, e)
		}
	}
	return found
}

// JoinContent concatenates the content of all events of the given type,
// in order. Used to reassemble a streamed response.
func JoinContent(events []StreamEvent, eventType string) string {
	var sb strings.Builder
	for _, e := range events {
		if e.Type == eventType {
			sb.WriteString(e.Content)
		}
	}
	return sb.String()
}
