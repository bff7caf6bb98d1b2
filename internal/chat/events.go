package chat

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/travo-ai/travo/internal/log"
	"github.com/travo-ai/travo/internal/websearch"
)

// EventType is the wire-level event discriminator.
//
// The taxonomy is part of the client contract and keeps two historical
// quirks: greeting and query-enhancement fragments both use
// "query-completion", and the terminal source events are swapped (the
// info strategy terminates with a "planner" event and vice versa).
// Clients key on these exact strings; do not "fix" them here.
type EventType string

const (
	// EventQueryCompletion carries greeting and query-enhancement
	// fragments.
	EventQueryCompletion EventType = "query-completion"

	// EventInfo carries info-strategy fragments, and terminates a
	// planner stream with its web sources.
	EventInfo EventType = "info"

	// EventPlanner carries planner-strategy fragments, and terminates
	// an info stream with its web sources.
	EventPlanner EventType = "planner"

	// EventError reports a mid-stream failure.
	EventError EventType = "error"
)

// Event is one stream payload. Exactly one of Content, Message or
// WebSearchData is set, depending on Type. WebSearchData is omitzero,
// not omitempty: terminal source events carry an explicit empty array
// when the search came back with nothing.
type Event struct {
	Type          EventType          `json:"type"`
	Content       string             `json:"content,omitempty"`
	Message       string             `json:"message,omitempty"`
	WebSearchData []websearch.Result `json:"webSearchData,omitzero"`
}

// StreamWriter frames events as Server-Sent Events. Every event is a
// single "data: <JSON>" line; no "event:" lines are emitted.
//
// Not safe for concurrent use; a stream belongs to one handler
// goroutine.
type StreamWriter struct {
	w      http.ResponseWriter
	f      http.Flusher
	logger log.Logger
	closed bool
}

// NewStreamWriter prepares w for SSE and flushes the headers. Fails if
// the ResponseWriter cannot stream.
func NewStreamWriter(w http.ResponseWriter, logger log.Logger) (*StreamWriter, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no") // disable nginx buffering
	w.WriteHeader(http.StatusOK)
	f.Flush()

	return &StreamWriter{w: w, f: f, logger: logger}, nil
}

// Send writes one event and flushes it. Writes after Close are
// silently dropped so late pipeline stages need no liveness checks.
func (s *StreamWriter) Send(ev Event) error {
	if s.closed {
		return nil
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	s.f.Flush()
	return nil
}

// SendError emits an error event. Best effort; a failed write at this
// point only gets logged.
func (s *StreamWriter) SendError(message string) {
	if err := s.Send(Event{Type: EventError, Message: message}); err != nil {
		s.logger.Debug("failed to write error event", "error", err)
	}
}

// Close ends the stream. Idempotent.
func (s *StreamWriter) Close() {
	s.closed = true
}
