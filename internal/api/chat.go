package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/travo-ai/travo/internal/chat"
	"github.com/travo-ai/travo/internal/store"
)

type queryRequest struct {
	Query string `json:"query"`
}

const maxQueryBody = 256 << 10 // 256 KiB

// handleMessages returns the user's full conversation history.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required", s.logger)
		return
	}

	msgs, err := s.messages.ListAll(r.Context(), userID)
	if err != nil {
		s.logger.Error("listing messages failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not load messages", s.logger)
		return
	}
	if msgs == nil {
		msgs = []store.Message{} // keep JSON as [] instead of null
	}

	writeSuccess(w, http.StatusOK, msgs, "Chats retrieved successfully", s.logger)
}

// handleDeleteChat removes the user's conversation. 404 when there was
// nothing to delete.
func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required", s.logger)
		return
	}

	count, err := s.messages.DeleteAll(r.Context(), userID)
	if err != nil {
		s.logger.Error("deleting chats failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not delete chats", s.logger)
		return
	}
	if count == 0 {
		writeError(w, http.StatusNotFound, "No chats found", s.logger)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]int64{"deleted": count}, "Chats deleted successfully", s.logger)
}

// handleResponse streams the full pipeline response as SSE. The user
// turn is persisted and classified before the stream opens; a store
// failure at that point is still a plain 500.
func (s *Server) handleResponse(w http.ResponseWriter, r *http.Request) {
	userID, query, ok := s.streamPrelude(w, r)
	if !ok {
		return
	}

	ex, err := s.pipeline.Prepare(r.Context(), userID, query)
	if err != nil {
		s.logger.Error("preparing chat response failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not process the request", s.logger)
		return
	}

	sw, err := chat.NewStreamWriter(w, s.logger)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming not supported", s.logger)
		return
	}
	defer sw.Close()

	if err := s.pipeline.Respond(r.Context(), sw, ex); err != nil {
		s.logStreamEnd(r.Context(), "chat response", userID, err)
	}
}

// handleQueryCompletion streams an enhanced version of the query.
func (s *Server) handleQueryCompletion(w http.ResponseWriter, r *http.Request) {
	userID, query, ok := s.streamPrelude(w, r)
	if !ok {
		return
	}

	sw, err := chat.NewStreamWriter(w, s.logger)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming not supported", s.logger)
		return
	}
	defer sw.Close()

	if err := s.pipeline.EnhanceQuery(r.Context(), sw, query); err != nil {
		s.logStreamEnd(r.Context(), "query completion", userID, err)
	}
}

// streamPrelude validates a streaming request before any SSE headers
// go out, so failures here are still plain JSON errors.
func (s *Server) streamPrelude(w http.ResponseWriter, r *http.Request) (uuid.UUID, string, bool) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required", s.logger)
		return uuid.Nil, "", false
	}

	var req queryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQueryBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", s.logger)
		return uuid.Nil, "", false
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		writeError(w, http.StatusBadRequest, "query is required", s.logger)
		return uuid.Nil, "", false
	}

	return userID, query, true
}

// logStreamEnd classifies how a stream finished. Client disconnects
// are routine; everything else is an error.
func (s *Server) logStreamEnd(ctx context.Context, op string, userID uuid.UUID, err error) {
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		s.logger.Debug(op+" aborted by client", "user_id", userID)
		return
	}
	s.logger.Error(op+" failed", "user_id", userID, "error", err)
}
