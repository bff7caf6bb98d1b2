// Package api exposes the HTTP surface: auth, conversation history and
// the two SSE chat streams.
package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/travo-ai/travo/internal/auth"
	"github.com/travo-ai/travo/internal/chat"
	"github.com/travo-ai/travo/internal/log"
	"github.com/travo-ai/travo/internal/store"
)

// Responder runs the chat pipeline for the streaming endpoints.
// Prepare does the pre-stream work (persist the user turn, classify)
// so its failures can still be answered with plain JSON.
type Responder interface {
	Prepare(ctx context.Context, userID uuid.UUID, query string) (*chat.Exchange, error)
	Respond(ctx context.Context, sw *chat.StreamWriter, ex *chat.Exchange) error
	EnhanceQuery(ctx context.Context, sw *chat.StreamWriter, query string) error
}

// ConversationStore serves the non-streaming history endpoints.
type ConversationStore interface {
	ListAll(ctx context.Context, userID uuid.UUID) ([]store.Message, error)
	DeleteAll(ctx context.Context, userID uuid.UUID) (int64, error)
}

// UserStore manages accounts for the auth endpoints.
type UserStore interface {
	Create(ctx context.Context, email, name, passwordHash string) (*auth.User, error)
	GetByEmail(ctx context.Context, email string) (*auth.User, error)
}

// Pinger reports storage liveness for the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config carries the server's HTTP-level settings.
type Config struct {
	CORSOrigins    []string
	TrustProxy     bool
	RateLimitRPS   float64
	RateLimitBurst int
}

// Server handles HTTP requests.
type Server struct {
	pipeline Responder
	messages ConversationStore
	users    UserStore
	tokens   *auth.TokenManager
	db       Pinger
	logger   log.Logger
	handler  http.Handler
}

// NewServer creates the Server and wires routes and middleware.
func NewServer(pipeline Responder, messages ConversationStore, users UserStore, tokens *auth.TokenManager, db Pinger, cfg Config, logger log.Logger) *Server {
	s := &Server{
		pipeline: pipeline,
		messages: messages,
		users:    users,
		tokens:   tokens,
		db:       db,
		logger:   logger,
	}

	requireAuth := authMiddleware(tokens, logger)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)

	mux.HandleFunc("POST /api/v1/auth/sign-up", s.handleSignUp)
	mux.HandleFunc("POST /api/v1/auth/sign-in", s.handleSignIn)

	mux.Handle("GET /api/v1/chat/messages", requireAuth(http.HandlerFunc(s.handleMessages)))
	mux.Handle("POST /api/v1/chat/query-completion", requireAuth(http.HandlerFunc(s.handleQueryCompletion)))
	mux.Handle("POST /api/v1/chat/response", requireAuth(http.HandlerFunc(s.handleResponse)))
	mux.Handle("DELETE /api/v1/chat/delete-chat", requireAuth(http.HandlerFunc(s.handleDeleteChat)))

	// Middleware chain, innermost first.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(newRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst), cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	s.handler = handler
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
