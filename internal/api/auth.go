package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/travo-ai/travo/internal/auth"
)

type signUpRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string   `json:"token"`
	User  userView `json:"user"`
}

type userView struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
}

const maxAuthBody = 64 << 10 // 64 KiB

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAuthBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", s.logger)
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if msg := validateSignUp(req); msg != "" {
		writeError(w, http.StatusBadRequest, msg, s.logger)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid password", s.logger)
		return
	}

	user, err := s.users.Create(r.Context(), req.Email, req.Name, hash)
	if err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			writeError(w, http.StatusConflict, "email already registered", s.logger)
			return
		}
		s.logger.Error("sign-up failed", "email", req.Email, "error", err)
		writeError(w, http.StatusInternalServerError, "could not create account", s.logger)
		return
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		s.logger.Error("token issue failed", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not create account", s.logger)
		return
	}

	writeSuccess(w, http.StatusCreated, authResponse{
		Token: token,
		User:  userView{ID: user.ID, Email: user.Email, Name: user.Name},
	}, "Account created", s.logger)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAuthBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", s.logger)
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required", s.logger)
		return
	}

	// Wrong email and wrong password are indistinguishable on purpose.
	user, err := s.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid credentials", s.logger)
			return
		}
		s.logger.Error("sign-in lookup failed", "email", req.Email, "error", err)
		writeError(w, http.StatusInternalServerError, "could not sign in", s.logger)
		return
	}

	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		if errors.Is(err, auth.ErrWrongPassword) {
			writeError(w, http.StatusUnauthorized, "invalid credentials", s.logger)
			return
		}
		s.logger.Error("password check failed", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not sign in", s.logger)
		return
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		s.logger.Error("token issue failed", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not sign in", s.logger)
		return
	}

	writeSuccess(w, http.StatusOK, authResponse{
		Token: token,
		User:  userView{ID: user.ID, Email: user.Email, Name: user.Name},
	}, "Signed in", s.logger)
}

func validateSignUp(req signUpRequest) string {
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return "a valid email is required"
	}
	if req.Name == "" {
		return "name is required"
	}
	if len(req.Password) < 8 {
		return "password must be at least 8 characters"
	}
	if len(req.Password) > 72 {
		return "password must be at most 72 characters"
	}
	return ""
}
