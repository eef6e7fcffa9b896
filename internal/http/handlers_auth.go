package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"smartfinance/internal/auth"
	"smartfinance/internal/core"
	"smartfinance/internal/storage"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

type authResponse struct {
	Token string    `json:"token"`
	User  core.User `json:"user"`
}

const minPasswordLen = 8

func validateRegistration(req registerRequest) map[string]string {
	fields := map[string]string{}
	if strings.TrimSpace(req.Username) == "" {
		fields["username"] = "is required"
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		fields["email"] = "is required"
	} else if !strings.Contains(email, "@") {
		fields["email"] = "must be a valid email address"
	}
	if len(req.Password) < minPasswordLen {
		fields["password"] = "must be at least 8 characters"
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if fields := validateRegistration(req); fields != nil {
		respondValidationError(w, fields)
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		slog.ErrorContext(r.Context(), "Hash password failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to register user")
		return
	}

	user, err := s.store.CreateUser(r.Context(),
		strings.TrimSpace(req.Username), strings.TrimSpace(req.Email), passwordHash)
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			respondError(w, http.StatusConflict, "username or email already taken")
			return
		}
		slog.ErrorContext(r.Context(), "Create user failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to register user")
		return
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Generate token failed", "error", err, "user_id", user.ID)
		respondError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	respondJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	// Accept identifier, username, or email as the login field.
	identifier := strings.TrimSpace(req.Identifier)
	if identifier == "" {
		identifier = strings.TrimSpace(req.Username)
	}
	if identifier == "" {
		identifier = strings.TrimSpace(req.Email)
	}

	fields := map[string]string{}
	if identifier == "" {
		fields["identifier"] = "is required"
	}
	if req.Password == "" {
		fields["password"] = "is required"
	}
	if len(fields) > 0 {
		respondValidationError(w, fields)
		return
	}

	user, err := s.store.GetUserByLogin(r.Context(), identifier)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		slog.ErrorContext(r.Context(), "Fetch user failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to log in")
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Generate token failed", "error", err, "user_id", user.ID)
		respondError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	respondJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := userFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authorization required")
		return
	}
	respondJSON(w, http.StatusOK, user)
}
