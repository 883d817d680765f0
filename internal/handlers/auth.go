package handlers

import (
	"net/http"
	"time"

	"github.com/classroll/apiserver/internal/services"
	"github.com/classroll/apiserver/types"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AuthHandler provides login, signup and session endpoints.
type AuthHandler struct {
	users        *services.UserService
	tokens       *services.TokenService
	cookieSecure bool
	log          *zap.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(users *services.UserService, tokens *services.TokenService, cookieSecure bool, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		users:        users,
		tokens:       tokens,
		cookieSecure: cookieSecure,
		log:          log,
	}
}

// AuthRouter registers auth routes on the given router. limit throttles
// the unauthenticated endpoints.
func AuthRouter(r chi.Router, h *AuthHandler, authenticate, limit func(http.Handler) http.Handler) {
	r.With(limit).Post("/login", h.Login)
	r.With(limit).Post("/signup", h.Signup)
	r.Post("/logout", h.Logout)
	r.With(authenticate).Get("/me", h.Me)
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type SignupRequest struct {
	Email        string `json:"email" validate:"required,email,max=254"`
	Password     string `json:"password" validate:"required,min=8,max=72"`
	Name         string `json:"name" validate:"required,notblank,max=128"`
	SystemAccess string `json:"system_access" validate:"omitempty,oneof=both evaluation grading"`
}

type AuthResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      types.User `json:"user"`
}

type SignupResponse struct {
	Message string     `json:"message"`
	User    types.User `json:"user"`
}

// Login verifies credentials, returns a session token and sets it as a
// cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	token, expiresAt, err := h.tokens.IssueSession(user)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, AuthResponse{Token: token, ExpiresAt: expiresAt, User: user})
}

// Signup records a registration request for administrator approval.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	user, err := h.users.Signup(r.Context(), services.SignupInput{
		Email:        req.Email,
		Password:     req.Password,
		Name:         req.Name,
		SystemAccess: req.SystemAccess,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, SignupResponse{
		Message: "signup received, an administrator will review your request",
		User:    user,
	})
}

// Logout clears the session cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, MessageResponse{Message: "logged out"})
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	user, err := h.users.Get(r.Context(), p.UserID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
