package handlers

import (
	"net/http"

	"github.com/classroll/apiserver/internal/auth"
	"github.com/classroll/apiserver/internal/services"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// TokenHandler provides API token endpoints.
type TokenHandler struct {
	tokens *services.TokenService
	log    *zap.Logger
}

func NewTokenHandler(tokens *services.TokenService, log *zap.Logger) *TokenHandler {
	return &TokenHandler{tokens: tokens, log: log}
}

// TokenRouter registers token routes. The caller authenticates requests.
func TokenRouter(r chi.Router, h *TokenHandler, guard Guard) {
	r.With(guard(auth.ResourceTokens, auth.ActionWrite)).Post("/generate", h.Generate)
	r.With(guard(auth.ResourceTokens, auth.ActionRead)).Get("/", h.List)
	r.With(guard(auth.ResourceTokenAdmin, auth.ActionRead)).Get("/all", h.ListAll)
	r.Route("/{tokenID}", func(r chi.Router) {
		r.With(guard(auth.ResourceTokens, auth.ActionWrite)).Delete("/", h.Delete)
		r.With(guard(auth.ResourceTokenAdmin, auth.ActionRead)).Get("/full", h.GetFull)
		r.With(guard(auth.ResourceTokenAdmin, auth.ActionWrite)).Patch("/system", h.UpdateSystem)
	})
}

type GenerateTokenRequest struct {
	Description string `json:"description" validate:"required,notblank,max=256"`
	Expiration  string `json:"expiration" validate:"max=32"`
	System      string `json:"system" validate:"required"`
}

type UpdateSystemRequest struct {
	System string `json:"system" validate:"required"`
}

func (h *TokenHandler) Generate(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	var req GenerateTokenRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	token, err := h.tokens.Generate(r.Context(), p, services.GenerateInput{
		Description: req.Description,
		Expiration:  req.Expiration,
		System:      req.System,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, token)
}

func (h *TokenHandler) List(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	tokens, err := h.tokens.List(r.Context(), p)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

func (h *TokenHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.tokens.ListAll(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

func (h *TokenHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	id, err := pathParam(r, "tokenID")
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	if err := h.tokens.Delete(r.Context(), p, id); err != nil {
		writeError(w, h.log, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *TokenHandler) GetFull(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "tokenID")
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	token, err := h.tokens.GetFull(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, token)
}

func (h *TokenHandler) UpdateSystem(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "tokenID")
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	var req UpdateSystemRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	token, err := h.tokens.UpdateSystem(r.Context(), id, req.System)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, token)
}
