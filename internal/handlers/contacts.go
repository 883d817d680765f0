package handlers

import (
	"net/http"

	"github.com/classroll/apiserver/internal/auth"
	"github.com/classroll/apiserver/internal/services"
	"github.com/classroll/apiserver/types"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ContactHandler provides the contact form and its administration.
type ContactHandler struct {
	contacts *services.ContactService
	log      *zap.Logger
}

func NewContactHandler(contacts *services.ContactService, log *zap.Logger) *ContactHandler {
	return &ContactHandler{contacts: contacts, log: log}
}

type ContactRequest struct {
	Name    string `json:"name" validate:"required,notblank,max=128"`
	Email   string `json:"email" validate:"required,email,max=254"`
	Subject string `json:"subject" validate:"max=200"`
	Message string `json:"message" validate:"required,notblank,max=5000"`
}

// AdminContactRouter registers the administrator's contact routes. The
// caller authenticates requests.
func AdminContactRouter(r chi.Router, h *ContactHandler, guard Guard) {
	r.With(guard(auth.ResourceAdminContacts, auth.ActionRead)).Get("/", h.List)
	r.With(guard(auth.ResourceAdminContacts, auth.ActionWrite)).Delete("/{contactID}", h.Delete)
}

// Submit stores a message for the administrators. No authentication is
// required.
func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req ContactRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	contact, err := h.contacts.Submit(r.Context(), types.AdminContact{
		Name:    req.Name,
		Email:   req.Email,
		Subject: req.Subject,
		Message: req.Message,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, contact)
}

func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.contacts.List(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, contacts)
}

func (h *ContactHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIntParam(r, "contactID")
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	if err := h.contacts.Delete(r.Context(), id); err != nil {
		writeError(w, h.log, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
