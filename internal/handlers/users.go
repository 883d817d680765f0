package handlers

import (
	"net/http"
	"time"

	"github.com/classroll/apiserver/internal/auth"
	"github.com/classroll/apiserver/internal/services"
	"github.com/classroll/apiserver/types"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// UserHandler provides the administrator's user management endpoints.
type UserHandler struct {
	users *services.UserService
	log   *zap.Logger
}

func NewUserHandler(users *services.UserService, log *zap.Logger) *UserHandler {
	return &UserHandler{users: users, log: log}
}

// UserRouter registers user management routes. The caller authenticates
// requests.
func UserRouter(r chi.Router, h *UserHandler, guard Guard) {
	read := guard(auth.ResourceUsers, auth.ActionRead)
	write := guard(auth.ResourceUsers, auth.ActionWrite)

	r.With(read).Get("/", h.List)
	r.Route("/{userID}", func(r chi.Router) {
		r.With(read).Get("/", h.Get)
		r.With(write).Delete("/", h.Delete)
		r.With(write).Post("/approve", h.Approve)
		r.With(write).Post("/reject", h.Reject)
		r.With(write).Post("/edit", h.Edit)
		r.With(write).Post("/disable", h.Disable)
		r.With(write).Post("/enable", h.Enable)
		r.With(write).Post("/resend-email", h.ResendEmail)
	})
}

type ApproveRequest struct {
	AccessType   string `json:"access_type" validate:"max=32"`
	SystemAccess string `json:"system_access" validate:"omitempty,oneof=both evaluation grading"`
}

type RejectRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

type EditUserRequest struct {
	Name         *string    `json:"name" validate:"omitempty,notblank,max=128"`
	Role         *string    `json:"role" validate:"omitempty,oneof=admin teacher user"`
	AccessType   *string    `json:"access_type" validate:"omitempty,max=32"`
	SystemAccess *string    `json:"system_access" validate:"omitempty,oneof=both evaluation grading"`
	ExpiresAt    *time.Time `json:"expires_at"`
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	items, total, err := h.users.List(r.Context(), r.URL.Query().Get("status"), offset, limit)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, ListResponse[types.User]{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIntParam(r, "userID")
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) Approve(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.target(w, r)
	if !ok {
		return
	}

	var req ApproveRequest
	if err := decodeOptional(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	result, err := h.users.Approve(r.Context(), id, services.ApproveInput{
		AccessType:   req.AccessType,
		SystemAccess: req.SystemAccess,
	}, p.Email)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *UserHandler) Reject(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.target(w, r)
	if !ok {
		return
	}

	var req RejectRequest
	if err := decodeOptional(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	user, err := h.users.Reject(r.Context(), id, req.Reason, p.Email)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) Edit(w http.ResponseWriter, r *http.Request) {
	_, id, ok := h.target(w, r)
	if !ok {
		return
	}

	var req EditUserRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	user, err := h.users.Edit(r.Context(), id, services.EditInput{
		Name:         req.Name,
		Role:         req.Role,
		AccessType:   req.AccessType,
		SystemAccess: req.SystemAccess,
		ExpiresAt:    req.ExpiresAt,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) Disable(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.target(w, r)
	if !ok {
		return
	}

	user, err := h.users.Disable(r.Context(), id, p)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) Enable(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.target(w, r)
	if !ok {
		return
	}

	user, err := h.users.Enable(r.Context(), id, p)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) ResendEmail(w http.ResponseWriter, r *http.Request) {
	_, id, ok := h.target(w, r)
	if !ok {
		return
	}

	result, err := h.users.ResendEmail(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.target(w, r)
	if !ok {
		return
	}

	result, err := h.users.Delete(r.Context(), id, p)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// target returns the acting principal and the user id in the path. It
// writes the error response itself when either is missing.
func (h *UserHandler) target(w http.ResponseWriter, r *http.Request) (auth.Principal, int, bool) {
	p, err := principal(r)
	if err != nil {
		writeError(w, h.log, err)
		return auth.Principal{}, 0, false
	}
	id, err := parseIntParam(r, "userID")
	if err != nil {
		writeError(w, h.log, err)
		return auth.Principal{}, 0, false
	}
	return p, id, true
}

// decodeOptional decodes and validates a body that may be omitted.
func decodeOptional(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.ContentLength == 0 {
		return validateStruct(dst)
	}
	return decodeAndValidate(w, r, dst)
}
