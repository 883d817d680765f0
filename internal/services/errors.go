package services

import (
	"errors"

	"github.com/classroll/apiserver/internal/errs"
	"github.com/classroll/apiserver/internal/store"
)

// storeError turns a store sentinel into a coded error. what names the
// entity for not-found messages.
func storeError(err error, op, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return errs.NotFound(op, "%s not found", what)
	case errors.Is(err, store.ErrConflict):
		return errs.Conflict(op, "%s already exists", what)
	case errors.Is(err, store.ErrStillReferenced):
		return errs.Conflict(op, "%s is still referenced by other records", what)
	case errors.Is(err, store.ErrInvalidReference):
		return errs.Invalid(op, "referenced record does not exist")
	case errors.Is(err, store.ErrInvalidValue):
		return errs.Invalid(op, "invalid value")
	default:
		return errs.Internal(err, op, "failed to access "+what)
	}
}

// pageLimit bounds a requested page size.
func pageLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 500 {
		return 500
	}
	return limit
}
