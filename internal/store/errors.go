package store

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write violates a unique constraint.
	ErrConflict = errors.New("already exists")

	// ErrLimitReached is returned when a capped insert would exceed its cap.
	ErrLimitReached = errors.New("limit reached")

	// ErrInvalidReference is returned when a write points at a missing row.
	ErrInvalidReference = errors.New("referenced record does not exist")

	// ErrStillReferenced is returned when a delete is blocked by rows that
	// still point at the record.
	ErrStillReferenced = errors.New("record is still referenced")

	// ErrInvalidValue is returned when postgres rejects a value's format,
	// typically a malformed filter.
	ErrInvalidValue = errors.New("invalid value")
)

// PostgreSQL error codes the store translates.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgInvalidText         = "22P02"
	pgInvalidDatetime     = "22007"
	pgDatetimeOverflow    = "22008"
)

// translate maps driver errors onto the store sentinels. Errors it does not
// recognise are returned unchanged.
func translate(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch string(pqErr.Code) {
	case pgUniqueViolation:
		return ErrConflict
	case pgForeignKeyViolation:
		return ErrInvalidReference
	case pgCheckViolation, pgInvalidText, pgInvalidDatetime, pgDatetimeOverflow:
		return ErrInvalidValue
	default:
		return err
	}
}

// translateDelete is translate for DELETE statements, where a foreign key
// violation means another row still references the target.
func translateDelete(err error) error {
	err = translate(err)
	if errors.Is(err, ErrInvalidReference) {
		return ErrStillReferenced
	}
	return err
}
