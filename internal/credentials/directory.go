package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/classroll/apiserver/config"
)

var (
	// ErrAccountExists is returned by CreateAccount when the email already
	// has an account. The returned uid identifies that account.
	ErrAccountExists = errors.New("account already exists")

	// ErrAccountNotFound is returned by DeleteAccount when no account has
	// the email.
	ErrAccountNotFound = errors.New("account not found")
)

// Directory is the external system of record for login credentials.
type Directory interface {
	// CreateAccount provisions an account for email using an existing
	// bcrypt password hash and returns its uid.
	CreateAccount(ctx context.Context, email, passwordHash string) (string, error)

	// DeleteAccount removes the account for email.
	DeleteAccount(ctx context.Context, email string) error
}

// New builds the directory backend selected by cfg.
func New(ctx context.Context, cfg config.CredentialsConfig) (Directory, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "memory":
		return NewMemoryDirectory(), nil
	case "firebase":
		return NewFirebaseDirectory(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown credentials backend %q", cfg.Backend)
	}
}
