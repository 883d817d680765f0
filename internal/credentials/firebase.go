package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/auth/hash"
	"github.com/classroll/apiserver/config"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

// FirebaseDirectory stores accounts in Firebase Authentication.
type FirebaseDirectory struct {
	client *auth.Client
}

// NewFirebaseDirectory constructs a Firebase Authentication client from config.
func NewFirebaseDirectory(ctx context.Context, cfg config.CredentialsConfig) (*FirebaseDirectory, error) {
	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	var fbConfig *firebase.Config
	if strings.TrimSpace(cfg.ProjectID) != "" {
		fbConfig = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(ctx, fbConfig, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase auth: %w", err)
	}
	return &FirebaseDirectory{client: client}, nil
}

// CreateAccount imports the account with its bcrypt hash so the plaintext
// password never leaves the server.
func (d *FirebaseDirectory) CreateAccount(ctx context.Context, email, passwordHash string) (string, error) {
	existing, err := d.client.GetUserByEmail(ctx, email)
	if err == nil {
		return existing.UID, ErrAccountExists
	}
	if !auth.IsUserNotFound(err) {
		return "", err
	}

	uid := uuid.NewString()
	user := (&auth.UserToImport{}).
		UID(uid).
		Email(email).
		PasswordHash([]byte(passwordHash))

	result, err := d.client.ImportUsers(ctx, []*auth.UserToImport{user}, auth.WithHash(hash.Bcrypt{}))
	if err != nil {
		return "", err
	}
	if result.FailureCount > 0 {
		reason := "import failed"
		if len(result.Errors) > 0 {
			reason = result.Errors[0].Reason
		}
		if strings.Contains(strings.ToLower(reason), "exist") {
			return "", ErrAccountExists
		}
		return "", errors.New(reason)
	}
	return uid, nil
}

func (d *FirebaseDirectory) DeleteAccount(ctx context.Context, email string) error {
	existing, err := d.client.GetUserByEmail(ctx, email)
	if err != nil {
		if auth.IsUserNotFound(err) {
			return ErrAccountNotFound
		}
		return err
	}
	if err := d.client.DeleteUser(ctx, existing.UID); err != nil {
		if auth.IsUserNotFound(err) {
			return ErrAccountNotFound
		}
		return err
	}
	return nil
}
