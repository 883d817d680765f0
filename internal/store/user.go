package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/classroll/apiserver/types"
)

const userColumns = `
	id, email, name, role, password_hash, status, access_type, trial_days,
	system_access, expires_at, is_disabled, requested_at, approved_at, approved_by,
	rejected_at, rejected_by, rejection_reason, disabled_at, enabled_at,
	credential_uid, credential_error, email_sent, email_sent_at, email_error,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (types.User, error) {
	var user types.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Role,
		&user.PasswordHash,
		&user.Status,
		&user.AccessType,
		&user.TrialDays,
		&user.SystemAccess,
		&user.ExpiresAt,
		&user.IsDisabled,
		&user.RequestedAt,
		&user.ApprovedAt,
		&user.ApprovedBy,
		&user.RejectedAt,
		&user.RejectedBy,
		&user.RejectionReason,
		&user.DisabledAt,
		&user.EnabledAt,
		&user.CredentialUID,
		&user.CredentialError,
		&user.EmailSent,
		&user.EmailSentAt,
		&user.EmailError,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

// GetByEmail looks a user up case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

// List returns users ordered by request time, newest first. An empty status
// lists every user.
func (r *UserRepository) List(ctx context.Context, status types.UserStatus, offset, limit int) ([]types.User, int, error) {
	var total int
	if err := r.db.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM users WHERE ($1 = '' OR status = $1)`,
		string(status),
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + userColumns + `
		FROM users
		WHERE ($1 = '' OR status = $1)
		ORDER BY requested_at DESC, id DESC
		OFFSET $2 LIMIT $3`
	rows, err := r.db.QueryContext(ctx, query, string(status), offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := make([]types.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.RequestedAt.IsZero() {
		user.RequestedAt = now
	}

	const query = `
		INSERT INTO users (
			email, name, role, password_hash, status, access_type, trial_days,
			system_access, expires_at, is_disabled, requested_at, approved_at, approved_by,
			credential_uid, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		user.Email,
		user.Name,
		user.Role,
		user.PasswordHash,
		user.Status,
		user.AccessType,
		user.TrialDays,
		user.SystemAccess,
		user.ExpiresAt,
		user.IsDisabled,
		user.RequestedAt,
		user.ApprovedAt,
		user.ApprovedBy,
		user.CredentialUID,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID); err != nil {
		return types.User{}, translate(err)
	}
	return user, nil
}

// Update writes every mutable column of user.
func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	user.UpdatedAt = time.Now().UTC()

	const query = `
		UPDATE users
		SET email = $1,
			name = $2,
			role = $3,
			password_hash = $4,
			status = $5,
			access_type = $6,
			trial_days = $7,
			system_access = $8,
			expires_at = $9,
			is_disabled = $10,
			approved_at = $11,
			approved_by = $12,
			rejected_at = $13,
			rejected_by = $14,
			rejection_reason = $15,
			disabled_at = $16,
			enabled_at = $17,
			credential_uid = $18,
			credential_error = $19,
			email_sent = $20,
			email_sent_at = $21,
			email_error = $22,
			updated_at = $23
		WHERE id = $24`
	result, err := r.db.ExecContext(
		ctx,
		query,
		user.Email,
		user.Name,
		user.Role,
		user.PasswordHash,
		user.Status,
		user.AccessType,
		user.TrialDays,
		user.SystemAccess,
		user.ExpiresAt,
		user.IsDisabled,
		user.ApprovedAt,
		user.ApprovedBy,
		user.RejectedAt,
		user.RejectedBy,
		user.RejectionReason,
		user.DisabledAt,
		user.EnabledAt,
		user.CredentialUID,
		user.CredentialError,
		user.EmailSent,
		user.EmailSentAt,
		user.EmailError,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return types.User{}, translate(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.User{}, err
	}
	if affected == 0 {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

// UpdateEmailDelivery records the outcome of the approval email without
// touching any other column.
func (r *UserRepository) UpdateEmailDelivery(ctx context.Context, id int, sent bool, sentAt *time.Time, emailErr string) error {
	const query = `
		UPDATE users SET
			email_sent = $1,
			email_sent_at = $2,
			email_error = $3,
			updated_at = NOW()
		WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, sent, sentAt, emailErr, id)
	if err != nil {
		return translate(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM users WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// EnsureAdmin creates an approved admin account for email, or promotes and
// re-keys the existing account with that email.
func (r *UserRepository) EnsureAdmin(ctx context.Context, email, name, passwordHash string) (types.User, error) {
	const query = `
		INSERT INTO users (
			email, name, role, password_hash, status, access_type, system_access,
			approved_at, approved_by
		)
		VALUES ($1, $2, 'admin', $3, 'approved', 'unlimited', 'both', NOW(), 'bootstrap')
		ON CONFLICT ((LOWER(email))) DO UPDATE
		SET role = 'admin',
			status = 'approved',
			password_hash = EXCLUDED.password_hash,
			is_disabled = FALSE,
			updated_at = NOW()
		RETURNING ` + userColumns
	user, err := scanUser(r.db.QueryRowContext(ctx, query, email, name, passwordHash))
	if err != nil {
		return types.User{}, translate(err)
	}
	return user, nil
}
