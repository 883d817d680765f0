package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/classroll/apiserver/types"
)

const tokenColumns = `
	id, user_id, token, token_prefix, description, created_by, expiration,
	expires_at, status, system, role, created_at`

func scanToken(row rowScanner) (types.APIToken, error) {
	var token types.APIToken
	err := row.Scan(
		&token.ID,
		&token.UserID,
		&token.Token,
		&token.TokenPrefix,
		&token.Description,
		&token.CreatedBy,
		&token.Expiration,
		&token.ExpiresAt,
		&token.Status,
		&token.System,
		&token.Role,
		&token.CreatedAt,
	)
	return token, err
}

// TokenRepository handles persistence for issued API tokens.
type TokenRepository struct {
	db *sql.DB
}

func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// CreateWithDailyCap inserts token unless its creator already has limit or
// more tokens created at or after since. The count and the insert run in
// one transaction holding a per-creator advisory lock. A limit of zero or
// less disables the cap.
func (r *TokenRepository) CreateWithDailyCap(ctx context.Context, token types.APIToken, since time.Time, limit int) (types.APIToken, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.APIToken{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if limit > 0 {
		if _, err := tx.ExecContext(
			ctx,
			`SELECT pg_advisory_xact_lock(hashtext(LOWER($1)))`,
			token.CreatedBy,
		); err != nil {
			return types.APIToken{}, err
		}

		var count int
		if err := tx.QueryRowContext(
			ctx,
			`SELECT COUNT(*) FROM api_tokens WHERE LOWER(created_by) = LOWER($1) AND created_at >= $2`,
			token.CreatedBy,
			since,
		).Scan(&count); err != nil {
			return types.APIToken{}, err
		}
		if count >= limit {
			return types.APIToken{}, ErrLimitReached
		}
	}

	const query = `
		INSERT INTO api_tokens (
			id, user_id, token, token_prefix, description, created_by, expiration,
			expires_at, status, system, role, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	if _, err := tx.ExecContext(
		ctx,
		query,
		token.ID,
		token.UserID,
		token.Token,
		token.TokenPrefix,
		token.Description,
		token.CreatedBy,
		token.Expiration,
		token.ExpiresAt,
		token.Status,
		token.System,
		token.Role,
		token.CreatedAt,
	); err != nil {
		return types.APIToken{}, translate(err)
	}

	if err := tx.Commit(); err != nil {
		return types.APIToken{}, err
	}
	return token, nil
}

func (r *TokenRepository) Get(ctx context.Context, id string) (types.APIToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM api_tokens WHERE id = $1`
	token, err := scanToken(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.APIToken{}, ErrNotFound
		}
		return types.APIToken{}, translate(err)
	}
	return token, nil
}

// ListByCreator returns the tokens created by email, newest first.
func (r *TokenRepository) ListByCreator(ctx context.Context, email string) ([]types.APIToken, error) {
	query := `SELECT ` + tokenColumns + `
		FROM api_tokens
		WHERE LOWER(created_by) = LOWER($1)
		ORDER BY created_at DESC`
	return r.list(ctx, query, email)
}

// ListAll returns every token, newest first.
func (r *TokenRepository) ListAll(ctx context.Context) ([]types.APIToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM api_tokens ORDER BY created_at DESC`
	return r.list(ctx, query)
}

func (r *TokenRepository) list(ctx context.Context, query string, args ...any) ([]types.APIToken, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tokens := make([]types.APIToken, 0)
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tokens, nil
}

func (r *TokenRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM api_tokens WHERE id = $1`, id)
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

// DeleteByCreator removes every token created by email and reports how many
// were removed.
func (r *TokenRepository) DeleteByCreator(ctx context.Context, email string) (int64, error) {
	result, err := r.db.ExecContext(
		ctx,
		`DELETE FROM api_tokens WHERE LOWER(created_by) = LOWER($1)`,
		email,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// UpdateSystem reassigns the system a token is scoped to.
func (r *TokenRepository) UpdateSystem(ctx context.Context, id string, system types.System) (types.APIToken, error) {
	query := `UPDATE api_tokens SET system = $1 WHERE id = $2 RETURNING ` + tokenColumns
	token, err := scanToken(r.db.QueryRowContext(ctx, query, system, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.APIToken{}, ErrNotFound
		}
		return types.APIToken{}, translate(err)
	}
	return token, nil
}
