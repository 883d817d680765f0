package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/classroll/apiserver/types"
)

// ContactRepository handles persistence for admin contact messages.
type ContactRepository struct {
	db *sql.DB
}

func NewContactRepository(db *sql.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

func (r *ContactRepository) Create(ctx context.Context, contact types.AdminContact) (types.AdminContact, error) {
	const query = `
		INSERT INTO admin_contacts (name, email, subject, message)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		contact.Name,
		contact.Email,
		contact.Subject,
		contact.Message,
	).Scan(&contact.ID, &contact.CreatedAt); err != nil {
		return types.AdminContact{}, translate(err)
	}
	return contact, nil
}

// UpdateDelivery records the outcome of forwarding a contact by email.
func (r *ContactRepository) UpdateDelivery(ctx context.Context, id int, sent bool, deliveryErr string) error {
	result, err := r.db.ExecContext(
		ctx,
		`UPDATE admin_contacts SET email_sent = $1, email_error = $2 WHERE id = $3`,
		sent,
		deliveryErr,
		id,
	)
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

const contactColumns = `id, name, email, subject, message, email_sent, email_error, created_at`

func scanContact(row rowScanner) (types.AdminContact, error) {
	var c types.AdminContact
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Email,
		&c.Subject,
		&c.Message,
		&c.EmailSent,
		&c.EmailError,
		&c.CreatedAt,
	)
	return c, err
}

func (r *ContactRepository) Get(ctx context.Context, id int) (types.AdminContact, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+contactColumns+` FROM admin_contacts WHERE id = $1`, id)
	contact, err := scanContact(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.AdminContact{}, ErrNotFound
		}
		return types.AdminContact{}, err
	}
	return contact, nil
}

func (r *ContactRepository) List(ctx context.Context) ([]types.AdminContact, error) {
	const query = `SELECT ` + contactColumns + `
		FROM admin_contacts
		ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := make([]types.AdminContact, 0)
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return contacts, nil
}

func (r *ContactRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM admin_contacts WHERE id = $1`, id)
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
