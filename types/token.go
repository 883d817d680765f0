package types

import "time"

// NeverExpires is the expiration spec for tokens without an expiry.
const NeverExpires = "never_expires"

// Token statuses.
const (
	TokenActive  = "active"
	TokenRevoked = "revoked"
)

// APIToken is a signed bearer credential issued to a user for one system.
type APIToken struct {
	// ID is the unique identifier of the token record. It is also embedded
	// in the signed token as its jti claim.
	ID string `json:"id" db:"id"`

	// UserID identifies the user who created the token.
	UserID int `json:"user_id" db:"user_id"`

	// Token is the signed bearer string. List responses omit it.
	Token string `json:"token,omitempty" db:"token"`

	// TokenPrefix is the first characters of the token signature, for display.
	TokenPrefix string `json:"token_prefix" db:"token_prefix"`

	// Description is the free-form purpose given at creation.
	Description string `json:"description" db:"description"`

	// CreatedBy is the creator's email address.
	CreatedBy string `json:"created_by" db:"created_by"`

	// Expiration is the effective expiration spec ("30d", "12h", "never_expires").
	Expiration string `json:"expiration" db:"expiration"`

	// ExpiresAt is the absolute expiry; nil when the token never expires.
	ExpiresAt *time.Time `json:"expires_at,omitempty" db:"expires_at"`

	// Status is "active" or "revoked".
	Status string `json:"status" db:"status"`

	// System is the downstream system the token is scoped to.
	System System `json:"system" db:"system"`

	// Role is the creator's role at issuance time.
	Role string `json:"role" db:"role"`

	// CreatedAt is the timestamp when the token was issued.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Masked returns a copy safe for list responses.
func (t APIToken) Masked() APIToken {
	t.Token = ""
	return t
}

// Expired reports whether the token is past its absolute expiry.
func (t APIToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}
