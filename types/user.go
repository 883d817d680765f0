package types

import (
	"strings"
	"time"
)

// Roles recognised by the authorization policy.
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleUser    = "user"
)

// UserStatus is the registration state of an account.
type UserStatus string

const (
	// StatusPending marks a signup awaiting an administrator decision.
	StatusPending UserStatus = "pending"

	// StatusApproved marks an account that may sign in.
	StatusApproved UserStatus = "approved"

	// StatusRejected marks a signup an administrator turned down.
	StatusRejected UserStatus = "rejected"
)

// Access types.
const (
	AccessUnlimited = "unlimited"
	AccessTrial     = "trial"
)

// System identifies one of the two downstream systems a user or token may
// address.
type System string

const (
	SystemEvaluation System = "evaluation"
	SystemGrading    System = "grading"

	// SystemBoth is only valid as a user's system access, never on a token.
	SystemBoth System = "both"
)

// ParseTokenSystem accepts the systems a token can be scoped to.
func ParseTokenSystem(raw string) (System, bool) {
	switch s := System(strings.ToLower(strings.TrimSpace(raw))); s {
	case SystemEvaluation, SystemGrading:
		return s, true
	default:
		return "", false
	}
}

// ParseSystemAccess accepts the values a user's system access can take.
// An empty value means both systems.
func ParseSystemAccess(raw string) (System, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return SystemBoth, true
	}
	switch s := System(raw); s {
	case SystemEvaluation, SystemGrading, SystemBoth:
		return s, true
	default:
		return "", false
	}
}

// Includes reports whether an access grant covers the given system.
func (s System) Includes(other System) bool {
	return s == SystemBoth || s == other
}

// User represents an account in the system, from signup request through
// approval. A single record holds the registration and the approved account.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Email is the unique, case-insensitive login name.
	Email string `json:"email" db:"email"`

	// Name is the user's display or full name.
	Name string `json:"name" db:"name"`

	// Role indicates the user's authorization level ("admin", "teacher", "user").
	Role string `json:"role" db:"role"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// Status is the registration state.
	Status UserStatus `json:"status" db:"status"`

	// AccessType is "unlimited" or "trial".
	AccessType string `json:"access_type" db:"access_type"`

	// TrialDays is the length of the trial window granted at approval.
	// Zero for unlimited accounts.
	TrialDays int `json:"trial_days" db:"trial_days"`

	// SystemAccess lists which downstream systems the user may address.
	SystemAccess System `json:"system_access" db:"system_access"`

	// ExpiresAt is the end of the trial window, if any.
	ExpiresAt *time.Time `json:"expires_at,omitempty" db:"expires_at"`

	// IsDisabled blocks authentication for non-admin accounts.
	IsDisabled bool `json:"is_disabled" db:"is_disabled"`

	// RequestedAt is when the signup was submitted.
	RequestedAt time.Time `json:"requested_at" db:"requested_at"`

	ApprovedAt      *time.Time `json:"approved_at,omitempty" db:"approved_at"`
	ApprovedBy      string     `json:"approved_by,omitempty" db:"approved_by"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty" db:"rejected_at"`
	RejectedBy      string     `json:"rejected_by,omitempty" db:"rejected_by"`
	RejectionReason string     `json:"rejection_reason,omitempty" db:"rejection_reason"`
	DisabledAt      *time.Time `json:"disabled_at,omitempty" db:"disabled_at"`
	EnabledAt       *time.Time `json:"enabled_at,omitempty" db:"enabled_at"`

	// CredentialUID is the account id in the credential directory, once
	// provisioned.
	CredentialUID string `json:"credential_uid,omitempty" db:"credential_uid"`

	// CredentialError records the last failed directory provisioning attempt.
	CredentialError string `json:"credential_error,omitempty" db:"credential_error"`

	// EmailSent reports whether the approval notice was delivered.
	EmailSent   bool       `json:"email_sent" db:"email_sent"`
	EmailSentAt *time.Time `json:"email_sent_at,omitempty" db:"email_sent_at"`
	EmailError  string     `json:"email_error,omitempty" db:"email_error"`

	// CreatedAt is the timestamp when the user record was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user record.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return strings.EqualFold(u.Role, RoleAdmin)
}

// IsTrial reports whether the account is time boxed.
func (u User) IsTrial() bool {
	return u.AccessType == AccessTrial
}

// TrialExpired reports whether a trial account is past its window at now.
func (u User) TrialExpired(now time.Time) bool {
	return u.IsTrial() && u.ExpiresAt != nil && !now.Before(*u.ExpiresAt)
}
