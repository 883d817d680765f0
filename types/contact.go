package types

import "time"

// AdminContact is a support message sent to the administrators by someone
// who may not have an account.
type AdminContact struct {
	ID         int       `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	Email      string    `json:"email" db:"email"`
	Subject    string    `json:"subject" db:"subject"`
	Message    string    `json:"message" db:"message"`
	EmailSent  bool      `json:"email_sent" db:"email_sent"`
	EmailError string    `json:"email_error,omitempty" db:"email_error"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
