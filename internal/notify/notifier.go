package notify

import (
	"context"
	"errors"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/classroll/apiserver/config"
	"github.com/classroll/apiserver/types"
)

const expiryLayout = "January 2, 2006 15:04 MST"

var errNoAdminAddress = errors.New("ADMIN_NOTIFY_EMAIL is not configured")

// Notifier renders and sends the emails the API produces.
type Notifier struct {
	transport  Transport
	from       netmail.Address
	adminEmail string
	appURL     string
}

func NewNotifier(transport Transport, cfg config.EmailConfig) *Notifier {
	return &Notifier{
		transport:  transport,
		from:       netmail.Address{Name: "classroll", Address: cfg.From},
		adminEmail: strings.TrimSpace(cfg.AdminNotifyEmail),
		appURL:     strings.TrimRight(cfg.AppURL, "/"),
	}
}

type approvalData struct {
	Name      string
	Email     string
	Trial     bool
	TrialDays int
	ExpiresAt string
	Systems   string
}

func systemsLabel(s types.System) string {
	switch s {
	case types.SystemEvaluation:
		return "Evaluation"
	case types.SystemGrading:
		return "Grading"
	default:
		return "Evaluation and Grading"
	}
}

// SendApproval tells user their account was approved.
func (n *Notifier) SendApproval(ctx context.Context, user types.User) error {
	data := approvalData{
		Name:      user.Name,
		Email:     user.Email,
		Trial:     user.IsTrial(),
		TrialDays: user.TrialDays,
		Systems:   systemsLabel(user.SystemAccess),
	}
	if data.Name == "" {
		data.Name = user.Email
	}
	if user.ExpiresAt != nil {
		data.ExpiresAt = user.ExpiresAt.UTC().Format(expiryLayout)
	}

	text, html, err := render("approval", n.appURL, data)
	if err != nil {
		return err
	}
	return n.transport.Send(ctx, Message{
		From:    n.from,
		To:      []netmail.Address{{Name: user.Name, Address: user.Email}},
		Subject: "Your classroll account has been approved",
		Text:    text,
		HTML:    html,
	})
}

type contactData struct {
	Name       string
	Email      string
	Subject    string
	Message    string
	ReceivedAt string
}

// SendContact forwards a contact form message to the administrators.
func (n *Notifier) SendContact(ctx context.Context, contact types.AdminContact) error {
	if n.adminEmail == "" {
		return errNoAdminAddress
	}

	subject := contact.Subject
	if subject == "" {
		subject = "(no subject)"
	}
	received := contact.CreatedAt
	if received.IsZero() {
		received = time.Now()
	}

	text, html, err := render("contact", n.appURL, contactData{
		Name:       contact.Name,
		Email:      contact.Email,
		Subject:    subject,
		Message:    contact.Message,
		ReceivedAt: received.UTC().Format(expiryLayout),
	})
	if err != nil {
		return err
	}
	return n.transport.Send(ctx, Message{
		From:    n.from,
		To:      []netmail.Address{{Address: n.adminEmail}},
		Subject: "[classroll contact] " + subject,
		Text:    text,
		HTML:    html,
	})
}
