package services

import (
	"context"
	"strings"

	"github.com/classroll/apiserver/internal/errs"
	"github.com/classroll/apiserver/types"
	"go.uber.org/zap"
)

// ContactRepository defines persistence operations for admin contacts.
type ContactRepository interface {
	Create(ctx context.Context, contact types.AdminContact) (types.AdminContact, error)
	Get(ctx context.Context, id int) (types.AdminContact, error)
	UpdateDelivery(ctx context.Context, id int, sent bool, deliveryErr string) error
	List(ctx context.Context) ([]types.AdminContact, error)
	Delete(ctx context.Context, id int) error
}

// ContactService stores messages sent to the administrators and forwards
// them by email.
type ContactService struct {
	repo          ContactRepository
	notifications *Dispatcher
	log           *zap.Logger
}

func NewContactService(repo ContactRepository, notifications *Dispatcher, log *zap.Logger) *ContactService {
	return &ContactService{repo: repo, notifications: notifications, log: log}
}

// Submit stores a contact message and forwards it. A failed forward is
// recorded on the message and does not fail the request.
func (s *ContactService) Submit(ctx context.Context, contact types.AdminContact) (types.AdminContact, error) {
	const op = "contacts.submit"

	contact.Name = strings.TrimSpace(contact.Name)
	contact.Email = strings.TrimSpace(contact.Email)
	contact.Subject = strings.TrimSpace(contact.Subject)
	contact.Message = strings.TrimSpace(contact.Message)
	if contact.Name == "" || contact.Email == "" || contact.Message == "" {
		return types.AdminContact{}, errs.Invalid(op, "name, email and message are required")
	}

	created, err := s.repo.Create(ctx, contact)
	if err != nil {
		return types.AdminContact{}, storeError(err, op, "contact")
	}

	if _, err := s.notifications.Contact(ctx, created.ID); err != nil {
		s.log.Warn("contact not forwarded", zap.Int("contact_id", created.ID), zap.Error(err))
	}
	if fresh, err := s.repo.Get(ctx, created.ID); err == nil {
		return fresh, nil
	}
	return created, nil
}

func (s *ContactService) List(ctx context.Context) ([]types.AdminContact, error) {
	contacts, err := s.repo.List(ctx)
	if err != nil {
		return nil, storeError(err, "contacts.list", "contacts")
	}
	return contacts, nil
}

func (s *ContactService) Delete(ctx context.Context, id int) error {
	return storeError(s.repo.Delete(ctx, id), "contacts.delete", "contact")
}
