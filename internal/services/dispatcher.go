package services

import (
	"context"
	"fmt"
	"time"

	"github.com/classroll/apiserver/internal/notify"
	"github.com/classroll/apiserver/types"
	"go.uber.org/zap"
)

// Mailer sends the emails the API produces.
type Mailer interface {
	SendApproval(ctx context.Context, user types.User) error
	SendContact(ctx context.Context, contact types.AdminContact) error
}

// JobPublisher enqueues notification jobs for the worker.
type JobPublisher interface {
	Publish(ctx context.Context, job notify.Job) error
}

// Dispatcher delivers notifications and records the outcome on the
// notified record. With a queue it publishes a job and leaves delivery to
// the worker; without one it sends inline.
type Dispatcher struct {
	users    UserRepository
	contacts ContactRepository
	mailer   Mailer
	queue    JobPublisher
	log      *zap.Logger
	now      func() time.Time
}

func NewDispatcher(users UserRepository, contacts ContactRepository, mailer Mailer, queue *notify.Queue, log *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		users:    users,
		contacts: contacts,
		mailer:   mailer,
		log:      log,
		now:      time.Now,
	}
	if queue != nil {
		d.queue = queue
	}
	return d
}

// Approval dispatches the approval notice for a user. queued reports
// whether delivery was handed to the worker.
func (d *Dispatcher) Approval(ctx context.Context, userID int) (queued bool, err error) {
	if d.publish(ctx, notify.Job{Type: notify.JobApproval, UserID: userID}) {
		return true, nil
	}
	return false, d.DeliverApproval(ctx, userID)
}

// Contact dispatches an admin contact message.
func (d *Dispatcher) Contact(ctx context.Context, contactID int) (queued bool, err error) {
	if d.publish(ctx, notify.Job{Type: notify.JobContact, ContactID: contactID}) {
		return true, nil
	}
	return false, d.DeliverContact(ctx, contactID)
}

func (d *Dispatcher) publish(ctx context.Context, job notify.Job) bool {
	if d.queue == nil {
		return false
	}
	if err := d.queue.Publish(ctx, job); err != nil {
		d.log.Warn("publish notification job failed, sending inline",
			zap.String("type", job.Type),
			zap.Error(err),
		)
		return false
	}
	return true
}

// DeliverApproval sends the approval notice and records the outcome on the
// user. The send error is returned after it has been recorded.
func (d *Dispatcher) DeliverApproval(ctx context.Context, userID int) error {
	user, err := d.users.GetByID(ctx, userID)
	if err != nil {
		return storeError(err, "notify.approval", "user")
	}

	sendErr := d.mailer.SendApproval(ctx, user)
	var sentAt *time.Time
	emailErr := ""
	if sendErr != nil {
		emailErr = sendErr.Error()
		d.log.Error("approval email failed", zap.Int("user_id", user.ID), zap.Error(sendErr))
	} else {
		now := d.now()
		sentAt = &now
	}

	if err := d.users.UpdateEmailDelivery(ctx, user.ID, sendErr == nil, sentAt, emailErr); err != nil {
		return storeError(err, "notify.approval", "user")
	}
	if sendErr != nil {
		return fmt.Errorf("send approval email: %w", sendErr)
	}
	return nil
}

// DeliverContact forwards a contact message to the administrators and
// records the outcome on the contact.
func (d *Dispatcher) DeliverContact(ctx context.Context, contactID int) error {
	contact, err := d.contacts.Get(ctx, contactID)
	if err != nil {
		return storeError(err, "notify.contact", "contact")
	}

	sendErr := d.mailer.SendContact(ctx, contact)
	deliveryErr := ""
	if sendErr != nil {
		deliveryErr = sendErr.Error()
		d.log.Error("contact email failed", zap.Int("contact_id", contact.ID), zap.Error(sendErr))
	}
	if err := d.contacts.UpdateDelivery(ctx, contact.ID, sendErr == nil, deliveryErr); err != nil {
		return storeError(err, "notify.contact", "contact")
	}
	if sendErr != nil {
		return fmt.Errorf("send contact email: %w", sendErr)
	}
	return nil
}

// Handle processes one job taken off the queue.
func (d *Dispatcher) Handle(ctx context.Context, job notify.Job) error {
	switch job.Type {
	case notify.JobApproval:
		return d.DeliverApproval(ctx, job.UserID)
	case notify.JobContact:
		return d.DeliverContact(ctx, job.ContactID)
	default:
		d.log.Warn("dropping unknown notification job", zap.String("type", job.Type))
		return nil
	}
}
