package notify

import (
	"context"
	netmail "net/mail"
	"strings"
	"testing"
	"time"

	"github.com/classroll/apiserver/config"
	"github.com/classroll/apiserver/internal/mq"
	"github.com/classroll/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type recordingTransport struct {
	sent []Message
	err  error
}

func (t *recordingTransport) Send(_ context.Context, msg Message) error {
	t.sent = append(t.sent, msg)
	return t.err
}

var emailConfig = config.EmailConfig{
	From:             "no-reply@classroll.test",
	AdminNotifyEmail: "admins@classroll.test",
	AppURL:           "https://classroll.test/",
}

func TestSendApprovalTrial(t *testing.T) {
	transport := &recordingTransport{}
	n := NewNotifier(transport, emailConfig)

	expires := time.Date(2026, 4, 4, 12, 0, 0, 0, time.UTC)
	err := n.SendApproval(context.Background(), types.User{
		Name:         "Ana",
		Email:        "ana@school.test",
		AccessType:   types.AccessTrial,
		TrialDays:    3,
		ExpiresAt:    &expires,
		SystemAccess: types.SystemGrading,
	})
	require.NoError(t, err)
	require.Len(t, transport.sent, 1)

	msg := transport.sent[0]
	assert.Equal(t, "ana@school.test", msg.To[0].Address)
	assert.Equal(t, "no-reply@classroll.test", msg.From.Address)
	assert.Contains(t, msg.Text, "trial, 3 days (until April 4, 2026 12:00 UTC)")
	assert.Contains(t, msg.Text, "Systems: Grading")
	assert.Contains(t, msg.Text, "Sign in at https://classroll.test")
	assert.Contains(t, msg.HTML, `<a href="https://classroll.test">`)
}

func TestSendApprovalUnlimited(t *testing.T) {
	transport := &recordingTransport{}
	n := NewNotifier(transport, emailConfig)

	require.NoError(t, n.SendApproval(context.Background(), types.User{
		Email:        "ben@school.test",
		AccessType:   types.AccessUnlimited,
		SystemAccess: types.SystemBoth,
	}))
	msg := transport.sent[0]
	assert.Contains(t, msg.Text, "Hello ben@school.test")
	assert.Contains(t, msg.Text, "Access: unlimited")
	assert.Contains(t, msg.Text, "Evaluation and Grading")
}

func TestSendApprovalEscapesHTML(t *testing.T) {
	transport := &recordingTransport{}
	n := NewNotifier(transport, emailConfig)

	require.NoError(t, n.SendApproval(context.Background(), types.User{
		Name:  "<script>x</script>",
		Email: "eve@school.test",
	}))
	assert.NotContains(t, transport.sent[0].HTML, "<script>")
}

func TestSendContact(t *testing.T) {
	transport := &recordingTransport{}
	n := NewNotifier(transport, emailConfig)

	require.NoError(t, n.SendContact(context.Background(), types.AdminContact{
		Name:    "Parent",
		Email:   "parent@home.test",
		Message: "Please call me back.",
	}))
	msg := transport.sent[0]
	assert.Equal(t, "admins@classroll.test", msg.To[0].Address)
	assert.Equal(t, "[classroll contact] (no subject)", msg.Subject)
	assert.Contains(t, msg.Text, "Please call me back.")

	noAdmin := NewNotifier(transport, config.EmailConfig{From: "x@y.test"})
	assert.ErrorIs(t, noAdmin.SendContact(context.Background(), types.AdminContact{}), errNoAdminAddress)
}

func TestComposeMIME(t *testing.T) {
	body, err := composeMIME(Message{
		From:    netmail.Address{Name: "classroll", Address: "no-reply@classroll.test"},
		To:      []netmail.Address{{Address: "ana@school.test"}},
		Subject: "Approved",
		Text:    "plain body",
		HTML:    "<p>html body</p>",
	}, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	require.NoError(t, err)

	raw := string(body)
	assert.Contains(t, raw, "Subject: Approved")
	assert.Contains(t, raw, "multipart/alternative")
	assert.Contains(t, raw, "text/plain")
	assert.Contains(t, raw, "text/html")
	assert.Contains(t, raw, "plain body")
	assert.True(t, strings.Contains(raw, "Message-Id:") || strings.Contains(raw, "Message-ID:"))
}

func TestNewTransportFallsBackToLog(t *testing.T) {
	log := zaptest.NewLogger(t)

	assert.IsType(t, LogTransport{}, NewTransport(config.EmailConfig{Transport: "log"}, log))
	assert.IsType(t, LogTransport{}, NewTransport(config.EmailConfig{Transport: "smtp"}, log))
	assert.IsType(t, LogTransport{}, NewTransport(config.EmailConfig{Transport: "sendgrid"}, log))
	assert.IsType(t, SMTPTransport{}, NewTransport(config.EmailConfig{Transport: "smtp", SMTPHost: "mail.test", SMTPPort: 25}, log))
	assert.IsType(t, SendgridTransport{}, NewTransport(config.EmailConfig{Transport: "sendgrid", SendgridAPIKey: "SG.key"}, log))
}

func TestLogTransportSucceeds(t *testing.T) {
	err := NewLogTransport(zap.NewNop()).Send(context.Background(), Message{
		To:      []netmail.Address{{Address: "a@b.test"}},
		Subject: "hi",
	})
	assert.NoError(t, err)
}

func TestQueueRoundTrip(t *testing.T) {
	m := mq.New(mq.NewMemoryBackend())
	q := NewQueue(m, "notifications")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, q.Publish(ctx, Job{Type: JobApproval, UserID: 7}))

	got := make(chan Job, 1)
	go func() {
		_ = q.Consume(ctx, func(_ context.Context, job Job) error {
			got <- job
			return nil
		})
	}()

	select {
	case job := <-got:
		assert.Equal(t, Job{Type: JobApproval, UserID: 7}, job)
	case <-ctx.Done():
		t.Fatal("job not consumed")
	}
}
