package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	netmail "net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/classroll/apiserver/config"
	"github.com/emersion/go-message/mail"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// Message is a rendered email.
type Message struct {
	From    netmail.Address
	To      []netmail.Address
	Subject string
	Text    string
	HTML    string
}

// Transport delivers rendered messages.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// NewTransport builds the transport selected by cfg. Without SMTP or
// SendGrid settings it falls back to logging.
func NewTransport(cfg config.EmailConfig, log *zap.Logger) Transport {
	switch strings.ToLower(cfg.Transport) {
	case "smtp":
		if strings.TrimSpace(cfg.SMTPHost) != "" {
			return SMTPTransport{
				host:     cfg.SMTPHost,
				port:     cfg.SMTPPort,
				username: cfg.SMTPUser,
				password: cfg.SMTPPassword,
			}
		}
		log.Warn("smtp transport selected without SMTP_HOST, logging emails instead")
	case "sendgrid":
		if strings.TrimSpace(cfg.SendgridAPIKey) != "" {
			return NewSendgridTransport(cfg.SendgridAPIKey)
		}
		log.Warn("sendgrid transport selected without SENDGRID_API_KEY, logging emails instead")
	}
	return LogTransport{log: log}
}

// LogTransport logs messages instead of sending them and always succeeds.
type LogTransport struct {
	log *zap.Logger
}

func NewLogTransport(log *zap.Logger) LogTransport {
	return LogTransport{log: log}
}

func (t LogTransport) Send(_ context.Context, msg Message) error {
	to := make([]string, len(msg.To))
	for i, addr := range msg.To {
		to[i] = addr.Address
	}
	t.log.Info("email not sent, no transport configured",
		zap.Strings("to", to),
		zap.String("subject", msg.Subject),
		zap.Int("text_bytes", len(msg.Text)),
	)
	return nil
}

const (
	smtpDialTimeout    = 10 * time.Second
	smtpSessionTimeout = time.Minute
)

// SMTPTransport sends multipart/alternative messages over SMTP.
type SMTPTransport struct {
	host     string
	port     int
	username string
	password string
}

func (t SMTPTransport) Send(ctx context.Context, msg Message) error {
	body, err := composeMIME(msg, time.Now())
	if err != nil {
		return err
	}
	if err := t.send(ctx, msg, body); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// send runs one SMTP session. Cancelling ctx expires the connection
// deadline, which unblocks any pending read or write.
func (t SMTPTransport) send(ctx context.Context, msg Message, body []byte) error {
	addr := net.JoinHostPort(t.host, strconv.Itoa(t.port))
	dialer := net.Dialer{Timeout: smtpDialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(smtpSessionTimeout)); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	c, err := smtp.NewClient(conn, t.host)
	if err != nil {
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: t.host}); err != nil {
			return err
		}
	}
	if t.username != "" {
		if ok, _ := c.Extension("AUTH"); !ok {
			return errors.New("smtp: server doesn't support AUTH")
		}
		if err := c.Auth(smtp.PlainAuth("", t.username, t.password, t.host)); err != nil {
			return err
		}
	}

	if err := c.Mail(msg.From.Address); err != nil {
		return err
	}
	for _, addr := range msg.To {
		if err := c.Rcpt(addr.Address); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// composeMIME renders msg as a multipart/alternative message with a text
// and an html part.
func composeMIME(msg Message, date time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(date)
	h.SetSubject(msg.Subject)
	h.SetAddressList("From", []*mail.Address{&msg.From})
	to := make([]*mail.Address, len(msg.To))
	for i := range msg.To {
		to[i] = &msg.To[i]
	}
	h.SetAddressList("To", to)
	if err := h.GenerateMessageID(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w, err := mail.CreateInlineWriter(&buf, h)
	if err != nil {
		return nil, err
	}
	parts := []struct {
		contentType string
		body        string
	}{
		{"text/plain", msg.Text},
		{"text/html", msg.HTML},
	}
	for _, part := range parts {
		var ph mail.InlineHeader
		ph.SetContentType(part.contentType, map[string]string{"charset": "utf-8"})
		pw, err := w.CreatePart(ph)
		if err != nil {
			return nil, err
		}
		if _, err := pw.Write([]byte(part.body)); err != nil {
			return nil, err
		}
		if err := pw.Close(); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SendgridTransport sends through the SendGrid v3 API.
type SendgridTransport struct {
	client *sendgrid.Client
}

func NewSendgridTransport(apiKey string) SendgridTransport {
	return SendgridTransport{client: sendgrid.NewSendClient(apiKey)}
}

func (t SendgridTransport) Send(ctx context.Context, msg Message) error {
	res, err := t.client.SendWithContext(ctx, sendgridMessage(msg))
	if err != nil {
		return err
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid: status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

func sendgridMessage(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	for _, to := range msg.To {
		p.AddTos(sgmail.NewEmail(to.Name, to.Address))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(sgmail.NewEmail(msg.From.Name, msg.From.Address))
	m.AddPersonalizations(p)
	m.AddContent(
		sgmail.NewContent("text/plain", msg.Text),
		sgmail.NewContent("text/html", msg.HTML),
	)
	return m
}
