package services

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Mailer sends one HTML email.
type Mailer interface {
	Send(ctx context.Context, toEmail, toName, subject, htmlBody string) error
}

// ============================================================
// EMAIL via SendGrid
// ============================================================

type SendGridMailer struct {
	client *sendgrid.Client
	from   *mail.Email
}

// NewSendGridMailer returns nil when apiKey is empty; the notification
// service then skips email.
func NewSendGridMailer(apiKey, fromEmail, fromName string) *SendGridMailer {
	if apiKey == "" {
		return nil
	}
	return &SendGridMailer{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(fromName, fromEmail),
	}
}

func (m *SendGridMailer) Send(ctx context.Context, toEmail, toName, subject, htmlBody string) error {
	msg := mail.NewSingleEmail(m.from, subject, mail.NewEmail(toName, toEmail), "", htmlBody)
	resp, err := m.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned status %d", resp.StatusCode)
	}
	return nil
}
