package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"expense-tracker/ledger"
	"expense-tracker/store"
)

// sendTimeout bounds the delivery of one invitation.
const sendTimeout = 30 * time.Second

// Recipients looks up who an invitation email belongs to.
type Recipients interface {
	store.AccountStore
	store.ProfileStore
}

type NotificationOptions struct {
	AppName string
	AppURL  string
	Logger  *slog.Logger
}

// NotificationService delivers invitation emails, and pushes to invitees
// who already have an account with a registered device. A nil mailer or
// pusher disables that channel.
type NotificationService struct {
	recipients Recipients
	mailer     Mailer
	pusher     Pusher
	appName    string
	appURL     string
	logger     *slog.Logger
}

var _ ledger.InviteNotifier = (*NotificationService)(nil)

func NewNotificationService(recipients Recipients, mailer Mailer, pusher Pusher, opts NotificationOptions) *NotificationService {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.AppName == "" {
		opts.AppName = "Expense Tracker"
	}
	return &NotificationService{
		recipients: recipients,
		mailer:     mailer,
		pusher:     pusher,
		appName:    opts.AppName,
		appURL:     opts.AppURL,
		logger:     opts.Logger,
	}
}

// ============================================================
// NOTIFICATION EVENTS
// ============================================================

// NotifyInvited sends push + email to every invited address. Failures are
// logged per recipient and never stop the others.
func (ns *NotificationService) NotifyInvited(ctx context.Context, inv ledger.Invited) {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	subject := fmt.Sprintf("%s invited you to join \"%s\" on %s", inv.InviterName, inv.GroupName, ns.appName)
	htmlBody, err := ns.invitationHTML(inv)
	if err != nil {
		ns.logger.Error("❌ Invitation template failed", "group_id", inv.GroupID, "error", err)
		return
	}

	for _, email := range inv.Emails {
		ns.push(ctx, email, inv)
		ns.sendEmail(ctx, email, subject, htmlBody)
	}
}

func (ns *NotificationService) push(ctx context.Context, email string, inv ledger.Invited) {
	if ns.pusher == nil {
		return
	}
	account, err := ns.recipients.GetAccountByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			ns.logger.Error("❌ Invitee lookup failed", "email", email, "error", err)
		}
		return
	}
	profile, err := ns.recipients.GetProfile(ctx, account.ID)
	if err != nil || profile.FCMToken == "" {
		return
	}

	title := fmt.Sprintf("Invitation to \"%s\"", inv.GroupName)
	body := fmt.Sprintf("%s invited you to join the group \"%s\"", inv.InviterName, inv.GroupName)
	err = ns.pusher.Push(ctx, profile.FCMToken, title, body, map[string]string{
		"type":     "group_invitation",
		"group_id": inv.GroupID.String(),
	})
	if err != nil {
		ns.logger.Error("❌ Push notification failed", "user_id", account.ID, "error", err)
		return
	}
	ns.logger.Info("✅ Push notification sent", "user_id", account.ID)
}

func (ns *NotificationService) sendEmail(ctx context.Context, email, subject, htmlBody string) {
	if ns.mailer == nil {
		ns.logger.Warn("⚠️  SendGrid API key not set, skipping email", "email", email)
		return
	}
	if err := ns.mailer.Send(ctx, email, "", subject, htmlBody); err != nil {
		ns.logger.Error("❌ Email send failed", "email", email, "error", err)
		return
	}
	ns.logger.Info("✅ Email sent", "email", email)
}

// ============================================================
// EMAIL TEMPLATES
// ============================================================

var invitationTemplate = template.Must(template.New("invitation").Parse(`
<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f5f5f5;">
	<div style="background: white; border-radius: 12px; padding: 32px; box-shadow: 0 2px 8px rgba(0,0,0,0.1);">
		<h2 style="color: #1DB954; margin-top: 0;">🎉 You're invited!</h2>
		<p><strong>{{.InviterName}}</strong> invited you to join <strong>"{{.GroupName}}"</strong> on {{.AppName}}.</p>
		<p>Track shared expenses and budgets together with your group.</p>
		{{if .AppURL}}<div style="margin: 24px 0;">
			<a href="{{.AppURL}}" style="background: #1DB954; color: white; padding: 12px 32px; border-radius: 8px; text-decoration: none; font-weight: bold;">Join Now</a>
		</div>{{end}}
		<p style="color: #999; font-size: 12px; margin-top: 24px;">{{.AppName}}</p>
	</div>
</body>
</html>`))

func (ns *NotificationService) invitationHTML(inv ledger.Invited) (string, error) {
	var buf bytes.Buffer
	err := invitationTemplate.Execute(&buf, map[string]interface{}{
		"InviterName": inv.InviterName,
		"GroupName":   inv.GroupName,
		"AppName":     ns.appName,
		"AppURL":      ns.appURL,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
