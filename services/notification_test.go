package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"expense-tracker/ledger"
	"expense-tracker/models"
	"expense-tracker/store/memory"

	"github.com/google/uuid"
)

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	fail map[string]bool
}

func (m *fakeMailer) Send(_ context.Context, toEmail, _, subject, htmlBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail[toEmail] {
		return errors.New("mailbox unavailable")
	}
	m.sent = append(m.sent, sentMail{to: toEmail, subject: subject, body: htmlBody})
	return nil
}

type fakePusher struct {
	tokens []string
	data   []map[string]string
}

func (p *fakePusher) Push(_ context.Context, token, _, _ string, data map[string]string) error {
	p.tokens = append(p.tokens, token)
	p.data = append(p.data, data)
	return nil
}

func TestNotifyInvited(t *testing.T) {
	ctx := context.Background()
	st := memory.New(nil)

	bob := models.Account{Email: "bob@example.com", PasswordHash: "x"}
	if err := st.InsertAccount(ctx, &bob); err != nil {
		t.Fatal(err)
	}
	st.InsertProfile(ctx, &models.Profile{ID: bob.ID, Username: "bob", FCMToken: "device-bob"})

	mailer := &fakeMailer{fail: map[string]bool{"broken@example.com": true}}
	pusher := &fakePusher{}
	ns := NewNotificationService(st, mailer, pusher, NotificationOptions{AppName: "Ledger", AppURL: "https://app.example.com"})

	gid := uuid.New()
	ns.NotifyInvited(ctx, ledger.Invited{
		GroupID:     gid,
		GroupName:   "Flat <3>",
		InviterName: "Alice",
		Emails:      []string{"broken@example.com", "bob@example.com", "carol@example.com"},
	})

	if len(mailer.sent) != 2 {
		t.Fatalf("sent %d emails, want 2 (one recipient fails)", len(mailer.sent))
	}
	first := mailer.sent[0]
	if first.to != "bob@example.com" || !strings.Contains(first.subject, "Alice invited you") {
		t.Errorf("first email = %+v", first)
	}
	if !strings.Contains(first.body, "Flat &lt;3&gt;") {
		t.Error("group name not escaped in email body")
	}
	if !strings.Contains(first.body, "https://app.example.com") {
		t.Error("join link missing")
	}

	if len(pusher.tokens) != 1 || pusher.tokens[0] != "device-bob" {
		t.Fatalf("pushed to %v, want only bob's device", pusher.tokens)
	}
	if pusher.data[0]["group_id"] != gid.String() {
		t.Errorf("push data = %v", pusher.data[0])
	}
}

func TestNotifyInvited_ChannelsDisabled(t *testing.T) {
	ns := NewNotificationService(memory.New(nil), nil, nil, NotificationOptions{})
	// Must not panic with both channels off.
	ns.NotifyInvited(context.Background(), ledger.Invited{GroupName: "G", Emails: []string{"x@example.com"}})

	if m := NewSendGridMailer("", "from@example.com", "App"); m != nil {
		t.Error("mailer built without an API key")
	}
	if p, err := NewFCMPusher(context.Background(), ""); p != nil || err != nil {
		t.Errorf("NewFCMPusher(\"\") = %v, %v", p, err)
	}
}
