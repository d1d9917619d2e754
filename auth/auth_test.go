package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"expense-tracker/currency"
	"expense-tracker/store/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	st := memory.New(nil)
	svc := NewService(st, st, Options{Secret: "test-secret-0123456789", TTL: time.Hour})
	return svc, st
}

func TestSignUp_CreatesProfile(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	account, err := svc.SignUp(ctx, SignUpParams{Email: "  Asha@Example.com ", Password: "secret1", DisplayName: "Asha Rao"})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if account.Email != "asha@example.com" {
		t.Errorf("email = %q, want normalized address", account.Email)
	}

	profile, err := st.GetProfile(ctx, account.ID)
	if err != nil {
		t.Fatalf("profile not created: %v", err)
	}
	if profile.Username != "asha" || profile.FullName != "Asha Rao" || profile.DefaultCurrency != "INR" {
		t.Errorf("unexpected profile %+v", profile)
	}
}

func TestSignUp_Validation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	tests := []struct {
		name   string
		params SignUpParams
		want   error
	}{
		{"bad email", SignUpParams{Email: "nope", Password: "secret1"}, ErrInvalidEmail},
		{"short password", SignUpParams{Email: "a@example.com", Password: "123"}, ErrWeakPassword},
		{"unsupported currency", SignUpParams{Email: "c@example.com", Password: "secret1", Currency: "CHF"}, currency.ErrInvalidCode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.SignUp(ctx, tt.params); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := svc.SignUp(ctx, SignUpParams{Email: "dup@example.com", Password: "secret1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SignUp(ctx, SignUpParams{Email: "DUP@example.com", Password: "secret2"}); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate sign-up err = %v, want ErrEmailTaken", err)
	}
}

func TestSignInVerifySignOut(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	account, _ := svc.SignUp(ctx, SignUpParams{Email: "b@example.com", Password: "hunter22"})

	if _, err := svc.SignIn(ctx, "b@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.SignIn(ctx, "ghost@example.com", "hunter22"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email err = %v, want ErrInvalidCredentials", err)
	}

	session, err := svc.SignIn(ctx, "B@example.com", "hunter22")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if session.UserID != account.ID {
		t.Errorf("session user = %s, want %s", session.UserID, account.ID)
	}

	verified, err := svc.Verify(ctx, session.AccessToken)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if verified.Email != "b@example.com" {
		t.Errorf("verified email = %q", verified.Email)
	}

	email, err := svc.CurrentUserEmail(ctx, session.AccessToken)
	if err != nil || email != "b@example.com" {
		t.Errorf("CurrentUserEmail = %q, %v", email, err)
	}

	if err := svc.SignOut(ctx, session.AccessToken); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if _, err := svc.Verify(ctx, session.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("revoked token err = %v, want ErrInvalidToken", err)
	}
	// Signing out twice is harmless.
	if err := svc.SignOut(ctx, session.AccessToken); err != nil {
		t.Errorf("second SignOut: %v", err)
	}
}

func TestVerify_Expired(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	svc.SignUp(ctx, SignUpParams{Email: "c@example.com", Password: "secret1"})

	session, err := svc.SignIn(ctx, "c@example.com", "secret1")
	if err != nil {
		t.Fatal(err)
	}

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := svc.Verify(ctx, session.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token err = %v, want ErrInvalidToken", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	svc.SignUp(ctx, SignUpParams{Email: "d@example.com", Password: "secret1"})
	session, _ := svc.SignIn(ctx, "d@example.com", "secret1")

	other := NewService(st, st, Options{Secret: "another-secret-987654"})
	if _, err := other.Verify(ctx, session.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("foreign token err = %v, want ErrInvalidToken", err)
	}
}

func TestMemoryRevoker_Expires(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRevoker()
	now := time.Now()
	r.now = func() time.Time { return now }

	r.Revoke(ctx, "t1", now.Add(time.Minute))
	if ok, _ := r.Revoked(ctx, "t1"); !ok {
		t.Fatal("t1 should be revoked")
	}

	now = now.Add(2 * time.Minute)
	if ok, _ := r.Revoked(ctx, "t1"); ok {
		t.Error("revocation outlived the token")
	}
}
