package authstate

import (
	"context"
	"errors"
	"testing"
	"time"

	"expense-tracker/auth"
	"expense-tracker/currency"
	"expense-tracker/models"
	"expense-tracker/notice"
	"expense-tracker/store/memory"
)

func newTestContainer(t *testing.T) (*Container, *auth.Service, *notice.Recorder) {
	t.Helper()
	st := memory.New(nil)
	svc := auth.NewService(st, st, auth.Options{Secret: "test-secret-0123456789", TTL: time.Hour})
	rec := &notice.Recorder{}
	return New(svc, st, rec, nil), svc, rec
}

func TestSignInLoadsProfileAndNotifies(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestContainer(t)

	if err := c.SignUp(ctx, auth.SignUpParams{Email: "asha@example.com", Password: "secret1", DisplayName: "Asha"}); err != nil {
		t.Fatal(err)
	}
	if c.Session() != nil {
		t.Fatal("sign-up must not sign in")
	}

	var got []*auth.Session
	cancel := c.OnSessionChange(func(s *auth.Session) { got = append(got, s) })
	defer cancel()

	if err := c.SignIn(ctx, "asha@example.com", "secret1"); err != nil {
		t.Fatal(err)
	}
	if c.IsLoading() {
		t.Error("still loading after sign-in")
	}
	if c.User() == nil || c.User().Email != "asha@example.com" {
		t.Errorf("user = %+v", c.User())
	}
	if p := c.Profile(); p == nil || p.FullName != "Asha" {
		t.Errorf("profile = %+v", p)
	}
	if len(got) != 1 || got[0] == nil {
		t.Fatalf("listener saw %v, want one session", got)
	}

	if err := c.SignOut(ctx); err != nil {
		t.Fatal(err)
	}
	if c.Session() != nil || c.Profile() != nil {
		t.Error("state not cleared after sign-out")
	}
	if len(got) != 2 || got[1] != nil {
		t.Fatalf("listener saw %v, want session then nil", got)
	}
}

func TestSignInFailureReports(t *testing.T) {
	ctx := context.Background()
	c, _, rec := newTestContainer(t)

	err := c.SignIn(ctx, "nobody@example.com", "whatever")
	if !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
	titles := rec.Titles()
	if len(titles) != 1 || titles[0] != "Error signing in" {
		t.Errorf("notices = %v", titles)
	}
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	c, svc, _ := newTestContainer(t)
	svc.SignUp(ctx, auth.SignUpParams{Email: "r@example.com", Password: "secret1"})
	s, _ := svc.SignIn(ctx, "r@example.com", "secret1")

	if err := c.Restore(ctx, s.AccessToken); err != nil {
		t.Fatal(err)
	}
	if c.Session() == nil || c.Session().UserID != s.UserID {
		t.Errorf("restored session = %+v", c.Session())
	}

	fresh, _, _ := newTestContainer(t)
	if err := fresh.Restore(ctx, "garbage"); !errors.Is(err, auth.ErrInvalidToken) {
		t.Errorf("restore garbage err = %v", err)
	}
	if fresh.Session() != nil {
		t.Error("session set from invalid token")
	}
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestContainer(t)

	code := "usd"
	if err := c.UpdateProfile(ctx, models.ProfileChanges{DefaultCurrency: &code}); !errors.Is(err, ErrNotSignedIn) {
		t.Fatalf("signed-out update err = %v", err)
	}

	c.SignUp(ctx, auth.SignUpParams{Email: "p@example.com", Password: "secret1"})
	c.SignIn(ctx, "p@example.com", "secret1")

	var pushed []string
	cancel := c.OnProfileChange(func(p models.Profile) { pushed = append(pushed, p.DefaultCurrency) })
	defer cancel()

	if err := c.UpdateProfile(ctx, models.ProfileChanges{DefaultCurrency: &code}); err != nil {
		t.Fatal(err)
	}
	if got := c.Profile().DefaultCurrency; got != "USD" {
		t.Errorf("default currency = %q, want USD", got)
	}
	if len(pushed) != 1 || pushed[0] != "USD" {
		t.Errorf("profile listener saw %v", pushed)
	}

	bad := "R$"
	if err := c.UpdateProfile(ctx, models.ProfileChanges{DefaultCurrency: &bad}); !errors.Is(err, currency.ErrInvalidCode) {
		t.Errorf("bad currency err = %v", err)
	}
}

func TestCancelStopsListener(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestContainer(t)
	c.SignUp(ctx, auth.SignUpParams{Email: "x@example.com", Password: "secret1"})

	calls := 0
	cancel := c.OnSessionChange(func(*auth.Session) { calls++ })
	cancel()

	c.SignIn(ctx, "x@example.com", "secret1")
	if calls != 0 {
		t.Errorf("cancelled listener called %d times", calls)
	}
}
