package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"expense-tracker/auth"
	"expense-tracker/ledger"
	"expense-tracker/models"
	"expense-tracker/notice"
	"expense-tracker/store/memory"

	"github.com/shopspring/decimal"
)

const testSecret = "test-secret-0123456789"

func newTestRegistry(t *testing.T) (*Registry, *auth.Service, *memory.Store) {
	t.Helper()
	st := memory.New(nil)
	svc := auth.NewService(st, st, auth.Options{Secret: testSecret, TTL: time.Hour})
	r := NewRegistry(svc, ledger.Deps{Store: st}, Options{})
	t.Cleanup(r.Close)

	if err := r.SignUp(context.Background(), auth.SignUpParams{
		Email:       "alice@example.com",
		Password:    "hunter22",
		DisplayName: "Alice Smith",
		Currency:    "USD",
	}); err != nil {
		t.Fatal(err)
	}
	return r, svc, st
}

func readyLedger(t *testing.T, c *Client) *ledger.Container {
	t.Helper()
	l, err := c.Ledger()
	if err != nil {
		t.Fatalf("Ledger(): %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := l.WaitReady(ctx); err != nil {
		t.Fatalf("WaitReady: %v", err)
	}
	return l
}

func TestSignIn_OpensLedger(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	c, s, err := r.SignIn(context.Background(), "Alice@Example.com", "hunter22")
	if err != nil {
		t.Fatal(err)
	}
	l := readyLedger(t, c)

	id := l.Identity()
	if id.UserID != s.UserID || id.Email != "alice@example.com" {
		t.Errorf("identity = %+v, want session user", id)
	}
	if id.Name != "Alice Smith" || id.DefaultCurrency != "USD" {
		t.Errorf("identity not taken from profile: %+v", id)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestSignIn_WrongPassword(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	if _, _, err := r.SignIn(context.Background(), "alice@example.com", "nope"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
	if r.Len() != 0 {
		t.Errorf("failed sign-in left %d clients", r.Len())
	}
}

func TestProfileCurrencyReachesLedger(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRegistry(t)
	c, _, _ := r.SignIn(ctx, "alice@example.com", "hunter22")
	l := readyLedger(t, c)

	l.AddExpense(ctx, ledger.NewExpense{Title: "Book", Amount: decimalFrom(t, "2"), Currency: "USD"})

	code := "inr"
	if err := c.Auth.UpdateProfile(ctx, models.ProfileChanges{DefaultCurrency: &code}); err != nil {
		t.Fatal(err)
	}
	if got := l.Identity().DefaultCurrency; got != "INR" {
		t.Fatalf("ledger currency = %q, want INR", got)
	}
	if got := l.TotalExpenseAmount(); !got.Equal(decimalFrom(t, "167.02")) {
		t.Errorf("total = %s, want 167.02", got)
	}
}

func TestSignOut_ClosesLedger(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRegistry(t)
	c, s, _ := r.SignIn(ctx, "alice@example.com", "hunter22")
	l := readyLedger(t, c)

	if err := r.SignOut(ctx, s.AccessToken); err != nil {
		t.Fatal(err)
	}
	if l.State() != ledger.Unauthenticated {
		t.Errorf("ledger state = %s after sign-out", l.State())
	}
	if _, err := c.Ledger(); !errors.Is(err, ledger.ErrAuthRequired) {
		t.Errorf("Ledger() err = %v, want ErrAuthRequired", err)
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
	if _, err := r.Resolve(ctx, s.AccessToken); !errors.Is(err, auth.ErrInvalidToken) {
		t.Errorf("Resolve after sign-out err = %v, want ErrInvalidToken", err)
	}
}

func TestResolve_RestoresOnOtherRegistry(t *testing.T) {
	ctx := context.Background()
	r, svc, st := newTestRegistry(t)
	_, s, _ := r.SignIn(ctx, "alice@example.com", "hunter22")

	other := NewRegistry(svc, ledger.Deps{Store: st}, Options{})
	defer other.Close()

	c, err := other.Resolve(ctx, s.AccessToken)
	if err != nil {
		t.Fatal(err)
	}
	l := readyLedger(t, c)
	if l.Identity().UserID != s.UserID {
		t.Errorf("restored identity = %+v", l.Identity())
	}

	again, err := other.Resolve(ctx, s.AccessToken)
	if err != nil || again != c {
		t.Errorf("second Resolve returned a different client (err %v)", err)
	}

	// Revoking through the first registry is seen by the second.
	if err := r.SignOut(ctx, s.AccessToken); err != nil {
		t.Fatal(err)
	}
	if _, err := other.Resolve(ctx, s.AccessToken); !errors.Is(err, auth.ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
	if other.Len() != 0 {
		t.Errorf("revoked client still registered")
	}
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRegistry(t)
	_, _, err := r.SignIn(ctx, "alice@example.com", "hunter22")
	if err != nil {
		t.Fatal(err)
	}

	if n := r.Sweep(); n != 0 {
		t.Fatalf("Sweep() = %d on a live session", n)
	}

	r.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if n := r.Sweep(); n != 1 {
		t.Fatalf("Sweep() = %d, want 1 expired session", n)
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d after sweep", r.Len())
	}
}

func TestSweep_Idle(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRegistry(t)
	r.idle = time.Minute
	c, _, _ := r.SignIn(ctx, "alice@example.com", "hunter22")
	l := readyLedger(t, c)

	r.now = func() time.Time { return time.Now().Add(5 * time.Minute) }
	if n := r.Sweep(); n != 1 {
		t.Fatalf("Sweep() = %d, want 1 idle client", n)
	}
	if l.State() != ledger.Unauthenticated {
		t.Errorf("idle client's ledger still open")
	}
}

func TestClientNotices(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRegistry(t)
	c, _, _ := r.SignIn(ctx, "alice@example.com", "hunter22")
	l := readyLedger(t, c)

	l.AddCategory(ctx, "  ")
	got := c.Notices()
	if len(got) != 1 || got[0].Level != notice.Error || got[0].Title != "Error adding category" {
		t.Fatalf("Notices() = %+v", got)
	}
	if len(c.Notices()) != 0 {
		t.Error("notices not drained")
	}
}

func decimalFrom(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}
