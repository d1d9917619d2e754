// Package authstate holds the signed-in session, its user and profile, and
// pushes session changes to subscribers.
package authstate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"expense-tracker/auth"
	"expense-tracker/currency"
	"expense-tracker/models"
	"expense-tracker/notice"
	"expense-tracker/store"

	"github.com/google/uuid"
)

var ErrNotSignedIn = errors.New("not signed in")

// Authenticator is the subset of auth.Service the container drives.
type Authenticator interface {
	SignUp(ctx context.Context, p auth.SignUpParams) (*models.Account, error)
	SignIn(ctx context.Context, email, password string) (*auth.Session, error)
	SignOut(ctx context.Context, token string) error
	Verify(ctx context.Context, token string) (*auth.Session, error)
}

type User struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

type Container struct {
	auth     Authenticator
	profiles store.ProfileStore
	reporter notice.Reporter
	logger   *slog.Logger

	mu        sync.Mutex
	session   *auth.Session
	profile   *models.Profile
	loading   bool
	nextID    int
	onSession map[int]func(*auth.Session)
	onProfile map[int]func(models.Profile)
}

func New(a Authenticator, profiles store.ProfileStore, reporter notice.Reporter, logger *slog.Logger) *Container {
	if reporter == nil {
		reporter = notice.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Container{
		auth:      a,
		profiles:  profiles,
		reporter:  reporter,
		logger:    logger,
		onSession: make(map[int]func(*auth.Session)),
		onProfile: make(map[int]func(models.Profile)),
	}
}

// Session returns a copy of the current session, or nil when signed out.
func (c *Container) Session() *auth.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

func (c *Container) User() *User {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	return &User{ID: c.session.UserID, Email: c.session.Email}
}

// Profile returns a copy of the loaded profile, or nil.
func (c *Container) Profile() *models.Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.profile == nil {
		return nil
	}
	p := *c.profile
	return &p
}

func (c *Container) IsLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// OnSessionChange registers fn to receive every new session, or nil on
// sign-out. Listeners run synchronously in registration order. The returned
// func unregisters fn.
func (c *Container) OnSessionChange(fn func(*auth.Session)) (cancel func()) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.onSession[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.onSession, id)
		c.mu.Unlock()
	}
}

// OnProfileChange registers fn to receive the profile after every reload.
func (c *Container) OnProfileChange(fn func(models.Profile)) (cancel func()) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.onProfile[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.onProfile, id)
		c.mu.Unlock()
	}
}

func sortedKeys[T any](m map[int]T) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (c *Container) emitSession(s *auth.Session) {
	c.mu.Lock()
	fns := make([]func(*auth.Session), 0, len(c.onSession))
	for _, id := range sortedKeys(c.onSession) {
		fns = append(fns, c.onSession[id])
	}
	c.mu.Unlock()

	for _, fn := range fns {
		if s == nil {
			fn(nil)
			continue
		}
		cp := *s
		fn(&cp)
	}
}

func (c *Container) emitProfile(p models.Profile) {
	c.mu.Lock()
	fns := make([]func(models.Profile), 0, len(c.onProfile))
	for _, id := range sortedKeys(c.onProfile) {
		fns = append(fns, c.onProfile[id])
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(p)
	}
}

func (c *Container) setLoading(v bool) {
	c.mu.Lock()
	c.loading = v
	c.mu.Unlock()
}

// establish records s, loads its profile and notifies listeners.
func (c *Container) establish(ctx context.Context, s *auth.Session) {
	c.mu.Lock()
	c.session = s
	c.profile = nil
	c.mu.Unlock()

	c.loadProfile(ctx, s.UserID)
	c.emitSession(s)
}

// loadProfile failures are logged only; the session stays valid without one.
func (c *Container) loadProfile(ctx context.Context, userID uuid.UUID) {
	p, err := c.profiles.GetProfile(ctx, userID)
	if err != nil {
		c.logger.Error("Error fetching profile", "user_id", userID, "error", err)
		return
	}

	c.mu.Lock()
	if c.session == nil || c.session.UserID != userID {
		c.mu.Unlock()
		return
	}
	c.profile = p
	c.mu.Unlock()

	c.emitProfile(*p)
}

// Restore re-establishes a session from a previously issued token.
func (c *Container) Restore(ctx context.Context, token string) error {
	c.setLoading(true)
	defer c.setLoading(false)

	s, err := c.auth.Verify(ctx, token)
	if err != nil {
		return err
	}
	c.establish(ctx, s)
	return nil
}

func (c *Container) SignIn(ctx context.Context, email, password string) error {
	c.setLoading(true)
	defer c.setLoading(false)

	s, err := c.auth.SignIn(ctx, email, password)
	if err != nil {
		c.reporter.Report(ctx, notice.Notice{Level: notice.Error, Title: "Error signing in", Description: err.Error()})
		return err
	}
	c.establish(ctx, s)
	return nil
}

// SignUp registers an account. The caller still has to sign in.
func (c *Container) SignUp(ctx context.Context, p auth.SignUpParams) error {
	if _, err := c.auth.SignUp(ctx, p); err != nil {
		c.reporter.Report(ctx, notice.Notice{Level: notice.Error, Title: "Error signing up", Description: err.Error()})
		return err
	}
	c.reporter.Report(ctx, notice.Notice{Level: notice.Info, Title: "Registration successful", Description: "You can now sign in."})
	return nil
}

// SignOut revokes the session. Local state is cleared even when revocation
// fails.
func (c *Container) SignOut(ctx context.Context) error {
	c.mu.Lock()
	s := c.session
	c.session = nil
	c.profile = nil
	c.mu.Unlock()

	if s == nil {
		return nil
	}

	var err error
	if err = c.auth.SignOut(ctx, s.AccessToken); err != nil {
		c.reporter.Report(ctx, notice.Notice{Level: notice.Error, Title: "Error signing out", Description: err.Error()})
	}
	c.emitSession(nil)
	return err
}

// UpdateProfile writes changes and reloads the profile.
func (c *Container) UpdateProfile(ctx context.Context, changes models.ProfileChanges) error {
	s := c.Session()
	if s == nil {
		return ErrNotSignedIn
	}

	if changes.DefaultCurrency != nil {
		code := strings.ToUpper(strings.TrimSpace(*changes.DefaultCurrency))
		if err := currency.ValidatePreferred(code); err != nil {
			return err
		}
		changes.DefaultCurrency = &code
	}

	if err := c.profiles.UpdateProfile(ctx, s.UserID, changes); err != nil {
		c.reporter.Report(ctx, notice.Notice{Level: notice.Error, Title: "Error updating profile", Description: err.Error()})
		return fmt.Errorf("update profile: %w", err)
	}

	c.loadProfile(ctx, s.UserID)
	return nil
}
