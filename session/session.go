// Package session binds an authenticated session to its ledger container and
// keeps one client per access token for the HTTP layer.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"expense-tracker/auth"
	"expense-tracker/authstate"
	"expense-tracker/ledger"
	"expense-tracker/models"
	"expense-tracker/notice"
)

// maxNotices bounds the notices a client holds between two drains.
const maxNotices = 50

// Client is one signed-in browser or device: its auth state, the ledger
// opened for that session and the notices raised on its behalf.
type Client struct {
	Auth *authstate.Container

	deps    ledger.Deps
	logger  *slog.Logger
	notices *notice.Recorder

	mu       sync.Mutex
	ledger   *ledger.Container
	cancels  []func()
	lastSeen time.Time
}

func newClient(a authstate.Authenticator, deps ledger.Deps, logger *slog.Logger) *Client {
	rec := &notice.Recorder{Max: maxNotices}
	deps.Reporter = notice.Tee(deps.Reporter, rec)

	c := &Client{
		deps:    deps,
		logger:  logger,
		notices: rec,
	}
	c.Auth = authstate.New(a, deps.Store, deps.Reporter, logger)
	c.cancels = append(c.cancels,
		c.Auth.OnSessionChange(c.sessionChanged),
		c.Auth.OnProfileChange(c.profileChanged),
	)
	return c
}

// sessionChanged opens a ledger for a new session and closes the old one.
func (c *Client) sessionChanged(s *auth.Session) {
	c.mu.Lock()
	old := c.ledger
	c.ledger = nil
	c.mu.Unlock()

	if old != nil {
		old.Close()
	}
	if s == nil {
		return
	}

	id := ledger.Identity{UserID: s.UserID, Email: s.Email}
	if p := c.Auth.Profile(); p != nil {
		id.Name = p.FullName
		if id.Name == "" {
			id.Name = p.Username
		}
		id.DefaultCurrency = p.DefaultCurrency
	}

	l, err := ledger.Open(context.Background(), c.deps, id)
	if err != nil {
		c.logger.Error("Failed to open ledger", "user_id", s.UserID, "error", err)
		return
	}

	c.mu.Lock()
	c.ledger = l
	c.mu.Unlock()
}

// profileChanged pushes the profile's currency into the open ledger so the
// converted total follows it.
func (c *Client) profileChanged(p models.Profile) {
	l, err := c.Ledger()
	if err != nil || p.DefaultCurrency == "" {
		return
	}
	if err := l.SetDefaultCurrency(p.DefaultCurrency); err != nil {
		c.logger.Warn("Ignoring profile currency", "currency", p.DefaultCurrency, "error", err)
	}
}

// Ledger returns the container of the current session, or
// ledger.ErrAuthRequired when signed out.
func (c *Client) Ledger() (*ledger.Container, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ledger == nil {
		return nil, ledger.ErrAuthRequired
	}
	return c.ledger, nil
}

// Notices drains the notices raised since the last call.
func (c *Client) Notices() []notice.Notice {
	return c.notices.Drain()
}

func (c *Client) touch(now time.Time) {
	c.mu.Lock()
	c.lastSeen = now
	c.mu.Unlock()
}

func (c *Client) idleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}

// close releases the ledger without revoking the token.
func (c *Client) close() {
	c.mu.Lock()
	cancels := c.cancels
	c.cancels = nil
	l := c.ledger
	c.ledger = nil
	c.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	if l != nil {
		l.Close()
	}
}
