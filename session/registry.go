package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"expense-tracker/auth"
	"expense-tracker/authstate"
	"expense-tracker/ledger"

	"golang.org/x/sync/singleflight"
)

type Options struct {
	// IdleTimeout evicts clients without requests for this long. The token
	// stays valid; the next request restores the client. Zero disables it.
	IdleTimeout time.Duration
	Logger      *slog.Logger
}

// Registry maps access tokens to clients.
type Registry struct {
	auth   authstate.Authenticator
	deps   ledger.Deps
	idle   time.Duration
	logger *slog.Logger
	now    func() time.Time

	restores singleflight.Group

	mu      sync.Mutex
	clients map[string]*Client
}

func NewRegistry(a authstate.Authenticator, deps ledger.Deps, opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Registry{
		auth:    a,
		deps:    deps,
		idle:    opts.IdleTimeout,
		logger:  opts.Logger,
		now:     time.Now,
		clients: make(map[string]*Client),
	}
}

func (r *Registry) add(token string, c *Client) {
	c.touch(r.now())
	r.mu.Lock()
	old := r.clients[token]
	r.clients[token] = c
	r.mu.Unlock()
	if old != nil && old != c {
		old.close()
	}
}

func (r *Registry) drop(token string) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.clients[token]
	delete(r.clients, token)
	return c
}

// SignUp registers an account. It does not sign in.
func (r *Registry) SignUp(ctx context.Context, p auth.SignUpParams) error {
	c := newClient(r.auth, r.deps, r.logger)
	defer c.close()
	return c.Auth.SignUp(ctx, p)
}

// SignIn signs in and returns the new client along with its session.
func (r *Registry) SignIn(ctx context.Context, email, password string) (*Client, *auth.Session, error) {
	c := newClient(r.auth, r.deps, r.logger)
	if err := c.Auth.SignIn(ctx, email, password); err != nil {
		c.close()
		return nil, nil, err
	}
	s := c.Auth.Session()
	r.add(s.AccessToken, c)
	r.logger.Info("✅ User signed in", "user_id", s.UserID)
	return c, s, nil
}

// Resolve returns the client for token, restoring it when this replica has
// not seen the token yet. Every call re-verifies the token so revocations
// made elsewhere take effect.
func (r *Registry) Resolve(ctx context.Context, token string) (*Client, error) {
	if _, err := r.auth.Verify(ctx, token); err != nil {
		if c := r.drop(token); c != nil {
			c.close()
		}
		return nil, err
	}

	r.mu.Lock()
	c, ok := r.clients[token]
	r.mu.Unlock()
	if ok {
		c.touch(r.now())
		return c, nil
	}

	v, err, _ := r.restores.Do(token, func() (interface{}, error) {
		r.mu.Lock()
		existing, ok := r.clients[token]
		r.mu.Unlock()
		if ok {
			return existing, nil
		}

		c := newClient(r.auth, r.deps, r.logger)
		if err := c.Auth.Restore(context.WithoutCancel(ctx), token); err != nil {
			c.close()
			return nil, err
		}
		r.add(token, c)
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Client), nil
}

// SignOut revokes token and releases its client.
func (r *Registry) SignOut(ctx context.Context, token string) error {
	c := r.drop(token)
	if c == nil {
		return r.auth.SignOut(ctx, token)
	}
	defer c.close()
	return c.Auth.SignOut(ctx)
}

// Sweep releases clients whose session has expired or that have been idle
// longer than the idle timeout. It returns how many were released.
func (r *Registry) Sweep() int {
	now := r.now()

	r.mu.Lock()
	var stale []*Client
	for token, c := range r.clients {
		s := c.Auth.Session()
		idle := r.idle > 0 && now.Sub(c.idleSince()) > r.idle
		if s == nil || s.Expired(now) || idle {
			stale = append(stale, c)
			delete(r.clients, token)
		}
	}
	r.mu.Unlock()

	for _, c := range stale {
		c.close()
	}
	if len(stale) > 0 {
		r.logger.Debug("Swept sessions", "count", len(stale))
	}
	return len(stale)
}

// Run sweeps on every tick until ctx is done.
func (r *Registry) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Close releases every client.
func (r *Registry) Close() {
	r.mu.Lock()
	clients := r.clients
	r.clients = make(map[string]*Client)
	r.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}
