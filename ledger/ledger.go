// Package ledger is the per-session state container for expenses, groups,
// categories and invitations.
//
// A Container caches what its user may see, applies writes through the
// backend, and keeps derived views (group totals, monthly trend, category
// breakdown, converted total) consistent with the cached expense list. Change
// notifications from the backend trigger a refetch of the affected
// collection; remote state always replaces local state.
//
// A Container is bound to one identity for its whole life. Signing out closes
// it; a new sign-in opens a new one.
package ledger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"expense-tracker/currency"
	"expense-tracker/models"
	"expense-tracker/notice"
	"expense-tracker/realtime"
	"expense-tracker/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// refreshTimeout bounds a notification-driven refetch.
const refreshTimeout = 15 * time.Second

type State int

const (
	Unauthenticated State = iota
	Loading
	Ready
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	default:
		return "unauthenticated"
	}
}

// Backend is the part of the store a container talks to.
type Backend interface {
	store.ExpenseStore
	store.GroupStore
	store.ProfileStore
	store.CategoryStore
	store.InvitationStore
}

type Subscriber interface {
	Subscribe(fn func(table string), filters ...realtime.Filter) *realtime.Subscription
}

// Invited describes invitations that were just created.
type Invited struct {
	GroupID     uuid.UUID
	GroupName   string
	InviterName string
	Emails      []string
}

// InviteNotifier delivers out-of-band invitation messages (email, push).
type InviteNotifier interface {
	NotifyInvited(ctx context.Context, inv Invited)
}

type Deps struct {
	Store    Backend
	Hub      Subscriber     // optional
	Invites  InviteNotifier // optional
	Reporter notice.Reporter
	Logger   *slog.Logger
	Now      func() time.Time
}

type Identity struct {
	UserID          uuid.UUID
	Email           string
	Name            string
	DefaultCurrency string
}

type Member struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Initials string    `json:"initials"`
}

// Group is a group as its members see it. TotalExpenses is a raw sum of the
// group's expense amounts; when MixedCurrency is set it adds different
// currencies and is only fit for display.
type Group struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	Budget        decimal.Decimal `json:"budget"`
	CreatedAt     time.Time       `json:"created_at"`
	CreatedBy     uuid.UUID       `json:"created_by"`
	Members       []Member        `json:"members"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	Currencies    []string        `json:"currencies"`
	MixedCurrency bool            `json:"mixed_currency"`
}

func (g Group) HasMember(userID uuid.UUID) bool {
	for _, m := range g.Members {
		if m.ID == userID {
			return true
		}
	}
	return false
}

func (g Group) clone() Group {
	g.Members = append([]Member(nil), g.Members...)
	g.Currencies = append([]string(nil), g.Currencies...)
	return g
}

type Invitation struct {
	ID          uuid.UUID `json:"id"`
	GroupID     uuid.UUID `json:"group_id"`
	GroupName   string    `json:"group_name"`
	Email       string    `json:"email"`
	Status      string    `json:"status"`
	InvitedBy   uuid.UUID `json:"invited_by"`
	InviterName string    `json:"inviter_name"`
	CreatedAt   time.Time `json:"created_at"`
}

var defaultCategories = []string{"Food", "Rent", "Travel", "Shopping", "Other"}

// DefaultCategories is the seed shown when the user has no categories yet.
func DefaultCategories() []string {
	return append([]string(nil), defaultCategories...)
}

type Container struct {
	store    Backend
	invites  InviteNotifier
	reporter notice.Reporter
	logger   *slog.Logger
	now      func() time.Time

	bg     context.Context
	cancel context.CancelFunc
	ready  chan struct{}
	once   sync.Once

	// groupIDs mirrors the cached group ids for the notification filter,
	// which must not take mu.
	groupIDs atomic.Pointer[map[string]bool]

	mu          sync.Mutex
	id          Identity
	state       State
	closed      bool
	sub         *realtime.Subscription
	expenses    []models.Expense
	groups      []Group
	categories  []string
	seeded      bool // categories holds the default seed, not remote rows
	invitations []Invitation
	current     *Group
	trend       []TrendPoint
	breakdown   []CategoryShare
	total       decimal.Decimal
}

// Open starts a container for id and begins loading in the background. The
// container is Loading until expenses and groups have been fetched; use
// WaitReady to block until then.
func Open(ctx context.Context, deps Deps, id Identity) (*Container, error) {
	if id.UserID == uuid.Nil {
		return nil, ErrAuthRequired
	}
	if deps.Reporter == nil {
		deps.Reporter = notice.Discard
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if id.DefaultCurrency == "" {
		id.DefaultCurrency = currency.Base
	}

	bg, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := &Container{
		store:    deps.Store,
		invites:  deps.Invites,
		reporter: deps.Reporter,
		logger:   deps.Logger.With("user_id", id.UserID),
		now:      deps.Now,
		bg:       bg,
		cancel:   cancel,
		ready:    make(chan struct{}),
		id:       id,
		state:    Loading,
		total:    decimal.Zero,
	}
	empty := map[string]bool{}
	c.groupIDs.Store(&empty)
	c.recomputeLocked()

	if deps.Hub != nil {
		c.sub = deps.Hub.Subscribe(c.onChange, c.filters()...)
	}

	go c.load()
	return c, nil
}

func (c *Container) filters() []realtime.Filter {
	me := c.id.UserID.String()
	return []realtime.Filter{
		realtime.When(realtime.TableExpenses, func(e realtime.Event) bool {
			return e.UserID == me || (*c.groupIDs.Load())[e.GroupID]
		}),
		realtime.On(realtime.TableGroups),
		realtime.On(realtime.TableMembers),
		realtime.On(realtime.TableCategories).Where("user_id", me),
		realtime.On(realtime.TableInvitations).Where("email", c.id.Email),
	}
}

// WaitReady blocks until the initial load finished or ctx is done. It returns
// ErrAuthRequired if the container was closed first.
func (c *Container) WaitReady(ctx context.Context) error {
	select {
	case <-c.ready:
	case <-ctx.Done():
		return ctx.Err()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrAuthRequired
	}
	return nil
}

// Close drops every cached collection and releases the change subscription.
// Results of calls still in flight are discarded. Close is idempotent.
func (c *Container) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.state = Unauthenticated
	c.expenses = nil
	c.groups = nil
	c.categories = nil
	c.seeded = false
	c.invitations = nil
	c.current = nil
	c.trend = nil
	c.breakdown = nil
	c.total = decimal.Zero
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()

	c.cancel()
	if sub != nil {
		sub.Close()
	}
	c.once.Do(func() { close(c.ready) })
}

func (c *Container) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Container) Identity() Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

func cloneExpenses(in []models.Expense) []models.Expense {
	out := make([]models.Expense, len(in))
	for i, e := range in {
		if e.GroupID != nil {
			id := *e.GroupID
			e.GroupID = &id
		}
		out[i] = e
	}
	return out
}

// Expenses returns the cached expenses, newest first.
func (c *Container) Expenses() []models.Expense {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneExpenses(c.expenses)
}

func (c *Container) Groups() []Group {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Group, len(c.groups))
	for i, g := range c.groups {
		out[i] = g.clone()
	}
	return out
}

// Categories returns the cached category names, or the default seed once the
// container is closed.
func (c *Container) Categories() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return DefaultCategories()
	}
	return append([]string(nil), c.categories...)
}

func (c *Container) Invitations() []Invitation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Invitation(nil), c.invitations...)
}

// CurrentGroup returns the group last opened with GroupByID, or nil.
func (c *Container) CurrentGroup() *Group {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	g := c.current.clone()
	return &g
}

func (c *Container) Trend() []TrendPoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]TrendPoint(nil), c.trend...)
}

func (c *Container) Breakdown() []CategoryShare {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]CategoryShare(nil), c.breakdown...)
}

// TotalExpenseAmount is the sum of all cached expenses converted into the
// identity's default currency.
func (c *Container) TotalExpenseAmount() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// SetDefaultCurrency changes the currency the converted total is expressed in.
func (c *Container) SetDefaultCurrency(code string) error {
	if err := currency.ValidatePreferred(code); err != nil {
		return invalid("currency", err.Error())
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrAuthRequired
	}
	c.id.DefaultCurrency = code
	c.recomputeLocked()
	return nil
}

// recomputeLocked rebuilds every derived view from the expense list. Group
// totals are always recounted from scratch so concurrent writes cannot drift
// them.
func (c *Container) recomputeLocked() {
	ids := make(map[string]bool, len(c.groups))
	for i := range c.groups {
		g := &c.groups[i]
		g.TotalExpenses, g.Currencies = groupTotal(c.expenses, g.ID)
		g.MixedCurrency = len(g.Currencies) > 1
		ids[g.ID.String()] = true
	}
	c.groupIDs.Store(&ids)

	if c.current != nil {
		for _, g := range c.groups {
			if g.ID == c.current.ID {
				cp := g.clone()
				c.current = &cp
				break
			}
		}
	}

	c.trend = MonthlyTrend(c.expenses)
	c.breakdown = CategoryBreakdown(c.expenses)
	c.total = TotalIn(c.expenses, c.id.DefaultCurrency)
}

func (c *Container) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrAuthRequired
	}
	return nil
}

func (c *Container) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Container) info(ctx context.Context, title, description string) {
	if c.isClosed() {
		return
	}
	c.reporter.Report(ctx, notice.Notice{Level: notice.Info, Title: title, Description: description})
}

func (c *Container) warn(ctx context.Context, title, description string) {
	if c.isClosed() {
		return
	}
	c.logger.Warn(title, "detail", description)
	c.reporter.Report(ctx, notice.Notice{Level: notice.Warning, Title: title, Description: description})
}

// fail reports err under title and returns it. Once the container is closed
// nothing is reported and ErrAuthRequired is returned instead.
func (c *Container) fail(ctx context.Context, title string, err error) error {
	if c.isClosed() {
		return ErrAuthRequired
	}
	c.logger.Error(title, "error", err)
	c.reporter.Report(ctx, notice.Notice{Level: notice.Error, Title: title, Description: describe(err)})
	return err
}

func (c *Container) notifyInvited(ctx context.Context, groupID uuid.UUID, groupName string, emails []string) {
	if c.invites == nil || len(emails) == 0 {
		return
	}
	id := c.Identity()
	inviter := id.Name
	if inviter == "" {
		inviter = id.Email
	}
	go c.invites.NotifyInvited(context.WithoutCancel(ctx), Invited{
		GroupID:     groupID,
		GroupName:   groupName,
		InviterName: inviter,
		Emails:      append([]string(nil), emails...),
	})
}

func (c *Container) today() time.Time {
	y, m, d := c.now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
