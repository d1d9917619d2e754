// Package realtime fans table change events out to in-process subscribers.
//
// Events identify the table and the owning user or group so subscriptions can
// be filtered, but callbacks never receive the changed row. Subscribers are
// expected to refetch whatever they cache.
package realtime

import (
	"log/slog"
	"strings"
	"sync"
)

const (
	TableExpenses    = "expenses"
	TableGroups      = "groups"
	TableMembers     = "group_members"
	TableCategories  = "expense_categories"
	TableInvitations = "group_invitations"
	TableProfiles    = "profiles"
)

// Tables lists every table that emits change events.
var Tables = []string{TableExpenses, TableGroups, TableMembers, TableCategories, TableInvitations, TableProfiles}

type Event struct {
	Table   string `json:"table"`
	UserID  string `json:"user_id,omitempty"`
	GroupID string `json:"group_id,omitempty"`
	// Email is the invited address on invitation events.
	Email string `json:"email,omitempty"`
	// Origin names the process that published the event, for relays.
	Origin string `json:"origin,omitempty"`
}

// Publisher accepts change events.
type Publisher interface {
	Publish(e Event)
}

// Filter matches events for one table, optionally narrowed to rows whose
// Column equals Value, or to events accepted by Pred. Supported columns are
// user_id, group_id and email; email compares case-insensitively. Pred runs on the publishing goroutine and must not
// block.
type Filter struct {
	Table  string
	Column string
	Value  string
	Pred   func(Event) bool
}

// On returns a filter matching every change on table.
func On(table string) Filter {
	return Filter{Table: table}
}

// Where narrows f to rows whose column equals value.
func (f Filter) Where(column, value string) Filter {
	f.Column = column
	f.Value = value
	return f
}

// When returns a filter matching events on table accepted by pred.
func When(table string, pred func(Event) bool) Filter {
	return Filter{Table: table, Pred: pred}
}

func (f Filter) Match(e Event) bool {
	if f.Table != e.Table {
		return false
	}
	if f.Pred != nil {
		return f.Pred(e)
	}
	switch f.Column {
	case "":
		return true
	case "user_id":
		return e.UserID == f.Value
	case "group_id":
		return e.GroupID == f.Value
	case "email":
		return strings.EqualFold(e.Email, f.Value)
	default:
		return false
	}
}

// Hub is an in-process event bus. The zero value is not usable; call NewHub.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]*Subscription
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{subs: make(map[uint64]*Subscription), logger: logger}
}

// Publish delivers e to every matching subscription. It never blocks on
// subscriber callbacks.
func (h *Hub) Publish(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		if s.matches(e) {
			s.enqueue(e.Table)
		}
	}
}

// Subscribe registers fn for events matching any of filters. With no filters
// every event matches. fn runs on a goroutine owned by the subscription, one
// call at a time; bursts on the same table are coalesced into one call.
func (h *Hub) Subscribe(fn func(table string), filters ...Filter) *Subscription {
	s := &Subscription{
		hub:     h,
		fn:      fn,
		filters: filters,
		pending: make(map[string]bool),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		logger:  h.logger,
	}

	h.mu.Lock()
	h.nextID++
	s.id = h.nextID
	h.subs[s.id] = s
	h.mu.Unlock()

	s.wg.Add(1)
	go s.run()
	return s
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

type Subscription struct {
	id      uint64
	hub     *Hub
	fn      func(table string)
	filters []Filter
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[string]bool
	order   []string

	wake chan struct{}
	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func (s *Subscription) matches(e Event) bool {
	if len(s.filters) == 0 {
		return true
	}
	for _, f := range s.filters {
		if f.Match(e) {
			return true
		}
	}
	return false
}

func (s *Subscription) enqueue(table string) {
	s.mu.Lock()
	if !s.pending[table] {
		s.pending[table] = true
		s.order = append(s.order, table)
	}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}

		s.mu.Lock()
		tables := s.order
		s.order = nil
		s.pending = make(map[string]bool)
		s.mu.Unlock()

		for _, table := range tables {
			select {
			case <-s.done:
				return
			default:
			}
			s.call(table)
		}
	}
}

func (s *Subscription) call(table string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Change callback panicked", "table", table, "panic", r)
		}
	}()
	s.fn(table)
}

// Close unregisters the subscription and waits for an in-flight callback to
// return. It is idempotent. Close must not be called from the callback itself.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s.id)
		close(s.done)
		s.wg.Wait()
	})
}
