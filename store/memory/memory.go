// Package memory is an in-process store.Store. It applies the same visibility
// and uniqueness rules as the Postgres schema and publishes a change event
// for every write, standing in for the database triggers.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"expense-tracker/models"
	"expense-tracker/realtime"
	"expense-tracker/store"

	"github.com/google/uuid"
)

type memberKey struct {
	group uuid.UUID
	user  uuid.UUID
}

type Store struct {
	mu          sync.RWMutex
	expenses    map[uuid.UUID]models.Expense
	groups      map[uuid.UUID]models.Group
	members     map[memberKey]models.GroupMember
	profiles    map[uuid.UUID]models.Profile
	categories  map[uuid.UUID]models.Category
	invitations map[uuid.UUID]models.Invitation
	accounts    map[uuid.UUID]models.Account

	pub realtime.Publisher
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// New returns an empty store publishing to pub, which may be nil.
func New(pub realtime.Publisher) *Store {
	return &Store{
		expenses:    make(map[uuid.UUID]models.Expense),
		groups:      make(map[uuid.UUID]models.Group),
		members:     make(map[memberKey]models.GroupMember),
		profiles:    make(map[uuid.UUID]models.Profile),
		categories:  make(map[uuid.UUID]models.Category),
		invitations: make(map[uuid.UUID]models.Invitation),
		accounts:    make(map[uuid.UUID]models.Account),
		pub:         pub,
		now:         time.Now,
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) publish(events ...realtime.Event) {
	if s.pub == nil {
		return
	}
	for _, e := range events {
		s.pub.Publish(e)
	}
}

func groupIDString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

func cloneExpense(e models.Expense) models.Expense {
	if e.GroupID != nil {
		id := *e.GroupID
		e.GroupID = &id
	}
	return e
}

func expenseEvent(e models.Expense) realtime.Event {
	return realtime.Event{Table: realtime.TableExpenses, UserID: e.UserID.String(), GroupID: groupIDString(e.GroupID)}
}

// visibleGroupsLocked returns the ids of groups userID created or joined.
func (s *Store) visibleGroupsLocked(userID uuid.UUID) map[uuid.UUID]bool {
	ids := make(map[uuid.UUID]bool)
	for id, g := range s.groups {
		if g.CreatedBy == userID {
			ids[id] = true
		}
	}
	for k := range s.members {
		if k.user == userID {
			ids[k.group] = true
		}
	}
	return ids
}

// ============================================================
// EXPENSES
// ============================================================

func (s *Store) ListExpenses(_ context.Context, f store.ExpenseFilter) ([]models.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var visible map[uuid.UUID]bool
	if f.VisibleTo != uuid.Nil {
		visible = s.visibleGroupsLocked(f.VisibleTo)
	}

	out := []models.Expense{}
	for _, e := range s.expenses {
		if f.GroupID != uuid.Nil && !e.InGroup(f.GroupID) {
			continue
		}
		if f.VisibleTo != uuid.Nil && e.UserID != f.VisibleTo && (e.GroupID == nil || !visible[*e.GroupID]) {
			continue
		}
		out = append(out, cloneExpense(e))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) GetExpense(_ context.Context, id uuid.UUID) (*models.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.expenses[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	e = cloneExpense(e)
	return &e, nil
}

func (s *Store) InsertExpense(_ context.Context, e *models.Expense) error {
	s.mu.Lock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if _, ok := s.expenses[e.ID]; ok {
		s.mu.Unlock()
		return store.ErrDuplicate
	}
	if e.GroupID != nil {
		if _, ok := s.groups[*e.GroupID]; !ok {
			s.mu.Unlock()
			return store.ErrNotFound
		}
	}
	if e.Currency == "" {
		e.Currency = "USD"
	}
	now := s.now()
	e.CreatedAt, e.UpdatedAt = now, now
	s.expenses[e.ID] = cloneExpense(*e)
	s.mu.Unlock()

	s.publish(expenseEvent(*e))
	return nil
}

func (s *Store) UpdateExpense(_ context.Context, id uuid.UUID, c models.ExpenseChanges) error {
	s.mu.Lock()
	e, ok := s.expenses[id]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	if c.SetGroup && c.GroupID != nil {
		if _, ok := s.groups[*c.GroupID]; !ok {
			s.mu.Unlock()
			return store.ErrNotFound
		}
	}
	before := expenseEvent(e)
	e = c.Apply(e)
	e.UpdatedAt = s.now()
	s.expenses[id] = e
	s.mu.Unlock()

	after := expenseEvent(e)
	if before.GroupID != after.GroupID {
		s.publish(before)
	}
	s.publish(after)
	return nil
}

func (s *Store) DeleteExpense(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	e, ok := s.expenses[id]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	delete(s.expenses, id)
	s.mu.Unlock()

	s.publish(expenseEvent(e))
	return nil
}

// ============================================================
// GROUPS
// ============================================================

func (s *Store) ListGroups(_ context.Context, f store.GroupFilter) ([]models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var visible map[uuid.UUID]bool
	if f.VisibleTo != uuid.Nil {
		visible = s.visibleGroupsLocked(f.VisibleTo)
	}
	var wanted map[uuid.UUID]bool
	if f.IDs != nil {
		wanted = make(map[uuid.UUID]bool, len(f.IDs))
		for _, id := range f.IDs {
			wanted[id] = true
		}
	}

	out := []models.Group{}
	for id, g := range s.groups {
		if visible != nil && !visible[id] {
			continue
		}
		if wanted != nil && !wanted[id] {
			continue
		}
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) GetGroup(_ context.Context, id uuid.UUID) (*models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &g, nil
}

func (s *Store) InsertGroup(_ context.Context, g *models.Group) error {
	s.mu.Lock()
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	if _, ok := s.groups[g.ID]; ok {
		s.mu.Unlock()
		return store.ErrDuplicate
	}
	now := s.now()
	g.CreatedAt, g.UpdatedAt = now, now
	s.groups[g.ID] = *g
	s.mu.Unlock()

	s.publish(realtime.Event{Table: realtime.TableGroups, UserID: g.CreatedBy.String(), GroupID: g.ID.String()})
	return nil
}

func (s *Store) UpdateGroup(_ context.Context, id uuid.UUID, c models.GroupChanges) error {
	s.mu.Lock()
	g, ok := s.groups[id]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	if c.Name != nil {
		g.Name = *c.Name
	}
	if c.Budget != nil {
		g.Budget = *c.Budget
	}
	g.UpdatedAt = s.now()
	s.groups[id] = g
	s.mu.Unlock()

	s.publish(realtime.Event{Table: realtime.TableGroups, UserID: g.CreatedBy.String(), GroupID: id.String()})
	return nil
}

func (s *Store) DeleteGroup(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	g, ok := s.groups[id]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	gid := id.String()
	events := []realtime.Event{{Table: realtime.TableGroups, UserID: g.CreatedBy.String(), GroupID: gid}}

	delete(s.groups, id)
	for k := range s.members {
		if k.group == id {
			delete(s.members, k)
			events = append(events, realtime.Event{Table: realtime.TableMembers, UserID: k.user.String(), GroupID: gid})
		}
	}
	for invID, inv := range s.invitations {
		if inv.GroupID == id {
			delete(s.invitations, invID)
			events = append(events, realtime.Event{Table: realtime.TableInvitations, UserID: inv.InvitedBy.String(), GroupID: gid, Email: inv.Email})
		}
	}
	for expID, e := range s.expenses {
		if e.InGroup(id) {
			events = append(events, expenseEvent(e))
			e.GroupID = nil
			s.expenses[expID] = e
		}
	}
	s.mu.Unlock()

	s.publish(events...)
	return nil
}

func (s *Store) ListMembers(_ context.Context, groupIDs []uuid.UUID) ([]models.GroupMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[uuid.UUID]bool, len(groupIDs))
	for _, id := range groupIDs {
		wanted[id] = true
	}
	out := []models.GroupMember{}
	for k, m := range s.members {
		if wanted[k.group] {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (s *Store) InsertMember(_ context.Context, m *models.GroupMember) error {
	s.mu.Lock()
	if _, ok := s.groups[m.GroupID]; !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	key := memberKey{group: m.GroupID, user: m.UserID}
	if _, ok := s.members[key]; ok {
		s.mu.Unlock()
		return store.ErrDuplicate
	}
	m.JoinedAt = s.now()
	s.members[key] = *m
	s.mu.Unlock()

	s.publish(realtime.Event{Table: realtime.TableMembers, UserID: m.UserID.String(), GroupID: m.GroupID.String()})
	return nil
}

func (s *Store) DeleteMember(_ context.Context, groupID, userID uuid.UUID) error {
	s.mu.Lock()
	key := memberKey{group: groupID, user: userID}
	if _, ok := s.members[key]; !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	delete(s.members, key)
	s.mu.Unlock()

	s.publish(realtime.Event{Table: realtime.TableMembers, UserID: userID.String(), GroupID: groupID.String()})
	return nil
}

// ============================================================
// PROFILES
// ============================================================

func (s *Store) GetProfile(_ context.Context, id uuid.UUID) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) ListProfiles(_ context.Context, ids []uuid.UUID) ([]models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Profile{}
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if p, ok := s.profiles[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) InsertProfile(_ context.Context, p *models.Profile) error {
	s.mu.Lock()
	if _, ok := s.profiles[p.ID]; ok {
		s.mu.Unlock()
		return store.ErrDuplicate
	}
	if p.DefaultCurrency == "" {
		p.DefaultCurrency = "INR"
	}
	now := s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	s.profiles[p.ID] = *p
	s.mu.Unlock()

	s.publish(realtime.Event{Table: realtime.TableProfiles, UserID: p.ID.String()})
	return nil
}

func (s *Store) UpdateProfile(_ context.Context, id uuid.UUID, c models.ProfileChanges) error {
	s.mu.Lock()
	p, ok := s.profiles[id]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	p = c.Apply(p)
	p.UpdatedAt = s.now()
	s.profiles[id] = p
	s.mu.Unlock()

	s.publish(realtime.Event{Table: realtime.TableProfiles, UserID: id.String()})
	return nil
}

// ============================================================
// CATEGORIES
// ============================================================

func (s *Store) ListCategories(_ context.Context, userID uuid.UUID) ([]models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Category{}
	for _, c := range s.categories {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) InsertCategory(_ context.Context, c *models.Category) error {
	s.mu.Lock()
	for _, existing := range s.categories {
		if existing.UserID == c.UserID && existing.Name == c.Name {
			s.mu.Unlock()
			return store.ErrDuplicate
		}
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = s.now()
	s.categories[c.ID] = *c
	s.mu.Unlock()

	s.publish(realtime.Event{Table: realtime.TableCategories, UserID: c.UserID.String()})
	return nil
}

// ============================================================
// INVITATIONS
// ============================================================

func (s *Store) ListInvitations(_ context.Context, f store.InvitationFilter) ([]models.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Invitation{}
	for _, inv := range s.invitations {
		if f.Email != "" && !strings.EqualFold(inv.Email, f.Email) {
			continue
		}
		if f.GroupID != uuid.Nil && inv.GroupID != f.GroupID {
			continue
		}
		if f.Status != "" && inv.Status != f.Status {
			continue
		}
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) GetInvitation(_ context.Context, id uuid.UUID) (*models.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invitations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &inv, nil
}

func (s *Store) InsertInvitations(_ context.Context, invs []models.Invitation) error {
	s.mu.Lock()
	for _, inv := range invs {
		if _, ok := s.groups[inv.GroupID]; !ok {
			s.mu.Unlock()
			return store.ErrNotFound
		}
	}
	now := s.now()
	events := make([]realtime.Event, 0, len(invs))
	for i := range invs {
		inv := &invs[i]
		if inv.ID == uuid.Nil {
			inv.ID = uuid.New()
		}
		if inv.Status == "" {
			inv.Status = models.InvitationPending
		}
		inv.CreatedAt = now
		s.invitations[inv.ID] = *inv
		events = append(events, realtime.Event{Table: realtime.TableInvitations, UserID: inv.InvitedBy.String(), GroupID: inv.GroupID.String(), Email: inv.Email})
	}
	s.mu.Unlock()

	s.publish(events...)
	return nil
}

func (s *Store) TransitionInvitation(_ context.Context, id uuid.UUID, status string) error {
	s.mu.Lock()
	inv, ok := s.invitations[id]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	if inv.Status != models.InvitationPending {
		s.mu.Unlock()
		return store.ErrConflict
	}
	inv.Status = status
	s.invitations[id] = inv
	s.mu.Unlock()

	s.publish(realtime.Event{Table: realtime.TableInvitations, UserID: inv.InvitedBy.String(), GroupID: inv.GroupID.String(), Email: inv.Email})
	return nil
}

func (s *Store) AcceptInvitation(_ context.Context, id, userID uuid.UUID) error {
	s.mu.Lock()
	inv, ok := s.invitations[id]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	if inv.Status != models.InvitationPending {
		s.mu.Unlock()
		return store.ErrConflict
	}
	if _, ok := s.groups[inv.GroupID]; !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	key := memberKey{group: inv.GroupID, user: userID}
	if _, ok := s.members[key]; !ok {
		s.members[key] = models.GroupMember{GroupID: inv.GroupID, UserID: userID, JoinedAt: s.now()}
	}
	inv.Status = models.InvitationAccepted
	s.invitations[id] = inv
	s.mu.Unlock()

	s.publish(
		realtime.Event{Table: realtime.TableMembers, UserID: userID.String(), GroupID: inv.GroupID.String()},
		realtime.Event{Table: realtime.TableInvitations, UserID: inv.InvitedBy.String(), GroupID: inv.GroupID.String(), Email: inv.Email},
	)
	return nil
}

// ============================================================
// ACCOUNTS
// ============================================================

func (s *Store) InsertAccount(_ context.Context, a *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.accounts {
		if strings.EqualFold(existing.Email, a.Email) {
			return store.ErrDuplicate
		}
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = s.now()
	s.accounts[a.ID] = *a
	return nil
}

func (s *Store) GetAccount(_ context.Context, id uuid.UUID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (s *Store) GetAccountByEmail(_ context.Context, email string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if strings.EqualFold(a.Email, email) {
			return &a, nil
		}
	}
	return nil, store.ErrNotFound
}
