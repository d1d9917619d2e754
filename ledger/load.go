package ledger

import (
	"context"
	"errors"

	"expense-tracker/models"
	"expense-tracker/realtime"
	"expense-tracker/store"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// load runs the initial fetches. Expenses and groups gate readiness;
// categories and invitations land whenever they complete.
func (c *Container) load() {
	go c.refreshCategories(c.bg)
	go c.refreshInvitations(c.bg)

	var g errgroup.Group
	g.Go(func() error { return c.refreshExpenses(c.bg) })
	g.Go(func() error { return c.refreshGroups(c.bg, false) })
	if err := g.Wait(); err != nil {
		c.logger.Debug("Initial load incomplete", "error", err)
	}

	c.mu.Lock()
	if !c.closed {
		c.state = Ready
	}
	c.mu.Unlock()
	c.once.Do(func() { close(c.ready) })
}

// Refresh refetches every collection in parallel.
func (c *Container) Refresh(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	var g errgroup.Group
	g.Go(func() error { return c.refreshExpenses(ctx) })
	g.Go(func() error { return c.refreshGroups(ctx, false) })
	g.Go(func() error { return c.refreshCategories(ctx) })
	g.Go(func() error { return c.refreshInvitations(ctx) })
	return g.Wait()
}

// onChange reconciles after a backend change notification.
func (c *Container) onChange(table string) {
	ctx, cancel := context.WithTimeout(c.bg, refreshTimeout)
	defer cancel()

	switch table {
	case realtime.TableExpenses:
		c.refreshExpenses(ctx)
	case realtime.TableGroups, realtime.TableMembers:
		c.refreshGroups(ctx, true)
	case realtime.TableCategories:
		c.refreshCategories(ctx)
	case realtime.TableInvitations:
		c.refreshInvitations(ctx)
	}
}

func (c *Container) refreshExpenses(ctx context.Context) error {
	rows, err := c.store.ListExpenses(ctx, store.ExpenseFilter{VisibleTo: c.id.UserID})
	if err != nil {
		return c.fail(ctx, "Error fetching expenses", remote("fetch expenses", err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrAuthRequired
	}
	c.expenses = rows
	c.recomputeLocked()
	return nil
}

// refreshGroups replaces the group list. With followExpenses set, a change in
// the set of visible groups also refetches expenses, since group expenses
// become visible or hidden with membership.
func (c *Container) refreshGroups(ctx context.Context, followExpenses bool) error {
	rows, err := c.store.ListGroups(ctx, store.GroupFilter{VisibleTo: c.id.UserID})
	if err != nil {
		return c.fail(ctx, "Error loading groups", remote("fetch groups", err))
	}

	ids := make([]uuid.UUID, len(rows))
	for i, g := range rows {
		ids[i] = g.ID
	}
	members, err := c.store.ListMembers(ctx, ids)
	if err != nil {
		return c.fail(ctx, "Error loading groups", remote("fetch group members", err))
	}
	profiles, err := c.store.ListProfiles(ctx, memberUserIDs(rows, members))
	if err != nil {
		return c.fail(ctx, "Error loading groups", remote("fetch member profiles", err))
	}
	views := buildGroups(rows, members, profiles)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAuthRequired
	}
	changed := !sameGroupSet(c.groups, views)
	c.groups = views
	if c.current != nil && changed {
		found := false
		for _, g := range views {
			if g.ID == c.current.ID {
				found = true
				break
			}
		}
		if !found {
			c.current = nil
		}
	}
	c.recomputeLocked()
	c.mu.Unlock()

	if changed && followExpenses {
		return c.refreshExpenses(ctx)
	}
	return nil
}

func (c *Container) refreshCategories(ctx context.Context) error {
	rows, err := c.store.ListCategories(ctx, c.id.UserID)
	if err != nil {
		c.mu.Lock()
		if !c.closed && len(c.categories) == 0 {
			c.categories = DefaultCategories()
			c.seeded = true
		}
		c.mu.Unlock()
		return c.fail(ctx, "Error fetching categories", remote("fetch categories", err))
	}

	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.Name
	}
	seeded := len(names) == 0
	if seeded {
		names = DefaultCategories()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrAuthRequired
	}
	c.categories = names
	c.seeded = seeded
	return nil
}

// FetchInvitations reloads the pending invitations addressed to the user.
func (c *Container) FetchInvitations(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	return c.refreshInvitations(ctx)
}

func (c *Container) refreshInvitations(ctx context.Context) error {
	if c.id.Email == "" {
		return nil
	}
	rows, err := c.store.ListInvitations(ctx, store.InvitationFilter{Email: c.id.Email, Status: models.InvitationPending})
	if err != nil {
		return c.fail(ctx, "Error fetching invitations", remote("fetch invitations", err))
	}

	var views []Invitation
	if len(rows) > 0 {
		groupIDs := make([]uuid.UUID, 0, len(rows))
		inviterIDs := make([]uuid.UUID, 0, len(rows))
		for _, r := range rows {
			groupIDs = append(groupIDs, r.GroupID)
			inviterIDs = append(inviterIDs, r.InvitedBy)
		}
		groups, err := c.store.ListGroups(ctx, store.GroupFilter{IDs: groupIDs})
		if err != nil {
			return c.fail(ctx, "Error fetching invitations", remote("fetch invitation groups", err))
		}
		profiles, err := c.store.ListProfiles(ctx, inviterIDs)
		if err != nil {
			return c.fail(ctx, "Error fetching invitations", remote("fetch inviters", err))
		}
		views = buildInvitations(rows, groups, profiles)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrAuthRequired
	}
	c.invitations = views
	return nil
}

func memberUserIDs(groups []models.Group, members []models.GroupMember) []uuid.UUID {
	seen := map[uuid.UUID]bool{}
	var ids []uuid.UUID
	add := func(id uuid.UUID) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, g := range groups {
		add(g.CreatedBy)
	}
	for _, m := range members {
		add(m.UserID)
	}
	return ids
}

// buildGroups joins group rows with memberships and profiles. The creator is
// always listed as a member. Totals are filled in by recomputeLocked.
func buildGroups(rows []models.Group, members []models.GroupMember, profiles []models.Profile) []Group {
	byID := make(map[uuid.UUID]*models.Profile, len(profiles))
	for i := range profiles {
		byID[profiles[i].ID] = &profiles[i]
	}
	byGroup := map[uuid.UUID][]uuid.UUID{}
	for _, m := range members {
		byGroup[m.GroupID] = append(byGroup[m.GroupID], m.UserID)
	}

	views := make([]Group, 0, len(rows))
	for _, g := range rows {
		view := Group{
			ID:        g.ID,
			Name:      g.Name,
			Budget:    g.Budget,
			CreatedAt: g.CreatedAt,
			CreatedBy: g.CreatedBy,
		}
		userIDs := append([]uuid.UUID{g.CreatedBy}, byGroup[g.ID]...)
		seen := map[uuid.UUID]bool{}
		for _, uid := range userIDs {
			if seen[uid] {
				continue
			}
			seen[uid] = true
			n := ResolveName(uid, byID[uid])
			view.Members = append(view.Members, Member{ID: uid, Name: n.Name, Initials: n.Initials})
		}
		views = append(views, view)
	}
	return views
}

func buildInvitations(rows []models.Invitation, groups []models.Group, profiles []models.Profile) []Invitation {
	groupNames := make(map[uuid.UUID]string, len(groups))
	for _, g := range groups {
		groupNames[g.ID] = g.Name
	}
	byID := make(map[uuid.UUID]*models.Profile, len(profiles))
	for i := range profiles {
		byID[profiles[i].ID] = &profiles[i]
	}

	views := make([]Invitation, 0, len(rows))
	for _, r := range rows {
		groupName, ok := groupNames[r.GroupID]
		if !ok {
			groupName = "Unknown Group"
		}
		inviter := "Unknown User"
		if n := ResolveName(r.InvitedBy, byID[r.InvitedBy]); n.Source != FromPlaceholder {
			inviter = n.Name
		}
		views = append(views, Invitation{
			ID:          r.ID,
			GroupID:     r.GroupID,
			GroupName:   groupName,
			Email:       r.Email,
			Status:      r.Status,
			InvitedBy:   r.InvitedBy,
			InviterName: inviter,
			CreatedAt:   r.CreatedAt,
		})
	}
	return views
}

func sameGroupSet(a, b []Group) bool {
	if len(a) != len(b) {
		return false
	}
	ids := make(map[uuid.UUID]bool, len(a))
	for _, g := range a {
		ids[g.ID] = true
	}
	for _, g := range b {
		if !ids[g.ID] {
			return false
		}
	}
	return true
}

// isNotFound reports store misses.
func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
