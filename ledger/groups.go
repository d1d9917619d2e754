package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"expense-tracker/models"
	"expense-tracker/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type NewGroup struct {
	Name         string
	Budget       decimal.Decimal
	MemberEmails []string
}

// GroupPatch changes name and budget only.
type GroupPatch struct {
	Name   *string
	Budget *decimal.Decimal
}

// NormalizeEmails trims, lowercases and deduplicates emails, dropping empty
// entries. Order of first appearance is kept.
func NormalizeEmails(emails []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, e := range emails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}

// CreateGroup creates the group, makes the caller its first member and
// invites every email. Invitation failures do not undo the group: the id is
// still returned and a warning is reported. uuid.Nil is returned only when
// the group or the creator's membership could not be created.
func (c *Container) CreateGroup(ctx context.Context, in NewGroup) (uuid.UUID, error) {
	if err := c.checkOpen(); err != nil {
		return uuid.Nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return uuid.Nil, c.fail(ctx, "Error creating group", invalid("name", "is required"))
	}
	if in.Budget.IsNegative() {
		return uuid.Nil, c.fail(ctx, "Error creating group", invalid("budget", "must not be negative"))
	}

	me := c.id.UserID
	row := models.Group{Name: name, Budget: in.Budget, CreatedBy: me}
	if err := c.store.InsertGroup(ctx, &row); err != nil {
		return uuid.Nil, c.fail(ctx, "Error creating group", remote("insert group", err))
	}
	err := c.store.InsertMember(ctx, &models.GroupMember{GroupID: row.ID, UserID: me})
	if err != nil && !errors.Is(err, store.ErrDuplicate) {
		return uuid.Nil, c.fail(ctx, "Error creating group", remote("insert creator membership", err))
	}

	var emails []string
	for _, e := range NormalizeEmails(in.MemberEmails) {
		if !strings.EqualFold(e, c.id.Email) {
			emails = append(emails, e)
		}
	}
	invitesFailed := false
	if len(emails) > 0 {
		if err := c.store.InsertInvitations(ctx, c.invitationRows(row.ID, emails)); err != nil {
			invitesFailed = true
			c.logger.Error("Error creating invitations", "group_id", row.ID, "error", err)
			c.warn(ctx, "Group created", "Created group but couldn't send all invitations.")
		} else {
			c.notifyInvited(ctx, row.ID, name, emails)
		}
	}

	c.insertGroupView(row)
	if err := c.refreshGroups(ctx, false); err != nil {
		c.logger.Warn("Group list refresh after create failed", "error", err)
	}

	if !invitesFailed {
		c.info(ctx, "Group created", fmt.Sprintf("%s has been created.", name))
	}
	return row.ID, nil
}

func (c *Container) invitationRows(groupID uuid.UUID, emails []string) []models.Invitation {
	rows := make([]models.Invitation, len(emails))
	for i, e := range emails {
		rows[i] = models.Invitation{
			GroupID:   groupID,
			InvitedBy: c.id.UserID,
			Email:     e,
			Status:    models.InvitationPending,
		}
	}
	return rows
}

// insertGroupView shows a freshly created group before the refetch lands.
func (c *Container) insertGroupView(row models.Group) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	for _, g := range c.groups {
		if g.ID == row.ID {
			return
		}
	}
	name := c.id.Name
	initials := wordInitials(name)
	if name == "" {
		n := placeholderName(c.id.UserID)
		name, initials = n.Name, n.Initials
	}
	view := Group{
		ID:        row.ID,
		Name:      row.Name,
		Budget:    row.Budget,
		CreatedAt: row.CreatedAt,
		CreatedBy: row.CreatedBy,
		Members:   []Member{{ID: c.id.UserID, Name: name, Initials: initials}},
	}
	c.groups = append([]Group{view}, c.groups...)
	c.recomputeLocked()
}

func (c *Container) cachedGroup(id uuid.UUID) (Group, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, g := range c.groups {
		if g.ID == id {
			return g.clone(), true
		}
	}
	return Group{}, false
}

// creatorOf returns the group's creator, from the cache when allowed.
func (c *Container) creatorOf(ctx context.Context, id uuid.UUID, useCache bool) (uuid.UUID, error) {
	if useCache {
		if g, ok := c.cachedGroup(id); ok {
			return g.CreatedBy, nil
		}
	}
	row, err := c.store.GetGroup(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return uuid.Nil, ErrNotFound
		}
		return uuid.Nil, remote("fetch group", err)
	}
	return row.CreatedBy, nil
}

// requireCreator fails with ErrPermissionDenied unless the caller created the
// group.
func (c *Container) requireCreator(ctx context.Context, id uuid.UUID, useCache bool, action string) error {
	creator, err := c.creatorOf(ctx, id, useCache)
	if err != nil {
		return c.fail(ctx, "Error "+action, err)
	}
	if creator != c.id.UserID {
		c.fail(ctx, "Permission Denied", fmt.Errorf("only the group creator can %s this group", action))
		return ErrPermissionDenied
	}
	return nil
}

func (c *Container) UpdateGroup(ctx context.Context, id uuid.UUID, patch GroupPatch) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	var changes models.GroupChanges
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return c.fail(ctx, "Error updating group", invalid("name", "is required"))
		}
		changes.Name = &name
	}
	if patch.Budget != nil {
		if patch.Budget.IsNegative() {
			return c.fail(ctx, "Error updating group", invalid("budget", "must not be negative"))
		}
		changes.Budget = patch.Budget
	}

	if err := c.requireCreator(ctx, id, true, "update"); err != nil {
		return err
	}
	if err := c.store.UpdateGroup(ctx, id, changes); err != nil {
		if isNotFound(err) {
			return c.fail(ctx, "Error updating group", ErrNotFound)
		}
		return c.fail(ctx, "Error updating group", remote("update group", err))
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAuthRequired
	}
	for i := range c.groups {
		if c.groups[i].ID != id {
			continue
		}
		if changes.Name != nil {
			c.groups[i].Name = *changes.Name
		}
		if changes.Budget != nil {
			c.groups[i].Budget = *changes.Budget
		}
	}
	c.recomputeLocked()
	c.mu.Unlock()

	c.info(ctx, "Group updated", "Your changes have been saved.")
	return nil
}

// DeleteGroup deletes a group the caller created. The creator check reads the
// remote row and is not transactional with the delete.
func (c *Container) DeleteGroup(ctx context.Context, id uuid.UUID) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if err := c.requireCreator(ctx, id, false, "delete"); err != nil {
		return err
	}
	if err := c.store.DeleteGroup(ctx, id); err != nil && !isNotFound(err) {
		return c.fail(ctx, "Error deleting group", remote("delete group", err))
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAuthRequired
	}
	for i, g := range c.groups {
		if g.ID == id {
			c.groups = append(c.groups[:i:i], c.groups[i+1:]...)
			break
		}
	}
	for i := range c.expenses {
		if c.expenses[i].InGroup(id) {
			c.expenses[i].GroupID = nil
		}
	}
	if c.current != nil && c.current.ID == id {
		c.current = nil
	}
	c.recomputeLocked()
	c.mu.Unlock()

	c.info(ctx, "Group deleted", "The group has been deleted.")
	return nil
}

// RemoveMember removes userID from a group the caller created. The creator
// cannot be removed.
func (c *Container) RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if err := c.requireCreator(ctx, groupID, true, "manage"); err != nil {
		return err
	}
	if userID == c.id.UserID {
		return c.fail(ctx, "Error removing member", invalid("member", "cannot remove the group creator"))
	}

	if err := c.store.DeleteMember(ctx, groupID, userID); err != nil {
		if isNotFound(err) {
			return c.fail(ctx, "Error removing member", ErrNotFound)
		}
		return c.fail(ctx, "Error removing member", remote("delete member", err))
	}

	if err := c.refreshGroups(ctx, false); err != nil {
		c.logger.Warn("Group list refresh after member removal failed", "error", err)
	}
	c.info(ctx, "Member removed", "The member has been removed from the group.")
	return nil
}

// InviteMembers invites emails to a group the caller created, skipping
// addresses that already have a pending invitation. It returns how many
// invitations were created.
func (c *Container) InviteMembers(ctx context.Context, groupID uuid.UUID, emails []string) (int, error) {
	if err := c.checkOpen(); err != nil {
		return 0, err
	}
	wanted := NormalizeEmails(emails)
	if len(wanted) == 0 {
		return 0, c.fail(ctx, "Error sending invitations", invalid("emails", "at least one email is required"))
	}
	if err := c.requireCreator(ctx, groupID, true, "manage"); err != nil {
		return 0, err
	}

	pending, err := c.store.ListInvitations(ctx, store.InvitationFilter{GroupID: groupID, Status: models.InvitationPending})
	if err != nil {
		return 0, c.fail(ctx, "Error sending invitations", remote("fetch pending invitations", err))
	}
	already := map[string]bool{strings.ToLower(c.id.Email): true}
	for _, p := range pending {
		already[strings.ToLower(p.Email)] = true
	}
	var fresh []string
	for _, e := range wanted {
		if !already[e] {
			fresh = append(fresh, e)
		}
	}
	if len(fresh) == 0 {
		c.info(ctx, "No new invitations", "Everyone listed has already been invited.")
		return 0, nil
	}

	if err := c.store.InsertInvitations(ctx, c.invitationRows(groupID, fresh)); err != nil {
		return 0, c.fail(ctx, "Error sending invitations", remote("insert invitations", err))
	}

	groupName := ""
	if g, ok := c.cachedGroup(groupID); ok {
		groupName = g.Name
	}
	c.notifyInvited(ctx, groupID, groupName, fresh)
	c.info(ctx, "Invitations sent", fmt.Sprintf("%d invitation(s) sent.", len(fresh)))
	return len(fresh), nil
}

// GroupByID returns the group and makes it the current group. Uncached
// groups are fetched; the caller must be a member or the creator.
func (c *Container) GroupByID(ctx context.Context, id uuid.UUID) (Group, error) {
	if err := c.checkOpen(); err != nil {
		return Group{}, err
	}

	c.mu.Lock()
	for _, g := range c.groups {
		if g.ID == id {
			cp := g.clone()
			c.current = &cp
			c.mu.Unlock()
			return g.clone(), nil
		}
	}
	c.mu.Unlock()

	row, err := c.store.GetGroup(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return Group{}, c.fail(ctx, "Error loading group", ErrNotFound)
		}
		return Group{}, c.fail(ctx, "Error loading group", remote("fetch group", err))
	}
	members, err := c.store.ListMembers(ctx, []uuid.UUID{id})
	if err != nil {
		return Group{}, c.fail(ctx, "Error loading group", remote("fetch group members", err))
	}

	allowed := row.CreatedBy == c.id.UserID
	for _, m := range members {
		if m.UserID == c.id.UserID {
			allowed = true
		}
	}
	if !allowed {
		return Group{}, c.fail(ctx, "Access denied", ErrNotAuthorized)
	}

	rows := []models.Group{*row}
	profiles, err := c.store.ListProfiles(ctx, memberUserIDs(rows, members))
	if err != nil {
		return Group{}, c.fail(ctx, "Error loading group", remote("fetch member profiles", err))
	}
	expenses, err := c.store.ListExpenses(ctx, store.ExpenseFilter{GroupID: id})
	if err != nil {
		return Group{}, c.fail(ctx, "Error loading group", remote("fetch group expenses", err))
	}

	view := buildGroups(rows, members, profiles)[0]
	view.TotalExpenses, view.Currencies = groupTotal(expenses, id)
	view.MixedCurrency = len(view.Currencies) > 1

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Group{}, ErrAuthRequired
	}
	cp := view.clone()
	c.current = &cp
	return view, nil
}
