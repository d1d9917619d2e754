package ledger

import (
	"context"
	"strings"
	"time"

	"expense-tracker/currency"
	"expense-tracker/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type NewExpense struct {
	Title    string
	Amount   decimal.Decimal
	Date     time.Time // zero means today
	Category string
	Currency string // empty means the identity's default currency
	// GroupID wins over GroupName when both are set.
	GroupID   *uuid.UUID
	GroupName string
}

// ExpensePatch lists the fields to change. Nil fields are kept. A group is
// referenced by GroupID or GroupName; ClearGroup detaches the expense.
type ExpensePatch struct {
	Title      *string
	Amount     *decimal.Decimal
	Date       *time.Time
	Category   *string
	Currency   *string
	GroupID    *uuid.UUID
	GroupName  *string
	ClearGroup bool
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func validAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return invalid("amount", "must be greater than zero")
	}
	return nil
}

func normalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if err := currency.Validate(code); err != nil {
		return "", invalid("currency", err.Error())
	}
	return code, nil
}

// resolveGroupLocked maps a group reference onto a cached group id.
func (c *Container) resolveGroupLocked(id *uuid.UUID, name string) (*uuid.UUID, error) {
	if id != nil {
		for _, g := range c.groups {
			if g.ID == *id {
				gid := g.ID
				return &gid, nil
			}
		}
		return nil, invalid("group", "does not exist")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	for _, g := range c.groups {
		if g.Name == name {
			gid := g.ID
			return &gid, nil
		}
	}
	return nil, invalid("group", "does not exist")
}

// AddExpense shows the expense immediately and then persists it. If the
// insert fails the expense is taken back out.
func (c *Container) AddExpense(ctx context.Context, in NewExpense) (models.Expense, error) {
	if err := c.checkOpen(); err != nil {
		return models.Expense{}, err
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return models.Expense{}, c.fail(ctx, "Error adding expense", invalid("title", "is required"))
	}
	if err := validAmount(in.Amount); err != nil {
		return models.Expense{}, c.fail(ctx, "Error adding expense", err)
	}

	c.mu.Lock()
	code := in.Currency
	if strings.TrimSpace(code) == "" {
		code = c.id.DefaultCurrency
	}
	groupID, groupErr := c.resolveGroupLocked(in.GroupID, in.GroupName)
	c.mu.Unlock()

	code, err := normalizeCurrency(code)
	if err != nil {
		return models.Expense{}, c.fail(ctx, "Error adding expense", err)
	}
	if groupErr != nil {
		return models.Expense{}, c.fail(ctx, "Error adding expense", groupErr)
	}

	date := c.today()
	if !in.Date.IsZero() {
		date = dateOnly(in.Date)
	}
	category := normalizeCategory(in.Category)

	now := c.now()
	exp := models.Expense{
		ID:        uuid.New(),
		UserID:    c.id.UserID,
		GroupID:   groupID,
		Title:     title,
		Amount:    in.Amount,
		Currency:  code,
		Category:  category,
		Date:      date,
		CreatedAt: now,
		UpdatedAt: now,
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return models.Expense{}, ErrAuthRequired
	}
	c.expenses = append(cloneExpenses([]models.Expense{exp}), c.expenses...)
	c.recomputeLocked()
	c.mu.Unlock()

	row := cloneExpenses([]models.Expense{exp})[0]
	if err := c.store.InsertExpense(ctx, &row); err != nil {
		c.removeExpense(exp.ID)
		return models.Expense{}, c.fail(ctx, "Error adding expense", remote("insert expense", err))
	}

	c.info(ctx, "Expense added", title+" was added successfully.")
	return exp, nil
}

func (c *Container) removeExpense(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	for i, e := range c.expenses {
		if e.ID == id {
			c.expenses = append(c.expenses[:i:i], c.expenses[i+1:]...)
			break
		}
	}
	c.recomputeLocked()
}

// UpdateExpense applies patch to the caller's expense. An id that is not
// cached is ignored.
func (c *Container) UpdateExpense(ctx context.Context, id uuid.UUID, patch ExpensePatch) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	c.mu.Lock()
	var existing *models.Expense
	for i := range c.expenses {
		if c.expenses[i].ID == id {
			e := c.expenses[i]
			existing = &e
			break
		}
	}
	if existing == nil {
		c.mu.Unlock()
		c.logger.Debug("Update for unknown expense ignored", "expense_id", id)
		return nil
	}
	if existing.UserID != c.id.UserID {
		c.mu.Unlock()
		return c.fail(ctx, "Permission Denied", ErrPermissionDenied)
	}

	var changes models.ExpenseChanges
	var groupErr error
	switch {
	case patch.ClearGroup:
		changes.SetGroup = true
	case patch.GroupID != nil:
		changes.SetGroup = true
		changes.GroupID, groupErr = c.resolveGroupLocked(patch.GroupID, "")
	case patch.GroupName != nil:
		changes.SetGroup = true
		changes.GroupID, groupErr = c.resolveGroupLocked(nil, *patch.GroupName)
	}
	c.mu.Unlock()

	if groupErr != nil {
		return c.fail(ctx, "Error updating expense", groupErr)
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return c.fail(ctx, "Error updating expense", invalid("title", "is required"))
		}
		changes.Title = &title
	}
	if patch.Amount != nil {
		if err := validAmount(*patch.Amount); err != nil {
			return c.fail(ctx, "Error updating expense", err)
		}
		changes.Amount = patch.Amount
	}
	if patch.Currency != nil {
		code, err := normalizeCurrency(*patch.Currency)
		if err != nil {
			return c.fail(ctx, "Error updating expense", err)
		}
		changes.Currency = &code
	}
	if patch.Category != nil {
		category := normalizeCategory(*patch.Category)
		changes.Category = &category
	}
	if patch.Date != nil {
		d := dateOnly(*patch.Date)
		changes.Date = &d
	}

	if err := c.store.UpdateExpense(ctx, id, changes); err != nil {
		if isNotFound(err) {
			c.removeExpense(id)
		}
		return c.fail(ctx, "Error updating expense", remote("update expense", err))
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAuthRequired
	}
	for i := range c.expenses {
		if c.expenses[i].ID == id {
			updated := changes.Apply(c.expenses[i])
			updated.UpdatedAt = c.now()
			c.expenses[i] = updated
			break
		}
	}
	c.recomputeLocked()
	c.mu.Unlock()

	c.info(ctx, "Expense updated", "Your changes have been saved.")
	return nil
}

// DeleteExpense removes the caller's expense remotely, then locally. An id
// that is not cached is ignored.
func (c *Container) DeleteExpense(ctx context.Context, id uuid.UUID) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	c.mu.Lock()
	var owner uuid.UUID
	found := false
	for _, e := range c.expenses {
		if e.ID == id {
			owner, found = e.UserID, true
			break
		}
	}
	c.mu.Unlock()

	if !found {
		c.logger.Debug("Delete for unknown expense ignored", "expense_id", id)
		return nil
	}
	if owner != c.id.UserID {
		return c.fail(ctx, "Permission Denied", ErrPermissionDenied)
	}

	if err := c.store.DeleteExpense(ctx, id); err != nil && !isNotFound(err) {
		return c.fail(ctx, "Error deleting expense", remote("delete expense", err))
	}

	c.removeExpense(id)
	c.info(ctx, "Expense deleted", "The expense has been removed.")
	return nil
}

// normalizeCategory trims name; a blank category files under "Other".
func normalizeCategory(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Other"
	}
	return name
}
