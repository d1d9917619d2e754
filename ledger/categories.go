package ledger

import (
	"context"
	"errors"
	"strings"

	"expense-tracker/models"
	"expense-tracker/store"
)

// AddCategory adds name to the user's categories. Adding a name that already
// exists, locally or remotely, succeeds without a second row.
func (c *Container) AddCategory(ctx context.Context, name string) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return c.fail(ctx, "Error adding category", invalid("name", "is required"))
	}

	if c.hasCategory(name) {
		return nil
	}

	err := c.store.InsertCategory(ctx, &models.Category{UserID: c.id.UserID, Name: name})
	if err != nil && !errors.Is(err, store.ErrDuplicate) {
		return c.fail(ctx, "Error adding category", remote("insert category", err))
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAuthRequired
	}
	if !containsString(c.categories, name) {
		c.categories = append(c.categories, name)
	}
	c.mu.Unlock()

	if err == nil {
		c.info(ctx, "Category added", name+" is now available.")
	}
	return nil
}

// hasCategory reports whether name is already stored. Seeded defaults do not
// count; picking one persists it.
func (c *Container) hasCategory(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.seeded && containsString(c.categories, name)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
