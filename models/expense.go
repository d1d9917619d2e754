package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

type Expense struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID       `gorm:"type:uuid;index;not null" json:"user_id"`
	GroupID   *uuid.UUID      `gorm:"type:uuid;index" json:"group_id,omitempty"`
	Title     string          `gorm:"not null;size:255" json:"title"`
	Amount    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency  string          `gorm:"default:USD;size:3" json:"currency"`
	Category  string          `gorm:"size:50" json:"category"`
	Date      time.Time       `gorm:"type:date;not null" json:"date"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (e *Expense) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// InGroup reports whether the expense is assigned to groupID.
func (e Expense) InGroup(groupID uuid.UUID) bool {
	return e.GroupID != nil && *e.GroupID == groupID
}

// ExpenseChanges lists the columns an expense update touches. Nil fields are
// left alone; SetGroup with a nil GroupID detaches the expense from its group.
type ExpenseChanges struct {
	Title    *string
	Amount   *decimal.Decimal
	Currency *string
	Category *string
	Date     *time.Time
	SetGroup bool
	GroupID  *uuid.UUID
}

// Columns returns the changes keyed by column name.
func (c ExpenseChanges) Columns() map[string]interface{} {
	updates := map[string]interface{}{}
	if c.Title != nil {
		updates["title"] = *c.Title
	}
	if c.Amount != nil {
		updates["amount"] = *c.Amount
	}
	if c.Currency != nil {
		updates["currency"] = *c.Currency
	}
	if c.Category != nil {
		updates["category"] = *c.Category
	}
	if c.Date != nil {
		updates["date"] = *c.Date
	}
	if c.SetGroup {
		updates["group_id"] = c.GroupID
	}
	return updates
}

// Apply returns a copy of e with the changes applied.
func (c ExpenseChanges) Apply(e Expense) Expense {
	if c.Title != nil {
		e.Title = *c.Title
	}
	if c.Amount != nil {
		e.Amount = *c.Amount
	}
	if c.Currency != nil {
		e.Currency = *c.Currency
	}
	if c.Category != nil {
		e.Category = *c.Category
	}
	if c.Date != nil {
		e.Date = *c.Date
	}
	if c.SetGroup {
		if c.GroupID == nil {
			e.GroupID = nil
		} else {
			id := *c.GroupID
			e.GroupID = &id
		}
	}
	return e
}

// Request structs
type CreateExpenseRequest struct {
	Title    string          `json:"title" binding:"required"`
	Amount   decimal.Decimal `json:"amount" binding:"required"`
	Currency string          `json:"currency"`
	Category string          `json:"category"`
	Date     string          `json:"date"` // YYYY-MM-DD
	GroupID  string          `json:"group_id"`
	Group    string          `json:"group"` // group name, resolved server side
}

type UpdateExpenseRequest struct {
	Title      *string          `json:"title"`
	Amount     *decimal.Decimal `json:"amount"`
	Currency   *string          `json:"currency"`
	Category   *string          `json:"category"`
	Date       *string          `json:"date"`
	GroupID    *string          `json:"group_id"`
	Group      *string          `json:"group"`
	ClearGroup bool             `json:"clear_group"`
}
