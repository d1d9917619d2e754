package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Group struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string          `gorm:"not null;size:100" json:"name"`
	Description string          `json:"description"`
	Budget      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"budget"`
	CreatedBy   uuid.UUID       `gorm:"type:uuid;index" json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (g *Group) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

type GroupMember struct {
	GroupID  uuid.UUID `gorm:"type:uuid;primaryKey" json:"group_id"`
	UserID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

// GroupChanges lists the mutable group columns. Only name and budget change
// after creation.
type GroupChanges struct {
	Name   *string
	Budget *decimal.Decimal
}

func (c GroupChanges) Columns() map[string]interface{} {
	updates := map[string]interface{}{}
	if c.Name != nil {
		updates["name"] = *c.Name
	}
	if c.Budget != nil {
		updates["budget"] = *c.Budget
	}
	return updates
}

// Request structs
type CreateGroupRequest struct {
	Name    string          `json:"name" binding:"required"`
	Budget  decimal.Decimal `json:"budget"`
	Members []string        `json:"members"` // emails to invite
}

type UpdateGroupRequest struct {
	Name   *string          `json:"name"`
	Budget *decimal.Decimal `json:"budget"`
}

type InviteMembersRequest struct {
	Emails []string `json:"emails" binding:"required"`
}
