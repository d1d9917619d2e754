package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
	InvitationRejected = "rejected"
)

type Invitation struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	GroupID   uuid.UUID `gorm:"type:uuid;index" json:"group_id"`
	InvitedBy uuid.UUID `gorm:"type:uuid" json:"invited_by"`
	Email     string    `gorm:"size:255;index" json:"email"`
	Status    string    `gorm:"default:pending;size:20" json:"status"` // pending, accepted, rejected
	CreatedAt time.Time `json:"created_at"`
}

func (Invitation) TableName() string {
	return "group_invitations"
}

func (i *Invitation) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
