package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Category struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_category_user_name" json:"user_id"`
	Name      string    `gorm:"not null;size:50;uniqueIndex:idx_category_user_name" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func (Category) TableName() string {
	return "expense_categories"
}

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

type AddCategoryRequest struct {
	Name string `json:"name" binding:"required"`
}
