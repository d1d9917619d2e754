package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Account is the credential record behind a profile. It never leaves the auth
// service.
type Account struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null;size:255" json:"email"`
	PasswordHash string    `gorm:"not null;size:255" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

type Profile struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Username        string    `gorm:"size:100" json:"username"`
	FullName        string    `gorm:"size:100" json:"full_name"`
	AvatarURL       string    `json:"avatar_url,omitempty"`
	DefaultCurrency string    `gorm:"default:INR;size:3" json:"default_currency"`
	FCMToken        string    `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type ProfileChanges struct {
	Username        *string
	FullName        *string
	AvatarURL       *string
	DefaultCurrency *string
	FCMToken        *string
}

func (c ProfileChanges) Columns() map[string]interface{} {
	updates := map[string]interface{}{}
	if c.Username != nil {
		updates["username"] = *c.Username
	}
	if c.FullName != nil {
		updates["full_name"] = *c.FullName
	}
	if c.AvatarURL != nil {
		updates["avatar_url"] = *c.AvatarURL
	}
	if c.DefaultCurrency != nil {
		updates["default_currency"] = *c.DefaultCurrency
	}
	if c.FCMToken != nil {
		updates["fcm_token"] = *c.FCMToken
	}
	return updates
}

// Apply returns a copy of p with the changes applied.
func (c ProfileChanges) Apply(p Profile) Profile {
	if c.Username != nil {
		p.Username = *c.Username
	}
	if c.FullName != nil {
		p.FullName = *c.FullName
	}
	if c.AvatarURL != nil {
		p.AvatarURL = *c.AvatarURL
	}
	if c.DefaultCurrency != nil {
		p.DefaultCurrency = *c.DefaultCurrency
	}
	if c.FCMToken != nil {
		p.FCMToken = *c.FCMToken
	}
	return p
}

// Response struct (what we return to clients)
type ProfileResponse struct {
	ID              uuid.UUID `json:"id"`
	Email           string    `json:"email"`
	Username        string    `json:"username"`
	FullName        string    `json:"full_name"`
	AvatarURL       string    `json:"avatar_url,omitempty"`
	DefaultCurrency string    `json:"default_currency"`
}

func (p *Profile) ToResponse(email string) ProfileResponse {
	return ProfileResponse{
		ID:              p.ID,
		Email:           email,
		Username:        p.Username,
		FullName:        p.FullName,
		AvatarURL:       p.AvatarURL,
		DefaultCurrency: p.DefaultCurrency,
	}
}

type UpdateProfileRequest struct {
	Username        *string `json:"username"`
	FullName        *string `json:"full_name"`
	AvatarURL       *string `json:"avatar_url"`
	DefaultCurrency *string `json:"default_currency"`
}

type UpdateFCMTokenRequest struct {
	Token string `json:"token" binding:"required"`
}
