package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a user account in the system
type User struct {
	gorm.Model

	// Authentication fields
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`

	// Google OAuth fields
	GoogleID       *string `gorm:"uniqueIndex" json:"google_id,omitempty"`
	GoogleImageURL *string `json:"google_image_url,omitempty"`

	// Profile information
	Name      *string `json:"name,omitempty"`
	Company   *string `json:"company,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
	Timezone  string  `gorm:"default:'America/Sao_Paulo'" json:"timezone"`
	Language  string  `gorm:"default:'pt-BR'" json:"language"`

	// Account status
	IsActive bool `gorm:"default:true" json:"is_active"`
	IsAdmin  bool `gorm:"default:false" json:"is_admin"`

	// Bumped to invalidate all outstanding tokens on logout-everywhere
	TokenVersion int `gorm:"default:0" json:"-"`

	// Plan limits
	MaxConnections int `gorm:"default:1" json:"max_connections"`
	MaxCampaigns   int `gorm:"default:5" json:"max_campaigns"`

	// Relations
	Connections  []Connection  `gorm:"foreignKey:UserID" json:"connections,omitempty"`
	Campaigns    []Campaign    `gorm:"foreignKey:UserID" json:"campaigns,omitempty"`
	ContactLists []ContactList `gorm:"foreignKey:UserID" json:"contact_lists,omitempty"`
}

// RefreshToken stores issued refresh tokens so they can be revoked.
type RefreshToken struct {
	gorm.Model
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Token     string    `gorm:"not null;uniqueIndex" json:"-"`
	SessionID string    `gorm:"index" json:"session_id"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at"`
}

// Valid reports whether the refresh token may still be exchanged.
func (rt *RefreshToken) Valid() bool {
	return rt.RevokedAt == nil && time.Now().Before(rt.ExpiresAt)
}
