package models

import (
	"time"

	"gorm.io/gorm"
)

// Gateway connection states as reported by the messaging gateway.
const (
	ConnectionOpen  = "open"
	ConnectionClose = "close"
)

// Connection represents one bound messaging channel (one WhatsApp number)
// provisioned as a gateway instance. Its live status is polled from the
// gateway independently of any campaign.
type Connection struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Name         string `gorm:"not null" json:"name"`
	InstanceName string `gorm:"not null;uniqueIndex" json:"instance_name"`
	PhoneNumber  string `json:"phone_number"`

	// Per-instance gateway token, encrypted in the application layer
	APIToken string `json:"-"`

	Status        string     `gorm:"default:'close'" json:"status"` // open, close
	Blocked       bool       `gorm:"default:false" json:"blocked"`
	LastError     *string    `json:"last_error"`
	LastCheckedAt *time.Time `json:"last_checked_at"`

	// Usage metrics
	DailyLimit int `gorm:"default:500" json:"daily_limit"`
	SentToday  int `gorm:"default:0" json:"sent_today"`
	TotalSent  int `gorm:"default:0" json:"total_sent"`

	// Relations
	Campaigns []CampaignConnection `gorm:"foreignKey:ConnectionID" json:"campaigns,omitempty"`
}

// Usable reports whether the connection can carry sends right now.
func (c *Connection) Usable() bool {
	return c.Status == ConnectionOpen && !c.Blocked
}

// HasCapacity reports whether the daily limit still allows sends.
// A zero limit means unlimited.
func (c *Connection) HasCapacity() bool {
	return c.DailyLimit == 0 || c.SentToday < c.DailyLimit
}

// Sanitize clears the gateway token before the record is returned to a
// client.
func (c *Connection) Sanitize() {
	c.APIToken = ""
}
