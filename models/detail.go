package models

import (
	"time"

	"gorm.io/gorm"
)

// Detail statuses. A row is created pending and reaches exactly one
// terminal state; it is never reopened. The only bulk mutation allowed is
// the administrative flip to cancelado during cancel/force-delete.
const (
	DetailStatusPending  = "pendente"
	DetailStatusSent     = "enviado"
	DetailStatusFailed   = "falhou"
	DetailStatusCanceled = "cancelado"
)

// Recipient types on a detail row
const (
	RecipientContact = "contact"
	RecipientGroup   = "group"
)

// CampaignDetail is the per-recipient audit ledger: one row per recipient
// per campaign, attributable to exactly one connection.
type CampaignDetail struct {
	gorm.Model
	CampaignID   uint `gorm:"not null;index" json:"campaign_id"`
	ConnectionID uint `gorm:"not null;index" json:"connection_id"`

	RecipientID   string `gorm:"not null" json:"recipient_id"` // phone or group JID
	RecipientName string `json:"recipient_name"`
	RecipientType string `gorm:"not null;default:'contact'" json:"recipient_type"`

	Status          string     `gorm:"not null;default:'pendente';index" json:"status"`
	HTTPStatus      int        `json:"http_status"`
	GatewayResponse string     `gorm:"type:text" json:"gateway_response"`
	ErrorText       string     `gorm:"type:text" json:"error_text"`
	SentAt          *time.Time `json:"sent_at"`

	// Relations
	Campaign   Campaign   `json:"-"`
	Connection Connection `json:"-"`
}

// IsDetailTerminal reports whether a ledger row has reached its final
// per-message state.
func IsDetailTerminal(status string) bool {
	switch status {
	case DetailStatusSent, DetailStatusFailed, DetailStatusCanceled:
		return true
	}
	return false
}
