package models

import (
	"gorm.io/gorm"
)

// ContactList represents a named collection of contacts or groups used as
// a campaign's recipient source.
type ContactList struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	Source      string `json:"source"` // manual, csv, extraction

	// Statistics
	ContactCount int `gorm:"default:0" json:"contact_count"`

	// Relations
	Contacts []Contact `gorm:"foreignKey:ContactListID" json:"contacts,omitempty"`
}

// Contact is a single recipient: a phone number for individual campaigns
// or a group JID for group campaigns.
type Contact struct {
	gorm.Model
	ContactListID uint `gorm:"not null;index" json:"contact_list_id"`
	UserID        uint `gorm:"index" json:"user_id"`

	Name     string `json:"name"`
	Phone    string `gorm:"index" json:"phone"`
	GroupJID string `json:"group_jid"`
	Email    string `json:"email"`

	IsGroup        bool `gorm:"default:false" json:"is_group"`
	IsDoNotContact bool `gorm:"default:false" json:"is_do_not_contact"`

	// Relations
	ContactList ContactList `json:"-"`
}

// RecipientID returns the identifier the gateway needs for this contact.
func (c *Contact) RecipientID() string {
	if c.IsGroup {
		return c.GroupJID
	}
	return c.Phone
}
