package models

import (
	"time"

	"gorm.io/gorm"
)

// CRMColumn is one stage of the kanban pipeline.
type CRMColumn struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Name     string `gorm:"not null" json:"name"`
	Position int    `gorm:"default:0" json:"position"`
}

// CRMLead is a contact that replied through a CRM-enabled connection.
// Leads are deduplicated by (user, phone): the inbound webhook delivers
// at least once, so repeat events update the existing row.
type CRMLead struct {
	gorm.Model
	UserID       uint  `gorm:"not null;index:idx_crm_leads_user_phone,unique" json:"user_id"`
	ColumnID     uint  `gorm:"not null;index" json:"column_id"`
	ConnectionID *uint `json:"connection_id,omitempty"`

	Name  string `json:"name"`
	Phone string `gorm:"not null;index:idx_crm_leads_user_phone,unique" json:"phone"`
	Email string `json:"email"`

	LastMessage   string     `gorm:"type:text" json:"last_message"`
	LastContactAt *time.Time `json:"last_contact_at"`

	Notes string `gorm:"type:text" json:"notes"`

	// Relations
	Column     CRMColumn   `json:"-"`
	Connection *Connection `json:"connection,omitempty"`
}

// DefaultCRMColumns seeds the initial pipeline for a new user.
func DefaultCRMColumns(db *gorm.DB, userID uint) error {
	names := []string{"Novo", "Em conversa", "Negociando", "Fechado"}
	for i, name := range names {
		col := CRMColumn{UserID: userID, Name: name, Position: i}
		if err := db.FirstOrCreate(&col, CRMColumn{UserID: userID, Name: name}).Error; err != nil {
			return err
		}
	}
	return nil
}
