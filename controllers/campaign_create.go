package controller

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"zapflow/models"
	"zapflow/utils"
)

type CreateCampaignInput struct {
	Name           string                   `json:"name" validate:"required,max=120"`
	Type           string                   `json:"type" validate:"required,oneof=individual grupo"`
	Messages       []models.CampaignMessage `json:"messages" validate:"required,min=1"`
	ContactListIDs []uint                   `json:"contact_list_ids" validate:"required,min=1"`
	ConnectionIDs  []uint                   `json:"connection_ids" validate:"required,min=1"`

	ScheduledAt *time.Time `json:"scheduled_at"`
	Weekdays    []int      `json:"weekdays"`
	StartTime   string     `json:"start_time"`
	EndTime     string     `json:"end_time"`

	IntervalMinSec     int `json:"interval_min_sec" validate:"gt=0"`
	IntervalMaxSec     int `json:"interval_max_sec" validate:"gt=0"`
	PauseAfterMessages int `json:"pause_after_messages"`
	PauseMinutes       int `json:"pause_minutes"`
}

// CreateCampaign creates a campaign in aguardando (immediate) or agendado
// (future ScheduledAt) and binds its contact lists and connections.
func (cc *CampaignController) CreateCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input CreateCampaignInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	campaign := models.Campaign{
		UserID:             user.ID,
		Name:               input.Name,
		Type:               input.Type,
		Messages:           input.Messages,
		ScheduledAt:        input.ScheduledAt,
		Weekdays:           input.Weekdays,
		StartTime:          input.StartTime,
		EndTime:            input.EndTime,
		IntervalMinSec:     input.IntervalMinSec,
		IntervalMaxSec:     input.IntervalMaxSec,
		PauseAfterMessages: input.PauseAfterMessages,
		PauseMinutes:       input.PauseMinutes,
		Status:             models.StatusWaiting,
	}
	if input.ScheduledAt != nil && input.ScheduledAt.After(time.Now()) {
		campaign.Status = models.StatusScheduled
	}

	if err := campaign.ValidateConfig(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	// Targets must belong to the caller before anything is written
	var listCount int64
	if err := cc.DB.Model(&models.ContactList{}).
		Where("id IN ? AND user_id = ?", input.ContactListIDs, user.ID).
		Count(&listCount).Error; err != nil || listCount != int64(len(input.ContactListIDs)) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "One or more contact lists were not found",
		})
	}

	var connCount int64
	if err := cc.DB.Model(&models.Connection{}).
		Where("id IN ? AND user_id = ?", input.ConnectionIDs, user.ID).
		Count(&connCount).Error; err != nil || connCount != int64(len(input.ConnectionIDs)) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "One or more connections were not found",
		})
	}

	tx := cc.DB.Begin()

	if err := tx.Create(&campaign).Error; err != nil {
		tx.Rollback()
		cc.Logger.Printf("Failed to create campaign: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create campaign",
		})
	}

	for _, listID := range input.ContactListIDs {
		if err := tx.Create(&models.CampaignContactList{
			CampaignID:    campaign.ID,
			ContactListID: listID,
		}).Error; err != nil {
			tx.Rollback()
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to associate contact list with campaign",
			})
		}
	}

	// Idempotent many-to-many binding: re-binding an already bound
	// connection is a no-op
	for _, connID := range input.ConnectionIDs {
		join := models.CampaignConnection{
			CampaignID:   campaign.ID,
			ConnectionID: connID,
		}
		if err := tx.FirstOrCreate(&join, join).Error; err != nil {
			tx.Rollback()
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to bind connection to campaign",
			})
		}
	}

	if err := tx.Commit().Error; err != nil {
		cc.Logger.Printf("Transaction commit failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create campaign",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  "Campaign created successfully",
		"campaign": campaign,
	})
}
