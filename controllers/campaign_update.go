package controller

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"zapflow/models"
)

// UpdateCampaignConfig rewrites schedule and pacing fields. Partial
// updates via pointers; progress counters are never touched and terminal
// campaigns are immutable.
func (cc *CampaignController) UpdateCampaignConfig(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	campaignID := c.Params("id")

	var input struct {
		Name               *string                   `json:"name"`
		Messages           *[]models.CampaignMessage `json:"messages"`
		ScheduledAt        *time.Time                `json:"scheduled_at"`
		Weekdays           *[]int                    `json:"weekdays"`
		StartTime          *string                   `json:"start_time"`
		EndTime            *string                   `json:"end_time"`
		IntervalMinSec     *int                      `json:"interval_min_sec"`
		IntervalMaxSec     *int                      `json:"interval_max_sec"`
		PauseAfterMessages *int                      `json:"pause_after_messages"`
		PauseMinutes       *int                      `json:"pause_minutes"`
	}

	if err := c.BodyParser(&input); err != nil {
		cc.Logger.Printf("Error parsing request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	tx := cc.DB.Begin()

	campaign, err := cc.findOwnedCampaign(tx, campaignID, user.ID)
	if err != nil {
		tx.Rollback()
		return campaignNotFound(c)
	}

	if models.IsTerminal(campaign.Status) {
		tx.Rollback()
		return stateConflict(c, "Terminal campaigns cannot be edited", campaign.Status)
	}

	if input.Name != nil {
		campaign.Name = *input.Name
	}
	if input.Messages != nil {
		campaign.Messages = *input.Messages
	}
	if input.ScheduledAt != nil {
		campaign.ScheduledAt = input.ScheduledAt
	}
	if input.Weekdays != nil {
		campaign.Weekdays = *input.Weekdays
	}
	if input.StartTime != nil {
		campaign.StartTime = *input.StartTime
	}
	if input.EndTime != nil {
		campaign.EndTime = *input.EndTime
	}
	if input.IntervalMinSec != nil {
		campaign.IntervalMinSec = *input.IntervalMinSec
	}
	if input.IntervalMaxSec != nil {
		campaign.IntervalMaxSec = *input.IntervalMaxSec
	}
	if input.PauseAfterMessages != nil {
		campaign.PauseAfterMessages = *input.PauseAfterMessages
	}
	if input.PauseMinutes != nil {
		campaign.PauseMinutes = *input.PauseMinutes
	}

	if err := campaign.ValidateConfig(); err != nil {
		tx.Rollback()
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	// Only the config columns are written; the worker owns the progress
	// counters and may be updating them concurrently
	if err := tx.Model(&models.Campaign{}).Where("id = ?", campaign.ID).
		Select("name", "messages", "scheduled_at", "weekdays", "start_time", "end_time",
			"interval_min_sec", "interval_max_sec", "pause_after_messages", "pause_minutes").
		Updates(campaign).Error; err != nil {
		tx.Rollback()
		cc.Logger.Printf("Failed to update campaign %d: %v", campaign.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update campaign",
		})
	}

	if err := tx.Commit().Error; err != nil {
		cc.Logger.Printf("Transaction commit failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to complete update",
		})
	}

	return c.JSON(fiber.Map{
		"message":  "Campaign updated successfully",
		"campaign": campaign,
	})
}
