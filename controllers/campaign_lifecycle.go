package controller

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"zapflow/models"
	"zapflow/utils"
)

// stateConflict reports a lifecycle mutation attempted from the wrong
// state: a no-op with an explanation, never a crash.
func stateConflict(c *fiber.Ctx, message, current string) error {
	return c.Status(fiber.StatusConflict).JSON(fiber.Map{
		"error":  message,
		"status": models.NormalizeStatus(current),
	})
}

// PauseCampaign signals the worker to stop consuming new recipients after
// the current in-flight send. Legal only from em andamento.
func (cc *CampaignController) PauseCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	campaignID := c.Params("id")

	campaign, err := cc.findOwnedCampaign(cc.DB, campaignID, user.ID)
	if err != nil {
		return campaignNotFound(c)
	}

	if models.NormalizeStatus(campaign.Status) != models.StatusRunning {
		return stateConflict(c, "Campaign is not running", campaign.Status)
	}

	if err := campaign.Transition(models.StatusPaused); err != nil {
		return stateConflict(c, err.Error(), campaign.Status)
	}
	// Column-scoped write: the worker owns sent_messages and may be
	// incrementing it concurrently
	if err := cc.DB.Model(&models.Campaign{}).Where("id = ?", campaign.ID).
		Update("status", campaign.Status).Error; err != nil {
		cc.Logger.Printf("Failed to pause campaign %d: %v", campaign.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to pause campaign",
		})
	}

	// The worker consumes the pause at its next safe point; partially
	// sent messages are never rolled back
	return c.JSON(fiber.Map{
		"message": "Campaign paused",
		"status":  campaign.Status,
	})
}

// ResumeCampaign re-arms the worker to continue from SentMessages. Legal
// only from pausado; never restarts from zero.
func (cc *CampaignController) ResumeCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	campaignID := c.Params("id")

	campaign, err := cc.findOwnedCampaign(cc.DB, campaignID, user.ID)
	if err != nil {
		return campaignNotFound(c)
	}

	if models.NormalizeStatus(campaign.Status) != models.StatusPaused {
		return stateConflict(c, "Campaign is not paused", campaign.Status)
	}

	if err := campaign.Transition(models.StatusRunning); err != nil {
		return stateConflict(c, err.Error(), campaign.Status)
	}
	campaign.LastError = nil
	if err := cc.DB.Model(&models.Campaign{}).Where("id = ?", campaign.ID).
		Updates(map[string]interface{}{
			"status":     campaign.Status,
			"last_error": nil,
		}).Error; err != nil {
		cc.Logger.Printf("Failed to resume campaign %d: %v", campaign.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to resume campaign",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Campaign resumed",
		"status":  campaign.Status,
		"sent":    campaign.SentMessages,
	})
}

// CancelCampaign moves any non-terminal campaign to cancelado and flips
// its pending ledger rows in the same transaction.
func (cc *CampaignController) CancelCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	campaignID := c.Params("id")

	campaign, err := cc.findOwnedCampaign(cc.DB, campaignID, user.ID)
	if err != nil {
		return campaignNotFound(c)
	}

	if models.IsTerminal(campaign.Status) {
		return stateConflict(c, "Campaign already reached a terminal state", campaign.Status)
	}

	tx := cc.DB.Begin()

	var canceled int64
	res := tx.Model(&models.CampaignDetail{}).
		Where("campaign_id = ? AND status = ?", campaign.ID, models.DetailStatusPending).
		Update("status", models.DetailStatusCanceled)
	if res.Error != nil {
		tx.Rollback()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to cancel pending dispatches",
		})
	}
	canceled = res.RowsAffected

	if err := campaign.Transition(models.StatusCanceled); err != nil {
		tx.Rollback()
		return stateConflict(c, err.Error(), campaign.Status)
	}
	campaign.CompletedAt = utils.Pointer(time.Now())
	if err := tx.Model(&models.Campaign{}).Where("id = ?", campaign.ID).
		Updates(map[string]interface{}{
			"status":       campaign.Status,
			"completed_at": campaign.CompletedAt,
		}).Error; err != nil {
		tx.Rollback()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to cancel campaign",
		})
	}

	if err := tx.Commit().Error; err != nil {
		cc.Logger.Printf("Transaction commit failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to cancel campaign",
		})
	}

	return c.JSON(fiber.Map{
		"message":        "Campaign canceled",
		"canceled_count": canceled,
	})
}
