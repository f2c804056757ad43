package controller

import (
	"github.com/gofiber/fiber/v2"

	"zapflow/models"
	"zapflow/utils"
)

type SwapConnectionInput struct {
	BlockedConnectionID uint  `json:"blocked_connection_id" validate:"required"`
	NewConnectionID     *uint `json:"new_connection_id"`
}

// SwapConnection replaces a blocked connection bound to a campaign with
// an eligible one, preserving progress. The whole exchange happens in one
// transaction so concurrent workers never observe a campaign with zero
// usable connections mid-swap.
func (cc *CampaignController) SwapConnection(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	campaignID := c.Params("id")

	var input SwapConnectionInput
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

	tx := cc.DB.Begin()

	campaign, err := cc.findOwnedCampaign(tx, campaignID, user.ID)
	if err != nil {
		tx.Rollback()
		return campaignNotFound(c)
	}

	if models.IsTerminal(campaign.Status) {
		tx.Rollback()
		return stateConflict(c, "Terminal campaigns cannot swap connections", campaign.Status)
	}

	// The outgoing connection must actually be bound to this campaign
	var binding models.CampaignConnection
	if err := tx.Where("campaign_id = ? AND connection_id = ?", campaign.ID, input.BlockedConnectionID).
		First(&binding).Error; err != nil {
		tx.Rollback()
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Connection is not bound to this campaign",
		})
	}

	var replacement models.Connection
	if input.NewConnectionID != nil {
		if err := tx.Where("id = ? AND user_id = ?", *input.NewConnectionID, user.ID).
			First(&replacement).Error; err != nil {
			tx.Rollback()
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Replacement connection not found",
			})
		}
		if !replacement.Usable() {
			tx.Rollback()
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Replacement connection is not usable",
			})
		}
	} else {
		// Auto-pick: any open, unblocked connection of the owner that is
		// not already bound to the campaign
		err := tx.Where(
			"user_id = ? AND status = ? AND blocked = ? AND id NOT IN (?)",
			user.ID, models.ConnectionOpen, false,
			tx.Model(&models.CampaignConnection{}).Select("connection_id").Where("campaign_id = ?", campaign.ID),
		).First(&replacement).Error
		if err != nil {
			tx.Rollback()
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "No eligible replacement connection available",
				"code":  "no_replacement",
			})
		}
	}

	if replacement.ID == input.BlockedConnectionID {
		tx.Rollback()
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Replacement must differ from the blocked connection",
		})
	}

	if err := tx.Unscoped().Delete(&binding).Error; err != nil {
		tx.Rollback()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to unbind blocked connection",
		})
	}

	newBinding := models.CampaignConnection{
		CampaignID:   campaign.ID,
		ConnectionID: replacement.ID,
	}
	if err := tx.FirstOrCreate(&newBinding, newBinding).Error; err != nil {
		tx.Rollback()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to bind replacement connection",
		})
	}

	// The UI only swaps channels the gateway reported as banned; record
	// that on the outgoing connection
	if err := tx.Model(&models.Connection{}).
		Where("id = ? AND user_id = ?", input.BlockedConnectionID, user.ID).
		Update("blocked", true).Error; err != nil {
		tx.Rollback()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to flag blocked connection",
		})
	}

	if err := tx.Commit().Error; err != nil {
		cc.Logger.Printf("Transaction commit failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to swap connection",
		})
	}

	return c.JSON(fiber.Map{
		"message":           "Connection swapped",
		"new_connection_id": replacement.ID,
		"sent_messages":     campaign.SentMessages,
		"total_messages":    campaign.TotalMessages,
	})
}
