package controller

import (
	"github.com/gofiber/fiber/v2"

	"zapflow/models"
)

// DeleteCampaign deletes a campaign, refusing when pending ledger rows
// exist. The conflict body carries a code so the client can offer the
// force path.
func (cc *CampaignController) DeleteCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	campaignID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid campaign ID",
		})
	}

	campaign, err := cc.findOwnedCampaign(cc.DB, campaignID, user.ID)
	if err != nil {
		return campaignNotFound(c)
	}

	var pending int64
	if err := cc.DB.Model(&models.CampaignDetail{}).
		Where("campaign_id = ? AND status = ?", campaign.ID, models.DetailStatusPending).
		Count(&pending).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to inspect campaign dispatches",
		})
	}

	if pending > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":   "Campaign has pending dispatches",
			"code":    "pending_dispatches",
			"pending": pending,
		})
	}

	if err := cc.removeCampaign(campaign, false); err != nil {
		cc.Logger.Printf("Failed to delete campaign %d: %v", campaign.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete campaign",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Campaign deleted successfully",
	})
}

// ForceDeleteCampaign cancels all pending ledger rows transactionally,
// then removes the campaign and, if requested, connections bound only to
// this campaign.
func (cc *CampaignController) ForceDeleteCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	campaignID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid campaign ID",
		})
	}

	deleteConnections := c.QueryBool("delete_connections", false)

	campaign, err := cc.findOwnedCampaign(cc.DB, campaignID, user.ID)
	if err != nil {
		return campaignNotFound(c)
	}

	tx := cc.DB.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	// Pending rows are flipped to their terminal administrative state
	// before anything is removed
	res := tx.Model(&models.CampaignDetail{}).
		Where("campaign_id = ? AND status = ?", campaign.ID, models.DetailStatusPending).
		Update("status", models.DetailStatusCanceled)
	if res.Error != nil {
		tx.Rollback()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to cancel pending dispatches",
		})
	}
	canceled := res.RowsAffected

	var boundConnectionIDs []uint
	if deleteConnections {
		if err := tx.Model(&models.CampaignConnection{}).
			Where("campaign_id = ?", campaign.ID).
			Pluck("connection_id", &boundConnectionIDs).Error; err != nil {
			tx.Rollback()
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to resolve bound connections",
			})
		}
	}

	// Delete in proper order to respect foreign keys
	tables := []interface{}{
		&models.CampaignDetail{},
		&models.CampaignContactList{},
		&models.CampaignConnection{},
	}
	for _, table := range tables {
		if err := tx.Unscoped().Where("campaign_id = ?", campaign.ID).Delete(table).Error; err != nil {
			tx.Rollback()
			cc.Logger.Printf("Failed to delete related records: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to delete campaign dependencies",
			})
		}
	}

	if err := tx.Unscoped().Delete(campaign).Error; err != nil {
		tx.Rollback()
		cc.Logger.Printf("Failed to delete campaign: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete campaign",
		})
	}

	// Cascade onto connections that no other campaign still references
	removedConnections := 0
	for _, connID := range boundConnectionIDs {
		var still int64
		if err := tx.Model(&models.CampaignConnection{}).
			Where("connection_id = ?", connID).
			Count(&still).Error; err != nil {
			tx.Rollback()
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to resolve connection references",
			})
		}
		if still == 0 {
			if err := tx.Unscoped().
				Where("id = ? AND user_id = ?", connID, user.ID).
				Delete(&models.Connection{}).Error; err != nil {
				tx.Rollback()
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "Failed to delete bound connection",
				})
			}
			removedConnections++
		}
	}

	if err := tx.Commit().Error; err != nil {
		cc.Logger.Printf("Transaction commit failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to complete deletion",
		})
	}

	return c.JSON(fiber.Map{
		"message":             "Campaign force-deleted",
		"canceled_count":      canceled,
		"removed_connections": removedConnections,
	})
}

// removeCampaign deletes a campaign and its joins/ledger in one
// transaction. Used by the normal delete path once the pending guard has
// passed.
func (cc *CampaignController) removeCampaign(campaign *models.Campaign, keepDetails bool) error {
	tx := cc.DB.Begin()

	tables := []interface{}{
		&models.CampaignContactList{},
		&models.CampaignConnection{},
	}
	if !keepDetails {
		tables = append([]interface{}{&models.CampaignDetail{}}, tables...)
	}
	for _, table := range tables {
		if err := tx.Unscoped().Where("campaign_id = ?", campaign.ID).Delete(table).Error; err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := tx.Unscoped().Delete(campaign).Error; err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
