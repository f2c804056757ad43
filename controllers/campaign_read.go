package controller

import (
	"github.com/gofiber/fiber/v2"

	"zapflow/models"
)

// GetCampaigns returns a list of all campaigns for the user
func (cc *CampaignController) GetCampaigns(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var campaigns []models.Campaign
	if err := cc.DB.Where("user_id = ?", user.ID).Order("id DESC").Find(&campaigns).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch campaigns",
		})
	}

	return c.JSON(campaigns)
}

// GetCampaign returns a single campaign with its bindings and progress
func (cc *CampaignController) GetCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	campaignID := c.Params("id")

	campaign, err := cc.findOwnedCampaign(cc.DB.Preload("ContactLists").Preload("Connections"), campaignID, user.ID)
	if err != nil {
		return campaignNotFound(c)
	}

	return c.JSON(fiber.Map{
		"campaign": campaign,
		"progress": campaign.Progress(),
		"status":   models.NormalizeStatus(campaign.Status),
	})
}

// GetCampaignDetails returns the per-recipient ledger rows of a campaign
func (cc *CampaignController) GetCampaignDetails(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	campaignID := c.Params("id")

	campaign, err := cc.findOwnedCampaign(cc.DB, campaignID, user.ID)
	if err != nil {
		return campaignNotFound(c)
	}

	var details []models.CampaignDetail
	if err := cc.DB.Where("campaign_id = ?", campaign.ID).Order("id").Find(&details).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch campaign details",
		})
	}

	return c.JSON(details)
}

// GetCampaignStats returns counters for a campaign grouped by ledger status
func (cc *CampaignController) GetCampaignStats(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	campaignID := c.Params("id")

	campaign, err := cc.findOwnedCampaign(cc.DB, campaignID, user.ID)
	if err != nil {
		return campaignNotFound(c)
	}

	type statusCount struct {
		Status string
		Count  int64
	}
	var rows []statusCount
	if err := cc.DB.Model(&models.CampaignDetail{}).
		Select("status, count(*) as count").
		Where("campaign_id = ?", campaign.ID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch campaign stats",
		})
	}

	byStatus := fiber.Map{}
	for _, r := range rows {
		byStatus[r.Status] = r.Count
	}

	return c.JSON(fiber.Map{
		"total_messages": campaign.TotalMessages,
		"sent_messages":  campaign.SentMessages,
		"progress":       campaign.Progress(),
		"by_status":      byStatus,
	})
}
