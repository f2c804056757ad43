package controller

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"zapflow/models"
)

type DashboardController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewDashboardController(db *gorm.DB, logger *log.Logger) *DashboardController {
	return &DashboardController{DB: db, Logger: logger}
}

// GetDashboardStats aggregates the owner's campaign, connection and CRM
// numbers for the landing view.
func (dc *DashboardController) GetDashboardStats(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var campaigns []models.Campaign
	if err := dc.DB.Where("user_id = ?", user.ID).Find(&campaigns).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch campaigns",
		})
	}

	byStatus := map[string]int{}
	totalSent := 0
	for _, campaign := range campaigns {
		byStatus[models.NormalizeStatus(campaign.Status)]++
		totalSent += campaign.SentMessages
	}

	var openConnections int64
	dc.DB.Model(&models.Connection{}).
		Where("user_id = ? AND status = ? AND blocked = ?", user.ID, models.ConnectionOpen, false).
		Count(&openConnections)

	var leadCount int64
	dc.DB.Model(&models.CRMLead{}).Where("user_id = ?", user.ID).Count(&leadCount)

	since := time.Now().Truncate(24 * time.Hour)
	var sentToday int64
	dc.DB.Model(&models.CampaignDetail{}).
		Joins("JOIN campaigns ON campaigns.id = campaign_details.campaign_id").
		Where("campaigns.user_id = ? AND campaign_details.status = ? AND campaign_details.sent_at >= ?",
			user.ID, models.DetailStatusSent, since).
		Count(&sentToday)

	return c.JSON(fiber.Map{
		"campaigns":        len(campaigns),
		"by_status":        byStatus,
		"messages_sent":    totalSent,
		"sent_today":       sentToday,
		"open_connections": openConnections,
		"leads":            leadCount,
	})
}

// GetRecentCampaigns returns the five most recently touched campaigns
func (dc *DashboardController) GetRecentCampaigns(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var campaigns []models.Campaign
	if err := dc.DB.Where("user_id = ?", user.ID).
		Order("updated_at DESC").
		Limit(5).
		Find(&campaigns).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch recent campaigns",
		})
	}

	type row struct {
		models.Campaign
		Progress int `json:"progress"`
	}
	out := make([]row, 0, len(campaigns))
	for _, campaign := range campaigns {
		out = append(out, row{Campaign: campaign, Progress: campaign.Progress()})
	}
	return c.JSON(out)
}
