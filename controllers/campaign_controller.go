package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"zapflow/models"
)

type CampaignController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewCampaignController(db *gorm.DB, logger *log.Logger) *CampaignController {
	return &CampaignController{
		DB:     db,
		Logger: logger,
	}
}

// findOwnedCampaign loads a campaign scoped to its owner. Every lifecycle
// mutation goes through this check before touching anything.
func (cc *CampaignController) findOwnedCampaign(tx *gorm.DB, campaignID interface{}, userID uint) (*models.Campaign, error) {
	var campaign models.Campaign
	if err := tx.Where("id = ? AND user_id = ?", campaignID, userID).First(&campaign).Error; err != nil {
		return nil, err
	}
	return &campaign, nil
}

func campaignNotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": "Campaign not found",
	})
}
