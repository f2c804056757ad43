package controller

import (
	"log"
	"time"

	"github.com/gofiber/websocket/v2"
	"gorm.io/gorm"

	"zapflow/models"
)

type progressFrame struct {
	Status  string `json:"status"`
	Sent    int    `json:"sent"`
	Total   int    `json:"total"`
	Percent int    `json:"percent"`
}

// campaignProgress snapshots a campaign's progress, scoped to its owner.
func campaignProgress(db *gorm.DB, campaignID, userID uint) (*progressFrame, error) {
	var campaign models.Campaign
	if err := db.Where("id = ? AND user_id = ?", campaignID, userID).
		First(&campaign).Error; err != nil {
		return nil, err
	}
	return &progressFrame{
		Status:  models.NormalizeStatus(campaign.Status),
		Sent:    campaign.SentMessages,
		Total:   campaign.TotalMessages,
		Percent: campaign.Progress(),
	}, nil
}

// HandleCampaignProgressWS streams a campaign's progress to the client
// until the campaign reaches a terminal state or the socket closes. The
// route sits behind the JWT middleware; the owner comes from the
// authenticated context, never from the client. The client sends one
// subscribe frame naming the campaign and then just reads.
func HandleCampaignProgressWS(db *gorm.DB) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		userID, ok := c.Locals("userID").(uint)
		if !ok {
			_ = c.WriteJSON(map[string]string{"error": "unauthorized"})
			return
		}

		var input struct {
			CampaignID uint `json:"campaign_id"`
		}
		if err := c.ReadJSON(&input); err != nil {
			log.Printf("Error reading subscribe frame: %v", err)
			return
		}

		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		for range ticker.C {
			frame, err := campaignProgress(db, input.CampaignID, userID)
			if err != nil {
				_ = c.WriteJSON(map[string]string{"error": "campaign not found"})
				return
			}

			if err := c.WriteJSON(frame); err != nil {
				return
			}

			if models.IsTerminal(frame.Status) {
				return
			}
		}
	}
}
