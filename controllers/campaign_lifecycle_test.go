package controller

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"zapflow/models"
)

func seedCampaign(t *testing.T, db *gorm.DB, userID uint, status string) *models.Campaign {
	t.Helper()
	campaign := models.Campaign{
		UserID:         userID,
		Name:           "promo",
		Type:           models.CampaignTypeIndividual,
		Status:         status,
		Messages:       []models.CampaignMessage{{Kind: "text", Text: "oi"}},
		IntervalMinSec: 30,
		IntervalMaxSec: 60,
		TotalMessages:  10,
		SentMessages:   4,
	}
	require.NoError(t, db.Create(&campaign).Error)
	return &campaign
}

func lifecycleApp(t *testing.T) (*fiber.App, *gorm.DB, *models.User) {
	t.Helper()
	db := newTestDB(t)
	user := seedUser(t, db)
	app := newTestApp(user)
	cc := NewCampaignController(db, testLogger())
	app.Post("/campaigns/:id/pause", cc.PauseCampaign)
	app.Post("/campaigns/:id/resume", cc.ResumeCampaign)
	app.Post("/campaigns/:id/cancel", cc.CancelCampaign)
	return app, db, user
}

func TestPauseResumeRoundTrip(t *testing.T) {
	app, db, user := lifecycleApp(t)
	campaign := seedCampaign(t, db, user.ID, models.StatusRunning)

	resp, body := doJSON(t, app, http.MethodPost, fmt.Sprintf("/campaigns/%d/pause", campaign.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.StatusPaused, body["status"])

	var stored models.Campaign
	require.NoError(t, db.First(&stored, campaign.ID).Error)
	assert.Equal(t, models.StatusPaused, models.NormalizeStatus(stored.Status))
	assert.Equal(t, 4, stored.SentMessages, "progress survives the pause")

	resp, body = doJSON(t, app, http.MethodPost, fmt.Sprintf("/campaigns/%d/resume", campaign.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.StatusRunning, body["status"])
	assert.EqualValues(t, 4, body["sent"], "resume continues from where it stopped")
}

func TestPauseRejectsWrongState(t *testing.T) {
	app, db, user := lifecycleApp(t)

	for _, status := range []string{models.StatusWaiting, models.StatusPaused, models.StatusFinished, models.StatusCanceled} {
		campaign := seedCampaign(t, db, user.ID, status)
		resp, body := doJSON(t, app, http.MethodPost, fmt.Sprintf("/campaigns/%d/pause", campaign.ID), nil)
		assert.Equal(t, http.StatusConflict, resp.StatusCode, "status %s", status)
		assert.Equal(t, models.NormalizeStatus(status), body["status"])

		var stored models.Campaign
		require.NoError(t, db.First(&stored, campaign.ID).Error)
		assert.Equal(t, models.NormalizeStatus(status), models.NormalizeStatus(stored.Status), "state unchanged")
	}
}

func TestResumeRejectsWrongState(t *testing.T) {
	app, db, user := lifecycleApp(t)
	campaign := seedCampaign(t, db, user.ID, models.StatusFinished)

	resp, _ := doJSON(t, app, http.MethodPost, fmt.Sprintf("/campaigns/%d/resume", campaign.ID), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCancelFlipsPendingDetails(t *testing.T) {
	app, db, user := lifecycleApp(t)
	campaign := seedCampaign(t, db, user.ID, models.StatusRunning)

	details := []models.CampaignDetail{
		{CampaignID: campaign.ID, RecipientID: "1", Status: models.DetailStatusSent},
		{CampaignID: campaign.ID, RecipientID: "2", Status: models.DetailStatusPending},
		{CampaignID: campaign.ID, RecipientID: "3", Status: models.DetailStatusPending},
		{CampaignID: campaign.ID, RecipientID: "4", Status: models.DetailStatusFailed},
	}
	require.NoError(t, db.Create(&details).Error)

	resp, body := doJSON(t, app, http.MethodPost, fmt.Sprintf("/campaigns/%d/cancel", campaign.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, body["canceled_count"])

	var stored models.Campaign
	require.NoError(t, db.First(&stored, campaign.ID).Error)
	assert.Equal(t, models.StatusCanceled, models.NormalizeStatus(stored.Status))
	require.NotNil(t, stored.CompletedAt)

	// Terminal rows are untouched; only pending ones flip
	var counts []struct {
		Status string
		N      int64
	}
	require.NoError(t, db.Model(&models.CampaignDetail{}).
		Select("status, count(*) as n").Where("campaign_id = ?", campaign.ID).
		Group("status").Find(&counts).Error)
	got := map[string]int64{}
	for _, c := range counts {
		got[c.Status] = c.N
	}
	assert.EqualValues(t, 1, got[models.DetailStatusSent])
	assert.EqualValues(t, 1, got[models.DetailStatusFailed])
	assert.EqualValues(t, 2, got[models.DetailStatusCanceled])
	assert.Zero(t, got[models.DetailStatusPending])
}

func TestCancelRejectsTerminal(t *testing.T) {
	app, db, user := lifecycleApp(t)
	campaign := seedCampaign(t, db, user.ID, models.StatusCanceled)

	resp, _ := doJSON(t, app, http.MethodPost, fmt.Sprintf("/campaigns/%d/cancel", campaign.ID), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

// hookConcurrentDispatch injects one worker-style counter increment right
// before the next UPDATE on campaigns executes, landing it between a
// handler's read and its write.
func hookConcurrentDispatch(t *testing.T, db *gorm.DB, campaignID uint) {
	t.Helper()
	fired := false
	require.NoError(t, db.Callback().Update().Before("gorm:update").
		Register("concurrent_dispatch", func(tx *gorm.DB) {
			if fired || tx.Statement.Table != "campaigns" {
				return
			}
			fired = true
			if err := tx.Session(&gorm.Session{NewDB: true}).
				Exec("UPDATE campaigns SET sent_messages = sent_messages + 1 WHERE id = ?", campaignID).
				Error; err != nil {
				t.Errorf("concurrent increment failed: %v", err)
			}
		}))
	t.Cleanup(func() {
		require.NoError(t, db.Callback().Update().Remove("concurrent_dispatch"))
	})
}

func TestPauseKeepsConcurrentDispatchCount(t *testing.T) {
	app, db, user := lifecycleApp(t)
	campaign := seedCampaign(t, db, user.ID, models.StatusRunning)
	hookConcurrentDispatch(t, db, campaign.ID)

	resp, _ := doJSON(t, app, http.MethodPost, fmt.Sprintf("/campaigns/%d/pause", campaign.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stored models.Campaign
	require.NoError(t, db.First(&stored, campaign.ID).Error)
	assert.Equal(t, models.StatusPaused, models.NormalizeStatus(stored.Status))
	assert.Equal(t, 5, stored.SentMessages, "a dispatch landing mid-pause is never reverted")
}

func TestResumeKeepsConcurrentDispatchCount(t *testing.T) {
	app, db, user := lifecycleApp(t)
	campaign := seedCampaign(t, db, user.ID, models.StatusPaused)
	hookConcurrentDispatch(t, db, campaign.ID)

	resp, _ := doJSON(t, app, http.MethodPost, fmt.Sprintf("/campaigns/%d/resume", campaign.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stored models.Campaign
	require.NoError(t, db.First(&stored, campaign.ID).Error)
	assert.Equal(t, models.StatusRunning, models.NormalizeStatus(stored.Status))
	assert.Equal(t, 5, stored.SentMessages)
}

func TestCancelKeepsConcurrentDispatchCount(t *testing.T) {
	app, db, user := lifecycleApp(t)
	campaign := seedCampaign(t, db, user.ID, models.StatusRunning)
	hookConcurrentDispatch(t, db, campaign.ID)

	resp, _ := doJSON(t, app, http.MethodPost, fmt.Sprintf("/campaigns/%d/cancel", campaign.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stored models.Campaign
	require.NoError(t, db.First(&stored, campaign.ID).Error)
	assert.Equal(t, models.StatusCanceled, models.NormalizeStatus(stored.Status))
	assert.Equal(t, 5, stored.SentMessages)
}

func TestLifecycleHidesForeignCampaigns(t *testing.T) {
	app, db, _ := lifecycleApp(t)
	stranger := models.User{Email: "outra@example.com", PasswordHash: "x"}
	require.NoError(t, db.Create(&stranger).Error)
	campaign := seedCampaign(t, db, stranger.ID, models.StatusRunning)

	resp, _ := doJSON(t, app, http.MethodPost, fmt.Sprintf("/campaigns/%d/pause", campaign.ID), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
