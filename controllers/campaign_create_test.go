package controller

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"zapflow/models"
)

func createApp(t *testing.T) (*fiber.App, *gorm.DB, *models.User) {
	t.Helper()
	db := newTestDB(t)
	user := seedUser(t, db)
	app := newTestApp(user)
	cc := NewCampaignController(db, testLogger())
	app.Post("/campaigns", cc.CreateCampaign)
	app.Put("/campaigns/:id", cc.UpdateCampaignConfig)
	return app, db, user
}

func seedTargets(t *testing.T, db *gorm.DB, userID uint) (uint, uint) {
	t.Helper()
	list := models.ContactList{UserID: userID, Name: "clientes"}
	require.NoError(t, db.Create(&list).Error)
	conn := models.Connection{UserID: userID, Name: "principal", InstanceName: "inst-1", Status: models.ConnectionOpen}
	require.NoError(t, db.Create(&conn).Error)
	return list.ID, conn.ID
}

func createInput(listID, connID uint) fiber.Map {
	return fiber.Map{
		"name":             "promo",
		"type":             "individual",
		"messages":         []fiber.Map{{"kind": "text", "text": "oi"}},
		"contact_list_ids": []uint{listID},
		"connection_ids":   []uint{connID},
		"interval_min_sec": 30,
		"interval_max_sec": 60,
	}
}

func TestCreateCampaignImmediate(t *testing.T) {
	app, db, user := createApp(t)
	listID, connID := seedTargets(t, db, user.ID)

	resp, body := doJSON(t, app, http.MethodPost, "/campaigns", createInput(listID, connID))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	created := body["campaign"].(map[string]interface{})
	assert.Equal(t, models.StatusWaiting, created["status"])

	id := uint(created["ID"].(float64))
	var lists, conns int64
	db.Model(&models.CampaignContactList{}).Where("campaign_id = ?", id).Count(&lists)
	db.Model(&models.CampaignConnection{}).Where("campaign_id = ?", id).Count(&conns)
	assert.EqualValues(t, 1, lists)
	assert.EqualValues(t, 1, conns)
}

func TestCreateCampaignScheduled(t *testing.T) {
	app, db, user := createApp(t)
	listID, connID := seedTargets(t, db, user.ID)

	input := createInput(listID, connID)
	input["scheduled_at"] = time.Now().Add(2 * time.Hour).Format(time.RFC3339)

	resp, body := doJSON(t, app, http.MethodPost, "/campaigns", input)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := body["campaign"].(map[string]interface{})
	assert.Equal(t, models.StatusScheduled, created["status"])
}

func TestCreateCampaignRejectsInvalidPacing(t *testing.T) {
	app, db, user := createApp(t)
	listID, connID := seedTargets(t, db, user.ID)

	input := createInput(listID, connID)
	input["interval_min_sec"] = 90
	input["interval_max_sec"] = 60

	resp, _ := doJSON(t, app, http.MethodPost, "/campaigns", input)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateCampaignRejectsForeignTargets(t *testing.T) {
	app, db, user := createApp(t)
	_, connID := seedTargets(t, db, user.ID)

	stranger := models.User{Email: "outra@example.com", PasswordHash: "x"}
	require.NoError(t, db.Create(&stranger).Error)
	foreign := models.ContactList{UserID: stranger.ID, Name: "alheia"}
	require.NoError(t, db.Create(&foreign).Error)

	resp, _ := doJSON(t, app, http.MethodPost, "/campaigns", createInput(foreign.ID, connID))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdateCampaignConfigPartial(t *testing.T) {
	app, db, user := createApp(t)
	campaign := seedCampaign(t, db, user.ID, models.StatusPaused)

	resp, _ := doJSON(t, app, http.MethodPut, fmt.Sprintf("/campaigns/%d", campaign.ID),
		fiber.Map{"interval_min_sec": 45, "interval_max_sec": 90})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stored models.Campaign
	require.NoError(t, db.First(&stored, campaign.ID).Error)
	assert.Equal(t, 45, stored.IntervalMinSec)
	assert.Equal(t, 90, stored.IntervalMaxSec)
	assert.Equal(t, "promo", stored.Name, "untouched fields survive")
	assert.Equal(t, 4, stored.SentMessages, "counters are never edited")
	assert.Equal(t, 10, stored.TotalMessages)
}

func TestUpdateCampaignConfigKeepsConcurrentDispatchCount(t *testing.T) {
	app, db, user := createApp(t)
	campaign := seedCampaign(t, db, user.ID, models.StatusRunning)
	hookConcurrentDispatch(t, db, campaign.ID)

	resp, _ := doJSON(t, app, http.MethodPut, fmt.Sprintf("/campaigns/%d", campaign.ID),
		fiber.Map{"interval_min_sec": 45, "interval_max_sec": 90})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stored models.Campaign
	require.NoError(t, db.First(&stored, campaign.ID).Error)
	assert.Equal(t, 45, stored.IntervalMinSec)
	assert.Equal(t, 5, stored.SentMessages, "a dispatch landing mid-update is never reverted")
}

func TestUpdateCampaignConfigRejectsTerminal(t *testing.T) {
	app, db, user := createApp(t)
	campaign := seedCampaign(t, db, user.ID, models.StatusFinished)

	resp, _ := doJSON(t, app, http.MethodPut, fmt.Sprintf("/campaigns/%d", campaign.ID),
		fiber.Map{"name": "novo nome"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestUpdateCampaignConfigRejectsInvalidResult(t *testing.T) {
	app, db, user := createApp(t)
	campaign := seedCampaign(t, db, user.ID, models.StatusPaused)

	resp, _ := doJSON(t, app, http.MethodPut, fmt.Sprintf("/campaigns/%d", campaign.ID),
		fiber.Map{"interval_min_sec": 120})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var stored models.Campaign
	require.NoError(t, db.First(&stored, campaign.ID).Error)
	assert.Equal(t, 30, stored.IntervalMinSec, "rejected update leaves the row alone")
}
