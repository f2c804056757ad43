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

func contactApp(t *testing.T) (*fiber.App, *gorm.DB, *models.User) {
	t.Helper()
	db := newTestDB(t)
	user := seedUser(t, db)
	app := newTestApp(user)
	ct := NewContactController(db, testLogger())
	app.Post("/contact-lists", ct.CreateContactList)
	app.Post("/contact-lists/:id/contacts/import", ct.ImportContacts)
	app.Delete("/contact-lists/:id", ct.DeleteContactList)
	return app, db, user
}

func TestImportContactsSkipsInvalidRows(t *testing.T) {
	app, db, user := contactApp(t)
	list := models.ContactList{UserID: user.ID, Name: "clientes"}
	require.NoError(t, db.Create(&list).Error)

	resp, body := doJSON(t, app, http.MethodPost,
		fmt.Sprintf("/contact-lists/%d/contacts/import", list.ID),
		fiber.Map{"contacts": []fiber.Map{
			{"name": "Ana", "phone": "5511999990001", "email": "ana@example.com"},
			{"name": "Bruno", "phone": "5511999990002", "email": "not-an-email"},
			{"name": "sem numero"},
			{"name": "Grupo X", "group_jid": "123@g.us", "is_group": true},
		}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, body["imported"])
	assert.Len(t, body["skipped"], 2)

	var count int64
	require.NoError(t, db.Model(&models.Contact{}).Where("contact_list_id = ?", list.ID).Count(&count).Error)
	assert.EqualValues(t, 2, count)

	var stored models.ContactList
	require.NoError(t, db.First(&stored, list.ID).Error)
	assert.Equal(t, 2, stored.ContactCount)
}

func TestDeleteContactListRefusedWhenBound(t *testing.T) {
	app, db, user := contactApp(t)
	list := models.ContactList{UserID: user.ID, Name: "clientes"}
	require.NoError(t, db.Create(&list).Error)
	campaign := seedCampaign(t, db, user.ID, models.StatusWaiting)
	require.NoError(t, db.Create(&models.CampaignContactList{
		CampaignID: campaign.ID, ContactListID: list.ID,
	}).Error)

	resp, _ := doJSON(t, app, http.MethodDelete, fmt.Sprintf("/contact-lists/%d", list.ID), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var count int64
	require.NoError(t, db.Model(&models.ContactList{}).Where("id = ?", list.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestDeleteContactListRemovesMembers(t *testing.T) {
	app, db, user := contactApp(t)
	list := models.ContactList{UserID: user.ID, Name: "clientes"}
	require.NoError(t, db.Create(&list).Error)
	require.NoError(t, db.Create(&models.Contact{
		ContactListID: list.ID, UserID: user.ID, Phone: "5511999990001",
	}).Error)

	resp, _ := doJSON(t, app, http.MethodDelete, fmt.Sprintf("/contact-lists/%d", list.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var lists, contacts int64
	db.Unscoped().Model(&models.ContactList{}).Where("id = ?", list.ID).Count(&lists)
	db.Unscoped().Model(&models.Contact{}).Where("contact_list_id = ?", list.ID).Count(&contacts)
	assert.Zero(t, lists)
	assert.Zero(t, contacts)
}
