package controller

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"zapflow/models"
	"zapflow/utils"
)

type LeadController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewLeadController(db *gorm.DB, logger *log.Logger) *LeadController {
	return &LeadController{DB: db, Logger: logger}
}

// GetColumns returns the user's kanban pipeline, seeding the defaults on
// first access.
func (lc *LeadController) GetColumns(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	if err := models.DefaultCRMColumns(lc.DB, user.ID); err != nil {
		lc.Logger.Printf("Failed to seed CRM columns: %v", err)
	}

	var columns []models.CRMColumn
	if err := lc.DB.Where("user_id = ?", user.ID).Order("position").Find(&columns).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch CRM columns",
		})
	}
	return c.JSON(columns)
}

// GetLeads returns all leads for the user, newest activity first
func (lc *LeadController) GetLeads(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var leads []models.CRMLead
	if err := lc.DB.Where("user_id = ?", user.ID).
		Order("last_contact_at DESC NULLS LAST").
		Find(&leads).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch leads",
		})
	}
	return c.JSON(leads)
}

type MoveLeadInput struct {
	ColumnID uint `json:"column_id" validate:"required"`
}

// MoveLead drags a lead to another pipeline column
func (lc *LeadController) MoveLead(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	leadID := c.Params("id")

	var input MoveLeadInput
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

	var column models.CRMColumn
	if err := lc.DB.Where("id = ? AND user_id = ?", input.ColumnID, user.ID).First(&column).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Column not found",
		})
	}

	res := lc.DB.Model(&models.CRMLead{}).
		Where("id = ? AND user_id = ?", leadID, user.ID).
		Update("column_id", column.ID)
	if res.Error != nil || res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Lead not found",
		})
	}

	return c.JSON(fiber.Map{"message": "Lead moved"})
}

// UpdateLead edits lead metadata (name, email, notes)
func (lc *LeadController) UpdateLead(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	leadID := c.Params("id")

	var input struct {
		Name  *string `json:"name"`
		Email *string `json:"email"`
		Notes *string `json:"notes"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	var lead models.CRMLead
	if err := lc.DB.Where("id = ? AND user_id = ?", leadID, user.ID).First(&lead).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Lead not found",
		})
	}

	if input.Name != nil {
		lead.Name = *input.Name
	}
	if input.Email != nil {
		lead.Email = *input.Email
	}
	if input.Notes != nil {
		lead.Notes = *input.Notes
	}

	if err := lc.DB.Save(&lead).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update lead",
		})
	}
	return c.JSON(lead)
}

func (lc *LeadController) DeleteLead(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	leadID := c.Params("id")

	res := lc.DB.Unscoped().Where("id = ? AND user_id = ?", leadID, user.ID).Delete(&models.CRMLead{})
	if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete lead",
		})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Lead not found",
		})
	}
	return c.JSON(fiber.Map{"message": "Lead deleted"})
}

type InboundMessageEvent struct {
	InstanceName string `json:"instance" validate:"required"`
	Phone        string `json:"phone" validate:"required"`
	Name         string `json:"name"`
	Message      string `json:"message"`
}

// HandleInboundWebhook ingests reply events pushed by the gateway. The
// feed delivers at least once, so leads are deduplicated by (user, phone)
// and repeat events only refresh the existing row.
func (lc *LeadController) HandleInboundWebhook(c *fiber.Ctx) error {
	var event InboundMessageEvent
	if err := c.BodyParser(&event); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(event); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	var connection models.Connection
	if err := lc.DB.Where("instance_name = ?", event.InstanceName).First(&connection).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Unknown instance",
		})
	}

	if err := models.DefaultCRMColumns(lc.DB, connection.UserID); err != nil {
		lc.Logger.Printf("Failed to seed CRM columns: %v", err)
	}
	var firstColumn models.CRMColumn
	if err := lc.DB.Where("user_id = ?", connection.UserID).Order("position").First(&firstColumn).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "CRM pipeline unavailable",
		})
	}

	now := time.Now()
	lead := models.CRMLead{
		UserID:   connection.UserID,
		Phone:    event.Phone,
		ColumnID: firstColumn.ID,
	}
	if err := lc.DB.Where("user_id = ? AND phone = ?", connection.UserID, event.Phone).
		FirstOrCreate(&lead).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record lead",
		})
	}

	updates := map[string]interface{}{
		"last_message":    event.Message,
		"last_contact_at": now,
		"connection_id":   connection.ID,
	}
	if lead.Name == "" && event.Name != "" {
		updates["name"] = event.Name
	}
	if err := lc.DB.Model(&lead).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update lead",
		})
	}

	return c.JSON(fiber.Map{"message": "Event processed", "lead_id": lead.ID})
}
