package controller

import (
	"log"
	"strings"

	"github.com/badoux/checkmail"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"zapflow/models"
	"zapflow/utils"
)

type ContactController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewContactController(db *gorm.DB, logger *log.Logger) *ContactController {
	return &ContactController{DB: db, Logger: logger}
}

type CreateContactListInput struct {
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description"`
	Source      string `json:"source"`
}

func (ct *ContactController) CreateContactList(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input CreateContactListInput
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

	list := models.ContactList{
		UserID:      user.ID,
		Name:        input.Name,
		Description: input.Description,
		Source:      input.Source,
	}
	if err := ct.DB.Create(&list).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create contact list",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(list)
}

func (ct *ContactController) GetContactLists(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var lists []models.ContactList
	if err := ct.DB.Where("user_id = ?", user.ID).Order("id").Find(&lists).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch contact lists",
		})
	}
	return c.JSON(lists)
}

func (ct *ContactController) GetContactListMembers(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	list, err := ct.findOwnedList(c.Params("id"), user.ID)
	if err != nil {
		return listNotFound(c)
	}

	var contacts []models.Contact
	if err := ct.DB.Where("contact_list_id = ?", list.ID).Order("id").Find(&contacts).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch contacts",
		})
	}
	return c.JSON(contacts)
}

func (ct *ContactController) DeleteContactList(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	list, err := ct.findOwnedList(c.Params("id"), user.ID)
	if err != nil {
		return listNotFound(c)
	}

	var bound int64
	if err := ct.DB.Model(&models.CampaignContactList{}).
		Where("contact_list_id = ?", list.ID).
		Count(&bound).Error; err == nil && bound > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "List is used by one or more campaigns",
			"bound": bound,
		})
	}

	tx := ct.DB.Begin()
	if err := tx.Unscoped().Where("contact_list_id = ?", list.ID).Delete(&models.Contact{}).Error; err != nil {
		tx.Rollback()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete contacts",
		})
	}
	if err := tx.Unscoped().Delete(list).Error; err != nil {
		tx.Rollback()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete contact list",
		})
	}
	if err := tx.Commit().Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to complete deletion",
		})
	}

	return c.JSON(fiber.Map{"message": "Contact list deleted"})
}

type ImportContactInput struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	GroupJID string `json:"group_jid"`
	Email    string `json:"email"`
	IsGroup  bool   `json:"is_group"`
}

// ImportContacts bulk-inserts contacts into a list. Rows with an invalid
// email or no usable recipient id are skipped and reported, not fatal.
func (ct *ContactController) ImportContacts(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	list, err := ct.findOwnedList(c.Params("id"), user.ID)
	if err != nil {
		return listNotFound(c)
	}

	var input struct {
		Contacts []ImportContactInput `json:"contacts" validate:"required,min=1"`
	}
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

	imported := 0
	var skipped []string
	for _, row := range input.Contacts {
		recipient := row.Phone
		if row.IsGroup {
			recipient = row.GroupJID
		}
		if strings.TrimSpace(recipient) == "" {
			skipped = append(skipped, row.Name+": missing recipient")
			continue
		}
		if row.Email != "" {
			if err := checkmail.ValidateFormat(row.Email); err != nil {
				skipped = append(skipped, row.Email+": invalid email")
				continue
			}
		}

		contact := models.Contact{
			ContactListID: list.ID,
			UserID:        user.ID,
			Name:          row.Name,
			Phone:         row.Phone,
			GroupJID:      row.GroupJID,
			Email:         row.Email,
			IsGroup:       row.IsGroup,
		}
		if err := ct.DB.Create(&contact).Error; err != nil {
			ct.Logger.Printf("Failed to import contact %q: %v", row.Name, err)
			skipped = append(skipped, row.Name+": database error")
			continue
		}
		imported++
	}

	if err := ct.DB.Model(list).
		Update("contact_count", gorm.Expr("contact_count + ?", imported)).Error; err != nil {
		ct.Logger.Printf("Failed to bump contact count for list %d: %v", list.ID, err)
	}

	return c.JSON(fiber.Map{
		"imported": imported,
		"skipped":  skipped,
	})
}

func (ct *ContactController) findOwnedList(listID interface{}, userID uint) (*models.ContactList, error) {
	var list models.ContactList
	if err := ct.DB.Where("id = ? AND user_id = ?", listID, userID).First(&list).Error; err != nil {
		return nil, err
	}
	return &list, nil
}

func listNotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": "Contact list not found",
	})
}
