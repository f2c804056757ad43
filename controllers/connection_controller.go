package controller

import (
	"encoding/base64"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
	"gorm.io/gorm"

	"zapflow/models"
	"zapflow/utils"
)

type ConnectionController struct {
	DB      *gorm.DB
	Gateway *utils.GatewayClient
	Logger  *log.Logger
}

func NewConnectionController(db *gorm.DB, gateway *utils.GatewayClient, logger *log.Logger) *ConnectionController {
	return &ConnectionController{
		DB:      db,
		Gateway: gateway,
		Logger:  logger,
	}
}

type CreateConnectionInput struct {
	Name string `json:"name" validate:"required,max=80"`
}

// CreateConnection provisions a new gateway instance and stores the bound
// channel. The instance starts closed; the client polls the QR endpoint
// to pair it.
func (cn *ConnectionController) CreateConnection(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input CreateConnectionInput
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

	var count int64
	if err := cn.DB.Model(&models.Connection{}).Where("user_id = ?", user.ID).Count(&count).Error; err == nil {
		if user.MaxConnections > 0 && count >= int64(user.MaxConnections) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Connection limit reached for your plan",
			})
		}
	}

	instanceName := uuid.New().String()
	token, err := cn.Gateway.CreateInstance(c.Context(), instanceName)
	if err != nil {
		cn.Logger.Printf("Gateway instance creation failed: %v", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Messaging gateway refused to create the instance",
		})
	}

	encrypted, err := utils.Encrypt(token)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store connection credentials",
		})
	}

	connection := models.Connection{
		UserID:       user.ID,
		Name:         input.Name,
		InstanceName: instanceName,
		APIToken:     encrypted,
		Status:       models.ConnectionClose,
	}
	if err := cn.DB.Create(&connection).Error; err != nil {
		// The gateway instance is orphaned at this point; removing it is
		// best effort
		if derr := cn.Gateway.DeleteInstance(c.Context(), instanceName); derr != nil {
			cn.Logger.Printf("Failed to clean up orphaned instance %s: %v", instanceName, derr)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create connection",
		})
	}

	connection.Sanitize()
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":    "Connection created",
		"connection": connection,
	})
}

// GetConnections lists the user's connections with their last known state
func (cn *ConnectionController) GetConnections(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var connections []models.Connection
	if err := cn.DB.Where("user_id = ?", user.ID).Order("id").Find(&connections).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch connections",
		})
	}

	for i := range connections {
		connections[i].Sanitize()
	}
	return c.JSON(connections)
}

// GetConnection returns one connection with a fresh gateway status probe
func (cn *ConnectionController) GetConnection(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	connection, err := cn.findOwnedConnection(c.Params("id"), user.ID)
	if err != nil {
		return connectionNotFound(c)
	}

	if state, err := cn.Gateway.ConnectionState(c.Context(), connection.InstanceName); err == nil {
		connection.Status = state.State
		connection.LastCheckedAt = utils.Pointer(time.Now())
		if err := cn.DB.Save(connection).Error; err != nil {
			cn.Logger.Printf("Failed to persist connection state: %v", err)
		}
	}

	connection.Sanitize()
	return c.JSON(connection)
}

// GetQRCode fetches the pairing payload from the gateway and renders it
// as a base64 PNG. Clients poll this endpoint while pairing; the rate
// limiter keeps that polite.
func (cn *ConnectionController) GetQRCode(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	connection, err := cn.findOwnedConnection(c.Params("id"), user.ID)
	if err != nil {
		return connectionNotFound(c)
	}

	if connection.Status == models.ConnectionOpen {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Connection is already paired",
		})
	}

	qr, err := cn.Gateway.Connect(c.Context(), connection.InstanceName)
	if err != nil {
		cn.Logger.Printf("QR fetch failed for instance %s: %v", connection.InstanceName, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Failed to obtain pairing code from the gateway",
		})
	}

	png, err := qrcode.Encode(qr.Code, qrcode.Medium, 256)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to render QR code",
		})
	}

	return c.JSON(fiber.Map{
		"qrcode":       "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		"pairing_code": qr.PairingCode,
	})
}

// DisconnectConnection logs the WhatsApp session out but keeps the
// instance and the row.
func (cn *ConnectionController) DisconnectConnection(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	connection, err := cn.findOwnedConnection(c.Params("id"), user.ID)
	if err != nil {
		return connectionNotFound(c)
	}

	if err := cn.Gateway.Logout(c.Context(), connection.InstanceName); err != nil {
		cn.Logger.Printf("Gateway logout failed for %s: %v", connection.InstanceName, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Gateway refused to disconnect the instance",
		})
	}

	connection.Status = models.ConnectionClose
	if err := cn.DB.Save(connection).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update connection",
		})
	}

	return c.JSON(fiber.Map{"message": "Connection disconnected"})
}

// DeleteConnection removes the row and then the gateway instance. A
// campaign still bound to the connection blocks the delete. The gateway
// cleanup after the row is gone is best effort: log and continue.
func (cn *ConnectionController) DeleteConnection(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	connection, err := cn.findOwnedConnection(c.Params("id"), user.ID)
	if err != nil {
		return connectionNotFound(c)
	}

	var bound int64
	if err := cn.DB.Model(&models.CampaignConnection{}).
		Where("connection_id = ?", connection.ID).
		Count(&bound).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to inspect campaign bindings",
		})
	}
	if bound > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Connection is bound to one or more campaigns",
			"code":  "connection_in_use",
			"bound": bound,
		})
	}

	if err := cn.DB.Unscoped().Delete(connection).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete connection",
		})
	}

	if err := cn.Gateway.DeleteInstance(c.Context(), connection.InstanceName); err != nil {
		cn.Logger.Printf("Best-effort gateway delete failed for %s: %v", connection.InstanceName, err)
	}

	return c.JSON(fiber.Map{"message": "Connection deleted"})
}

func (cn *ConnectionController) findOwnedConnection(connectionID interface{}, userID uint) (*models.Connection, error) {
	var connection models.Connection
	if err := cn.DB.Where("id = ? AND user_id = ?", connectionID, userID).First(&connection).Error; err != nil {
		return nil, err
	}
	return &connection, nil
}

func connectionNotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": "Connection not found",
	})
}
