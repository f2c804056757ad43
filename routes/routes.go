package routes

import (
	"log"
	"os"

	controller "zapflow/controllers"
	"zapflow/middleware"
	"zapflow/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"gorm.io/gorm"
)

func SetupRoutes(app *fiber.App, db *gorm.DB, gateway *utils.GatewayClient) {
	// Initialize Google OAuth
	controller.InitGoogleOAuth()

	// Setup health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	SetupAuthRoutes(app, db)
	SetupAPIRoutes(app, db, gateway)
}

func SetupAuthRoutes(app *fiber.App, db *gorm.DB) {
	authLogger := log.New(os.Stdout, "AUTH: ", log.Ldate|log.Ltime|log.Lshortfile)

	auth := app.Group("/auth", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Public auth endpoints
	auth.Post("/register", controller.Register)
	auth.Post("/login", controller.Login)
	auth.Post("/refresh", controller.RefreshToken)

	// Google OAuth routes
	auth.Get("/google", controller.GoogleOAuth)
	auth.Get("/google/callback", controller.GoogleOAuthCallback)

	// Protected auth endpoints
	protectedAuth := auth.Group("", middleware.Protected())
	protectedAuth.Post("/logout", controller.Logout)
	protectedAuth.Post("/change-password", controller.ChangePassword)
	protectedAuth.Get("/me", controller.GetCurrentUser)

	authLogger.Println("Authentication routes initialized successfully")
}

func SetupAPIRoutes(app *fiber.App, db *gorm.DB, gateway *utils.GatewayClient) {
	campaignController := controller.NewCampaignController(db, log.New(os.Stdout, "CAMPAIGN: ", log.LstdFlags))
	connectionController := controller.NewConnectionController(db, gateway, log.New(os.Stdout, "CONNECTION: ", log.LstdFlags))
	contactController := controller.NewContactController(db, log.New(os.Stdout, "CONTACT: ", log.LstdFlags))
	leadController := controller.NewLeadController(db, log.New(os.Stdout, "LEAD: ", log.LstdFlags))
	dashboardController := controller.NewDashboardController(db, log.New(os.Stdout, "DASHBOARD: ", log.LstdFlags))

	api := app.Group("/api/v1", middleware.Protected(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Dashboard routes
	dashboard := api.Group("/dashboard")
	dashboard.Get("/stats", dashboardController.GetDashboardStats)
	dashboard.Get("/recent-campaigns", dashboardController.GetRecentCampaigns)

	// Connection routes; the gateway-facing reads are rate limited
	connection := api.Group("/connections")
	connection.Post("/", connectionController.CreateConnection)
	connection.Get("/", connectionController.GetConnections)
	connection.Get("/:id", middleware.ConnectionRateLimiter(), connectionController.GetConnection)
	connection.Get("/:id/qrcode", middleware.ConnectionRateLimiter(), connectionController.GetQRCode)
	connection.Post("/:id/disconnect", connectionController.DisconnectConnection)
	connection.Delete("/:id", connectionController.DeleteConnection)

	// Contact list routes
	lists := api.Group("/contact-lists")
	lists.Post("/", contactController.CreateContactList)
	lists.Get("/", contactController.GetContactLists)
	lists.Get("/:id/contacts", contactController.GetContactListMembers)
	lists.Post("/:id/contacts/import", contactController.ImportContacts)
	lists.Delete("/:id", contactController.DeleteContactList)

	// WebSocket route for campaign progress; inherits the group's JWT
	// middleware so the owner is resolved server-side. Registered before
	// the :id routes so "progress" is not captured as a campaign id.
	api.Get("/campaigns/progress", websocket.New(controller.HandleCampaignProgressWS(db)))

	// Campaign routes
	campaign := api.Group("/campaigns")
	campaign.Post("/", campaignController.CreateCampaign)
	campaign.Get("/", campaignController.GetCampaigns)
	campaign.Get("/:id", campaignController.GetCampaign)
	campaign.Put("/:id", campaignController.UpdateCampaignConfig)
	campaign.Post("/:id/pause", campaignController.PauseCampaign)
	campaign.Post("/:id/resume", campaignController.ResumeCampaign)
	campaign.Post("/:id/cancel", campaignController.CancelCampaign)
	campaign.Post("/:id/swap-connection", campaignController.SwapConnection)
	campaign.Get("/:id/details", campaignController.GetCampaignDetails)
	campaign.Get("/:id/stats", campaignController.GetCampaignStats)
	campaign.Delete("/:id", campaignController.DeleteCampaign)
	campaign.Delete("/:id/force", campaignController.ForceDeleteCampaign)

	// CRM routes
	crm := api.Group("/crm")
	crm.Get("/columns", leadController.GetColumns)
	crm.Get("/leads", leadController.GetLeads)
	crm.Post("/leads/:id/move", leadController.MoveLead)
	crm.Put("/leads/:id", leadController.UpdateLead)
	crm.Delete("/leads/:id", leadController.DeleteLead)

	// Inbound webhook from the gateway; authenticated by instance name,
	// not by user JWT
	app.Post("/webhooks/gateway", leadController.HandleInboundWebhook)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Route not found",
		})
	})
}
