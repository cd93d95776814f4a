// Package server wires the fiber application.
package server

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/conduitchat/conduit/internal/controllers"
	"github.com/conduitchat/conduit/internal/version"
)

type HTTPServerDependencies struct {
	RegistryController *controllers.RegistryController
	ChatController     *controllers.ChatController
}

func NewHTTPServer(deps HTTPServerDependencies) *fiber.App {
	router := fiber.New(fiber.Config{
		AppName: "conduit",
	})

	// Add basic middleware
	router.Use(cors.New())
	router.Use(logger.New())

	// Health check endpoint (no identity required)
	router.Get("/health", func(c fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":    "healthy",
			"service":   "conduit",
			"version":   version.String(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	api := router.Group("/api")

	providers := api.Group("/providers")
	providers.Get("/", deps.RegistryController.ListProviders)
	providers.Post("/validate", deps.RegistryController.ValidateProvider)
	providers.Get("/:id", deps.RegistryController.GetProvider)

	tools := api.Group("/tools")
	tools.Get("/", deps.RegistryController.ListTools)
	tools.Post("/validate", deps.RegistryController.ValidateTools)
	tools.Get("/:id", deps.RegistryController.GetTool)
	tools.Get("/:id/resources", deps.RegistryController.GetToolResources)
	tools.Post("/:id/execute", deps.RegistryController.ExecuteTool)

	chat := api.Group("/chat")
	chat.Post("/", deps.ChatController.Chat)
	chat.Post("/stream", deps.ChatController.ChatStream)
	chat.Get("/history", deps.ChatController.History)

	return router
}
