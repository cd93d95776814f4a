// Package controllers holds the fiber handlers for the gateway API.
package controllers

import (
	"github.com/gofiber/fiber/v3"

	"github.com/conduitchat/conduit/internal/domain"
	"github.com/conduitchat/conduit/internal/registry"
)

// UserHeader carries the upstream-authenticated identity. An absent header
// maps to the anonymous user.
const UserHeader = "X-Forwarded-User"

func callerID(ctx fiber.Ctx) string {
	if user := ctx.Get(UserHeader); user != "" {
		return user
	}
	return domain.AnonymousUser
}

// RegistryController serves the provider and tool listing surface.
type RegistryController struct {
	providers *registry.ProviderRegistry
	tools     *registry.ToolRegistry
}

type RegistryControllerDependencies struct {
	Providers *registry.ProviderRegistry
	Tools     *registry.ToolRegistry
}

func NewRegistryController(deps RegistryControllerDependencies) *RegistryController {
	return &RegistryController{
		providers: deps.Providers,
		tools:     deps.Tools,
	}
}

func (c *RegistryController) ListProviders(ctx fiber.Ctx) error {
	return ctx.JSON(fiber.Map{
		"providers": c.providers.List(callerID(ctx)),
	})
}

func (c *RegistryController) GetProvider(ctx fiber.Ctx) error {
	info, ok := c.providers.Get(ctx.Params("id"), callerID(ctx))
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "Provider not found")
	}
	return ctx.JSON(info)
}

// ValidateProvider reports whether the caller may use the provider.
func (c *RegistryController) ValidateProvider(ctx fiber.Ctx) error {
	var req struct {
		ProviderID string `json:"provider_id"`
	}
	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if req.ProviderID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "provider_id is required")
	}
	return ctx.JSON(c.providers.Validate(req.ProviderID, callerID(ctx)))
}

func (c *RegistryController) ListTools(ctx fiber.Ctx) error {
	return ctx.JSON(fiber.Map{
		"tools": c.tools.ListAvailable(ctx.RequestCtx(), callerID(ctx)),
	})
}

func (c *RegistryController) GetTool(ctx fiber.Ctx) error {
	info, ok := c.tools.Details(ctx.Params("id"), callerID(ctx))
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "Tool not found")
	}
	return ctx.JSON(info)
}

func (c *RegistryController) GetToolResources(ctx fiber.Ctx) error {
	if _, ok := c.tools.Get(ctx.Params("id")); !ok {
		return fiber.NewError(fiber.StatusNotFound, "Tool not found")
	}
	resources := c.tools.Resources(ctx.Params("id"), callerID(ctx))
	if resources == nil {
		resources = []string{}
	}
	return ctx.JSON(fiber.Map{"resources": resources})
}

// ValidateTools reports access per requested tool id. Unknown ids come back
// found=false rather than failing the batch.
func (c *RegistryController) ValidateTools(ctx fiber.Ctx) error {
	var req struct {
		ToolIDs []string `json:"tool_ids"`
	}
	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	return ctx.JSON(fiber.Map{
		"results": c.tools.ValidateAccess(req.ToolIDs, callerID(ctx)),
	})
}

// ExecuteTool runs one tool directly. Failures surface as a structured
// result, not an HTTP error, so callers always get the uniform shape.
func (c *RegistryController) ExecuteTool(ctx fiber.Ctx) error {
	var req struct {
		Parameters map[string]any `json:"parameters"`
	}
	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	result := c.tools.Execute(ctx.RequestCtx(), ctx.Params("id"), req.Parameters, callerID(ctx))
	return ctx.JSON(result)
}
