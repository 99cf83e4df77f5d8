package handlers

import (
	"github.com/gofiber/fiber/v2"

	"qwenbridge/internal/registry"
)

// ModelHandler handles model catalog requests
type ModelHandler struct {
	registry *registry.Registry
}

// NewModelHandler creates a new model handler
func NewModelHandler(reg *registry.Registry) *ModelHandler {
	return &ModelHandler{registry: reg}
}

// List returns all model identifiers known to the registry.
func (h *ModelHandler) List(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"models":  h.registry.IDs(),
		"default": registry.DefaultModel,
	})
}

// Info returns the resolved configuration for a single model.
func (h *ModelHandler) Info(c *fiber.Ctx) error {
	cfg, err := h.registry.Resolve(c.Params("model"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(cfg)
}
