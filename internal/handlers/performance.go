package handlers

import (
	"github.com/gofiber/fiber/v2"

	"qwenbridge/internal/services"
)

// PerformanceHandler exposes the transport performance snapshot
type PerformanceHandler struct {
	tracker *services.PerformanceTracker
}

// NewPerformanceHandler creates a new performance handler
func NewPerformanceHandler(tracker *services.PerformanceTracker) *PerformanceHandler {
	return &PerformanceHandler{tracker: tracker}
}

// Handle returns per-transport statistics accumulated since startup.
func (h *PerformanceHandler) Handle(c *fiber.Ctx) error {
	return c.JSON(h.tracker.Snapshot())
}
