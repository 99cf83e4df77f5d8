package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"qwenbridge/internal/auth"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	tokens  *auth.Manager
	started time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(tokens *auth.Manager) *HealthHandler {
	return &HealthHandler{tokens: tokens, started: time.Now()}
}

// Handle responds with server health status
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	_, directReady := h.tokens.Current()
	return c.JSON(fiber.Map{
		"status":     "healthy",
		"direct_api": directReady,
		"uptime":     time.Since(h.started).String(),
		"timestamp":  time.Now().Format(time.RFC3339),
	})
}
