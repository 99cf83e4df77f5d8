package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"qwenbridge/internal/auth"
	"qwenbridge/internal/services"
)

// ConversationHandler lists upstream conversations. This is a read-only view
// over the structured API; there is no browser fallback for it.
type ConversationHandler struct {
	direct *services.DirectClient
	tokens *auth.Manager
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(direct *services.DirectClient, tokens *auth.Manager) *ConversationHandler {
	return &ConversationHandler{direct: direct, tokens: tokens}
}

// Handle returns one page of the upstream conversation list.
func (h *ConversationHandler) Handle(c *fiber.Ctx) error {
	token, ok := h.tokens.Current()
	if !ok {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Direct API unavailable: no valid auth token",
		})
	}

	page := c.QueryInt("page", 1)
	conversations, err := h.direct.ListConversations(c.UserContext(), token, page)
	if err != nil {
		log.Printf("⚠️  Conversation listing failed: %v", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Failed to fetch conversations",
		})
	}

	return c.JSON(fiber.Map{
		"conversations": conversations,
		"page":          page,
	})
}
