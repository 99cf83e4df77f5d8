package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"qwenbridge/internal/payload"
	"qwenbridge/internal/registry"
	"qwenbridge/internal/services"
)

// ChatRequest is the POST /api/chat body.
type ChatRequest struct {
	Prompt       string `json:"prompt"`
	ChatID       string `json:"chat_id"`
	ModelName    string `json:"model_name"`
	UseWebSearch bool   `json:"use_web_search"`
}

// ChatHandler handles chat completion requests
type ChatHandler struct {
	dispatcher *services.Dispatcher
}

// NewChatHandler creates a new chat handler
func NewChatHandler(dispatcher *services.Dispatcher) *ChatHandler {
	return &ChatHandler{dispatcher: dispatcher}
}

// Handle runs one prompt through the dispatcher and returns the result.
func (h *ChatHandler) Handle(c *fiber.Ctx) error {
	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	modelID := req.ModelName
	if modelID == "" {
		modelID = registry.DefaultModel
	}

	res, err := h.dispatcher.Dispatch(c.UserContext(), req.Prompt, modelID, req.ChatID, req.UseWebSearch)
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrUnknownModel):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": err.Error(),
			})
		case errors.Is(err, payload.ErrEmptyPrompt):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		if res != nil {
			return c.Status(fiber.StatusBadGateway).JSON(res)
		}
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(res)
}
