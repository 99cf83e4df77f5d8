package payload

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"qwenbridge/internal/models"
)

// ErrEmptyPrompt is returned when the prompt is empty or whitespace only.
var ErrEmptyPrompt = errors.New("empty prompt")

// Build composes the transport-agnostic request payload for one dispatch.
// Pure aside from correlation ID generation; no network or disk access.
//
// A requested feature the model cannot serve is dropped rather than rejected,
// and the drop is reported through the payload's Warnings.
func Build(prompt string, cfg models.ModelConfig, chatID string, flags models.FeatureFlags) (*models.RequestPayload, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	p := &models.RequestPayload{
		Prompt:        prompt,
		Model:         cfg,
		ChatID:        chatID,
		CorrelationID: uuid.NewString(),
		Extras:        categoryExtras(cfg.Category),
	}

	if flags.WebSearch {
		if cfg.Capabilities.WebSearch {
			p.WebSearch = true
		} else {
			p.Warnings = append(p.Warnings,
				fmt.Sprintf("model %s does not support web search; flag dropped", cfg.ID))
		}
	}

	return p, nil
}

// categoryExtras returns the extra wire fields a category carries. Attached by
// category only, never by matching model name strings.
func categoryExtras(category models.ModelCategory) map[string]interface{} {
	switch category {
	case models.CategoryReasoning:
		return map[string]interface{}{
			"reasoning_mode":      true,
			"max_reasoning_steps": 10,
		}
	case models.CategoryCoding:
		return map[string]interface{}{
			"code_mode":           true,
			"syntax_highlighting": true,
		}
	case models.CategoryVision:
		return map[string]interface{}{
			"multimodal":     true,
			"vision_enabled": true,
		}
	default:
		return nil
	}
}
