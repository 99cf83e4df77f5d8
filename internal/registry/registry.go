package registry

import (
	"errors"
	"fmt"
	"sort"

	"qwenbridge/internal/models"
)

// ErrUnknownModel is returned when a model identifier is not in the registry.
var ErrUnknownModel = errors.New("unknown model")

// DefaultModel is used when the caller does not name a model.
const DefaultModel = "qwen3-235b-a22b"

// categoryDefaults is the fixed category policy. Capability defaults: web
// search and file upload everywhere, image generation only for vision, audio
// only for multimodal, thinking mode mirrors ThinkingEnabled.
var categoryDefaults = map[models.ModelCategory]models.ModelConfig{
	models.CategoryAdvanced: {
		Category:        models.CategoryAdvanced,
		Temperature:     0.3,
		MaxTokens:       6144,
		ThinkingEnabled: true,
		OutputSchema:    models.SchemaPhase,
	},
	models.CategoryCoding: {
		Category:        models.CategoryCoding,
		Temperature:     0.1,
		MaxTokens:       4096,
		ThinkingEnabled: true,
		OutputSchema:    models.SchemaPhase,
	},
	models.CategoryReasoning: {
		Category:        models.CategoryReasoning,
		Temperature:     0.2,
		MaxTokens:       8192,
		ThinkingEnabled: true,
		OutputSchema:    models.SchemaThinking,
	},
	models.CategoryVision: {
		Category:        models.CategoryVision,
		Temperature:     0.3,
		MaxTokens:       2048,
		ThinkingEnabled: false,
		OutputSchema:    models.SchemaPhase,
	},
	models.CategoryMultimodal: {
		Category:        models.CategoryMultimodal,
		Temperature:     0.3,
		MaxTokens:       4096,
		ThinkingEnabled: false,
		OutputSchema:    models.SchemaPhase,
	},
	models.CategoryStandard: {
		Category:        models.CategoryStandard,
		Temperature:     0.3,
		MaxTokens:       2048,
		ThinkingEnabled: false,
		OutputSchema:    models.SchemaPhase,
	},
}

// seed is the declarative model table shipped with the gateway.
var seed = []struct {
	id          string
	displayName string
	category    models.ModelCategory
}{
	{"qwen3-235b-a22b", "Qwen3 235B", models.CategoryAdvanced},
	{"qwen-max-latest", "Qwen Max", models.CategoryAdvanced},
	{"qwen-plus-latest", "Qwen Plus", models.CategoryAdvanced},
	{"qwen3-coder-plus", "Qwen3 Coder", models.CategoryCoding},
	{"qwen2.5-coder-32b-instruct", "Qwen2.5 Coder 32B", models.CategoryCoding},
	{"qwq-32b", "QwQ 32B", models.CategoryReasoning},
	{"qwen2.5-vl-72b-instruct", "Qwen2.5 VL 72B", models.CategoryVision},
	{"qvq-72b-preview", "QVQ 72B Preview", models.CategoryVision},
	{"qwen2.5-omni-7b", "Qwen2.5 Omni", models.CategoryMultimodal},
	{"qwen-turbo-latest", "Qwen Turbo", models.CategoryStandard},
}

// Registry resolves model identifiers to immutable configurations.
type Registry struct {
	configs map[string]models.ModelConfig
}

// New builds a registry from the seed table with optional per-model overrides
// applied on top of the category defaults.
func New(overrides map[string]models.ModelOverride) *Registry {
	configs := make(map[string]models.ModelConfig, len(seed))
	for _, s := range seed {
		cfg := DefaultsFor(s.category)
		cfg.ID = s.id
		cfg.DisplayName = s.displayName
		configs[s.id] = cfg
	}

	for id, ov := range overrides {
		cfg, ok := configs[id]
		if !ok {
			// Overrides can also introduce models the seed doesn't know,
			// as long as they name a category.
			if ov.Category == nil {
				continue
			}
			cfg = DefaultsFor(*ov.Category)
			cfg.ID = id
			cfg.DisplayName = id
		}
		applyOverride(&cfg, ov)
		configs[id] = cfg
	}

	return &Registry{configs: configs}
}

// Resolve looks up a model by identifier.
func (r *Registry) Resolve(modelID string) (models.ModelConfig, error) {
	cfg, ok := r.configs[modelID]
	if !ok {
		return models.ModelConfig{}, fmt.Errorf("%w: %q", ErrUnknownModel, modelID)
	}
	return cfg, nil
}

// IDs returns all registered model identifiers, sorted.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.configs))
	for id := range r.configs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DefaultsFor returns the full default configuration for a category,
// capabilities included. Unknown categories get the standard defaults.
func DefaultsFor(category models.ModelCategory) models.ModelConfig {
	cfg, ok := categoryDefaults[category]
	if !ok {
		cfg = categoryDefaults[models.CategoryStandard]
	}
	cfg.Capabilities = models.Capabilities{
		WebSearch:       true,
		FileUpload:      true,
		ImageGeneration: cfg.Category == models.CategoryVision,
		AudioProcessing: cfg.Category == models.CategoryMultimodal,
		ThinkingMode:    cfg.ThinkingEnabled,
	}
	return cfg
}

func applyOverride(cfg *models.ModelConfig, ov models.ModelOverride) {
	if ov.Category != nil {
		base := DefaultsFor(*ov.Category)
		base.ID = cfg.ID
		base.DisplayName = cfg.DisplayName
		*cfg = base
	}
	if ov.DisplayName != nil {
		cfg.DisplayName = *ov.DisplayName
	}
	if ov.Temperature != nil {
		cfg.Temperature = *ov.Temperature
	}
	if ov.MaxTokens != nil {
		cfg.MaxTokens = *ov.MaxTokens
	}
	if ov.ThinkingEnabled != nil {
		cfg.ThinkingEnabled = *ov.ThinkingEnabled
	}
	if ov.OutputSchema != nil {
		cfg.OutputSchema = *ov.OutputSchema
	}
	if ov.Capabilities != nil {
		cfg.Capabilities = *ov.Capabilities
	}
}
