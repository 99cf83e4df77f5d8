package models

// ModelCategory classifies a model by what it is tuned for. The category fully
// determines the default generation settings and capability set.
type ModelCategory string

const (
	CategoryAdvanced   ModelCategory = "advanced"
	CategoryCoding     ModelCategory = "coding"
	CategoryReasoning  ModelCategory = "reasoning"
	CategoryVision     ModelCategory = "vision"
	CategoryMultimodal ModelCategory = "multimodal"
	CategoryStandard   ModelCategory = "standard"
)

// OutputSchema selects the upstream response envelope variant.
type OutputSchema string

const (
	SchemaPhase    OutputSchema = "phase"
	SchemaThinking OutputSchema = "thinking"
)

// Capabilities describes what a model can do. Used to gate request features.
type Capabilities struct {
	WebSearch       bool `json:"web_search" yaml:"web_search"`
	FileUpload      bool `json:"file_upload" yaml:"file_upload"`
	ImageGeneration bool `json:"image_generation" yaml:"image_generation"`
	AudioProcessing bool `json:"audio_processing" yaml:"audio_processing"`
	ThinkingMode    bool `json:"thinking_mode" yaml:"thinking_mode"`
}

// ModelConfig is the resolved configuration for a single model. Immutable after
// the registry loads it; callers receive copies and never mutate.
type ModelConfig struct {
	ID              string        `json:"id"`
	DisplayName     string        `json:"display_name"`
	Category        ModelCategory `json:"category"`
	Temperature     float64       `json:"temperature"`
	MaxTokens       int           `json:"max_tokens"`
	ThinkingEnabled bool          `json:"thinking_enabled"`
	OutputSchema    OutputSchema  `json:"output_schema"`
	Capabilities    Capabilities  `json:"capabilities"`
}

// ModelOverride is a per-model exception applied on top of the category
// defaults, loaded from the models.yaml override file.
type ModelOverride struct {
	DisplayName     *string        `yaml:"display_name"`
	Category        *ModelCategory `yaml:"category"`
	Temperature     *float64       `yaml:"temperature"`
	MaxTokens       *int           `yaml:"max_tokens"`
	ThinkingEnabled *bool          `yaml:"thinking_enabled"`
	OutputSchema    *OutputSchema  `yaml:"output_schema"`
	Capabilities    *Capabilities  `yaml:"capabilities"`
}
