package registry

import (
	"errors"
	"testing"

	"qwenbridge/internal/models"
)

func TestResolveCategoryDefaults(t *testing.T) {
	reg := New(nil)

	tests := []struct {
		modelID     string
		category    models.ModelCategory
		temperature float64
		maxTokens   int
		thinking    bool
		schema      models.OutputSchema
	}{
		{"qwen3-235b-a22b", models.CategoryAdvanced, 0.3, 6144, true, models.SchemaPhase},
		{"qwen3-coder-plus", models.CategoryCoding, 0.1, 4096, true, models.SchemaPhase},
		{"qwq-32b", models.CategoryReasoning, 0.2, 8192, true, models.SchemaThinking},
		{"qwen2.5-vl-72b-instruct", models.CategoryVision, 0.3, 2048, false, models.SchemaPhase},
		{"qwen2.5-omni-7b", models.CategoryMultimodal, 0.3, 4096, false, models.SchemaPhase},
		{"qwen-turbo-latest", models.CategoryStandard, 0.3, 2048, false, models.SchemaPhase},
	}

	for _, tt := range tests {
		cfg, err := reg.Resolve(tt.modelID)
		if err != nil {
			t.Fatalf("Resolve(%q) failed: %v", tt.modelID, err)
		}
		if cfg.Category != tt.category {
			t.Errorf("%s: expected category %s, got %s", tt.modelID, tt.category, cfg.Category)
		}
		if cfg.Temperature != tt.temperature {
			t.Errorf("%s: expected temperature %v, got %v", tt.modelID, tt.temperature, cfg.Temperature)
		}
		if cfg.MaxTokens != tt.maxTokens {
			t.Errorf("%s: expected max tokens %d, got %d", tt.modelID, tt.maxTokens, cfg.MaxTokens)
		}
		if cfg.ThinkingEnabled != tt.thinking {
			t.Errorf("%s: expected thinking %v, got %v", tt.modelID, tt.thinking, cfg.ThinkingEnabled)
		}
		if cfg.OutputSchema != tt.schema {
			t.Errorf("%s: expected schema %s, got %s", tt.modelID, tt.schema, cfg.OutputSchema)
		}
	}
}

func TestResolveCapabilityDefaults(t *testing.T) {
	reg := New(nil)

	vision, _ := reg.Resolve("qwen2.5-vl-72b-instruct")
	if !vision.Capabilities.WebSearch || !vision.Capabilities.FileUpload {
		t.Error("Expected web search and file upload enabled for every category")
	}
	if !vision.Capabilities.ImageGeneration {
		t.Error("Expected image generation enabled for vision models")
	}
	if vision.Capabilities.AudioProcessing {
		t.Error("Expected audio processing disabled for vision models")
	}

	omni, _ := reg.Resolve("qwen2.5-omni-7b")
	if !omni.Capabilities.AudioProcessing {
		t.Error("Expected audio processing enabled for multimodal models")
	}
	if omni.Capabilities.ImageGeneration {
		t.Error("Expected image generation disabled for multimodal models")
	}

	reasoning, _ := reg.Resolve("qwq-32b")
	if !reasoning.Capabilities.ThinkingMode {
		t.Error("Expected thinking mode to mirror thinking_enabled")
	}
	standard, _ := reg.Resolve("qwen-turbo-latest")
	if standard.Capabilities.ThinkingMode {
		t.Error("Expected thinking mode disabled for standard models")
	}
}

func TestResolveUnknownModel(t *testing.T) {
	reg := New(nil)

	cfg, err := reg.Resolve("gpt-4")
	if err == nil {
		t.Fatal("Expected error for unknown model")
	}
	if !errors.Is(err, ErrUnknownModel) {
		t.Errorf("Expected ErrUnknownModel, got %v", err)
	}
	if cfg.ID != "" || cfg.Temperature != 0 {
		t.Error("Expected zero config for unknown model, got partially populated config")
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	reg := New(nil)

	first, err := reg.Resolve("qwen3-coder-plus")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, _ := reg.Resolve("qwen3-coder-plus")
		if again != first {
			t.Fatalf("Resolve returned different config on call %d: %+v vs %+v", i, again, first)
		}
	}
}

func TestOverrides(t *testing.T) {
	temp := 0.7
	tokens := 1024
	category := models.CategoryCoding

	reg := New(map[string]models.ModelOverride{
		"qwen-turbo-latest": {Temperature: &temp, MaxTokens: &tokens},
		"qwen3-30b-a3b":     {Category: &category},
	})

	turbo, err := reg.Resolve("qwen-turbo-latest")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if turbo.Temperature != 0.7 || turbo.MaxTokens != 1024 {
		t.Errorf("Override not applied: temp=%v tokens=%d", turbo.Temperature, turbo.MaxTokens)
	}
	if turbo.Category != models.CategoryStandard {
		t.Errorf("Override should not change category, got %s", turbo.Category)
	}

	added, err := reg.Resolve("qwen3-30b-a3b")
	if err != nil {
		t.Fatalf("Override-introduced model not resolvable: %v", err)
	}
	if added.Temperature != 0.1 || added.MaxTokens != 4096 {
		t.Errorf("Expected coding defaults for added model, got temp=%v tokens=%d", added.Temperature, added.MaxTokens)
	}
}
