package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8001" {
		t.Errorf("Expected default port 8001, got %s", cfg.Port)
	}
	if cfg.UpstreamURL != "https://chat.qwen.ai" {
		t.Errorf("Unexpected default upstream URL: %s", cfg.UpstreamURL)
	}
	if cfg.ChatURL != cfg.UpstreamURL {
		t.Errorf("ChatURL should default to UpstreamURL, got %s", cfg.ChatURL)
	}
	if cfg.DirectTimeout != 30*time.Second {
		t.Errorf("Expected 30s direct timeout, got %v", cfg.DirectTimeout)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DIRECT_TIMEOUT", "5s")
	t.Setenv("BROWSER_HEADLESS", "false")
	t.Setenv("DIRECT_RATE_LIMIT", "2.5")

	cfg := Load()

	if cfg.Port != "9000" {
		t.Errorf("Expected port 9000, got %s", cfg.Port)
	}
	if cfg.DirectTimeout != 5*time.Second {
		t.Errorf("Expected 5s direct timeout, got %v", cfg.DirectTimeout)
	}
	if cfg.BrowserHeadless {
		t.Error("Expected headless disabled")
	}
	if cfg.DirectRateLimit != 2.5 {
		t.Errorf("Expected rate limit 2.5, got %v", cfg.DirectRateLimit)
	}
}

func TestLoadModelOverrides(t *testing.T) {
	content := `
qwen-turbo-latest:
  temperature: 0.5
  max_tokens: 1024
qwen3-30b-a3b:
  category: coding
  display_name: "Qwen3 30B"
`
	path := filepath.Join(t.TempDir(), "models.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write overrides file: %v", err)
	}

	overrides, err := LoadModelOverrides(path)
	if err != nil {
		t.Fatalf("LoadModelOverrides failed: %v", err)
	}

	turbo, ok := overrides["qwen-turbo-latest"]
	if !ok {
		t.Fatal("Expected qwen-turbo-latest override")
	}
	if turbo.Temperature == nil || *turbo.Temperature != 0.5 {
		t.Errorf("Expected temperature override 0.5, got %v", turbo.Temperature)
	}
	if turbo.MaxTokens == nil || *turbo.MaxTokens != 1024 {
		t.Errorf("Expected max_tokens override 1024, got %v", turbo.MaxTokens)
	}

	added, ok := overrides["qwen3-30b-a3b"]
	if !ok || added.Category == nil || string(*added.Category) != "coding" {
		t.Errorf("Expected coding category override, got %+v", added)
	}
}

func TestLoadModelOverridesMissingFile(t *testing.T) {
	_, err := LoadModelOverrides("/nonexistent/models.yaml")
	if err == nil {
		t.Error("Expected error for missing overrides file")
	}
}
