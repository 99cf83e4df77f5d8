package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"qwenbridge/internal/models"
)

// Config holds all application configuration
type Config struct {
	Port        string
	UpstreamURL string // base URL of the upstream chat service
	ChatURL     string // UI URL the browser fallback drives (defaults to UpstreamURL)

	// Auth
	StorageStatePath string // Playwright-style storage_state.json maintained by the automation side

	// Persistence
	DatabasePath string // SQLite session store
	RedisURL     string // optional; when set, sessions live in Redis instead

	// Model registry
	ModelOverridesPath string // optional models.yaml with per-model exceptions
	DefaultModel       string

	// Dispatch
	DirectTimeout     time.Duration // hard cutoff for the direct attempt
	AutomationTimeout time.Duration // budget for the browser fallback
	DirectRateLimit   float64       // direct-path requests per second
	DirectRateBurst   int

	// Browser fallback
	BrowserExecPath string
	BrowserHeadless bool

	// Session pruning
	SessionTTL    time.Duration
	PruneInterval time.Duration
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	upstream := getEnv("UPSTREAM_URL", "https://chat.qwen.ai")

	return &Config{
		Port:        getEnv("PORT", "8001"),
		UpstreamURL: upstream,
		ChatURL:     getEnv("CHAT_URL", upstream),

		StorageStatePath: getEnv("STORAGE_STATE_PATH", "./storage_state.json"),

		DatabasePath: getEnv("DATABASE_PATH", "./qwenbridge.db"),
		RedisURL:     getEnv("REDIS_URL", ""),

		ModelOverridesPath: getEnv("MODEL_OVERRIDES_PATH", ""),
		DefaultModel:       getEnv("DEFAULT_MODEL", "qwen3-235b-a22b"),

		DirectTimeout:     getDurationEnv("DIRECT_TIMEOUT", 30*time.Second),
		AutomationTimeout: getDurationEnv("AUTOMATION_TIMEOUT", 90*time.Second),
		DirectRateLimit:   getFloatEnv("DIRECT_RATE_LIMIT", 5),
		DirectRateBurst:   getIntEnv("DIRECT_RATE_BURST", 10),

		BrowserExecPath: getEnv("BROWSER_EXEC_PATH", "/usr/bin/chromium-browser"),
		BrowserHeadless: getBoolEnv("BROWSER_HEADLESS", true),

		SessionTTL:    getDurationEnv("SESSION_TTL", 72*time.Hour),
		PruneInterval: getDurationEnv("PRUNE_INTERVAL", time.Hour),
	}
}

// LoadModelOverrides loads per-model registry exceptions from a YAML file.
func LoadModelOverrides(filePath string) (map[string]models.ModelOverride, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read model overrides file: %w", err)
	}

	var overrides map[string]models.ModelOverride
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse model overrides YAML: %w", err)
	}

	return overrides, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
