package models

import "time"

// Transport identifies which path served a dispatch.
type Transport string

const (
	TransportDirect   Transport = "direct"
	TransportFallback Transport = "fallback"
)

// FeatureFlags carries per-request feature toggles from the caller.
type FeatureFlags struct {
	WebSearch bool `json:"web_search"`
}

// RequestPayload is the transport-agnostic request built once per dispatch and
// handed to whichever client ends up serving it.
type RequestPayload struct {
	Prompt        string
	Model         ModelConfig
	ChatID        string // empty means the upstream should start a new conversation
	WebSearch     bool
	Extras        map[string]interface{} // category-specific wire fields (code_mode, reasoning_mode, ...)
	CorrelationID string
	Warnings      []string
}

// DispatchResult is the only value returned to callers. Transport-specific wire
// shapes never leak through it.
type DispatchResult struct {
	Success   bool          `json:"success"`
	Response  string        `json:"response,omitempty"`
	ImageURL  string        `json:"image_url,omitempty"`
	ChatID    string        `json:"chat_id,omitempty"`
	Transport Transport     `json:"transport,omitempty"`
	Elapsed   time.Duration `json:"-"`
	ElapsedMs int64         `json:"elapsed_ms"`
	Warnings  []string      `json:"warnings,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// ChatSession is the minimal conversation record the session store persists.
type ChatSession struct {
	ID        string    `json:"id"`
	Model     string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Turn is one persisted exchange: the user prompt plus the assistant response.
type Turn struct {
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	Model     string    `json:"model,omitempty"`
	Transport Transport `json:"transport"`
	ElapsedMs int64     `json:"elapsed_ms"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationSummary is one entry from the upstream conversation listing.
type ConversationSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title,omitempty"`
	UpdatedAt int64  `json:"updated_at,omitempty"`
}

// TransportStats holds the running counters for one transport.
type TransportStats struct {
	Calls        int64   `json:"calls"`
	Successes    int64   `json:"successes"`
	Failures     int64   `json:"failures"`
	TotalSeconds float64 `json:"total_seconds"`
	AvgSeconds   float64 `json:"avg_seconds"`
}

// PerformanceSnapshot is a point-in-time view of comparative transport
// performance. SpeedImprovement (avg fallback / avg direct) is nil unless both
// transports have at least one recorded call.
type PerformanceSnapshot struct {
	Direct           TransportStats `json:"direct"`
	Fallback         TransportStats `json:"fallback"`
	DirectSkips      int64          `json:"direct_skips"`
	SpeedImprovement *float64       `json:"speed_improvement,omitempty"`
}
