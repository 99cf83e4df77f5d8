package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"qwenbridge/internal/auth"
	"qwenbridge/internal/models"
)

const (
	defaultTemperature = 0.3
	defaultMaxTokens   = 2048
)

// TokenInvalidator is the hook the direct client uses to close the direct
// path after an auth rejection.
type TokenInvalidator interface {
	Invalidate()
}

// DirectClient talks to the upstream structured API: one POST per dispatch,
// response consumed as an SSE stream and reassembled into the final text.
type DirectClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	tokens     TokenInvalidator
}

// NewDirectClient creates a direct client. limiter and tokens may be nil.
func NewDirectClient(baseURL string, limiter *rate.Limiter, tokens TokenInvalidator) *DirectClient {
	return &DirectClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		// No client-level timeout: the per-attempt deadline comes from the
		// caller's context so the stream can run up to the dispatch cutoff.
		httpClient: &http.Client{},
		limiter:    limiter,
		tokens:     tokens,
	}
}

// Send issues the chat completion request and reassembles the streamed
// fragments. The timeout is a hard cutoff: when it fires the transport is
// cancelled and the attempt reports a direct timeout.
func (c *DirectClient) Send(ctx context.Context, payload *models.RequestPayload, token auth.Token, timeout time.Duration) (*models.DispatchResult, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(attemptCtx); err != nil {
			return nil, c.classifyContextErr(ctx, attemptCtx, err)
		}
	}

	chatID := payload.ChatID
	if chatID == "" {
		created, err := c.CreateChat(attemptCtx, token)
		if err != nil {
			return nil, err
		}
		chatID = created
	}

	body, err := json.Marshal(c.buildWireRequest(payload, chatID))
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v2/chat/completions?chat_id=%s", c.baseURL, chatID)
	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	c.setHeaders(req, token)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.classifyContextErr(ctx, attemptCtx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.classifyStatus(resp)
	}

	text, err := c.consumeStream(ctx, attemptCtx, resp.Body)
	if err != nil {
		return nil, err
	}

	return &models.DispatchResult{
		Success:   true,
		Response:  text,
		ChatID:    chatID,
		Transport: models.TransportDirect,
	}, nil
}

// consumeStream reassembles content fragments in arrival order. Fragments may
// carry a monotonically increasing sequence marker; a duplicate or
// out-of-order marker fails the whole attempt.
func (c *DirectClient) consumeStream(parent, attempt context.Context, body io.Reader) (string, error) {
	scanner := bufio.NewScanner(body)

	// Large fragments overflow the default 64KB token limit.
	const maxCapacity = 1024 * 1024
	buf := make([]byte, maxCapacity)
	scanner.Buffer(buf, maxCapacity)

	var full strings.Builder
	lastSeq := int64(-1)
	sawTerminal := false
	sawData := false

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			sawTerminal = true
			break
		}

		var chunk map[string]interface{}
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		sawData = true

		if seq, ok := chunk["seq"].(float64); ok {
			if int64(seq) <= lastSeq {
				return "", directError(KindStreamReorderDetected, 0,
					fmt.Sprintf("sequence marker %d after %d", int64(seq), lastSeq), nil)
			}
			lastSeq = int64(seq)
		}

		choices, ok := chunk["choices"].([]interface{})
		if !ok || len(choices) == 0 {
			continue
		}
		choice, ok := choices[0].(map[string]interface{})
		if !ok {
			continue
		}

		if delta, ok := choice["delta"].(map[string]interface{}); ok {
			if content, ok := delta["content"].(string); ok {
				full.WriteString(content)
			}
		}

		if reason, ok := choice["finish_reason"].(string); ok && reason != "" {
			sawTerminal = true
			break
		}
	}

	if err := scanner.Err(); err != nil {
		return "", c.classifyContextErr(parent, attempt, err)
	}
	if attempt.Err() != nil {
		return "", c.classifyContextErr(parent, attempt, attempt.Err())
	}
	if !sawTerminal {
		if !sawData {
			return "", directError(KindDirectMalformedResponse, 0, "response is not an event stream", nil)
		}
		return "", directError(KindDirectMalformedResponse, 0, "stream ended without a terminal event", nil)
	}

	return full.String(), nil
}

// CreateChat starts a new upstream conversation and returns its identifier.
func (c *DirectClient) CreateChat(ctx context.Context, token auth.Token) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v2/chats/new", strings.NewReader("{}"))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	c.setHeaders(req, token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", c.classifyContextErr(ctx, ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", c.classifyStatus(resp)
	}

	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.Data.ID == "" {
		return "", directError(KindDirectMalformedResponse, resp.StatusCode, "chat creation response missing id", err)
	}

	log.Printf("💬 Created upstream chat %s", out.Data.ID)
	return out.Data.ID, nil
}

// ListConversations fetches one page of the upstream conversation list.
func (c *DirectClient) ListConversations(ctx context.Context, token auth.Token, page int) ([]models.ConversationSummary, error) {
	if page < 1 {
		page = 1
	}
	url := fmt.Sprintf("%s/api/v2/chats/?page=%d", c.baseURL, page)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	c.setHeaders(req, token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.classifyContextErr(ctx, ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.classifyStatus(resp)
	}

	var out struct {
		Data []models.ConversationSummary `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, directError(KindDirectMalformedResponse, resp.StatusCode, "conversation list not decodable", err)
	}

	return out.Data, nil
}

// buildWireRequest shapes the upstream completion envelope from the
// transport-agnostic payload.
func (c *DirectClient) buildWireRequest(payload *models.RequestPayload, chatID string) map[string]interface{} {
	now := time.Now().Unix()
	cfg := payload.Model

	featureConfig := map[string]interface{}{
		"thinking_enabled": cfg.ThinkingEnabled,
		"output_schema":    string(cfg.OutputSchema),
	}
	if payload.WebSearch {
		featureConfig["web_search"] = true
	}

	message := map[string]interface{}{
		"fid":         uuid.New().String(),
		"parentId":    nil,
		"childrenIds": []string{},
		"role":        "user",
		"content":     payload.Prompt,
		"user_action": "chat",
		"files":       []interface{}{},
		"timestamp":   now,
		"models":      []string{cfg.ID},
		"chat_type":   "t2t",
		"feature_config": featureConfig,
		"extra": map[string]interface{}{
			"meta": map[string]interface{}{"subChatType": "t2t"},
		},
		"sub_chat_type": "t2t",
		"parent_id":     nil,
	}

	wire := map[string]interface{}{
		"stream":             true,
		"incremental_output": true,
		"chat_id":            chatID,
		"chat_mode":          "normal",
		"model":              cfg.ID,
		"parent_id":          nil,
		"messages":           []interface{}{message},
		"timestamp":          now,
		"turn_id":            payload.CorrelationID,
		"modelIdx":           0,
	}

	for k, v := range payload.Extras {
		wire[k] = v
	}

	// Generation settings ride along only when they differ from the baseline.
	if cfg.Temperature != defaultTemperature {
		wire["temperature"] = cfg.Temperature
	}
	if cfg.MaxTokens != defaultMaxTokens {
		wire["max_tokens"] = cfg.MaxTokens
	}

	return wire
}

func (c *DirectClient) setHeaders(req *http.Request, token auth.Token) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Origin", c.baseURL)
	req.Header.Set("Referer", c.baseURL+"/")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if token.Value != "" {
		req.Header.Set("Authorization", "Bearer "+token.Value)
	}
}

// classifyStatus maps a non-2xx upstream response to the error taxonomy.
// 401/403 also close the direct path until an external token refresh.
func (c *DirectClient) classifyStatus(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(snippet))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		if c.tokens != nil {
			c.tokens.Invalidate()
			log.Printf("🔒 Direct API rejected token (status %d), direct path closed until refresh", resp.StatusCode)
		}
		return directError(KindDirectAuthFailure, resp.StatusCode, msg, nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return directError(KindDirectRateLimited, resp.StatusCode, msg, nil)
	case resp.StatusCode >= 500:
		return directError(KindDirectServerError, resp.StatusCode, msg, nil)
	default:
		return directError(KindDirectMalformedResponse, resp.StatusCode, msg, nil)
	}
}

// classifyContextErr separates the attempt deadline (a direct timeout) from a
// caller cancellation, which must propagate untouched so nothing is recorded.
func (c *DirectClient) classifyContextErr(parent, attempt context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if attempt.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return directError(KindDirectTimeout, 0, "no terminal event before cutoff", err)
	}
	return directError(KindDirectServerError, 0, "transport failure", err)
}
