package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"qwenbridge/internal/models"
)

// Page selectors for the upstream chat UI. Kept in one place because the UI
// changes more often than the structured API.
const (
	selPromptInput  = `textarea[placeholder], div[contenteditable="true"]`
	selSendButton   = `button[type="submit"], button[aria-label="Send"]`
	selStopButton   = `button[aria-label="Stop"]`
	selLastResponse = `.message-assistant:last-of-type, [data-role="assistant"]:last-of-type`
	selWebSearch    = `button[aria-label="Web Search"]`
	selResponseImg  = `.message-assistant:last-of-type img`
)

// BrowserClientConfig configures the automation fallback.
type BrowserClientConfig struct {
	ChatURL  string
	ExecPath string
	Headless bool
	Timeout  time.Duration
}

// BrowserClient reproduces the chat interaction by driving the upstream web
// UI headlessly. Slower than the direct path by an order of magnitude or two,
// but it works whenever a human with a browser would.
type BrowserClient struct {
	cfg BrowserClientConfig
}

// NewBrowserClient creates the automation fallback client.
func NewBrowserClient(cfg BrowserClientConfig) *BrowserClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	return &BrowserClient{cfg: cfg}
}

// Send drives the UI through one full exchange and returns the rendered
// response text atomically. There is no transport beneath this one: every
// failure here is terminal for the dispatch.
func (b *BrowserClient) Send(ctx context.Context, payload *models.RequestPayload) (*models.DispatchResult, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)
	if b.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.cfg.ExecPath))
	}
	if !b.cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(attemptCtx, opts...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	url := b.chatPageURL(payload.ChatID)
	log.Printf("🌐 Browser fallback navigating to %s", url)

	var responseText string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitVisible(selPromptInput, chromedp.ByQuery),
		b.toggleWebSearch(payload.WebSearch),
		chromedp.SendKeys(selPromptInput, payload.Prompt, chromedp.ByQuery),
		chromedp.Click(selSendButton, chromedp.ByQuery),
		b.waitForCompletion(),
		chromedp.Text(selLastResponse, &responseText, chromedp.ByQuery),
	)
	if err != nil {
		return nil, b.classify(ctx, attemptCtx, err)
	}

	responseText = strings.TrimSpace(responseText)
	if responseText == "" {
		return nil, automationError(KindAutomationElementNotFound, "response element rendered empty", nil)
	}

	result := &models.DispatchResult{
		Success:   true,
		Response:  responseText,
		ChatID:    payload.ChatID,
		Transport: models.TransportFallback,
	}

	// Vision models may answer with a generated image; best effort only.
	if payload.Model.Capabilities.ImageGeneration {
		var imgURL string
		var ok bool
		if err := chromedp.Run(browserCtx,
			chromedp.AttributeValue(selResponseImg, "src", &imgURL, &ok, chromedp.ByQuery),
		); err == nil && ok {
			result.ImageURL = imgURL
		}
	}

	return result, nil
}

func (b *BrowserClient) chatPageURL(chatID string) string {
	base := strings.TrimRight(b.cfg.ChatURL, "/")
	if chatID == "" {
		return base
	}
	return fmt.Sprintf("%s/c/%s", base, chatID)
}

func (b *BrowserClient) toggleWebSearch(enabled bool) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if !enabled {
			return nil
		}
		// The toggle is optional UI; its absence is not worth failing over.
		var nodes []*cdp.Node
		if err := chromedp.Nodes(selWebSearch, &nodes, chromedp.ByQuery, chromedp.AtLeast(0)).Do(ctx); err != nil || len(nodes) == 0 {
			return nil
		}
		return chromedp.Click(selWebSearch, chromedp.ByQuery).Do(ctx)
	})
}

// waitForCompletion polls until generation finishes: the stop button
// disappears once the UI stops streaming.
func (b *BrowserClient) waitForCompletion() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()

		// Give the UI a moment to enter the streaming state before watching
		// for it to leave it.
		started := time.Now()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}

			var nodes []*cdp.Node
			if err := chromedp.Nodes(selStopButton, &nodes, chromedp.ByQuery, chromedp.AtLeast(0)).Do(ctx); err != nil {
				return err
			}
			if len(nodes) == 0 && time.Since(started) > 2*time.Second {
				return nil
			}
		}
	})
}

// classify maps chromedp failures onto the automation error taxonomy.
func (b *BrowserClient) classify(parent, attempt context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if attempt.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return automationError(KindAutomationTimeout, "UI did not finish before cutoff", err)
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "could not find node") ||
		strings.Contains(msg, "waiting for selector") ||
		strings.Contains(msg, "no nodes") {
		return automationError(KindAutomationElementNotFound, "expected UI element missing", err)
	}

	return automationError(KindAutomationCrashed, "browser session failed", err)
}
