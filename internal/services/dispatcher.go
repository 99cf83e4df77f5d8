package services

import (
	"context"
	"log"
	"time"

	"qwenbridge/internal/auth"
	"qwenbridge/internal/logging"
	"qwenbridge/internal/models"
	"qwenbridge/internal/payload"
	"qwenbridge/internal/registry"
)

// DirectTransport is the fast structured path.
type DirectTransport interface {
	Send(ctx context.Context, p *models.RequestPayload, token auth.Token, timeout time.Duration) (*models.DispatchResult, error)
}

// FallbackTransport is the slow UI-driving path. No transport exists beneath
// it; its failures are the dispatch's final word.
type FallbackTransport interface {
	Send(ctx context.Context, p *models.RequestPayload) (*models.DispatchResult, error)
}

// Dispatcher decides which transport serves a request, applies the direct
// cutoff, escalates to the fallback exactly once, and keeps the performance
// counters honest. Construction wires in all shared state explicitly; there
// are no package-level singletons.
type Dispatcher struct {
	registry      *registry.Registry
	tokens        *auth.Manager
	direct        DirectTransport
	fallback      FallbackTransport
	sessions      SessionStore
	perf          *PerformanceTracker
	directTimeout time.Duration
}

// NewDispatcher creates the orchestrator. sessions may be nil when
// persistence is disabled.
func NewDispatcher(
	reg *registry.Registry,
	tokens *auth.Manager,
	direct DirectTransport,
	fallback FallbackTransport,
	sessions SessionStore,
	perf *PerformanceTracker,
	directTimeout time.Duration,
) *Dispatcher {
	return &Dispatcher{
		registry:      reg,
		tokens:        tokens,
		direct:        direct,
		fallback:      fallback,
		sessions:      sessions,
		perf:          perf,
		directTimeout: directTimeout,
	}
}

// Dispatch runs one request through the transport state machine.
//
// Configuration errors (unknown model, empty prompt) reject before any
// network activity and never trigger the fallback. Direct failures convert
// into a single fallback attempt and stay out of the caller's view. A
// caller-cancelled dispatch records nothing.
func (d *Dispatcher) Dispatch(ctx context.Context, prompt, modelID, sessionID string, webSearch bool) (*models.DispatchResult, error) {
	cfg, err := d.registry.Resolve(modelID)
	if err != nil {
		return nil, err
	}

	p, err := payload.Build(prompt, cfg, sessionID, models.FeatureFlags{WebSearch: webSearch})
	if err != nil {
		return nil, err
	}

	logger := logging.WithDispatch(p.CorrelationID, cfg.ID)
	start := time.Now()

	if token, ok := d.tokens.Current(); ok {
		res, derr := d.direct.Send(ctx, p, token, d.directTimeout)
		if derr == nil {
			elapsed := time.Since(start)
			d.perf.Record(models.TransportDirect, elapsed, true)
			d.finalize(res, p, elapsed)
			logger.Info("dispatch served", "transport", "direct", "elapsed", elapsed)
			return res, nil
		}
		if ctx.Err() != nil {
			// Caller went away mid-attempt: no metrics, no fallback.
			return nil, ctx.Err()
		}
		// Direct failures are implementation detail: logged, converted to a
		// single fallback attempt, never surfaced.
		d.perf.Record(models.TransportDirect, time.Since(start), false)
		log.Printf("⚠️  Direct API failed (%s), falling back to browser: %v", KindOf(derr), derr)
	} else {
		// No usable token: skip the direct attempt entirely. Counted as a
		// skip, not a direct failure.
		d.perf.RecordDirectSkip()
		log.Println("🔄 No valid auth token, using browser fallback directly")
	}

	res, ferr := d.fallback.Send(ctx, p)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	elapsed := time.Since(start)

	if ferr != nil {
		d.perf.Record(models.TransportFallback, elapsed, false)
		logger.Error("dispatch failed", "transport", "fallback", "elapsed", elapsed, "error", ferr)
		return &models.DispatchResult{
			Success:   false,
			Transport: models.TransportFallback,
			Elapsed:   elapsed,
			ElapsedMs: elapsed.Milliseconds(),
			Warnings:  p.Warnings,
			Error:     ferr.Error(),
		}, ferr
	}

	d.perf.Record(models.TransportFallback, elapsed, true)
	res.Transport = models.TransportFallback
	d.finalize(res, p, elapsed)
	logger.Info("dispatch served", "transport", "fallback", "elapsed", elapsed)
	return res, nil
}

// finalize stamps shared result fields and persists the exchange. Store
// failures are logged and never fail a dispatch that already succeeded.
func (d *Dispatcher) finalize(res *models.DispatchResult, p *models.RequestPayload, elapsed time.Duration) {
	res.Success = true
	res.Elapsed = elapsed
	res.ElapsedMs = elapsed.Milliseconds()
	res.Warnings = append(res.Warnings, p.Warnings...)

	if d.sessions == nil {
		return
	}

	// Persistence runs on its own context: the caller may disconnect right
	// after receiving the result.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sid, err := d.sessions.Ensure(ctx, res.ChatID)
	if err != nil {
		log.Printf("⚠️  Session store ensure failed: %v", err)
		return
	}
	res.ChatID = sid

	turn := models.Turn{
		Prompt:    p.Prompt,
		Response:  res.Response,
		Model:     p.Model.ID,
		Transport: res.Transport,
		ElapsedMs: elapsed.Milliseconds(),
	}
	if err := d.sessions.Append(ctx, sid, turn); err != nil {
		log.Printf("⚠️  Session store append failed: %v", err)
	}
}
