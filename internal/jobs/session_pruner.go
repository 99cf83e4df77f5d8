package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"

	"qwenbridge/internal/services"
)

// SessionPruner periodically removes chat sessions that have been idle past
// their retention window, together with their turns.
type SessionPruner struct {
	scheduler gocron.Scheduler
	sessions  services.SessionStore
	ttl       time.Duration
	interval  time.Duration
}

// NewSessionPruner creates the pruning job. It does not start running until
// Start is called.
func NewSessionPruner(sessions services.SessionStore, ttl, interval time.Duration) (*SessionPruner, error) {
	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &SessionPruner{
		scheduler: scheduler,
		sessions:  sessions,
		ttl:       ttl,
		interval:  interval,
	}, nil
}

// Start registers the recurring prune and begins the scheduler.
func (p *SessionPruner) Start() error {
	_, err := p.scheduler.NewJob(
		gocron.DurationJob(p.interval),
		gocron.NewTask(p.runOnce),
		gocron.WithName("session-prune"),
	)
	if err != nil {
		return fmt.Errorf("failed to register prune job: %w", err)
	}

	p.scheduler.Start()
	log.Printf("⏰ Session pruner started (ttl=%v, every %v)", p.ttl, p.interval)
	return nil
}

// Stop shuts the scheduler down and waits for a running prune to finish.
func (p *SessionPruner) Stop() error {
	log.Println("⏹️ Stopping session pruner...")
	return p.scheduler.Shutdown()
}

// RunNow triggers a prune immediately, outside the schedule.
func (p *SessionPruner) RunNow(ctx context.Context) (int, error) {
	return p.sessions.PruneIdle(ctx, p.ttl)
}

func (p *SessionPruner) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pruned, err := p.sessions.PruneIdle(ctx, p.ttl)
	if err != nil {
		log.Printf("❌ Session prune failed: %v", err)
		return
	}
	if pruned > 0 {
		log.Printf("🧹 Pruned %d idle sessions", pruned)
	}
}
