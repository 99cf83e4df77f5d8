package jobs

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"qwenbridge/internal/database"
	"qwenbridge/internal/models"
	"qwenbridge/internal/services"
)

func testStore(t *testing.T) *services.SQLiteSessionStore {
	t.Helper()
	db, err := database.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Initialize(); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	return services.NewSQLiteSessionStore(db)
}

func backdate(t *testing.T, db *sql.DB, sessionID string, age time.Duration) {
	t.Helper()
	stale := time.Now().UTC().Add(-age)
	if _, err := db.Exec("UPDATE sessions SET updated_at = ? WHERE id = ?", stale, sessionID); err != nil {
		t.Fatalf("Failed to backdate session: %v", err)
	}
}

func TestSessionPrunerRunNow(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	staleID, err := store.Ensure(ctx, "")
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if err := store.Append(ctx, staleID, models.Turn{Prompt: "old", Response: "old", Model: "qwen-turbo-latest", Transport: models.TransportDirect}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	backdate(t, store.DB(), staleID, 48*time.Hour)

	freshID, err := store.Ensure(ctx, "")
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}

	pruner, err := NewSessionPruner(store, 24*time.Hour, time.Hour)
	if err != nil {
		t.Fatalf("NewSessionPruner failed: %v", err)
	}

	pruned, err := pruner.RunNow(ctx)
	if err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}
	if pruned != 1 {
		t.Errorf("Expected 1 pruned session, got %d", pruned)
	}

	var count int
	if err := store.DB().QueryRow("SELECT COUNT(*) FROM sessions WHERE id = ?", freshID).Scan(&count); err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if count != 1 {
		t.Error("Fresh session must survive the prune")
	}
}

func TestSessionPrunerStartStop(t *testing.T) {
	store := testStore(t)

	pruner, err := NewSessionPruner(store, time.Hour, time.Hour)
	if err != nil {
		t.Fatalf("NewSessionPruner failed: %v", err)
	}
	if err := pruner.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := pruner.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}
