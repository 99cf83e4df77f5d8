package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"qwenbridge/internal/database"
	"qwenbridge/internal/models"
)

// SessionStore persists the minimal conversation record. The dispatcher calls
// Ensure/Append once per successful dispatch; store failures are logged by the
// caller, never surfaced.
type SessionStore interface {
	// Ensure returns a usable session identifier, creating a record when the
	// given identifier is empty or unknown.
	Ensure(ctx context.Context, sessionID string) (string, error)
	// Append persists one exchange on the session.
	Append(ctx context.Context, sessionID string, turn models.Turn) error
	// PruneIdle deletes sessions not updated within the ttl, returning how
	// many were removed.
	PruneIdle(ctx context.Context, ttl time.Duration) (int, error)
}

// SQLiteSessionStore keeps sessions in the local SQLite database. A small
// in-memory cache short-circuits Ensure for sessions touched recently.
type SQLiteSessionStore struct {
	db    *database.DB
	known *gocache.Cache
}

// NewSQLiteSessionStore creates a session store backed by the given database.
func NewSQLiteSessionStore(db *database.DB) *SQLiteSessionStore {
	return &SQLiteSessionStore{
		db:    db,
		known: gocache.New(10*time.Minute, 30*time.Minute),
	}
}

// DB exposes the underlying connection for maintenance queries.
func (s *SQLiteSessionStore) DB() *sql.DB {
	return s.db.DB
}

func (s *SQLiteSessionStore) Ensure(ctx context.Context, sessionID string) (string, error) {
	if sessionID != "" {
		if _, hit := s.known.Get(sessionID); hit {
			return sessionID, nil
		}
		var exists int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, sessionID).Scan(&exists)
		if err == nil {
			s.known.SetDefault(sessionID, true)
			return sessionID, nil
		}
		if err != sql.ErrNoRows {
			return "", fmt.Errorf("failed to look up session: %w", err)
		}
	}

	id := sessionID
	if id == "" {
		id = uuid.New().String()
	}

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, model, created_at, updated_at) VALUES (?, '', ?, ?)
		 ON CONFLICT(id) DO NOTHING`, id, now, now)
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	s.known.SetDefault(id, true)
	return id, nil
}

func (s *SQLiteSessionStore) Append(ctx context.Context, sessionID string, turn models.Turn) error {
	created := turn.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns (session_id, prompt, response, model, transport, elapsed_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, turn.Prompt, turn.Response, turn.Model, string(turn.Transport), turn.ElapsedMs, created)
	if err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE sessions SET model = ?, updated_at = ? WHERE id = ?`,
		turn.Model, created, sessionID)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}

	return nil
}

func (s *SQLiteSessionStore) PruneIdle(ctx context.Context, ttl time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-ttl)

	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune sessions: %w", err)
	}
	// Turns cascade only when foreign keys are on; delete orphans explicitly.
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM turns WHERE session_id NOT IN (SELECT id FROM sessions)`); err != nil {
		return 0, fmt.Errorf("failed to prune turns: %w", err)
	}

	n, _ := res.RowsAffected()
	return int(n), nil
}

// RedisSessionStore keeps sessions in Redis for multi-instance deployments.
// Sessions expire via Redis TTL; PruneIdle is a no-op by design.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionStore connects to Redis and verifies the connection.
func NewRedisSessionStore(redisURL string, ttl time.Duration) (*RedisSessionStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = 10
	opts.MinIdleConns = 2
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Println("✅ Redis session store connected")
	return &RedisSessionStore{client: client, ttl: ttl}, nil
}

func sessionKey(id string) string { return "session:" + id }
func turnsKey(id string) string   { return "session:" + id + ":turns" }

func (s *RedisSessionStore) Ensure(ctx context.Context, sessionID string) (string, error) {
	id := sessionID
	if id == "" {
		id = uuid.New().String()
	}

	now := time.Now().UTC().Format(time.RFC3339)
	pipe := s.client.Pipeline()
	pipe.HSetNX(ctx, sessionKey(id), "created_at", now)
	pipe.HSet(ctx, sessionKey(id), "updated_at", now)
	pipe.Expire(ctx, sessionKey(id), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to ensure session: %w", err)
	}

	return id, nil
}

func (s *RedisSessionStore) Append(ctx context.Context, sessionID string, turn models.Turn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to marshal turn: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.RPush(ctx, turnsKey(sessionID), data)
	pipe.HSet(ctx, sessionKey(sessionID), "model", turn.Model, "updated_at", turn.CreatedAt.Format(time.RFC3339))
	pipe.Expire(ctx, turnsKey(sessionID), s.ttl)
	pipe.Expire(ctx, sessionKey(sessionID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}

	return nil
}

func (s *RedisSessionStore) PruneIdle(ctx context.Context, ttl time.Duration) (int, error) {
	// Redis expires sessions on its own.
	return 0, nil
}

// Close releases the Redis connection.
func (s *RedisSessionStore) Close() error {
	return s.client.Close()
}
