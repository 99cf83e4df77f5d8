package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoToken is returned by loaders when no bearer token can be found.
var ErrNoToken = errors.New("no auth token available")

// Token is the bearer credential for the direct path. Expiry and subject come
// from the JWT claims; the upstream service owns the signing secret, so the
// signature is never verified here.
type Token struct {
	Value     string
	ExpiresAt time.Time
	Subject   string
}

// Valid reports whether the token exists and has not expired.
func (t Token) Valid() bool {
	if t.Value == "" {
		return false
	}
	if t.ExpiresAt.IsZero() {
		return true
	}
	return time.Now().Before(t.ExpiresAt)
}

// Manager holds the current token. Shared read-only by concurrent dispatches;
// refresh happens out of process and arrives via Set or the file watcher.
type Manager struct {
	mu    sync.RWMutex
	token Token
}

// NewManager creates an empty token manager.
func NewManager() *Manager {
	return &Manager{}
}

// Current returns the held token and whether it is usable for a direct attempt.
func (m *Manager) Current() (Token, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, m.token.Valid()
}

// Set replaces the held token.
func (m *Manager) Set(t Token) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = t
}

// Invalidate marks the held token expired immediately. Used when the direct
// client observes a 401/403; the direct path stays closed until an external
// refresh lands a fresh token.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token.Value != "" {
		m.token.ExpiresAt = time.Unix(0, 0)
	}
}

// ParseToken builds a Token from a raw JWT string, extracting exp and sub
// claims without signature verification. A non-JWT string is still usable as
// an opaque bearer token with no known expiry.
func ParseToken(raw string) Token {
	t := Token{Value: raw}

	parsed, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return t
	}
	if exp, err := parsed.Claims.GetExpirationTime(); err == nil && exp != nil {
		t.ExpiresAt = exp.Time
	}
	if sub, err := parsed.Claims.GetSubject(); err == nil {
		t.Subject = sub
	}
	return t
}

// storageState mirrors the browser profile dump the automation side maintains.
type storageState struct {
	Origins []struct {
		Origin       string `json:"origin"`
		LocalStorage []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"localStorage"`
	} `json:"origins"`
}

// LoadFromStorageState extracts the bearer token from a Playwright-style
// storage_state.json for the given origin.
func LoadFromStorageState(path, origin string) (Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Token{}, fmt.Errorf("failed to read storage state: %w", err)
	}

	var state storageState
	if err := json.Unmarshal(data, &state); err != nil {
		return Token{}, fmt.Errorf("failed to parse storage state: %w", err)
	}

	for _, o := range state.Origins {
		if o.Origin != origin {
			continue
		}
		for _, item := range o.LocalStorage {
			if item.Name == "token" && item.Value != "" {
				return ParseToken(item.Value), nil
			}
		}
	}

	return Token{}, fmt.Errorf("%w: origin %s not found in %s", ErrNoToken, origin, path)
}

// LoadIntoManager loads the storage state file and installs the token.
func LoadIntoManager(m *Manager, path, origin string) error {
	tok, err := LoadFromStorageState(path, origin)
	if err != nil {
		return err
	}
	m.Set(tok)
	if tok.ExpiresAt.IsZero() {
		log.Printf("🔑 Auth token loaded (subject: %s, no expiry claim)", tok.Subject)
	} else {
		log.Printf("🔑 Auth token loaded (subject: %s, expires: %s)", tok.Subject, tok.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}
