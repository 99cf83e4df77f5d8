package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// makeJWT builds an unsigned JWT with the given claims. The manager never
// verifies signatures, so "none"-style tokens are enough for tests.
func makeJWT(t *testing.T, claims map[string]interface{}) string {
	t.Helper()

	header, _ := json.Marshal(map[string]string{"alg": "HS256", "typ": "JWT"})
	body, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("Failed to marshal claims: %v", err)
	}

	enc := base64.RawURLEncoding
	return fmt.Sprintf("%s.%s.%s", enc.EncodeToString(header), enc.EncodeToString(body), enc.EncodeToString([]byte("sig")))
}

func TestParseTokenClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()
	raw := makeJWT(t, map[string]interface{}{"sub": "user-42", "exp": exp})

	tok := ParseToken(raw)
	if tok.Subject != "user-42" {
		t.Errorf("Expected subject user-42, got %q", tok.Subject)
	}
	if tok.ExpiresAt.Unix() != exp {
		t.Errorf("Expected expiry %d, got %d", exp, tok.ExpiresAt.Unix())
	}
	if !tok.Valid() {
		t.Error("Expected unexpired token to be valid")
	}
}

func TestParseTokenOpaque(t *testing.T) {
	tok := ParseToken("not-a-jwt")
	if tok.Value != "not-a-jwt" {
		t.Errorf("Expected raw value preserved, got %q", tok.Value)
	}
	if !tok.Valid() {
		t.Error("Opaque token with no expiry should still be usable")
	}
}

func TestManagerCurrentAndInvalidate(t *testing.T) {
	m := NewManager()

	if _, ok := m.Current(); ok {
		t.Error("Empty manager should report no usable token")
	}

	m.Set(Token{Value: "abc", ExpiresAt: time.Now().Add(time.Hour)})
	if _, ok := m.Current(); !ok {
		t.Error("Expected usable token after Set")
	}

	m.Invalidate()
	if _, ok := m.Current(); ok {
		t.Error("Expected no usable token after Invalidate")
	}

	// A fresh token reopens the direct path.
	m.Set(Token{Value: "def", ExpiresAt: time.Now().Add(time.Hour)})
	if _, ok := m.Current(); !ok {
		t.Error("Expected usable token after refresh")
	}
}

func TestManagerExpiredToken(t *testing.T) {
	m := NewManager()
	m.Set(Token{Value: "abc", ExpiresAt: time.Now().Add(-time.Minute)})

	if _, ok := m.Current(); ok {
		t.Error("Expired token should not be usable")
	}
}

func TestLoadFromStorageState(t *testing.T) {
	raw := makeJWT(t, map[string]interface{}{"sub": "u1", "exp": time.Now().Add(time.Hour).Unix()})

	state := map[string]interface{}{
		"origins": []map[string]interface{}{
			{
				"origin": "https://chat.qwen.ai",
				"localStorage": []map[string]string{
					{"name": "theme", "value": "dark"},
					{"name": "token", "value": raw},
				},
			},
		},
	}
	data, _ := json.Marshal(state)

	path := filepath.Join(t.TempDir(), "storage_state.json")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("Failed to write storage state: %v", err)
	}

	tok, err := LoadFromStorageState(path, "https://chat.qwen.ai")
	if err != nil {
		t.Fatalf("LoadFromStorageState failed: %v", err)
	}
	if tok.Value != raw || tok.Subject != "u1" {
		t.Errorf("Unexpected token: %+v", tok)
	}
}

func TestLoadFromStorageStateMissingOrigin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage_state.json")
	os.WriteFile(path, []byte(`{"origins":[]}`), 0600)

	_, err := LoadFromStorageState(path, "https://chat.qwen.ai")
	if !errors.Is(err, ErrNoToken) {
		t.Errorf("Expected ErrNoToken, got %v", err)
	}
}
