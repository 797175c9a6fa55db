package config

import (
	"strings"
	"testing"
)

// mapBackend is an in-memory Backend for tests.
type mapBackend struct {
	data map[string]any
}

func newMapBackend() *mapBackend {
	return &mapBackend{data: make(map[string]any)}
}

func (m *mapBackend) GetString(key string) (string, bool, error) {
	v, ok := m.data[key]
	if !ok {
		return "", false, nil
	}
	return v.(string), true, nil
}

func (m *mapBackend) GetInt(key string) (int, bool, error) {
	v, ok := m.data[key]
	if !ok {
		return 0, false, nil
	}
	return v.(int), true, nil
}

func (m *mapBackend) SetString(key, val string) error {
	m.data[key] = val
	return nil
}

func (m *mapBackend) SetInt(key string, val int) error {
	m.data[key] = val
	return nil
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MAIIAM_REMOTE_BEARER_TOKEN", "tok-123")

	cfg, err := loadWith(newMapBackend())
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	if cfg.Remote.BaseURL != "https://builder.empromptu.ai/api_tools" {
		t.Errorf("BaseURL = %q", cfg.Remote.BaseURL)
	}
	if cfg.Server.Port != 4600 {
		t.Errorf("Port = %d, want 4600", cfg.Server.Port)
	}
	if cfg.Research.WaitSeconds != 3 {
		t.Errorf("WaitSeconds = %d, want 3", cfg.Research.WaitSeconds)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Level = %q, want info", cfg.Log.Level)
	}
	if cfg.Remote.BearerToken != "tok-123" {
		t.Errorf("BearerToken = %q", cfg.Remote.BearerToken)
	}
}

func TestLoadBackendValues(t *testing.T) {
	b := newMapBackend()
	b.data["server.port"] = 9999
	b.data["remote.bearer_token"] = "file-token"
	b.data["log.level"] = "debug"

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Remote.BearerToken != "file-token" {
		t.Errorf("BearerToken = %q, want file-token", cfg.Remote.BearerToken)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Level = %q, want debug", cfg.Log.Level)
	}
}

func TestEnvOverridesBackend(t *testing.T) {
	t.Setenv("MAIIAM_REMOTE_BEARER_TOKEN", "env-token")
	t.Setenv("MAIIAM_SERVER_PORT", "7070")

	b := newMapBackend()
	b.data["server.port"] = 9999
	b.data["remote.bearer_token"] = "file-token"

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("Port = %d, want 7070 (env should win)", cfg.Server.Port)
	}
	if cfg.Remote.BearerToken != "env-token" {
		t.Errorf("BearerToken = %q, want env-token", cfg.Remote.BearerToken)
	}
}

func TestMissingBearerToken(t *testing.T) {
	_, err := loadWith(newMapBackend())
	if err == nil {
		t.Fatal("expected error for missing bearer token")
	}
	if !strings.Contains(err.Error(), "MAIIAM_REMOTE_BEARER_TOKEN") {
		t.Errorf("error should name the env var, got: %v", err)
	}
}

func TestSetKey(t *testing.T) {
	b := newMapBackend()

	if err := setKeyWith(b, "server.port", "8080"); err != nil {
		t.Fatalf("set server.port: %v", err)
	}
	if got := b.data["server.port"]; got != 8080 {
		t.Errorf("stored port = %v, want 8080", got)
	}

	if err := setKeyWith(b, "server.port", "not-a-number"); err == nil {
		t.Error("expected error for non-integer port")
	}

	if err := setKeyWith(b, "remote.bearer_token", "x"); err == nil {
		t.Error("expected error setting a secret key")
	}

	if err := setKeyWith(b, "no.such.key", "x"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestShowAllHidesSecrets(t *testing.T) {
	t.Setenv("MAIIAM_REMOTE_BEARER_TOKEN", "super-secret")

	cfg, err := loadWith(newMapBackend())
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	for _, info := range ShowAll(cfg) {
		if info.Key == "remote.bearer_token" || info.Key == "remote.usage_key" {
			t.Errorf("secret key %s listed in ShowAll", info.Key)
		}
		if info.Value == "super-secret" {
			t.Errorf("secret value leaked via key %s", info.Key)
		}
	}
}

func TestEnsureAPITokenStable(t *testing.T) {
	b := newMapBackend()

	first, err := EnsureAPIToken(b)
	if err != nil {
		t.Fatalf("EnsureAPIToken: %v", err)
	}
	if first == "" {
		t.Fatal("empty token generated")
	}

	second, err := EnsureAPIToken(b)
	if err != nil {
		t.Fatalf("EnsureAPIToken second call: %v", err)
	}
	if second != first {
		t.Errorf("token changed between calls: %q then %q", first, second)
	}

	got, err := GetAPIToken(b)
	if err != nil {
		t.Fatalf("GetAPIToken: %v", err)
	}
	if got != first {
		t.Errorf("GetAPIToken = %q, want %q", got, first)
	}
}

func TestGetAPITokenMissing(t *testing.T) {
	if _, err := GetAPIToken(newMapBackend()); err == nil {
		t.Error("expected error when no token stored")
	}
}
