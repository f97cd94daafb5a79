package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing http", func(c *Config) { c.HTTP = nil }},
		{"bad port", func(c *Config) { c.HTTP.Port = 0 }},
		{"port too high", func(c *Config) { c.HTTP.Port = 70000 }},
		{"empty host", func(c *Config) { c.HTTP.Host = "" }},
		{"zero read timeout", func(c *Config) { c.HTTP.ReadTimeout = 0 }},
		{"missing websocket", func(c *Config) { c.WebSocket = nil }},
		{"zero ping interval", func(c *Config) { c.WebSocket.PingInterval = 0 }},
		{"zero buffer size", func(c *Config) { c.WebSocket.BufferSize = 0 }},
		{"missing log dsn", func(c *Config) { c.Log.DSN = "" }},
		{"missing auth secret", func(c *Config) { c.Auth.Secret = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			if err := config.Validate(); err == nil {
				t.Error("Expected validation to fail")
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LIVEROOM_HTTP_PORT", "9090")
	t.Setenv("LIVEROOM_WEBSOCKET_PING_INTERVAL", "15s")
	t.Setenv("LIVEROOM_AUTH_SECRET", "env-secret")

	config := LoadFromEnv()

	if config.HTTP.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", config.HTTP.Port)
	}
	if config.WebSocket.PingInterval != 15*time.Second {
		t.Errorf("Expected 15s ping interval, got %v", config.WebSocket.PingInterval)
	}
	if config.Auth.Secret != "env-secret" {
		t.Errorf("Expected env secret, got %q", config.Auth.Secret)
	}
	if config.HTTP.Host != "0.0.0.0" {
		t.Errorf("Expected default host to survive, got %q", config.HTTP.Host)
	}
}

func TestLoadFromEnvIgnoresMalformedValues(t *testing.T) {
	t.Setenv("LIVEROOM_HTTP_PORT", "not-a-port")
	t.Setenv("LIVEROOM_HTTP_READ_TIMEOUT", "soon")

	config := LoadFromEnv()

	if config.HTTP.Port != 8080 {
		t.Errorf("Expected default port on malformed value, got %d", config.HTTP.Port)
	}
	if config.HTTP.ReadTimeout != 30*time.Second {
		t.Errorf("Expected default timeout on malformed value, got %v", config.HTTP.ReadTimeout)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"http": {"port": 9000, "read_timeout": "45s"},
		"auth": {"secret": "file-secret"}
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	config, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("Expected load to succeed, got %v", err)
	}
	if config.HTTP.Port != 9000 {
		t.Errorf("Expected port 9000, got %d", config.HTTP.Port)
	}
	if config.HTTP.ReadTimeout != 45*time.Second {
		t.Errorf("Expected 45s read timeout, got %v", config.HTTP.ReadTimeout)
	}
	if config.Auth.Secret != "file-secret" {
		t.Errorf("Expected file secret, got %q", config.Auth.Secret)
	}
	if config.WebSocket.PingInterval != 30*time.Second {
		t.Errorf("Expected default ping interval, got %v", config.WebSocket.PingInterval)
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	if _, err := LoadFromFile("/nonexistent/config.json"); err == nil {
		t.Error("Expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("Expected error for malformed JSON")
	}
}

func TestLoadWithPrecedenceFileWins(t *testing.T) {
	t.Setenv("LIVEROOM_HTTP_PORT", "9090")

	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"http": {"port": 7070}}`), 0o600); err != nil {
		t.Fatal(err)
	}

	config := LoadWithPrecedence(path)
	if config.HTTP.Port != 7070 {
		t.Errorf("Expected file port to win, got %d", config.HTTP.Port)
	}
}

func TestLoadWithPrecedenceBrokenFileFallsBack(t *testing.T) {
	t.Setenv("LIVEROOM_HTTP_PORT", "9090")

	config := LoadWithPrecedence("/nonexistent/config.json")
	if config.HTTP.Port != 9090 {
		t.Errorf("Expected env port on missing file, got %d", config.HTTP.Port)
	}
}
