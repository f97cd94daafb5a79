package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the server-wide configuration.
type Config struct {
	HTTP      *HTTPConfig      `json:"http"`
	WebSocket *WebSocketConfig `json:"websocket"`
	Log       *LogConfig       `json:"log"`
	Auth      *AuthConfig      `json:"auth"`
}

type HTTPConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

type WebSocketConfig struct {
	PingInterval time.Duration `json:"ping_interval"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	BufferSize   int           `json:"buffer_size"`
}

// LogConfig selects the session log database. The default DSN is the
// in-memory database; the log must not outlive the process.
type LogConfig struct {
	DSN string `json:"dsn"`
}

// AuthConfig holds the join-token verification secret shared with the
// identity service.
type AuthConfig struct {
	Secret string `json:"secret"`
}

// DefaultConfig returns working defaults for local development.
func DefaultConfig() *Config {
	return &Config{
		HTTP: &HTTPConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		WebSocket: &WebSocketConfig{
			PingInterval: 30 * time.Second,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 10 * time.Second,
			BufferSize:   100,
		},
		Log: &LogConfig{
			DSN: "file:liveroom?mode=memory&cache=shared",
		},
		Auth: &AuthConfig{
			Secret: "liveroom-dev-secret",
		},
	}
}

// Validate rejects configurations that cannot run.
func (c *Config) Validate() error {
	if c.HTTP == nil {
		return fmt.Errorf("HTTP configuration is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP timeouts must be positive")
	}
	if c.WebSocket == nil {
		return fmt.Errorf("WebSocket configuration is required")
	}
	if c.WebSocket.PingInterval <= 0 || c.WebSocket.ReadTimeout <= 0 || c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket intervals must be positive")
	}
	if c.WebSocket.BufferSize <= 0 {
		return fmt.Errorf("WebSocket buffer size must be positive")
	}
	if c.Log == nil || c.Log.DSN == "" {
		return fmt.Errorf("session log DSN is required")
	}
	if c.Auth == nil || c.Auth.Secret == "" {
		return fmt.Errorf("auth secret is required")
	}
	return nil
}

// LoadFromEnv overlays LIVEROOM_* environment variables on defaults.
func LoadFromEnv() *Config {
	config := DefaultConfig()

	if host := os.Getenv("LIVEROOM_HTTP_HOST"); host != "" {
		config.HTTP.Host = host
	}
	if port := os.Getenv("LIVEROOM_HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.HTTP.Port = p
		}
	}
	if timeout := os.Getenv("LIVEROOM_HTTP_READ_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.HTTP.ReadTimeout = d
		}
	}
	if timeout := os.Getenv("LIVEROOM_HTTP_WRITE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.HTTP.WriteTimeout = d
		}
	}
	if interval := os.Getenv("LIVEROOM_WEBSOCKET_PING_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			config.WebSocket.PingInterval = d
		}
	}
	if timeout := os.Getenv("LIVEROOM_WEBSOCKET_READ_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.WebSocket.ReadTimeout = d
		}
	}
	if timeout := os.Getenv("LIVEROOM_WEBSOCKET_WRITE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.WebSocket.WriteTimeout = d
		}
	}
	if size := os.Getenv("LIVEROOM_WEBSOCKET_BUFFER_SIZE"); size != "" {
		if n, err := strconv.Atoi(size); err == nil {
			config.WebSocket.BufferSize = n
		}
	}
	if dsn := os.Getenv("LIVEROOM_LOG_DSN"); dsn != "" {
		config.Log.DSN = dsn
	}
	if secret := os.Getenv("LIVEROOM_AUTH_SECRET"); secret != "" {
		config.Auth.Secret = secret
	}

	return config
}

// configFile mirrors Config with string durations for JSON parsing.
type configFile struct {
	HTTP *struct {
		Host         string `json:"host"`
		Port         int    `json:"port"`
		ReadTimeout  string `json:"read_timeout"`
		WriteTimeout string `json:"write_timeout"`
	} `json:"http"`
	WebSocket *struct {
		PingInterval string `json:"ping_interval"`
		ReadTimeout  string `json:"read_timeout"`
		WriteTimeout string `json:"write_timeout"`
		BufferSize   int    `json:"buffer_size"`
	} `json:"websocket"`
	Log  *LogConfig  `json:"log"`
	Auth *AuthConfig `json:"auth"`
}

// LoadFromFile reads a JSON configuration file over defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file configFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config := DefaultConfig()

	if file.HTTP != nil {
		if file.HTTP.Host != "" {
			config.HTTP.Host = file.HTTP.Host
		}
		if file.HTTP.Port > 0 {
			config.HTTP.Port = file.HTTP.Port
		}
		if d, err := time.ParseDuration(file.HTTP.ReadTimeout); err == nil && file.HTTP.ReadTimeout != "" {
			config.HTTP.ReadTimeout = d
		}
		if d, err := time.ParseDuration(file.HTTP.WriteTimeout); err == nil && file.HTTP.WriteTimeout != "" {
			config.HTTP.WriteTimeout = d
		}
	}
	if file.WebSocket != nil {
		if file.WebSocket.BufferSize > 0 {
			config.WebSocket.BufferSize = file.WebSocket.BufferSize
		}
		if d, err := time.ParseDuration(file.WebSocket.PingInterval); err == nil && file.WebSocket.PingInterval != "" {
			config.WebSocket.PingInterval = d
		}
		if d, err := time.ParseDuration(file.WebSocket.ReadTimeout); err == nil && file.WebSocket.ReadTimeout != "" {
			config.WebSocket.ReadTimeout = d
		}
		if d, err := time.ParseDuration(file.WebSocket.WriteTimeout); err == nil && file.WebSocket.WriteTimeout != "" {
			config.WebSocket.WriteTimeout = d
		}
	}
	if file.Log != nil && file.Log.DSN != "" {
		config.Log.DSN = file.Log.DSN
	}
	if file.Auth != nil && file.Auth.Secret != "" {
		config.Auth.Secret = file.Auth.Secret
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return config, nil
}

// LoadWithPrecedence resolves configuration as file > env > defaults.
// A missing or broken file is not fatal; env and defaults still apply.
func LoadWithPrecedence(path string) *Config {
	config := LoadFromEnv()
	if path != "" {
		if fileConfig, err := LoadFromFile(path); err == nil {
			config = fileConfig
		}
	}
	return config
}
