package config

import (
	"net/url"
	"strings"
	"time"
)

// Config holds client configuration values.
type Config struct {
	ServerURL       string        `mapstructure:"server_url" yaml:"server_url"`
	PushPath        string        `mapstructure:"push_path" yaml:"push_path"`
	LogLevel        string        `mapstructure:"log_level" yaml:"log_level"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	SendQueueSize   int           `mapstructure:"send_queue_size" yaml:"send_queue_size"`
	SessionToken    string        `mapstructure:"session_token" yaml:"session_token"`
	InviteTimeLimit string        `mapstructure:"invite_time_limit" yaml:"invite_time_limit"`

	Reconnect Reconnect `mapstructure:"reconnect" yaml:"reconnect"`
	DevServer DevServer `mapstructure:"devserver" yaml:"devserver"`
}

// Reconnect controls what happens after the push connection drops.
// MaxAttempts of zero means the session ends and has to be restarted.
type Reconnect struct {
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	Delay       time.Duration `mapstructure:"delay" yaml:"delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
}

// DevServer configures the local development backend.
type DevServer struct {
	Addr         string `mapstructure:"addr" yaml:"addr"`
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`
	JWTSecret    string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		ServerURL:       "http://localhost:8000",
		PushPath:        "/ws",
		LogLevel:        "info",
		RequestTimeout:  10 * time.Second,
		DialTimeout:     5 * time.Second,
		SendQueueSize:   32,
		InviteTimeLimit: "1 day",
		Reconnect: Reconnect{
			MaxAttempts: 5,
			Delay:       time.Second,
			MaxDelay:    30 * time.Second,
		},
		DevServer: DevServer{
			Addr:         ":8000",
			DatabasePath: "wirechat-dev.db",
			JWTSecret:    "dev-secret-change-me",
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.ServerURL != "" {
		c.ServerURL = other.ServerURL
	}
	if other.PushPath != "" {
		c.PushPath = other.PushPath
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.RequestTimeout != 0 {
		c.RequestTimeout = other.RequestTimeout
	}
	if other.DialTimeout != 0 {
		c.DialTimeout = other.DialTimeout
	}
	if other.SendQueueSize != 0 {
		c.SendQueueSize = other.SendQueueSize
	}
	if other.SessionToken != "" {
		c.SessionToken = other.SessionToken
	}
	if other.InviteTimeLimit != "" {
		c.InviteTimeLimit = other.InviteTimeLimit
	}
	if other.Reconnect.MaxAttempts != 0 {
		c.Reconnect.MaxAttempts = other.Reconnect.MaxAttempts
	}
	if other.Reconnect.Delay != 0 {
		c.Reconnect.Delay = other.Reconnect.Delay
	}
	if other.Reconnect.MaxDelay != 0 {
		c.Reconnect.MaxDelay = other.Reconnect.MaxDelay
	}
	if other.DevServer.Addr != "" {
		c.DevServer.Addr = other.DevServer.Addr
	}
	if other.DevServer.DatabasePath != "" {
		c.DevServer.DatabasePath = other.DevServer.DatabasePath
	}
	if other.DevServer.JWTSecret != "" {
		c.DevServer.JWTSecret = other.DevServer.JWTSecret
	}
}

// PushURL derives the websocket endpoint from ServerURL and PushPath.
func (c Config) PushURL() (string, error) {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(c.PushPath, "/")
	return u.String(), nil
}
