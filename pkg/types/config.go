// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Default timeouts and intervals applied when the configuration leaves
// a value at zero.
const (
	DefaultUploadTimeout = 60 * time.Second
	DefaultStatusTimeout = 15 * time.Second
	DefaultPollInterval  = 5 * time.Second
	DefaultSessionTTL    = 30 * time.Minute
)

// DefaultHistoryPath is the history database used when none is configured.
const DefaultHistoryPath = "beo-intake.db"

// APIConfig holds the connection settings for the processing backend.
// Both URL and Key are required; the client refuses to make any request
// when either is missing.
type APIConfig struct {
	// URL is the backend base URL (e.g. "https://beo-api.example.com").
	URL string `json:"url" yaml:"url" mapstructure:"url"`

	// Key is the bearer token sent in the Authorization header.
	Key string `json:"-" yaml:"-" mapstructure:"key"`

	// UploadTimeout bounds a single upload from request start (default 60s).
	UploadTimeout time.Duration `json:"upload_timeout" yaml:"upload_timeout" mapstructure:"upload_timeout"`

	// StatusTimeout bounds a single status lookup (default 15s).
	StatusTimeout time.Duration `json:"status_timeout" yaml:"status_timeout" mapstructure:"status_timeout"`

	// UserAgent is sent with every request.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// PollConfig controls status polling after a successful upload.
type PollConfig struct {
	// Interval is the delay between status checks (default 5s).
	Interval time.Duration `json:"interval" yaml:"interval" mapstructure:"interval"`
}

// ServerConfig holds settings for the browser front end.
type ServerConfig struct {
	Address         string        `json:"address" yaml:"address" mapstructure:"address"`
	ReadTimeout     time.Duration `json:"read_timeout" yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout" yaml:"write_timeout" mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`

	// SessionTTL is how long an idle form instance is kept before it is
	// closed and its in-flight work abandoned (default 30m).
	SessionTTL time.Duration `json:"session_ttl" yaml:"session_ttl" mapstructure:"session_ttl"`

	// CORSOrigins lists origins allowed to call the JSON endpoints.
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" mapstructure:"cors_origins"`
}

// HistoryConfig locates the local receipt database.
type HistoryConfig struct {
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// LoggingConfig selects log verbosity and encoding.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error (default info).
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is "console" for human-readable output or "json".
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// Config groups every section of the beo-intake configuration file.
type Config struct {
	API     APIConfig     `json:"api" yaml:"api" mapstructure:"api"`
	Poll    PollConfig    `json:"poll" yaml:"poll" mapstructure:"poll"`
	Server  ServerConfig  `json:"server" yaml:"server" mapstructure:"server"`
	History HistoryConfig `json:"history" yaml:"history" mapstructure:"history"`
	Logging LoggingConfig `json:"logging" yaml:"logging" mapstructure:"logging"`
}
