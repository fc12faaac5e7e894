// Package config loads chatrelay settings from defaults, an optional config
// file and the environment.
package config

import (
	"time"
)

// Config represents the complete configuration for chatrelay.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" json:"server"`
	Auth     AuthConfig     `mapstructure:"auth" json:"auth"`
	Provider ProviderConfig `mapstructure:"provider" json:"provider"`
	Storage  StorageConfig  `mapstructure:"storage" json:"storage"`
	Chat     ChatConfig     `mapstructure:"chat" json:"chat"`
	Log      LogConfig      `mapstructure:"log" json:"log"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" json:"addr" validate:"required,listen_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" json:"shutdown_timeout" validate:"min=0"`
	// MaxBodyBytes caps request bodies. It must leave room for the JSON
	// envelope around the largest allowed message.
	MaxBodyBytes   int64    `mapstructure:"max_body_bytes" json:"max_body_bytes" validate:"min=1"`
	AllowedOrigins []string `mapstructure:"allowed_origins" json:"allowed_origins,omitempty"`
}

// AuthConfig controls how callers are identified.
type AuthConfig struct {
	// IdentityHeader is set by a trusted proxy in front of the relay.
	IdentityHeader string `mapstructure:"identity_header" json:"identity_header" validate:"required"`
	// RequireIdentity rejects anonymous requests to /api.
	RequireIdentity bool `mapstructure:"require_identity" json:"require_identity"`
}

// ProviderConfig holds OpenAI-compatible API settings.
type ProviderConfig struct {
	APIKey       string        `mapstructure:"api_key" json:"api_key,omitempty"`
	BaseURL      string        `mapstructure:"base_url" json:"base_url" validate:"required,url"`
	Model        string        `mapstructure:"model" json:"model" validate:"required"`
	Organization string        `mapstructure:"organization" json:"organization,omitempty"`
	Temperature  float64       `mapstructure:"temperature" json:"temperature" validate:"min=0,max=2"`
	MaxTokens    int           `mapstructure:"max_tokens" json:"max_tokens,omitempty" validate:"min=0"`
	Timeout      time.Duration `mapstructure:"timeout" json:"timeout" validate:"min=0"`
	RetryCount   int           `mapstructure:"retry_count" json:"retry_count" validate:"min=1,max=10"`
	RetryDelay   time.Duration `mapstructure:"retry_delay" json:"retry_delay" validate:"min=0"`
	// VerifyModel makes startup fail when the provider does not list Model.
	VerifyModel bool `mapstructure:"verify_model" json:"verify_model"`
}

// StorageConfig locates the conversation database.
type StorageConfig struct {
	Path string `mapstructure:"path" json:"path" validate:"required"`
}

// ChatConfig tunes the orchestrator.
type ChatConfig struct {
	SystemPrompt    string        `mapstructure:"system_prompt" json:"system_prompt" validate:"required"`
	HistoryPolicy   string        `mapstructure:"history_policy" json:"history_policy" validate:"oneof=full recent"`
	HistoryLimit    int           `mapstructure:"history_limit" json:"history_limit" validate:"min=0,required_if=HistoryPolicy recent"`
	MaxMessageBytes int           `mapstructure:"max_message_bytes" json:"max_message_bytes" validate:"min=1"`
	FinalizeTimeout time.Duration `mapstructure:"finalize_timeout" json:"finalize_timeout" validate:"gt=0"`
}

// LogConfig defines logging configuration
type LogConfig struct {
	// Level is the minimum log level (debug, info, warn, error)
	Level string `mapstructure:"level" json:"level" validate:"log_level"`
	// Format is the output format (text, json)
	Format string `mapstructure:"format" json:"format" validate:"log_format"`
}

// Redacted returns a copy that is safe to print.
func (c Config) Redacted() Config {
	if c.Provider.APIKey != "" {
		c.Provider.APIKey = "********"
	}
	return c
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
