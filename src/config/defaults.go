package config

import (
	"time"
)

const (
	DefaultAddr         = ":8080"
	DefaultBaseURL      = "https://api.openai.com/v1"
	DefaultModel        = "gpt-4o-mini"
	DefaultSystemPrompt = "你是一个友好且专业的中文 AI 助手。"
)

// DefaultConfig returns a default configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            DefaultAddr,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    64 << 10,
		},
		Auth: AuthConfig{
			IdentityHeader: "X-User-Id",
		},
		Provider: ProviderConfig{
			BaseURL:     DefaultBaseURL,
			Model:       DefaultModel,
			Temperature: 0.7,
			Timeout:     60 * time.Second,
			RetryCount:  3,
			RetryDelay:  time.Second,
		},
		Storage: StorageConfig{
			Path: GetDefaultDatabasePath(),
		},
		Chat: ChatConfig{
			SystemPrompt:    DefaultSystemPrompt,
			HistoryPolicy:   "full",
			MaxMessageBytes: 32 << 10,
			FinalizeTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
