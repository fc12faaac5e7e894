package oaiclient

import (
	"log/slog"
	"time"
)

// Config holds configuration for an OpenAI-compatible API client.
type Config struct {
	APIKey       string        // bearer token, omitted from requests when empty
	BaseURL      string        // e.g. https://api.openai.com/v1
	Organization string        // optional OpenAI-Organization header
	Logger       *slog.Logger  // Logger for debugging
	Timeout      time.Duration // HTTP timeout for non-streaming calls
	RetryCount   int           // attempts made to establish a request
	RetryDelay   time.Duration // base delay between attempts
	ModelTTL     time.Duration // how long model listings are cached
}
