// Package oaiclient is a client for OpenAI-compatible chat completion APIs.
package oaiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/elee1766/chatrelay/src/aisdk"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	defaultTimeout = 60 * time.Second
	defaultTTL     = time.Hour

	maxRetryAfter = 30 * time.Second
)

var _ aisdk.Catalog = (*Client)(nil)

// Client talks to an OpenAI-compatible API.
type Client struct {
	config     Config
	httpClient *http.Client
	// streaming responses outlive any fixed client timeout, so they are
	// bounded only by the request context.
	streamClient *http.Client
	logger       *slog.Logger
	modelCache   *ModelCache
}

// NewClient creates a new API client.
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.RetryCount <= 0 {
		config.RetryCount = 3
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = time.Second
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.ModelTTL == 0 {
		config.ModelTTL = defaultTTL
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := &Client{
		config:       config,
		httpClient:   &http.Client{Timeout: config.Timeout},
		streamClient: &http.Client{},
		logger:       logger.With("component", "oaiclient"),
	}
	client.modelCache = NewModelCache(client, config.ModelTTL)
	return client
}

// BaseURL returns the normalized API root.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// createChatCompletion sends a non-streaming chat completion request.
func (c *Client) createChatCompletion(ctx context.Context, req *aisdk.ChatCompletionRequest) (*aisdk.ChatCompletionResponse, error) {
	logger := c.logger.With("method", "CreateChatCompletion", "model", req.Model)
	logger.Debug("sending chat completion request", "messages", len(req.Messages))

	req.Stream = false
	req.StreamOptions = nil
	resp, err := c.post(ctx, "/chat/completions", req, false)
	if err != nil {
		logger.Error("request failed", "error", err)
		return nil, err
	}
	defer resp.Body.Close()

	var result aisdk.ChatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		logger.Error("failed to decode response", "error", err)
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	logger.Info("chat completion successful",
		"usage_total", result.Usage.TotalTokens,
		"finish_reason", result.Choices[0].FinishReason)
	return &result, nil
}

// createChatCompletionStream opens a server-sent event stream of completion
// deltas. The caller owns the returned stream and must close it.
func (c *Client) createChatCompletionStream(ctx context.Context, req *aisdk.ChatCompletionRequest) (aisdk.StreamInterface, error) {
	logger := c.logger.With("method", "CreateChatCompletionStream", "model", req.Model)
	logger.Debug("opening chat completion stream", "messages", len(req.Messages))

	req.Stream = true
	resp, err := c.post(ctx, "/chat/completions", req, true)
	if err != nil {
		logger.Error("stream request failed", "error", err)
		return nil, err
	}
	return newEventStream(resp.Body, logger), nil
}

func (c *Client) post(ctx context.Context, path string, payload any, stream bool) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	httpReq, err := c.newRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	hc := c.httpClient
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
		httpReq.Header.Set("Cache-Control", "no-cache")
		hc = c.streamClient
	}

	return c.doRequestWithRetry(ctx, hc, httpReq)
}

// newRequest creates a new HTTP request with the appropriate headers.
func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.Organization != "" {
		req.Header.Set("OpenAI-Organization", c.config.Organization)
	}
	return req, nil
}

// doRequestWithRetry performs an HTTP request, retrying transport failures
// and responses whose APIError IsRetryable. Only connection establishment is
// retried; once a 2xx response is returned the body belongs to the caller.
// Non-2xx responses are returned as *APIError.
func (c *Client) doRequestWithRetry(ctx context.Context, hc *http.Client, req *http.Request) (*http.Response, error) {
	var lastErr error
	logger := c.logger.With("method", "doRequestWithRetry", "url", req.URL.String())

	for i := 0; i < c.config.RetryCount; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay(i, lastErr)):
			}
		}

		reqCopy := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("failed to read request body: %w", err)
			}
			reqCopy.Body = body
		}

		resp, err := hc.Do(reqCopy)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			logger.Debug("request attempt failed", "attempt", i+1, "error", err)
			continue
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		apiErr := c.handleError(resp)
		resp.Body.Close()
		if !IsRetryable(apiErr) {
			return nil, apiErr
		}
		lastErr = apiErr
		logger.Debug("retryable API error", "attempt", i+1, "error", apiErr)
	}

	logger.Error("request failed after all retries", "retry_count", c.config.RetryCount, "error", lastErr)
	var apiErr *APIError
	if errors.As(lastErr, &apiErr) {
		return nil, apiErr
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", c.config.RetryCount, lastErr)
}

// retryDelay grows linearly with the attempt. A rate limit with a
// Retry-After in seconds overrides it, capped at maxRetryAfter.
func (c *Client) retryDelay(attempt int, lastErr error) time.Duration {
	delay := c.config.RetryDelay * time.Duration(attempt)
	var apiErr *APIError
	if !errors.As(lastErr, &apiErr) || !apiErr.IsRateLimit() {
		return delay
	}
	raw, _ := apiErr.Details["retry_after"].(string)
	secs, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || secs < 0 {
		return delay
	}
	return min(time.Duration(secs)*time.Second, maxRetryAfter)
}

// handleError processes error responses from the API.
func (c *Client) handleError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read error response: %w", err)
	}
	requestID := resp.Header.Get("X-Request-ID")

	var apiErr *APIError
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == nil {
		apiErr = &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			RequestID:  requestID,
		}
	} else {
		apiErr = errResp.Error.toAPIError(resp.StatusCode, requestID)
	}

	if apiErr.IsRateLimit() {
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if apiErr.Details == nil {
				apiErr.Details = make(map[string]interface{})
			}
			apiErr.Details["retry_after"] = retryAfter
		}
	}
	return apiErr
}
