package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elee1766/chatrelay/src/aisdk"
	"github.com/elee1766/chatrelay/src/config"
	"github.com/elee1766/chatrelay/src/oaiclient"
	"github.com/elee1766/chatrelay/src/storage"
)

type upstream struct {
	mu       sync.Mutex
	requests []aisdk.ChatCompletionRequest
	// truncate ends streams without the [DONE] marker.
	truncate bool
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/models") {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":[{"id":"test-model","owned_by":"tests"}]}`)
		return
	}
	var req aisdk.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	u.mu.Lock()
	u.requests = append(u.requests, req)
	truncate := u.truncate
	u.mu.Unlock()

	if !req.Stream {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"1","model":"m","choices":[{"index":0,"message":{"role":"assistant","content":" 早上好 "}}]}`)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	for _, part := range []string{"你", "好"} {
		fmt.Fprintf(w, "data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", part)
	}
	if !truncate {
		fmt.Fprint(w, "data: [DONE]\n\n")
	}
}

func (u *upstream) last() aisdk.ChatCompletionRequest {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.requests[len(u.requests)-1]
}

func newTestApp(t *testing.T, mutate func(*config.Config)) (*App, *upstream) {
	t.Helper()
	up := &upstream{}
	ts := httptest.NewServer(up)
	t.Cleanup(ts.Close)

	cfg := config.DefaultConfig()
	cfg.Storage.Path = storage.MemoryPath
	cfg.Provider.BaseURL = ts.URL
	cfg.Provider.Model = "test-model"
	cfg.Provider.RetryDelay = time.Millisecond
	if mutate != nil {
		mutate(cfg)
	}

	a, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a, up
}

func TestChatEndToEnd(t *testing.T) {
	a, up := newTestApp(t, func(c *config.Config) {
		c.Provider.Temperature = 0.2
		c.Provider.MaxTokens = 64
	})
	h := a.Server.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"嗨"}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "你好", rec.Body.String())
	chatID := rec.Header().Get("X-Chat-Id")
	require.NotEmpty(t, chatID)

	req := up.last()
	assert.Equal(t, "test-model", req.Model)
	assert.True(t, req.Stream)
	require.NotNil(t, req.Temperature)
	assert.InDelta(t, 0.2, *req.Temperature, 1e-9)
	require.NotNil(t, req.MaxTokens)
	assert.Equal(t, 64, *req.MaxTokens)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, config.DefaultSystemPrompt, req.Messages[0].Content)
	assert.Equal(t, "嗨", req.Messages[1].Content)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chats/"+chatID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"chatId":%q,"turns":[{"role":"user","content":"嗨"},{"role":"assistant","content":"你好"}]}`, chatID), rec.Body.String())
}

func TestRecentHistoryPolicy(t *testing.T) {
	a, up := newTestApp(t, func(c *config.Config) {
		c.Chat.HistoryPolicy = "recent"
		c.Chat.HistoryLimit = 1
	})
	h := a.Server.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"one"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	chatID := rec.Header().Get("X-Chat-Id")

	rec = httptest.NewRecorder()
	body := fmt.Sprintf(`{"message":"two","chatId":%q}`, chatID)
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	req := up.last()
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "two", req.Messages[1].Content)
}

func TestHelloEndToEnd(t *testing.T) {
	a, up := newTestApp(t, nil)

	rec := httptest.NewRecorder()
	a.Server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/hello", strings.NewReader(`{"message":"早"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"reply":"早上好"}`, rec.Body.String())
	assert.False(t, up.last().Stream)
}

func TestNewRejectsBadPolicy(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.Path = storage.MemoryPath
	cfg.Chat.HistoryPolicy = "sliding"

	_, err := New(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "unknown history policy")
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestVerifyModel(t *testing.T) {
	a, _ := newTestApp(t, func(c *config.Config) {
		c.Provider.VerifyModel = true
	})
	assert.Equal(t, "test-model", a.Config.Provider.Model)

	up := &upstream{}
	ts := httptest.NewServer(up)
	t.Cleanup(ts.Close)
	cfg := config.DefaultConfig()
	cfg.Storage.Path = storage.MemoryPath
	cfg.Provider.BaseURL = ts.URL
	cfg.Provider.Model = "missing-model"
	cfg.Provider.VerifyModel = true

	_, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorIs(t, err, oaiclient.ErrModelNotFound)
}

func TestTruncatedStreamAborts(t *testing.T) {
	a, up := newTestApp(t, nil)
	up.mu.Lock()
	up.truncate = true
	up.mu.Unlock()
	h := a.Server.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"嗨"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "你好", rec.Body.String())
	chatID := rec.Header().Get("X-Chat-Id")

	turns, err := storage.NewChatStore(a.Store).ListTurns(context.Background(), chatID)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "你好", turns[1].Content)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var health struct {
		Turns map[string]int `json:"turns"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, map[string]int{"done": 0, "aborted": 1, "cancelled": 0}, health.Turns)
}
