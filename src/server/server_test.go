package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elee1766/chatrelay/src/chat"
	"github.com/elee1766/chatrelay/src/storage"
)

// scriptedProvider replays fixed fragments and records what it was sent.
type scriptedProvider struct {
	mu        sync.Mutex
	fragments []string
	failAfter error
	openErr   error
	reply     string
	calls     [][]chat.Turn
}

func (p *scriptedProvider) record(turns []chat.Turn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, append([]chat.Turn(nil), turns...))
}

func (p *scriptedProvider) lastCall() []chat.Turn {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.calls) == 0 {
		return nil
	}
	return p.calls[len(p.calls)-1]
}

func (p *scriptedProvider) StreamCompletion(_ context.Context, turns []chat.Turn) (chat.FragmentStream, error) {
	p.record(turns)
	if p.openErr != nil {
		return nil, p.openErr
	}
	return &sliceStream{fragments: append([]string(nil), p.fragments...), err: p.failAfter}, nil
}

func (p *scriptedProvider) Complete(_ context.Context, turns []chat.Turn) (string, error) {
	p.record(turns)
	if p.openErr != nil {
		return "", p.openErr
	}
	return p.reply, nil
}

type sliceStream struct {
	fragments []string
	err       error
}

func (s *sliceStream) Recv() (string, error) {
	if len(s.fragments) == 0 {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	f := s.fragments[0]
	s.fragments = s.fragments[1:]
	return f, nil
}

func (s *sliceStream) Close() error { return nil }

type harness struct {
	srv      *Server
	store    *storage.ChatStore
	provider *scriptedProvider
}

func newHarness(t *testing.T, provider *scriptedProvider, mutate func(*Config)) *harness {
	t.Helper()
	ctx := context.Background()
	db, err := storage.Open(ctx, storage.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := storage.NewChatStore(db)
	stats := &TurnStats{}
	orch, err := chat.New(chat.Config{
		Store:        store,
		Provider:     provider,
		OnTransition: stats.Observe,
		Logger:       logger,
	})
	require.NoError(t, err)

	cfg := Config{
		Orchestrator: orch,
		Logger:       logger,
		Ping:         db.DB().PingContext,
		Stats:        stats,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	srv, err := New(cfg)
	require.NoError(t, err)
	return &harness{srv: srv, store: store, provider: provider}
}

func (h *harness) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestNewRequiresOrchestrator(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestChatStreamsReply(t *testing.T) {
	h := newHarness(t, &scriptedProvider{fragments: []string{"Hel", "lo"}}, nil)

	rec := h.do(t, http.MethodPost, "/api/chat", `{"message":"hi","chatId":null}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Hello", rec.Body.String())
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache, no-transform", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", rec.Header().Get("Connection"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
	assert.True(t, rec.Flushed)

	chatID := rec.Header().Get("X-Chat-Id")
	require.NotEmpty(t, chatID)

	turns, err := h.store.ListTurns(context.Background(), chatID)
	require.NoError(t, err)
	assert.Equal(t, []chat.Turn{
		{Role: chat.RoleUser, Content: "hi"},
		{Role: chat.RoleAssistant, Content: "Hello"},
	}, turns)

	call := h.provider.lastCall()
	require.Len(t, call, 2)
	assert.Equal(t, chat.RoleSystem, call[0].Role)
	assert.Equal(t, chat.DefaultSystemPrompt, call[0].Content)
}

func TestChatContinuesConversation(t *testing.T) {
	h := newHarness(t, &scriptedProvider{fragments: []string{"ok"}}, nil)

	first := h.do(t, http.MethodPost, "/api/chat", `{"message":"one"}`)
	require.Equal(t, http.StatusOK, first.Code)
	chatID := first.Header().Get("X-Chat-Id")

	second := h.do(t, http.MethodPost, "/api/chat", fmt.Sprintf(`{"message":"two","chatId":%q,"extra":true}`, chatID))
	require.Equal(t, http.StatusOK, second.Code, second.Body.String())
	assert.Equal(t, chatID, second.Header().Get("X-Chat-Id"))

	call := h.provider.lastCall()
	require.Len(t, call, 4)
	assert.Equal(t, "one", call[1].Content)
	assert.Equal(t, "ok", call[2].Content)
	assert.Equal(t, "two", call[3].Content)

	hist := h.do(t, http.MethodGet, "/api/chats/"+chatID, "")
	require.Equal(t, http.StatusOK, hist.Code)
	var resp historyResponse
	require.NoError(t, json.Unmarshal(hist.Body.Bytes(), &resp))
	assert.Equal(t, chatID, resp.ChatID)
	assert.Equal(t, []chatResponseTurn{
		{Role: "user", Content: "one"},
		{Role: "assistant", Content: "ok"},
		{Role: "user", Content: "two"},
		{Role: "assistant", Content: "ok"},
	}, resp.Turns)
}

func TestChatRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{name: "empty message", body: `{"message":""}`, status: http.StatusBadRequest, message: "message is required"},
		{name: "whitespace message", body: `{"message":"  \n\t"}`, status: http.StatusBadRequest, message: "message is required"},
		{name: "missing message", body: `{"chatId":null}`, status: http.StatusBadRequest, message: "message is required"},
		{name: "invalid json", body: `{"message":`, status: http.StatusBadRequest, message: "invalid JSON body"},
		{name: "no body", body: "", status: http.StatusBadRequest, message: "request body is required"},
		{name: "bad chat id", body: `{"message":"x","chatId":"` + strings.Repeat("a", 200) + `"}`, status: http.StatusBadRequest, message: "invalid field chatId"},
		{name: "too long", body: `{"message":"` + strings.Repeat("a", chat.DefaultMaxMessageBytes+1) + `"}`, status: http.StatusBadRequest, message: "message is too long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &scriptedProvider{fragments: []string{"x"}}
			h := newHarness(t, provider, nil)

			rec := h.do(t, http.MethodPost, "/api/chat", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
			assert.Equal(t, tt.message, decodeJSON(t, rec)["error"])
			assert.Empty(t, rec.Header().Get("X-Chat-Id"))
			assert.Nil(t, provider.lastCall())
		})
	}
}

func TestChatBodyTooLarge(t *testing.T) {
	h := newHarness(t, &scriptedProvider{}, func(c *Config) { c.MaxBodyBytes = 32 })
	rec := h.do(t, http.MethodPost, "/api/chat", `{"message":"`+strings.Repeat("a", 64)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestChatUnknownConversation(t *testing.T) {
	h := newHarness(t, &scriptedProvider{fragments: []string{"x"}}, nil)
	rec := h.do(t, http.MethodPost, "/api/chat", `{"message":"hi","chatId":"does-not-exist"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "conversation not found", decodeJSON(t, rec)["error"])
}

func TestChatOwnership(t *testing.T) {
	h := newHarness(t, &scriptedProvider{fragments: []string{"x"}}, nil)

	rec := h.do(t, http.MethodPost, "/api/chat", `{"message":"secret"}`, "X-User-Id", "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	chatID := rec.Header().Get("X-Chat-Id")

	body := fmt.Sprintf(`{"message":"peek","chatId":%q}`, chatID)
	for _, who := range []string{"bob", ""} {
		rec = h.do(t, http.MethodPost, "/api/chat", body, "X-User-Id", who)
		assert.Equal(t, http.StatusNotFound, rec.Code, "caller %q", who)

		rec = h.do(t, http.MethodGet, "/api/chats/"+chatID, "", "X-User-Id", who)
		assert.Equal(t, http.StatusNotFound, rec.Code, "caller %q", who)
	}

	rec = h.do(t, http.MethodPost, "/api/chat", body, "X-User-Id", "alice")
	assert.Equal(t, http.StatusOK, rec.Code)

	turns, err := h.store.ListTurns(context.Background(), chatID)
	require.NoError(t, err)
	assert.Len(t, turns, 4)
}

func TestRequireIdentity(t *testing.T) {
	h := newHarness(t, &scriptedProvider{fragments: []string{"x"}}, func(c *Config) {
		c.RequireIdentity = true
		c.IdentityHeader = "x-forwarded-user"
	})

	rec := h.do(t, http.MethodPost, "/api/chat", `{"message":"hi"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeJSON(t, rec)["error"])

	rec = h.do(t, http.MethodPost, "/api/chat", `{"message":"hi"}`, "X-Forwarded-User", "carol")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProviderFailureBeforeStreaming(t *testing.T) {
	h := newHarness(t, &scriptedProvider{openErr: errors.New("401 invalid key")}, nil)

	rec := h.do(t, http.MethodPost, "/api/chat", `{"message":"hi"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := decodeJSON(t, rec)
	assert.NotContains(t, body["error"], "invalid key")
	assert.Empty(t, rec.Header().Get("X-Chat-Id"))
}

func TestProviderFailureMidStream(t *testing.T) {
	h := newHarness(t, &scriptedProvider{fragments: []string{"H", "i"}, failAfter: errors.New("connection reset")}, nil)

	rec := h.do(t, http.MethodPost, "/api/chat", `{"message":"hi"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hi", rec.Body.String())
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))

	turns, err := h.store.ListTurns(context.Background(), rec.Header().Get("X-Chat-Id"))
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, chat.Turn{Role: chat.RoleAssistant, Content: "Hi"}, turns[1])
}

func TestEmptyStreamStoresOnlyUserTurn(t *testing.T) {
	h := newHarness(t, &scriptedProvider{}, nil)

	rec := h.do(t, http.MethodPost, "/api/chat", `{"message":"hi"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())

	turns, err := h.store.ListTurns(context.Background(), rec.Header().Get("X-Chat-Id"))
	require.NoError(t, err)
	assert.Equal(t, []chat.Turn{{Role: chat.RoleUser, Content: "hi"}}, turns)
}

func TestHello(t *testing.T) {
	t.Run("reply", func(t *testing.T) {
		h := newHarness(t, &scriptedProvider{reply: "  你好！ \n"}, nil)
		rec := h.do(t, http.MethodPost, "/api/hello", `{"message":"在吗"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "你好！", decodeJSON(t, rec)["reply"])
		assert.Equal(t, "在吗", h.provider.lastCall()[1].Content)
	})

	t.Run("missing message uses default", func(t *testing.T) {
		h := newHarness(t, &scriptedProvider{reply: "ok"}, nil)
		rec := h.do(t, http.MethodPost, "/api/hello", `{}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, defaultHelloMessage, h.provider.lastCall()[1].Content)
	})

	t.Run("empty reply placeholder", func(t *testing.T) {
		h := newHarness(t, &scriptedProvider{reply: " "}, nil)
		rec := h.do(t, http.MethodPost, "/api/hello", `{"message":"x"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, chat.EmptyReplyPlaceholder, decodeJSON(t, rec)["reply"])
	})

	t.Run("provider failure", func(t *testing.T) {
		h := newHarness(t, &scriptedProvider{openErr: errors.New("down")}, nil)
		rec := h.do(t, http.MethodPost, "/api/hello", `{"message":"x"}`)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestCORS(t *testing.T) {
	h := newHarness(t, &scriptedProvider{}, nil)
	rec := h.do(t, http.MethodOptions, "/api/chat", "", "Origin", "https://app.example.com")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "X-Chat-Id")
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-User-Id")

	h = newHarness(t, &scriptedProvider{}, func(c *Config) { c.AllowedOrigins = []string{"https://ok.example"} })
	rec = h.do(t, http.MethodOptions, "/api/chat", "", "Origin", "https://ok.example")
	assert.Equal(t, "https://ok.example", rec.Header().Get("Access-Control-Allow-Origin"))
	rec = h.do(t, http.MethodOptions, "/api/chat", "", "Origin", "https://evil.example")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestID(t *testing.T) {
	h := newHarness(t, &scriptedProvider{}, nil)
	rec := h.do(t, http.MethodGet, "/healthz", "")
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec = h.do(t, http.MethodGet, "/healthz", "", "X-Request-Id", "abc-123")
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-Id"))
}

func TestSchemaEndpoint(t *testing.T) {
	h := newHarness(t, &scriptedProvider{}, nil)
	rec := h.do(t, http.MethodGet, "/api/chat/schema", "")
	require.Equal(t, http.StatusOK, rec.Code)
	doc := decodeJSON(t, rec)
	assert.Equal(t, "ChatRequest", doc["title"])
	assert.Contains(t, doc, "definitions")
}

func TestHealth(t *testing.T) {
	h := newHarness(t, &scriptedProvider{}, nil)
	rec := h.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["store"])
	assert.Greater(t, body["goroutines"], float64(0))

	h = newHarness(t, &scriptedProvider{}, func(c *Config) {
		c.Ping = func(context.Context) error { return errors.New("locked") }
	})
	rec = h.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", decodeJSON(t, rec)["status"])
}

func TestHealthCountsTurns(t *testing.T) {
	h := newHarness(t, &scriptedProvider{fragments: []string{"hi"}}, nil)
	rec := h.do(t, http.MethodPost, "/api/chat", `{"message":"hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	h.provider.failAfter = errors.New("upstream reset")
	rec = h.do(t, http.MethodPost, "/api/chat", `{"message":"again"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"done": float64(1), "aborted": float64(1), "cancelled": float64(0)}, decodeJSON(t, rec)["turns"])
}

func TestMethodNotAllowed(t *testing.T) {
	h := newHarness(t, &scriptedProvider{}, nil)
	rec := h.do(t, http.MethodGet, "/api/chat", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

type panickyOrchestrator struct{ Orchestrator }

func (panickyOrchestrator) Ask(context.Context, string) (string, error) {
	panic("boom")
}

func TestRecoverFromPanic(t *testing.T) {
	var logs bytes.Buffer
	srv, err := New(Config{
		Orchestrator: panickyOrchestrator{},
		Logger:       slog.New(slog.NewJSONHandler(&logs, nil)),
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/hello", strings.NewReader(`{"message":"x"}`)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, fallbackMessage, decodeJSON(t, rec)["error"])
	assert.Contains(t, logs.String(), "handler panic")
}

func TestServeShutsDownOnCancel(t *testing.T) {
	h := newHarness(t, &scriptedProvider{fragments: []string{"pong"}}, func(c *Config) {
		c.ShutdownTimeout = 5 * time.Second
	})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.srv.Serve(ctx, ln) }()

	resp, err := http.Post("http://"+ln.Addr().String()+"/api/chat", "application/json", strings.NewReader(`{"message":"ping"}`))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "pong", string(body))
	assert.NotEmpty(t, resp.Header.Get("X-Chat-Id"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}
