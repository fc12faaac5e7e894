package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/x/ansi"
	"github.com/charmbracelet/x/ansi/parser"
)

// relayFlags locate a running relay and the caller identity sent to it.
type relayFlags struct {
	URL            string `default:"http://localhost:8080" env:"CHATRELAY_URL" help:"Relay base URL"`
	User           string `short:"u" env:"CHATRELAY_USER" help:"Caller identity"`
	IdentityHeader string `default:"X-User-Id" help:"Header carrying the caller identity"`
}

func (f relayFlags) client() *relayClient {
	return &relayClient{
		base:           strings.TrimSuffix(f.URL, "/"),
		identityHeader: f.IdentityHeader,
		user:           f.User,
		http:           &http.Client{},
	}
}

// relayClient talks to the relay's HTTP API. Requests are bounded by their
// context only, since replies stream for as long as the model writes.
type relayClient struct {
	base           string
	identityHeader string
	user           string
	http           *http.Client
}

type historyTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type historyPayload struct {
	ChatID string        `json:"chatId"`
	Turns  []historyTurn `json:"turns"`
}

func (c *relayClient) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.user != "" && c.identityHeader != "" {
		req.Header.Set(c.identityHeader, c.user)
	}
	return req, nil
}

func (c *relayClient) do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}
	defer resp.Body.Close()

	var body struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)
	return nil, &statusError{Status: resp.StatusCode, Message: body.Error}
}

// send posts one message and copies the reply to w as it streams in. It
// returns the conversation id announced by the relay.
func (c *relayClient) send(ctx context.Context, chatID, message string, w io.Writer, raw bool) (string, error) {
	payload := map[string]any{"message": message, "chatId": nil}
	if chatID != "" {
		payload["chatId"] = chatID
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/chat", payload)
	if err != nil {
		return "", err
	}
	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	id := resp.Header.Get("X-Chat-Id")
	if raw {
		if _, err := io.Copy(w, resp.Body); err != nil {
			return id, fmt.Errorf("reply interrupted: %w", err)
		}
		return id, nil
	}

	sw := &stripWriter{w: w}
	_, err = io.Copy(sw, resp.Body)
	if ferr := sw.Flush(); err == nil {
		err = ferr
	}
	if err != nil {
		return id, fmt.Errorf("reply interrupted: %w", err)
	}
	return id, nil
}

func (c *relayClient) history(ctx context.Context, chatID string) (*historyPayload, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/chats/"+url.PathEscape(chatID), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out historyPayload
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	return &out, nil
}

// stripWriter removes terminal escape sequences from model output before it
// reaches the user's terminal. A sequence or rune split across writes is held
// back until the rest arrives; Flush releases whatever is still pending.
type stripWriter struct {
	w       io.Writer
	pending []byte
}

// maxHeldEscape bounds how much of an unterminated sequence is held back.
const maxHeldEscape = 4 << 10

func (s *stripWriter) Write(p []byte) (int, error) {
	s.pending = append(s.pending, p...)
	n := len(s.pending) - incompleteTail(s.pending)
	if err := s.emit(s.pending[:n]); err != nil {
		return 0, err
	}
	s.pending = append(s.pending[:0], s.pending[n:]...)
	return len(p), nil
}

// Flush writes the held-back tail, stripped as far as it goes.
func (s *stripWriter) Flush() error {
	err := s.emit(s.pending)
	s.pending = s.pending[:0]
	return err
}

func (s *stripWriter) emit(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	_, err := io.WriteString(s.w, ansi.Strip(string(b)))
	return err
}

// incompleteTail returns how many trailing bytes of b belong to an escape
// sequence or UTF-8 rune that has not ended yet. It walks the parser table
// ansi.Strip uses, so both agree on where a sequence ends.
func incompleteTail(b []byte) int {
	pstate := parser.GroundState
	start := 0
	for i := 0; i < len(b); i++ {
		if pstate == parser.GroundState {
			start = i
		}
		state, _ := parser.Table.Transition(pstate, b[i])
		if state == parser.Utf8State {
			if !utf8.FullRune(b[i:]) {
				return len(b) - start
			}
			_, size := utf8.DecodeRune(b[i:])
			i += size - 1
			state = parser.GroundState
		}
		pstate = state
	}
	if pstate == parser.GroundState || len(b)-start > maxHeldEscape {
		return 0
	}
	return len(b) - start
}
