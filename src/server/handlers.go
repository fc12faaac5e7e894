package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/elee1766/chatrelay/src/chat"
	"github.com/elee1766/chatrelay/src/schema"
)

const chatIDHeader = "X-Chat-Id"

// handleChat runs one turn and relays the reply as it is generated. Errors
// before the first byte are JSON; later failures just end the body.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req chatRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	chatID := ""
	if req.ChatID != nil {
		chatID = strings.TrimSpace(*req.ChatID)
	}

	reply, err := s.orch.Handle(ctx, chat.Request{
		Identity: chat.IdentityFromContext(ctx),
		ChatID:   chatID,
		Message:  req.Message,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer reply.Close()

	logger := s.loggerFrom(ctx).With("chat_id", reply.ChatID)

	h := w.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	h.Set(chatIDHeader, reply.ChatID)
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	if err := flush(rc); err != nil {
		logger.Debug("client gone before first fragment", "error", err)
	}

	fragments := 0
	err = reply.Relay(ctx, func(fragment string) error {
		if _, err := io.WriteString(w, fragment); err != nil {
			return err
		}
		fragments++
		return flush(rc)
	})

	attrs := []any{"created", reply.Created, "fragments", fragments, "chars", len([]rune(reply.Text()))}
	switch {
	case err == nil:
		logger.Info("reply relayed", attrs...)
	case errors.Is(err, chat.ErrCancelled):
		logger.Info("client disconnected mid-reply", attrs...)
	default:
		logger.Warn("reply stream failed", append(attrs, "error", err)...)
	}
}

func flush(rc *http.ResponseController) error {
	if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}

// handleHistory returns the stored turns of a conversation the caller owns.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chatID := r.PathValue("chatId")

	turns, err := s.orch.History(ctx, chat.IdentityFromContext(ctx), chatID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := historyResponse{ChatID: chatID, Turns: make([]chatResponseTurn, 0, len(turns))}
	for _, t := range turns {
		resp.Turns = append(resp.Turns, chatResponseTurn{Role: t.Role.String(), Content: t.Content})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleHello answers one message without history or persistence.
func (s *Server) handleHello(w http.ResponseWriter, r *http.Request) {
	var req helloRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		req.Message = defaultHelloMessage
	}

	reply, err := s.orch.Ask(r.Context(), req.Message)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, helloResponse{Reply: reply})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, schema.APIDocument(s.maxMessageBytes))
}
