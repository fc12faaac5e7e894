package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/elee1766/chatrelay/src/chat"
)

// fallbackMessage is returned for failures whose details stay in the logs.
const fallbackMessage = "服务器内部错误"

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps an orchestrator or decoding error to a status and a message
// that is safe to show the caller.
func statusFor(err error) (int, string) {
	var maxBytes *http.MaxBytesError
	var reqErr *requestError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, "request body too large"
	case errors.As(err, &reqErr):
		return http.StatusBadRequest, reqErr.msg
	case errors.Is(err, chat.ErrEmptyMessage):
		return http.StatusBadRequest, chat.ErrEmptyMessage.Error()
	case errors.Is(err, chat.ErrMessageTooLong):
		return http.StatusBadRequest, chat.ErrMessageTooLong.Error()
	case errors.Is(err, chat.ErrValidation):
		return http.StatusBadRequest, chat.ErrValidation.Error()
	case errors.Is(err, chat.ErrAccessDenied):
		return http.StatusNotFound, "conversation not found"
	case errors.Is(err, chat.ErrProviderFailed):
		return http.StatusBadGateway, "model provider request failed"
	}
	return http.StatusInternalServerError, fallbackMessage
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	logger := s.loggerFrom(r.Context())
	if status >= 500 {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Debug("request rejected", "status", status, "error", err)
	}
	writeJSON(w, status, errorBody{Error: msg})
}
