package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// defaultHelloMessage stands in for a missing /api/hello message.
const defaultHelloMessage = "没有收到消息"

type chatRequest struct {
	Message string `json:"message"`
	// ChatID is null or absent for a new conversation.
	ChatID *string `json:"chatId" validate:"omitempty,max=128,printascii"`
}

type helloRequest struct {
	Message string `json:"message"`
}

type chatResponseTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type historyResponse struct {
	ChatID string             `json:"chatId"`
	Turns  []chatResponseTurn `json:"turns"`
}

type helloResponse struct {
	Reply string `json:"reply"`
}

// requestError is a malformed request body.
type requestError struct {
	msg string
	err error
}

func (e *requestError) Error() string {
	if e.err == nil {
		return e.msg
	}
	return e.msg + ": " + e.err.Error()
}

func (e *requestError) Unwrap() error { return e.err }

var validate = validator.New()

// decode reads a JSON body into dst and validates it. Unknown fields are
// ignored.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return &requestError{msg: "request body is required"}
		}
		return &requestError{msg: "invalid JSON body", err: err}
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &requestError{msg: fmt.Sprintf("invalid field %s", jsonName(verrs[0]))}
		}
		return &requestError{msg: "invalid request", err: err}
	}
	return nil
}

func jsonName(fe validator.FieldError) string {
	switch fe.Field() {
	case "ChatID":
		return "chatId"
	case "Message":
		return "message"
	}
	return fe.Field()
}
