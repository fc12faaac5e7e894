package main

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/elee1766/chatrelay/src/config"
	"github.com/elee1766/chatrelay/src/oaiclient"
)

// Exit codes following standard conventions
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error
	ExitUsage       = 2 // Usage error
	ExitConfig      = 3 // Configuration error
	ExitAuth        = 4 // Authentication error
	ExitNotFound    = 5 // Conversation not found
	ExitNetwork     = 6 // Network error
	ExitTimeout     = 7 // Timeout error
	ExitInterrupted = 8 // Interrupted by user
)

// errConfig marks failures to load or validate the configuration.
var errConfig = errors.New("configuration error")

// statusError is a non-2xx answer from a running relay.
type statusError struct {
	Status  int
	Message string
}

func (e *statusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("relay returned status %d", e.Status)
	}
	return fmt.Sprintf("relay returned status %d: %s", e.Status, e.Message)
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var valErr config.ValidationError
	var apiErr *oaiclient.APIError
	var stErr *statusError
	var netErr net.Error

	switch {
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeout
	case errors.Is(err, errConfig), errors.As(err, &valErr):
		return ExitConfig
	case errors.As(err, &apiErr) && apiErr.IsAuthError():
		return ExitAuth
	case errors.As(err, &stErr):
		switch stErr.Status {
		case 401, 403:
			return ExitAuth
		case 404:
			return ExitNotFound
		case 400, 413:
			return ExitUsage
		}
		return ExitError
	case errors.As(err, &netErr):
		if netErr.Timeout() {
			return ExitTimeout
		}
		return ExitNetwork
	}
	return ExitError
}
