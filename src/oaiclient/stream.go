package oaiclient

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/elee1766/chatrelay/src/aisdk"
)

var _ aisdk.StreamInterface = (*eventStream)(nil)

var (
	dataPrefix = []byte("data:")
	doneMarker = []byte("[DONE]")
)

// eventStream decodes a text/event-stream body of completion chunks.
type eventStream struct {
	body   io.ReadCloser
	reader *bufio.Reader
	logger *slog.Logger

	closed atomic.Bool
	done   bool
}

// streamEvent is a chunk that may instead carry an error payload.
type streamEvent struct {
	aisdk.StreamChunk
	Error *errorBody `json:"error,omitempty"`
}

func newEventStream(body io.ReadCloser, logger *slog.Logger) *eventStream {
	return &eventStream{
		body:   body,
		reader: bufio.NewReader(body),
		logger: logger,
	}
}

// Read returns the next chunk. It returns io.EOF after the [DONE] marker and
// io.ErrUnexpectedEOF when the body ends without one. Read must not be called
// concurrently; Close may be called from any goroutine to unblock it.
func (s *eventStream) Read() (*aisdk.StreamChunk, error) {
	if s.closed.Load() {
		return nil, ErrStreamClosed
	}
	if s.done {
		return nil, io.EOF
	}

	for {
		line, err := s.reader.ReadBytes('\n')
		if len(line) > 0 {
			chunk, ok, perr := s.parseLine(line)
			if perr != nil {
				return nil, perr
			}
			if ok {
				return chunk, nil
			}
			if s.done {
				return nil, io.EOF
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				// The body ended before [DONE]: the upstream cut the reply short.
				return nil, fmt.Errorf("stream ended without [DONE]: %w", io.ErrUnexpectedEOF)
			}
			if s.closed.Load() {
				return nil, ErrStreamClosed
			}
			return nil, fmt.Errorf("failed to read stream: %w", err)
		}
	}
}

// parseLine handles a single event-stream line. Comments, blank lines and
// non-data fields are skipped.
func (s *eventStream) parseLine(line []byte) (*aisdk.StreamChunk, bool, error) {
	line = bytes.TrimRight(line, "\r\n")
	if !bytes.HasPrefix(line, dataPrefix) {
		return nil, false, nil
	}
	payload := bytes.TrimSpace(line[len(dataPrefix):])
	if len(payload) == 0 {
		return nil, false, nil
	}
	if bytes.Equal(payload, doneMarker) {
		s.done = true
		return nil, false, nil
	}

	var ev streamEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		s.logger.Debug("undecodable stream payload", "payload", string(payload), "error", err)
		return nil, false, fmt.Errorf("failed to decode stream chunk: %w", err)
	}
	if ev.Error != nil {
		return nil, false, ev.Error.toAPIError(0, "")
	}
	chunk := ev.StreamChunk
	return &chunk, true, nil
}

// Close releases the underlying connection. It is safe to call more than once.
func (s *eventStream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.body.Close()
}
