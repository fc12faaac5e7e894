package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
)

// ErrReplyConsumed is returned when Relay is called on a finished reply.
var ErrReplyConsumed = errors.New("reply already consumed")

// Reply is the streaming half of a turn. It is not safe for concurrent use:
// call Relay once, then Close, from the same goroutine.
type Reply struct {
	// ChatID is the resolved conversation, known before any fragment.
	ChatID string
	// Created reports whether Handle started a new conversation.
	Created bool

	o      *Orchestrator
	run    *turnRun
	ctx    context.Context
	stream FragmentStream

	acc      strings.Builder
	consumed bool
	once     sync.Once
	persist  error
}

// Relay forwards every fragment to emit in arrival order. When emit fails the
// consumer is treated as gone and streaming stops. Whatever text arrived is
// stored as the assistant turn before Relay returns, whatever the outcome.
func (r *Reply) Relay(ctx context.Context, emit func(fragment string) error) (err error) {
	if r.consumed {
		return ErrReplyConsumed
	}
	r.consumed = true
	defer func() { r.finalize(err) }()

	for {
		if cerr := ctx.Err(); cerr != nil {
			return newError(ErrCancelled, "relay", cerr)
		}

		fragment, rerr := r.stream.Recv()
		if errors.Is(rerr, io.EOF) {
			return nil
		}
		if rerr != nil {
			if cerr := ctx.Err(); cerr != nil {
				return newError(ErrCancelled, "receive fragment", cerr)
			}
			return newError(ErrStream, "receive fragment", rerr)
		}
		if fragment == "" {
			continue
		}

		r.acc.WriteString(fragment)
		if werr := emit(fragment); werr != nil {
			return newError(ErrCancelled, "emit fragment", werr)
		}
	}
}

// Close releases the provider stream. A reply that was never relayed ends
// as cancelled with nothing stored. Close is idempotent.
func (r *Reply) Close() error {
	r.consumed = true
	r.finalize(newError(ErrCancelled, "close", nil))
	return r.persist
}

// Text returns the text accumulated so far.
func (r *Reply) Text() string {
	return r.acc.String()
}

// PersistErr returns the error of the assistant turn write, if any.
func (r *Reply) PersistErr() error {
	return r.persist
}

func (r *Reply) finalize(outcome error) {
	r.once.Do(func() {
		if err := r.stream.Close(); err != nil {
			r.run.logger.Debug("closing provider stream", "error", err)
		}

		r.run.advance(StatePersistingAssistantTurn)
		r.persist = r.storeAssistantTurn()

		switch {
		case errors.Is(outcome, ErrCancelled):
			r.run.move(StateCancelled, outcome)
		case outcome != nil:
			r.run.abort(outcome)
		case r.persist != nil:
			r.run.abort(r.persist)
		default:
			r.run.advance(StateDone)
		}
	})
}

// storeAssistantTurn runs detached from the request context so that a
// disconnected client still gets its partial reply recorded.
func (r *Reply) storeAssistantTurn() error {
	text := r.acc.String()
	if text == "" {
		r.run.logger.Debug("empty reply, no assistant turn stored")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.ctx), r.o.finalizeTimeout)
	defer cancel()

	if err := r.o.store.AppendTurn(ctx, r.ChatID, Turn{Role: RoleAssistant, Content: text}); err != nil {
		perr := newError(ErrPersistence, "append assistant turn", err)
		r.run.logger.Error("failed to store assistant turn", "bytes", len(text), "error", err)
		return perr
	}
	r.run.logger.Debug("assistant turn stored", "bytes", len(text))
	return nil
}
