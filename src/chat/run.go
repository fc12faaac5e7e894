package chat

import (
	"log/slog"
	"time"
)

// turnRun tracks the state machine of one Handle call.
type turnRun struct {
	chatID string
	state  State
	logger *slog.Logger
	notify func(Transition)
}

func (o *Orchestrator) newRun(chatID string) *turnRun {
	logger := o.logger
	if chatID != "" {
		logger = logger.With("chat_id", chatID)
	}
	return &turnRun{
		chatID: chatID,
		state:  StateValidating,
		logger: logger,
		notify: o.onTransition,
	}
}

func (r *turnRun) bind(chatID string) {
	if r.chatID == chatID {
		return
	}
	r.chatID = chatID
	r.logger = r.logger.With("chat_id", chatID)
}

func (r *turnRun) advance(next State) {
	r.move(next, nil)
}

func (r *turnRun) abort(err error) error {
	r.move(StateAborted, err)
	return err
}

func (r *turnRun) move(next State, err error) {
	from := r.state
	if !from.CanTransition(next) {
		r.logger.Error("illegal turn transition", "from", from, "to", next)
	}
	r.state = next
	r.logger.Debug("turn transition", "from", from, "to", next)
	if r.notify != nil {
		r.notify(Transition{
			ChatID: r.chatID,
			From:   from,
			To:     next,
			At:     time.Now(),
			Err:    err,
		})
	}
}
