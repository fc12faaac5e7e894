package server

import (
	"sync/atomic"

	"github.com/elee1766/chatrelay/src/chat"
)

// TurnStats counts turns by the terminal state they reached. Observe is meant
// to be installed as chat.Config.OnTransition.
type TurnStats struct {
	done      atomic.Int64
	aborted   atomic.Int64
	cancelled atomic.Int64
}

// Observe records t if it ends a turn.
func (s *TurnStats) Observe(t chat.Transition) {
	switch t.To {
	case chat.StateDone:
		s.done.Add(1)
	case chat.StateAborted:
		s.aborted.Add(1)
	case chat.StateCancelled:
		s.cancelled.Add(1)
	}
}

type turnCounts struct {
	Done      int64 `json:"done"`
	Aborted   int64 `json:"aborted"`
	Cancelled int64 `json:"cancelled"`
}

func (s *TurnStats) snapshot() *turnCounts {
	return &turnCounts{
		Done:      s.done.Load(),
		Aborted:   s.aborted.Load(),
		Cancelled: s.cancelled.Load(),
	}
}
