package chat

import (
	"fmt"
	"time"
)

// State is a step of a single turn.
type State int

const (
	StateValidating State = iota
	StateCreatingConversation
	StateLocatingConversation
	StatePersistingUserTurn
	StateLoadingHistory
	StateStreamingProvider
	StatePersistingAssistantTurn
	StateDone
	StateAborted
	StateCancelled
)

var stateNames = [...]string{
	StateValidating:              "validating",
	StateCreatingConversation:    "creating_conversation",
	StateLocatingConversation:    "locating_conversation",
	StatePersistingUserTurn:      "persisting_user_turn",
	StateLoadingHistory:          "loading_history",
	StateStreamingProvider:       "streaming_provider",
	StatePersistingAssistantTurn: "persisting_assistant_turn",
	StateDone:                    "done",
	StateAborted:                 "aborted",
	StateCancelled:               "cancelled",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no further transition may leave s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateAborted || s == StateCancelled
}

var transitions = map[State][]State{
	StateValidating:              {StateCreatingConversation, StateLocatingConversation},
	StateCreatingConversation:    {StatePersistingUserTurn},
	StateLocatingConversation:    {StatePersistingUserTurn},
	StatePersistingUserTurn:      {StateLoadingHistory},
	StateLoadingHistory:          {StateStreamingProvider},
	StateStreamingProvider:       {StatePersistingAssistantTurn, StateCancelled},
	StatePersistingAssistantTurn: {StateDone, StateCancelled},
}

// CanTransition reports whether the machine may move from s to next.
// Aborted is reachable from every non-terminal state.
func (s State) CanTransition(next State) bool {
	if s.Terminal() {
		return false
	}
	if next == StateAborted {
		return true
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition records one state change of a turn.
type Transition struct {
	ChatID string
	From   State
	To     State
	At     time.Time
	Err    error
}
