package chat

import "fmt"

// ContextPolicy chooses which persisted turns are sent to the provider.
// The system turn is prepended after the policy runs.
type ContextPolicy interface {
	Select(turns []Turn) []Turn
}

// FullHistory resends every persisted turn.
type FullHistory struct{}

func (FullHistory) Select(turns []Turn) []Turn { return turns }

// RecentTurns keeps at most Limit of the newest turns.
type RecentTurns struct {
	Limit int
}

func (p RecentTurns) Select(turns []Turn) []Turn {
	if p.Limit <= 0 || len(turns) <= p.Limit {
		return turns
	}
	window := turns[len(turns)-p.Limit:]
	// Avoid opening the window on an orphaned assistant reply.
	if len(window) > 1 && window[0].Role == RoleAssistant {
		window = window[1:]
	}
	return window
}

// PolicyFromName builds a policy from its configuration name.
func PolicyFromName(name string, limit int) (ContextPolicy, error) {
	switch name {
	case "", "full":
		return FullHistory{}, nil
	case "recent":
		if limit <= 0 {
			return nil, fmt.Errorf("recent history policy needs a positive limit, got %d", limit)
		}
		return RecentTurns{Limit: limit}, nil
	}
	return nil, fmt.Errorf("unknown history policy %q", name)
}
