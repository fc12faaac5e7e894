package chat

import "context"

// Store is the durable home of conversations and their turns.
type Store interface {
	// CreateConversation creates an empty conversation and returns its id.
	// An anonymous owner creates an unowned conversation.
	CreateConversation(ctx context.Context, owner Identity) (string, error)
	// AppendTurn adds a turn after every turn already stored for chatID.
	AppendTurn(ctx context.Context, chatID string, turn Turn) error
	// ListTurns returns the turns of chatID in append order.
	ListTurns(ctx context.Context, chatID string) ([]Turn, error)
	// GetOwner returns the owner of chatID, Anonymous for unowned
	// conversations, or ErrConversationNotFound.
	GetOwner(ctx context.Context, chatID string) (Identity, error)
}

// Provider is a language model that answers an ordered list of turns.
type Provider interface {
	// StreamCompletion opens a streaming completion. The stream must be closed.
	StreamCompletion(ctx context.Context, turns []Turn) (FragmentStream, error)
	// Complete returns the whole reply at once.
	Complete(ctx context.Context, turns []Turn) (string, error)
}

// FragmentStream yields reply fragments in order and io.EOF after the last one.
type FragmentStream interface {
	Recv() (string, error)
	Close() error
}
