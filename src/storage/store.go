package storage

import (
	"context"
	"fmt"

	"github.com/elee1766/chatrelay/src/chat"
)

var _ chat.Store = (*ChatStore)(nil)

// ChatStore exposes the database as the conversation store of the orchestrator.
type ChatStore struct {
	db *DB
}

func NewChatStore(db *DB) *ChatStore {
	return &ChatStore{db: db}
}

func (s *ChatStore) CreateConversation(ctx context.Context, owner chat.Identity) (string, error) {
	conv := &Conversation{}
	if !owner.IsAnonymous() {
		id := string(owner)
		conv.OwnerID = &id
	}
	if err := CreateConversation(ctx, s.db.DB(), conv); err != nil {
		return "", fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv.ID, nil
}

func (s *ChatStore) AppendTurn(ctx context.Context, chatID string, turn chat.Turn) error {
	if !turn.Role.Valid() {
		return fmt.Errorf("%w: %d", chat.ErrUnknownRole, uint8(turn.Role))
	}
	row := &Turn{
		ConversationID: chatID,
		Role:           turn.Role.String(),
		Content:        turn.Content,
	}
	if err := CreateTurn(ctx, s.db.DB(), row); err != nil {
		return fmt.Errorf("failed to append %s turn: %w", turn.Role, err)
	}
	return nil
}

func (s *ChatStore) ListTurns(ctx context.Context, chatID string) ([]chat.Turn, error) {
	rows, err := GetTurnsByConversationID(ctx, s.db.DB(), chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}

	turns := make([]chat.Turn, 0, len(rows))
	for _, row := range rows {
		role, err := chat.ParseRole(row.Role)
		if err != nil {
			return nil, fmt.Errorf("turn %s: %w", row.ID, err)
		}
		turns = append(turns, chat.Turn{Role: role, Content: row.Content})
	}
	return turns, nil
}

func (s *ChatStore) GetOwner(ctx context.Context, chatID string) (chat.Identity, error) {
	conv, err := GetConversationByID(ctx, s.db.DB(), chatID)
	if err != nil {
		return chat.Anonymous, fmt.Errorf("failed to get conversation: %w", err)
	}
	if conv == nil {
		return chat.Anonymous, chat.ErrConversationNotFound
	}
	if conv.OwnerID == nil {
		return chat.Anonymous, nil
	}
	return chat.Identity(*conv.OwnerID), nil
}
