package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/google/uuid"
)

// GetConversationByID retrieves a conversation by its ID
func GetConversationByID(ctx context.Context, db sqlscan.Querier, conversationID string) (*Conversation, error) {
	query := `SELECT id, owner_id, created_at FROM conversations WHERE id = ?`
	var conv Conversation
	err := sqlscan.Get(ctx, db, &conv, query, conversationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	return &conv, nil
}

// CreateConversation creates a new conversation in the database
func CreateConversation(ctx context.Context, db Execer, conversation *Conversation) error {
	if conversation.ID == "" {
		conversation.ID = uuid.New().String()
	}
	if conversation.CreatedAt.IsZero() {
		conversation.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO conversations (id, owner_id, created_at) VALUES (?, ?, ?)`
	_, err := db.ExecContext(ctx, query, conversation.ID, conversation.OwnerID, conversation.CreatedAt)
	return err
}

// CountConversations returns the number of stored conversations.
func CountConversations(ctx context.Context, db sqlscan.Querier) (int64, error) {
	var n int64
	err := sqlscan.Get(ctx, db, &n, `SELECT COUNT(*) FROM conversations`)
	return n, err
}

// GetTurnsByConversationID retrieves all turns of a conversation in append order
func GetTurnsByConversationID(ctx context.Context, db sqlscan.Querier, conversationID string) ([]Turn, error) {
	query := `SELECT seq, id, conversation_id, role, content, created_at FROM turns WHERE conversation_id = ? ORDER BY seq`
	var turns []Turn
	err := sqlscan.Select(ctx, db, &turns, query, conversationID)
	if err != nil {
		return nil, err
	}
	return turns, nil
}

// CreateTurn appends a turn. Seq is assigned by the database.
func CreateTurn(ctx context.Context, db Execer, turn *Turn) error {
	if turn.ID == "" {
		turn.ID = uuid.New().String()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO turns (id, conversation_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`
	res, err := db.ExecContext(ctx, query, turn.ID, turn.ConversationID, turn.Role, turn.Content, turn.CreatedAt)
	if err != nil {
		return err
	}
	if seq, err := res.LastInsertId(); err == nil {
		turn.Seq = seq
	}
	return nil
}
