package storage

import "time"

// Conversation is a row of the conversations table. OwnerID is nil for
// conversations started anonymously.
type Conversation struct {
	ID        string    `json:"id" db:"id"`
	OwnerID   *string   `json:"owner_id,omitempty" db:"owner_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Turn is a row of the turns table. Seq orders turns of a conversation.
type Turn struct {
	Seq            int64     `json:"seq" db:"seq"`
	ID             string    `json:"id" db:"id"`
	ConversationID string    `json:"conversation_id" db:"conversation_id"`
	Role           string    `json:"role" db:"role"`
	Content        string    `json:"content" db:"content"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
