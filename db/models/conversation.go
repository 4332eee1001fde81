package models

import "time"

// Conversation is one playground chat session persisted in Postgres.
type Conversation struct {
	ID           string    `json:"id"`
	ClientID     string    `json:"client_id"`
	Title        string    `json:"title"`
	Model        string    `json:"model"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int64     `json:"message_count"`
}

// Message is a single immutable turn inside a conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	KBMatchID      *string   `json:"kb_match_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
