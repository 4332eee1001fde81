package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkoval/supportkb/db/models"
)

// ErrConversationNotFound is returned when a conversation id resolves to no row.
var ErrConversationNotFound = errors.New("conversation not found")

// ListConversations returns every conversation with its message count,
// newest created first.
func (p *Postgres) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	if p == nil || p.Pool == nil {
		return nil, errors.New("postgres pool is nil")
	}

	const query = `
SELECT c.id, c.client_id, c.title, c.model, c.created_at, c.updated_at, COUNT(m.id)
FROM conversations c
LEFT JOIN messages m ON m.conversation_id = c.id
GROUP BY c.id
ORDER BY c.created_at DESC`

	rows, err := p.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	conversations := make([]models.Conversation, 0)
	for rows.Next() {
		var conv models.Conversation
		if err := rows.Scan(
			&conv.ID,
			&conv.ClientID,
			&conv.Title,
			&conv.Model,
			&conv.CreatedAt,
			&conv.UpdatedAt,
			&conv.MessageCount,
		); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		conversations = append(conversations, conv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}

	return conversations, nil
}

// GetConversation fetches one conversation and its messages ordered by creation time.
func (p *Postgres) GetConversation(ctx context.Context, id string) (*models.Conversation, []models.Message, error) {
	if p == nil || p.Pool == nil {
		return nil, nil, errors.New("postgres pool is nil")
	}

	var conv models.Conversation
	const convQuery = `SELECT id, client_id, title, model, created_at, updated_at FROM conversations WHERE id = $1`
	if err := p.Pool.QueryRow(ctx, convQuery, id).Scan(
		&conv.ID,
		&conv.ClientID,
		&conv.Title,
		&conv.Model,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrConversationNotFound
		}
		return nil, nil, fmt.Errorf("query conversation: %w", err)
	}

	const msgQuery = `
SELECT id, conversation_id, role, content, kb_match_id, created_at
FROM messages
WHERE conversation_id = $1
ORDER BY created_at ASC`

	rows, err := p.Pool.Query(ctx, msgQuery, id)
	if err != nil {
		return nil, nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.Role,
			&msg.Content,
			&msg.KBMatchID,
			&msg.CreatedAt,
		); err != nil {
			return nil, nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate messages: %w", err)
	}

	conv.MessageCount = int64(len(messages))

	return &conv, messages, nil
}

// DeleteConversation removes a conversation; its messages go with it via the
// ON DELETE CASCADE constraint.
func (p *Postgres) DeleteConversation(ctx context.Context, id string) error {
	if p == nil || p.Pool == nil {
		return errors.New("postgres pool is nil")
	}

	tag, err := p.Pool.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrConversationNotFound
	}

	return nil
}

// CreateConversation inserts a new conversation and returns it.
func (p *Postgres) CreateConversation(ctx context.Context, clientID, title, model string) (*models.Conversation, error) {
	if p == nil || p.Pool == nil {
		return nil, errors.New("postgres pool is nil")
	}

	conv := models.Conversation{
		ID:       uuid.NewString(),
		ClientID: strings.TrimSpace(clientID),
		Title:    strings.TrimSpace(title),
		Model:    strings.TrimSpace(model),
	}

	const query = `
INSERT INTO conversations (id, client_id, title, model)
VALUES ($1, $2, $3, $4)
RETURNING created_at, updated_at`

	if err := p.Pool.QueryRow(ctx, query, conv.ID, conv.ClientID, conv.Title, conv.Model).
		Scan(&conv.CreatedAt, &conv.UpdatedAt); err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}

	return &conv, nil
}

// AppendMessage inserts one message and bumps the conversation's updated_at.
func (p *Postgres) AppendMessage(ctx context.Context, conversationID, role, content string, kbMatchID *string) (*models.Message, error) {
	if p == nil || p.Pool == nil {
		return nil, errors.New("postgres pool is nil")
	}

	msg := models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		KBMatchID:      kbMatchID,
	}

	const insertQuery = `
INSERT INTO messages (id, conversation_id, role, content, kb_match_id)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at`

	if err := p.Pool.QueryRow(ctx, insertQuery, msg.ID, msg.ConversationID, msg.Role, msg.Content, msg.KBMatchID).
		Scan(&msg.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	const touchQuery = `UPDATE conversations SET updated_at = $2 WHERE id = $1`
	if _, err := p.Pool.Exec(ctx, touchQuery, conversationID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("touch conversation: %w", err)
	}

	return &msg, nil
}
