package db_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/nkoval/supportkb/db"
)

func TestConversationLifecycle(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	ctx := context.Background()

	store, err := db.NewPostgres(ctx, dsn)
	if err != nil {
		t.Fatalf("failed to connect to postgres: %v", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema failed: %v", err)
	}

	first, err := store.CreateConversation(ctx, "client-1", "Не могу войти", "default/model")
	if err != nil {
		t.Fatalf("create first conversation: %v", err)
	}
	defer store.DeleteConversation(ctx, first.ID)

	second, err := store.CreateConversation(ctx, "client-2", "Вопрос про возврат", "default/model")
	if err != nil {
		t.Fatalf("create second conversation: %v", err)
	}
	defer store.DeleteConversation(ctx, second.ID)

	kbMatch := "access-login-failed"
	if _, err := store.AppendMessage(ctx, first.ID, "user", "не могу войти", &kbMatch); err != nil {
		t.Fatalf("append user message: %v", err)
	}
	if _, err := store.AppendMessage(ctx, first.ID, "assistant", "Сбросьте пароль.", nil); err != nil {
		t.Fatalf("append assistant message: %v", err)
	}

	conversations, err := store.ListConversations(ctx)
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}

	var firstListed, secondListed bool
	var firstIdx, secondIdx int
	for i, conv := range conversations {
		switch conv.ID {
		case first.ID:
			firstListed = true
			firstIdx = i
			if conv.MessageCount != 2 {
				t.Errorf("expected message count 2, got %d", conv.MessageCount)
			}
		case second.ID:
			secondListed = true
			secondIdx = i
		}
	}
	if !firstListed || !secondListed {
		t.Fatalf("expected both conversations listed")
	}
	if secondIdx > firstIdx {
		t.Errorf("expected newest conversation first: second at %d, first at %d", secondIdx, firstIdx)
	}

	conv, messages, err := store.GetConversation(ctx, first.ID)
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if conv.Title != "Не могу войти" {
		t.Errorf("unexpected title: %q", conv.Title)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].Role != "user" || messages[1].Role != "assistant" {
		t.Errorf("expected messages ordered by creation time: %s, %s", messages[0].Role, messages[1].Role)
	}
	if messages[0].KBMatchID == nil || *messages[0].KBMatchID != kbMatch {
		t.Errorf("expected kb_match_id %q on user message", kbMatch)
	}
	if !conv.UpdatedAt.After(conv.CreatedAt) {
		t.Errorf("expected updated_at bumped past created_at")
	}

	if err := store.DeleteConversation(ctx, second.ID); err != nil {
		t.Fatalf("delete conversation: %v", err)
	}
	if _, _, err := store.GetConversation(ctx, second.ID); !errors.Is(err, db.ErrConversationNotFound) {
		t.Errorf("expected not-found after delete, got %v", err)
	}
	if err := store.DeleteConversation(ctx, second.ID); !errors.Is(err, db.ErrConversationNotFound) {
		t.Errorf("expected not-found on double delete, got %v", err)
	}
}
