package kb

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func writeTestKB(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	files := map[string]string{
		"access.json": `{
  "category": "access",
  "entries": [
    {"id": "access-1", "triggers": ["не могу войти", "пароль"], "answer": "Сбросьте пароль.", "followup": "Проверьте спам."},
    {"id": "access-2", "triggers": ["нет доступа"], "answer": "Проверьте почту.", "escalate": true}
  ]
}`,
		"technical.json": `{
  "category": "technical",
  "entries": [
    {"id": "tech-1", "triggers": ["видео"], "answer": "Обновите страницу."}
  ]
}`,
		"payments.json": `{
  "category": "payments",
  "entries": [
    {"id": "pay-1", "triggers": ["возврат", "пароль от кабинета"], "answer": "Возврат в течение 14 дней."}
  ]
}`,
	}

	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	prompt := filepath.Join(dir, "system-prompt.md")
	if err := os.WriteFile(prompt, []byte("Ты — тестовый бот.\n"), 0o644); err != nil {
		t.Fatalf("write system prompt: %v", err)
	}

	return dir
}

func loadTestStore(t *testing.T, dir string) *Store {
	t.Helper()
	return Load(dir, filepath.Join(dir, "system-prompt.md"), zap.NewNop().Sugar())
}

func TestLoadTagsCategoriesInFileOrder(t *testing.T) {
	store := loadTestStore(t, writeTestKB(t))

	entries := store.Entries()
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}

	wantOrder := []struct {
		id       string
		category string
	}{
		{"access-1", "access"},
		{"access-2", "access"},
		{"tech-1", "technical"},
		{"pay-1", "payments"},
	}

	for i, want := range wantOrder {
		if entries[i].ID != want.id {
			t.Errorf("entry %d: expected id %s, got %s", i, want.id, entries[i].ID)
		}
		if entries[i].Category != want.category {
			t.Errorf("entry %d: expected category %s, got %s", i, want.category, entries[i].Category)
		}
	}

	if store.SystemPrompt() != "Ты — тестовый бот." {
		t.Errorf("unexpected system prompt: %q", store.SystemPrompt())
	}
}

func TestLoadSkipsMalformedAndMissingFiles(t *testing.T) {
	dir := writeTestKB(t)

	if err := os.WriteFile(filepath.Join(dir, "technical.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("corrupt technical.json: %v", err)
	}
	if err := os.Remove(filepath.Join(dir, "payments.json")); err != nil {
		t.Fatalf("remove payments.json: %v", err)
	}

	store := loadTestStore(t, dir)

	if len(store.Entries()) != 2 {
		t.Fatalf("expected partial KB with 2 entries, got %d", len(store.Entries()))
	}
}

func TestLoadFallsBackWhenPromptMissing(t *testing.T) {
	dir := writeTestKB(t)
	store := Load(dir, filepath.Join(dir, "missing-prompt.md"), zap.NewNop().Sugar())

	if store.SystemPrompt() != fallbackSystemPrompt {
		t.Errorf("expected fallback prompt, got %q", store.SystemPrompt())
	}
}

func TestFindMatchIsCaseInsensitiveSubstring(t *testing.T) {
	store := loadTestStore(t, writeTestKB(t))

	match := store.FindMatch("  Привет, я НЕ МОГУ ВОЙТИ в кабинет ")
	if match == nil {
		t.Fatal("expected a match")
	}
	if match.ID != "access-1" {
		t.Errorf("expected access-1, got %s", match.ID)
	}
}

func TestFindMatchFirstEntryWins(t *testing.T) {
	store := loadTestStore(t, writeTestKB(t))

	// "пароль от кабинета" would match pay-1 more specifically, but access-1
	// declares the shorter "пароль" trigger earlier in scan order.
	match := store.FindMatch("нужен пароль от кабинета")
	if match == nil {
		t.Fatal("expected a match")
	}
	if match.ID != "access-1" {
		t.Errorf("expected earliest-declared entry access-1, got %s", match.ID)
	}
}

func TestFindMatchReturnsNilWithoutTrigger(t *testing.T) {
	store := loadTestStore(t, writeTestKB(t))

	if match := store.FindMatch("расскажи анекдот"); match != nil {
		t.Errorf("expected no match, got %s", match.ID)
	}

	if match := store.FindMatch("   "); match != nil {
		t.Errorf("expected no match for blank message, got %s", match.ID)
	}
}
