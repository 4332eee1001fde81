package kb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Entry is one knowledge-base item: a set of trigger phrases mapped to a
// canned answer, tagged with the category file it came from.
type Entry struct {
	ID       string   `json:"id"`
	Category string   `json:"category,omitempty"`
	Triggers []string `json:"triggers"`
	Answer   string   `json:"answer"`
	Followup string   `json:"followup,omitempty"`
	Escalate bool     `json:"escalate,omitempty"`
}

type categoryFile struct {
	Category string  `json:"category"`
	Entries  []Entry `json:"entries"`
}

// categoryFiles maps each category to its file name, in declaration order.
// The order matters: FindMatch scans entries in this order, first match wins.
var categoryFiles = []struct {
	category string
	file     string
}{
	{"access", "access.json"},
	{"technical", "technical.json"},
	{"payments", "payments.json"},
}

const fallbackSystemPrompt = "Ты — бот поддержки курсов."

// Store holds the KB snapshot used by the chat path. It is loaded once at
// startup and never refreshed: edits made through the admin gateway only
// reach the matcher after a restart.
type Store struct {
	entries      []Entry
	systemPrompt string
}

// Load reads every category file under dir plus the system prompt. A
// malformed or missing file is logged and skipped so that a partial KB still
// serves.
func Load(dir, promptPath string, logger *zap.SugaredLogger) *Store {
	entries := make([]Entry, 0)

	for _, cf := range categoryFiles {
		path := filepath.Join(dir, cf.file)
		loaded, err := readCategoryFile(path)
		if err != nil {
			logger.Warnf("kb: skipping %s: %v", path, err)
			continue
		}
		for _, entry := range loaded {
			entry.Category = cf.category
			entries = append(entries, entry)
		}
	}

	prompt := fallbackSystemPrompt
	if raw, err := os.ReadFile(promptPath); err != nil {
		logger.Warnf("kb: system prompt %s unavailable, using fallback: %v", promptPath, err)
	} else if trimmed := strings.TrimSpace(string(raw)); trimmed != "" {
		prompt = trimmed
	}

	logger.Infof("kb: loaded %d entries", len(entries))

	return &Store{entries: entries, systemPrompt: prompt}
}

func readCategoryFile(path string) ([]Entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file categoryFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse category file: %w", err)
	}

	return file.Entries, nil
}

// SystemPrompt returns the base system prompt loaded at startup.
func (s *Store) SystemPrompt() string {
	return s.systemPrompt
}

// Entries returns the loaded snapshot in scan order.
func (s *Store) Entries() []Entry {
	return s.entries
}

// FindMatch returns the first entry whose any trigger occurs as a substring
// of the normalized message, or nil when nothing matches. Entries are scanned
// in load order and triggers in declaration order; no ranking by specificity.
func (s *Store) FindMatch(message string) *Entry {
	normalized := strings.ToLower(strings.TrimSpace(message))
	if normalized == "" {
		return nil
	}

	for i := range s.entries {
		for _, trigger := range s.entries[i].Triggers {
			if trigger == "" {
				continue
			}
			if strings.Contains(normalized, strings.ToLower(trigger)) {
				return &s.entries[i]
			}
		}
	}

	return nil
}
