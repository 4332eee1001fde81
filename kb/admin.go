package kb

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Admin edits the KB category files on disk. It shares the category layout
// with Store but always re-reads the files, so it sees edits immediately
// while a running Store does not. Writes are plain full-file rewrites with
// no lock and no atomic rename; concurrent editors race last-writer-wins.
type Admin struct {
	dir string
}

func NewAdmin(dir string) *Admin {
	return &Admin{dir: dir}
}

var errUnknownCategory = errors.New("unknown category")

// IsUnknownCategory reports whether err came from an entry naming a category
// with no backing file.
func IsUnknownCategory(err error) bool {
	return errors.Is(err, errUnknownCategory)
}

// ListAll returns every entry across all category files, tagged with its
// category, in file-declaration order.
func (a *Admin) ListAll() ([]Entry, error) {
	entries := make([]Entry, 0)

	for _, cf := range categoryFiles {
		file, err := a.readFile(cf.file)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("read %s: %w", cf.file, err)
		}
		for _, entry := range file.Entries {
			entry.Category = cf.category
			entries = append(entries, entry)
		}
	}

	return entries, nil
}

// Save upserts an entry into its category file. The id is first removed from
// every category file, then the entry is written to the file of its current
// category, so changing the category on edit moves the entry instead of
// leaving a copy behind. The two steps are separate file writes: a crash in
// between can lose the entry.
func (a *Admin) Save(entry Entry) error {
	entry.ID = strings.TrimSpace(entry.ID)
	if entry.ID == "" {
		return errors.New("entry id is required")
	}

	category := strings.TrimSpace(entry.Category)
	target := ""
	for _, cf := range categoryFiles {
		if cf.category == category {
			target = cf.file
			break
		}
	}
	if target == "" {
		return fmt.Errorf("%w: %q", errUnknownCategory, category)
	}

	for _, cf := range categoryFiles {
		if cf.file == target {
			continue
		}
		if _, err := a.removeFromFile(cf.file, entry.ID); err != nil {
			return err
		}
	}

	file, err := a.readFile(target)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("read %s: %w", target, err)
		}
		file = categoryFile{Category: category}
	}

	stored := Entry{
		ID:       entry.ID,
		Triggers: entry.Triggers,
		Answer:   entry.Answer,
		Followup: entry.Followup,
		Escalate: entry.Escalate,
	}

	replaced := false
	for i := range file.Entries {
		if file.Entries[i].ID == entry.ID {
			file.Entries[i] = stored
			replaced = true
			break
		}
	}
	if !replaced {
		file.Entries = append(file.Entries, stored)
	}

	return a.writeFile(target, file)
}

// Delete removes the entry with the given id from every category file,
// rewriting only files that actually changed. Deleting an unknown id is a
// no-op that leaves every file untouched.
func (a *Admin) Delete(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("entry id is required")
	}

	for _, cf := range categoryFiles {
		if _, err := a.removeFromFile(cf.file, id); err != nil {
			return err
		}
	}

	return nil
}

func (a *Admin) removeFromFile(name, id string) (bool, error) {
	file, err := a.readFile(name)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", name, err)
	}

	filtered := file.Entries[:0]
	for _, entry := range file.Entries {
		if entry.ID != id {
			filtered = append(filtered, entry)
		}
	}

	if len(filtered) == len(file.Entries) {
		return false, nil
	}

	file.Entries = filtered
	if err := a.writeFile(name, file); err != nil {
		return false, err
	}

	return true, nil
}

func (a *Admin) readFile(name string) (categoryFile, error) {
	raw, err := os.ReadFile(filepath.Join(a.dir, name))
	if err != nil {
		return categoryFile{}, err
	}

	var file categoryFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return categoryFile{}, fmt.Errorf("parse category file: %w", err)
	}

	if file.Entries == nil {
		file.Entries = make([]Entry, 0)
	}

	return file, nil
}

func (a *Admin) writeFile(name string, file categoryFile) error {
	raw, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("encode category file: %w", err)
	}

	if err := os.WriteFile(filepath.Join(a.dir, name), append(raw, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}

	return nil
}
