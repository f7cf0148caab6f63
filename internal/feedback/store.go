// Package feedback persists player feedback on the adventure as append-only
// JSON lines in a local file, suitable for a small playtest group.
//
// For production use, this should be replaced with a PostgreSQL-backed
// implementation.
package feedback

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Feedback is one player's rating of a play session. Ratings run 1 (poor)
// to 5 (great); zero means unrated.
type Feedback struct {
	SessionID string `json:"session_id"`
	Narration int    `json:"narration"`
	Puzzles   int    `json:"puzzles"`
	Pacing    int    `json:"pacing"`
	Comments  string `json:"comments,omitempty"`
}

// Validate checks that every rating is either unrated or within 1..5.
func (fb Feedback) Validate() error {
	for _, r := range []struct {
		name  string
		value int
	}{
		{"narration", fb.Narration},
		{"puzzles", fb.Puzzles},
		{"pacing", fb.Pacing},
	} {
		if r.value < 0 || r.value > 5 {
			return fmt.Errorf("feedback: %s rating %d is out of range [0, 5]", r.name, r.value)
		}
	}
	return nil
}

// Record is a single entry written to the file store.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	Feedback
}

// Store accepts player feedback.
type Store interface {
	Save(fb Feedback) error
}

// FileStore persists feedback as JSON lines in a local file.
// Safe for concurrent use.
type FileStore struct {
	mu   sync.Mutex
	path string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a FileStore that writes to the given path.
// The file is created on first save if it does not exist.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Save validates fb and appends it to the file.
func (fs *FileStore) Save(fb Feedback) error {
	if err := fb.Validate(); err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := json.Marshal(Record{Timestamp: time.Now().UTC(), Feedback: fb})
	if err != nil {
		return fmt.Errorf("feedback: marshal: %w", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(fs.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("feedback: open file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("feedback: write: %w", err)
	}
	return nil
}
