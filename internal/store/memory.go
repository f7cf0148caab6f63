package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sagewright/colossi/internal/game/puzzle"
)

// Memory is an in-process [Store] used by tests and by deployments that run
// without a database. Safe for concurrent use.
type Memory struct {
	mu          sync.RWMutex
	completions []CompletionRecord
	templates   map[templateKey]*puzzle.Template
}

type templateKey struct {
	world     string
	character string
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-process store.
func NewMemory() *Memory {
	return &Memory{templates: make(map[templateKey]*puzzle.Template)}
}

// SaveCompletion implements [Store].
func (s *Memory) SaveCompletion(_ context.Context, rec *CompletionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.completions = append(s.completions, *rec)
	return nil
}

// RecentCompletions implements [Store].
func (s *Memory) RecentCompletions(_ context.Context, limit int) ([]CompletionRecord, error) {
	if limit <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := make([]CompletionRecord, len(s.completions))
	copy(recs, s.completions)
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// CleanupCompletions implements [Store].
func (s *Memory) CleanupCompletions(_ context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.completions[:0]
	var removed int64
	for _, rec := range s.completions {
		if rec.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	s.completions = kept
	return removed, nil
}

// PuzzleTemplate implements [Store].
func (s *Memory) PuzzleTemplate(_ context.Context, worldName, characterName string) (*puzzle.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tpl, ok := s.templates[templateKey{worldName, characterName}]
	if !ok {
		return nil, nil
	}
	cp := *tpl
	return &cp, nil
}

// SavePuzzleTemplate implements [Store].
func (s *Memory) SavePuzzleTemplate(_ context.Context, worldName, characterName string, tpl *puzzle.Template) error {
	if err := tpl.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *tpl
	s.templates[templateKey{worldName, characterName}] = &cp
	return nil
}
