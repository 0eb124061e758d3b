// Package memory is an in-process journal used when no spreadsheet is
// configured, and in tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"finagent/internal/journal"
)

type Store struct {
	mu      sync.Mutex
	entries []journal.Entry
}

var _ journal.Writer = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// AppendEntry stores the entry and returns a synthetic row reference.
func (s *Store) AppendEntry(_ context.Context, e journal.Entry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return fmt.Sprintf("mem:%d", len(s.entries)), nil
}

// Entries returns a copy of everything appended so far, oldest first.
func (s *Store) Entries() []journal.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]journal.Entry(nil), s.entries...)
}
