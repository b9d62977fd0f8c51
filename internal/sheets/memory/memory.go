// Package memory keeps exported movement rows in process. It stands in for
// the spreadsheet when none is configured and in tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	ports "webbudget/internal/sheets"
)

type Store struct {
	mu    sync.Mutex
	items []ports.MovementRow
}

var _ ports.MovementExporter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// Append stores the row and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, r ports.MovementRow) (string, error) {
	if r.Code == "" {
		return "", errors.New("movement row without code")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, r)
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

// Remove drops every row exported for code.
func (s *Store) Remove(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.items[:0]
	for _, r := range s.items {
		if r.Code != code {
			kept = append(kept, r)
		}
	}
	s.items = kept
	return nil
}

// Rows returns a copy of the exported rows.
func (s *Store) Rows() []ports.MovementRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.MovementRow(nil), s.items...)
}
