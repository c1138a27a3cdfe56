// Package memory is the in-process Repository. With a file path it also
// persists the collection as a single JSON array, rewritten on every change.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"expensetracker/internal/core"
)

type Store struct {
	mu      sync.Mutex
	path    string
	items   []core.Expense
	loadErr error
}

// New returns an empty store that lives only in memory.
func New(seed ...core.Expense) *Store {
	return &Store{items: append([]core.Expense(nil), seed...)}
}

// Open returns a store backed by the JSON blob at path. A missing file is an
// empty collection. An unreadable or corrupt blob is remembered and reported
// by every later call so the file is never overwritten with partial data.
func Open(path string) *Store {
	s := &Store{path: path}
	s.items, s.loadErr = readBlob(path)
	return s
}

func (s *Store) GetAll(_ context.Context) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return append([]core.Expense(nil), s.items...), nil
}

func (s *Store) Add(_ context.Context, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return s.loadErr
	}
	if s.indexOf(e.ID) >= 0 {
		return fmt.Errorf("%w: duplicate id %s", core.ErrStorage, e.ID)
	}
	next := append(append([]core.Expense(nil), s.items...), e)
	return s.commit(next)
}

func (s *Store) Update(_ context.Context, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return s.loadErr
	}
	i := s.indexOf(e.ID)
	if i < 0 {
		return core.ErrNotFound
	}
	next := append([]core.Expense(nil), s.items...)
	next[i] = e
	return s.commit(next)
}

func (s *Store) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return s.loadErr
	}
	i := s.indexOf(id)
	if i < 0 {
		return core.ErrNotFound
	}
	next := make([]core.Expense, 0, len(s.items)-1)
	next = append(next, s.items[:i]...)
	next = append(next, s.items[i+1:]...)
	return s.commit(next)
}

func (s *Store) Close() error { return nil }

func (s *Store) indexOf(id string) int {
	for i, e := range s.items {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// commit writes next to disk (when file-backed) before making it current.
func (s *Store) commit(next []core.Expense) error {
	if s.path != "" {
		if err := writeBlob(s.path, next); err != nil {
			return err
		}
	}
	s.items = next
	return nil
}

func readBlob(path string) ([]core.Expense, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", core.ErrStorage, path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var items []core.Expense
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", core.ErrStorage, path, err)
	}

	seen := make(map[string]struct{}, len(items))
	for i, e := range items {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %s record %d: %v", core.ErrStorage, path, i, err)
		}
		if _, dup := seen[e.ID]; dup {
			return nil, fmt.Errorf("%w: %s record %d: duplicate id %s", core.ErrStorage, path, i, e.ID)
		}
		seen[e.ID] = struct{}{}
	}
	return items, nil
}

func writeBlob(path string, items []core.Expense) error {
	if items == nil {
		items = []core.Expense{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %v", core.ErrStorage, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create dir: %v", core.ErrStorage, err)
	}
	tmp, err := os.CreateTemp(dir, ".expenses-*.json")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", core.ErrStorage, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write: %v", core.ErrStorage, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: sync: %v", core.ErrStorage, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close: %v", core.ErrStorage, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: rename: %v", core.ErrStorage, err)
	}
	return nil
}
