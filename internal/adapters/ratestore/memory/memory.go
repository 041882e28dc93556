// Package memory keeps counter readings in process memory.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/vshulcz/pgprobe/internal/domain"
	"github.com/vshulcz/pgprobe/internal/ports"
)

// Store is a concurrency-safe in-memory RateStore.
type Store struct {
	byTarget map[string]map[string]domain.Reading
	mu       sync.RWMutex
}

var _ ports.RateStore = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{byTarget: make(map[string]map[string]domain.Reading)}
}

// Load returns a copy of the readings remembered for target.
func (s *Store) Load(_ context.Context, target string) (map[string]domain.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.Reading, len(s.byTarget[target]))
	maps.Copy(out, s.byTarget[target])
	return out, nil
}

// Save upserts readings for target, leaving other names untouched.
func (s *Store) Save(_ context.Context, target string, readings map[string]domain.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.byTarget[target]
	if !ok {
		cur = make(map[string]domain.Reading, len(readings))
		s.byTarget[target] = cur
	}
	maps.Copy(cur, readings)
	return nil
}
