// Package file keeps counter readings in a JSON state file shared by consecutive probe runs.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/vshulcz/pgprobe/internal/domain"
	"github.com/vshulcz/pgprobe/internal/ports"
)

const lockRetryDelay = 50 * time.Millisecond

type state map[string]map[string]domain.Reading

// Store persists readings in path, guarded by an advisory lock on path+".lock"
// so overlapping invocations do not lose each other's updates.
type Store struct {
	lock *flock.Flock
	path string
}

var _ ports.RateStore = (*Store)(nil)

// New returns a Store backed by path. The file is created on first Save.
func New(path string) *Store {
	return &Store{path: path, lock: flock.New(path + ".lock")}
}

// Load returns the readings stored for target; a missing file yields none.
func (s *Store) Load(ctx context.Context, target string) (map[string]domain.Reading, error) {
	if err := s.ensureDir(); err != nil {
		return nil, err
	}
	ok, err := s.lock.TryRLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("lock state: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("lock state: %s busy", s.path)
	}
	defer func() { _ = s.lock.Unlock() }()

	st, err := s.read()
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.Reading, len(st[target]))
	maps.Copy(out, st[target])
	return out, nil
}

// Save merges readings into target's entry and rewrites the file atomically.
func (s *Store) Save(ctx context.Context, target string, readings map[string]domain.Reading) error {
	if err := s.ensureDir(); err != nil {
		return err
	}
	ok, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock state: %w", err)
	}
	if !ok {
		return fmt.Errorf("lock state: %s busy", s.path)
	}
	defer func() { _ = s.lock.Unlock() }()

	st, err := s.read()
	if err != nil {
		return err
	}
	cur, exists := st[target]
	if !exists {
		cur = make(map[string]domain.Reading, len(readings))
		st[target] = cur
	}
	maps.Copy(cur, readings)
	return writeJSONAtomic(s.path, st)
}

func (s *Store) ensureDir() error {
	dir := filepath.Dir(s.path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	return nil
}

func (s *Store) read() (st state, retErr error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return state{}, nil
		}
		return nil, fmt.Errorf("open: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && retErr == nil {
			retErr = fmt.Errorf("close: %w", cerr)
		}
	}()

	st = state{}
	if err := json.NewDecoder(f).Decode(&st); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return st, nil
}

func writeJSONAtomic(path string, st state) (retErr error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".pgprobe-state-*")
	if err != nil {
		return fmt.Errorf("create tmp: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := true
	closed := false
	defer func() {
		if !closed {
			if cerr := tmp.Close(); cerr != nil && retErr == nil {
				retErr = fmt.Errorf("close tmp: %w", cerr)
			}
		}
		if cleanup {
			if err := os.Remove(tmpName); err != nil && retErr == nil {
				retErr = fmt.Errorf("remove tmp: %w", err)
			}
		}
	}()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(st); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close tmp: %w", err)
	}
	closed = true
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	cleanup = false
	return nil
}
