package storage

import (
	"context"
	"sync"

	"github.com/DobryySoul/synckv/internal/lease"
)

// memoryStore keeps value and metadata in a single map entry under one
// mutex, so no reader can ever observe a key with one half missing.
type memoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemoryStore() Store {
	return &memoryStore{
		entries: make(map[string]Entry),
	}
}

func (s *memoryStore) Get(ctx context.Context, key string) (Entry, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return Entry{}, err
		}
	}
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return Entry{}, ErrNotFound
	}
	return entry, nil
}

func (s *memoryStore) Contains(ctx context.Context, key string) (bool, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return false, err
		}
	}
	s.mu.RLock()
	_, ok := s.entries[key]
	s.mu.RUnlock()
	return ok, nil
}

func (s *memoryStore) Put(ctx context.Context, key string, value []byte, meta lease.Meta) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	if len(value) == 0 {
		delete(s.entries, key)
	} else {
		s.entries[key] = Entry{Value: value, Meta: meta}
	}
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Remove(ctx context.Context, key string) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Keys(ctx context.Context) ([]string, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	s.mu.RLock()
	out := make([]string, 0, len(s.entries))
	for key := range s.entries {
		out = append(out, key)
	}
	s.mu.RUnlock()
	return out, nil
}

func (s *memoryStore) Len(ctx context.Context) (int, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
	}
	s.mu.RLock()
	size := len(s.entries)
	s.mu.RUnlock()
	return size, nil
}

func (s *memoryStore) Snapshot(ctx context.Context) (map[string]Entry, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	s.mu.RLock()
	out := make(map[string]Entry, len(s.entries))
	for key, entry := range s.entries {
		out[key] = entry
	}
	s.mu.RUnlock()
	return out, nil
}

// Range holds a read lock for the duration of the iteration. Do not
// call mutating methods from the callback to avoid deadlocks.
func (s *memoryStore) Range(ctx context.Context, fn func(key string, e Entry) bool) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	s.mu.RLock()
	for key, entry := range s.entries {
		if !fn(key, entry) {
			break
		}
	}
	s.mu.RUnlock()
	return nil
}

func (s *memoryStore) Close() error {
	return nil
}
