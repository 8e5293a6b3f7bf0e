package storage

import (
	"context"
	"errors"

	"github.com/DobryySoul/synckv/internal/lease"
)

var ErrNotFound = errors.New("storage: key not found")

// Entry pairs a stored value with the metadata of the write that
// produced it. The two always travel together: a key either has both
// or is absent from the store entirely.
type Entry struct {
	Value []byte
	Meta  lease.Meta
}

// Store holds the replicated entries of one node. It performs no
// arbitration of its own; callers mutate it only after a write has
// been accepted.
type Store interface {
	// Get returns the entry at key, or ErrNotFound.
	Get(ctx context.Context, key string) (Entry, error)
	// Contains reports whether key is present.
	Contains(ctx context.Context, key string) (bool, error)
	// Put records value and meta under key. An empty value is the
	// deletion sentinel: it removes the key instead of storing.
	Put(ctx context.Context, key string, value []byte, meta lease.Meta) error
	// Remove deletes the entry at key. Removing an absent key is a no-op.
	Remove(ctx context.Context, key string) error
	// Keys returns all present keys in unspecified order.
	Keys(ctx context.Context) ([]string, error)
	// Len returns the number of stored entries.
	Len(ctx context.Context) (int, error)
	// Snapshot returns a point-in-time copy of all entries.
	Snapshot(ctx context.Context) (map[string]Entry, error)
	// Range iterates over all entries until fn returns false. The
	// callback MUST NOT call mutating store methods or any method that
	// tries to take a write lock, otherwise it can deadlock.
	Range(ctx context.Context, fn func(key string, e Entry) bool) error
	Close() error
}
