package synckv

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/DobryySoul/synckv/internal/discovery"
	"github.com/DobryySoul/synckv/internal/mesh"
	"github.com/DobryySoul/synckv/internal/storage"
	"github.com/DobryySoul/synckv/internal/syncproto"
	"github.com/DobryySoul/synckv/internal/wire"
)

// DB represents a running synckv node: a dictionary replicated across
// every peer of the mesh. It is safe for concurrent use by multiple
// goroutines. K must be a string or a type with underlying string.
type DB[K ~string, V any] struct {
	cfg       Config
	codec     Codec[V]
	store     storage.Store
	handler   *syncproto.Handler
	mesh      *mesh.Node
	discovery *discovery.MDNS
	mu        sync.RWMutex
	closed    bool
}

// New creates a new synckv node with the provided options.
// K must be provided explicitly because it cannot be inferred from
// arguments. Without a bind address the node runs in local mode:
// the full dictionary API works, nothing is replicated.
func New[K ~string, V any](opts ...Option) (*DB[K, V], error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	if len(cfg.Seeds) > 0 && cfg.BindAddr == "" {
		return nil, fmt.Errorf("synckv: bind addr required when seeds are set")
	}

	codec := Codec[V](GobCodec[V]{})
	if cfg.codec != nil {
		typed, ok := cfg.codec.(Codec[V])
		if !ok {
			return nil, fmt.Errorf("synckv: codec type mismatch")
		}
		codec = typed
	}
	errorHandler := cfg.errorHandler
	if errorHandler == nil {
		errorHandler = func(error) {}
	}
	clock := cfg.clock
	if clock == nil {
		clock = time.Now
	}

	db := &DB[K, V]{
		cfg:   cfg,
		codec: codec,
		store: storage.NewMemoryStore(),
	}

	if cfg.BindAddr == "" {
		db.handler = syncproto.NewHandler(db.store, syncproto.Loopback{NodeID: cfg.NodeID}, cfg.Leasing, clock)
		return db, nil
	}

	node := mesh.NewNode(mesh.Config{
		ID:       cfg.NodeID,
		Protocol: cfg.protocolID(),
		BindAddr: cfg.BindAddr,
		Clock:    clock,
		OnError:  errorHandler,
		Handler: func(ctx context.Context, env syncproto.Envelope) (bool, error) {
			return db.handler.Handle(ctx, env)
		},
		// Each completed handshake seeds the new peer with the full
		// local key set, carrying original owners and timestamps.
		OnPeer: func(p *mesh.Conn) {
			if err := db.handler.Seed(context.Background(), p); err != nil {
				errorHandler(err)
			}
		},
	})
	db.handler = syncproto.NewHandler(db.store, node, cfg.Leasing, clock)
	if err := node.Start(); err != nil {
		return nil, err
	}
	db.mesh = node
	node.AddPeers(cfg.Seeds)

	if cfg.Discovery {
		mdns, err := discovery.NewMDNS(cfg.NodeID, cfg.protocolID(), node.Addr(), node.AddPeers)
		if err != nil {
			_ = node.Stop()
			return nil, err
		}
		db.discovery = mdns
	}
	return db, nil
}

// Set updates the value at a given key and propagates the write to all
// connected peers. With leasing enabled the write succeeds if the slot
// is open, already owned by this node, or the previous lease lapsed;
// otherwise ErrLeaseConflict is returned.
func (db *DB[K, V]) Set(ctx context.Context, key K, value V) error {
	if err := db.check(ctx); err != nil {
		return err
	}
	data, err := db.codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("synckv: marshal value: %w", err)
	}
	return db.setBytes(ctx, key, data)
}

// Delete removes the key on this node and on every peer. It is a Set
// of the deletion sentinel and is therefore subject to the same lease
// arbitration as any other write.
func (db *DB[K, V]) Delete(ctx context.Context, key K) error {
	if err := db.check(ctx); err != nil {
		return err
	}
	return db.setBytes(ctx, key, nil)
}

func (db *DB[K, V]) setBytes(ctx context.Context, key K, data []byte) error {
	k, err := wire.SanitizeKey([]byte(key))
	if err != nil {
		return db.mapErr(err)
	}
	return db.mapErr(db.handler.Set(ctx, string(k), wire.SanitizeValue(data)))
}

// Get returns the value for the given key.
// It returns ErrNotFound if the key does not exist.
func (db *DB[K, V]) Get(ctx context.Context, key K) (V, error) {
	var zero V

	if err := db.check(ctx); err != nil {
		return zero, err
	}
	k, err := wire.SanitizeKey([]byte(key))
	if err != nil {
		return zero, db.mapErr(err)
	}
	entry, err := db.store.Get(ctx, string(k))
	if err != nil {
		return zero, db.mapErr(err)
	}
	return db.codec.Unmarshal(entry.Value)
}

// GetDefault returns the value for the given key, or def if the key
// does not exist.
func (db *DB[K, V]) GetDefault(ctx context.Context, key K, def V) (V, error) {
	value, err := db.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	return value, err
}

// Contains reports whether the key is present.
func (db *DB[K, V]) Contains(ctx context.Context, key K) (bool, error) {
	if err := db.check(ctx); err != nil {
		return false, err
	}
	k, err := wire.SanitizeKey([]byte(key))
	if err != nil {
		return false, db.mapErr(err)
	}
	ok, err := db.store.Contains(ctx, string(k))
	return ok, db.mapErr(err)
}

// Len returns the number of stored keys.
func (db *DB[K, V]) Len(ctx context.Context) (int, error) {
	if err := db.check(ctx); err != nil {
		return 0, err
	}
	size, err := db.store.Len(ctx)
	return size, db.mapErr(err)
}

// Keys returns all present keys in unspecified order.
func (db *DB[K, V]) Keys(ctx context.Context) ([]K, error) {
	if err := db.check(ctx); err != nil {
		return nil, err
	}
	raw, err := db.store.Keys(ctx)
	if err != nil {
		return nil, db.mapErr(err)
	}
	out := make([]K, 0, len(raw))
	for _, key := range raw {
		out = append(out, K(key))
	}
	return out, nil
}

// Update applies Set for each pair of entries, in map iteration order.
// There is no atomicity across the batch: the first failing key aborts
// the rest, and keys already applied are not rolled back.
func (db *DB[K, V]) Update(ctx context.Context, entries map[K]V) error {
	for key, value := range entries {
		if err := db.Set(ctx, key, value); err != nil {
			return err
		}
	}
	return nil
}

// Addr returns the actual mesh listen address, or "" in local mode.
// Useful as a seed for other nodes when binding to port 0.
func (db *DB[K, V]) Addr() string {
	if db.mesh == nil {
		return ""
	}
	return db.mesh.Addr()
}

// Close releases resources and marks the DB as closed.
// Further operations will return ErrClosed.
// The provided context allows cancellation of the close operation.
func (db *DB[K, V]) Close(ctx context.Context) error {
	if err := mapContextErr(ctx); err != nil {
		return err
	}
	db.mu.Lock()
	if db.closed {
		db.mu.Unlock()
		return ErrClosed
	}
	db.closed = true
	db.mu.Unlock()
	if db.discovery != nil {
		db.discovery.Stop()
	}
	if db.mesh != nil {
		_ = db.mesh.Stop()
	}
	return db.mapErr(db.store.Close())
}

func (db *DB[K, V]) check(ctx context.Context) error {
	if err := mapContextErr(ctx); err != nil {
		return err
	}
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return ErrClosed
	}
	return nil
}

func mapContextErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout
		}
		if errors.Is(err, context.Canceled) {
			return ErrCanceled
		}
		return err
	}
	return nil
}

func (db *DB[K, V]) mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, syncproto.ErrLeaseConflict) {
		return ErrLeaseConflict
	}
	if errors.Is(err, wire.ErrReservedKey) {
		return ErrReservedKey
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	if errors.Is(err, context.Canceled) {
		return ErrCanceled
	}
	return err
}
