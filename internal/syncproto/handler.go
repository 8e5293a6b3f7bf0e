// Package syncproto implements the store-message protocol that keeps
// the entry stores of mesh peers converged: inbound message handling,
// outbound propagation of local writes, and full-state seeding of
// freshly connected peers.
package syncproto

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DobryySoul/synckv/internal/lease"
	"github.com/DobryySoul/synckv/internal/storage"
	"github.com/DobryySoul/synckv/internal/wire"
)

// ErrLeaseConflict indicates that another node holds an unexpired
// lease on the key. It is raised only for local writes; conflicting
// writes arriving over the network are dropped silently.
var ErrLeaseConflict = errors.New("syncproto: key is leased by another owner")

// Envelope is a parsed inbound message together with its delivery
// context assigned by the transport: the sender's node ID and the
// local receipt time in UTC seconds.
type Envelope struct {
	Msg    wire.Message
	Sender string
	Time   int64
}

// Peer is a single connected remote usable for unicast sends.
type Peer interface {
	ID() string
	Send(msg wire.Message) error
}

// Transport is the mesh capability the handler depends on: a stable
// node identity and best-effort broadcast to all connected peers.
type Transport interface {
	ID() string
	Broadcast(msg wire.Message) error
}

// Loopback is a Transport with no peers. It gives a node a stable
// identity without any networking, for local-only operation.
type Loopback struct {
	NodeID string
}

func (l Loopback) ID() string { return l.NodeID }

func (l Loopback) Broadcast(msg wire.Message) error { return nil }

// Handler translates store messages into entry-store mutations and
// emits the outbound messages for local writes and peer seeding.
type Handler struct {
	store   storage.Store
	tr      Transport
	leasing bool
	clock   func() time.Time
}

func NewHandler(store storage.Store, tr Transport, leasing bool, clock func() time.Time) *Handler {
	if clock == nil {
		clock = time.Now
	}
	return &Handler{
		store:   store,
		tr:      tr,
		leasing: leasing,
		clock:   clock,
	}
}

// apply arbitrates candidate against the current entry at key and
// mutates the store on acceptance. Rejection is ErrLeaseConflict when
// hard is set and a silent no-op otherwise.
func (h *Handler) apply(ctx context.Context, key string, value []byte, candidate lease.Meta, hard bool) error {
	var existing *lease.Meta
	entry, err := h.store.Get(ctx, key)
	switch {
	case err == nil:
		existing = &entry.Meta
	case errors.Is(err, storage.ErrNotFound):
	default:
		return err
	}

	if !lease.MayStore(existing, candidate, h.leasing, h.clock().Unix()) {
		if hard {
			return fmt.Errorf("%w: %s", ErrLeaseConflict, candidate.Owner)
		}
		return nil
	}
	return h.store.Put(ctx, key, value, candidate)
}

// Handle consumes one inbound message. It returns true when the
// message was a store message, mirroring the transport's
// handler-chain contract. Losing writes are absorbed without error;
// a non-nil error only reports a malformed packet that the framing
// layer should not have let through.
func (h *Handler) Handle(ctx context.Context, env Envelope) (bool, error) {
	if env.Msg.Flag != wire.FlagStore {
		return false, nil
	}
	fields := env.Msg.Fields

	// Fresh writes carry key and value; metadata is synthesized from
	// the sender identity and the local receipt time. Replicated
	// writes additionally carry the original owner and timestamp.
	meta := lease.Meta{Owner: env.Sender, Timestamp: env.Time}
	switch len(fields) {
	case 2:
	case 4:
		entry, err := h.store.Get(ctx, string(fields[0]))
		if err == nil && len(entry.Value) > 0 {
			// A replicated write is stale by construction; never let a
			// late-arriving seed replace data already present.
			return true, nil
		}
		ts, err := wire.FromBase58(fields[3])
		if err != nil {
			return true, fmt.Errorf("syncproto: store timestamp: %w", err)
		}
		meta = lease.Meta{Owner: string(fields[2]), Timestamp: int64(ts)}
	default:
		return true, fmt.Errorf("syncproto: store message with %d fields", len(fields))
	}

	if err := h.apply(ctx, string(fields[0]), wire.SanitizeValue(fields[1]), meta, false); err != nil {
		return true, err
	}
	return true, nil
}

// Set performs a local write: synthesize own-origin metadata,
// arbitrate in hard-failure mode, commit, then broadcast to all
// connected peers. An empty value is the deletion sentinel and is
// broadcast like any other write; receivers delete during their own
// arbitration and store step.
func (h *Handler) Set(ctx context.Context, key string, value []byte) error {
	meta := lease.Meta{Owner: h.tr.ID(), Timestamp: h.clock().Unix()}
	if err := h.apply(ctx, key, value, meta, true); err != nil {
		return err
	}
	return h.tr.Broadcast(wire.Message{
		Flag:   wire.FlagStore,
		Fields: [][]byte{[]byte(key), value},
	})
}

// Seed sends the node's full key set to a freshly connected peer, one
// store message per entry, each carrying the entry's original owner
// and timestamp rather than this node's. It iterates a point-in-time
// snapshot, so a write racing the handshake may or may not be
// included; live propagation covers it either way.
func (h *Handler) Seed(ctx context.Context, peer Peer) error {
	snapshot, err := h.store.Snapshot(ctx)
	if err != nil {
		return err
	}
	for key, entry := range snapshot {
		msg := wire.Message{
			Flag: wire.FlagStore,
			Fields: [][]byte{
				[]byte(key),
				entry.Value,
				[]byte(entry.Meta.Owner),
				wire.ToBase58(uint64(entry.Meta.Timestamp)),
			},
		}
		if err := peer.Send(msg); err != nil {
			return fmt.Errorf("syncproto: seed %s: %w", peer.ID(), err)
		}
	}
	return nil
}
