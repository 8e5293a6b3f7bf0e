// Package synckv provides an embedded key-value store replicated
// across a peer-to-peer mesh, with time-bounded write leases.
//
// # Overview
//
// synckv keeps one dictionary in sync between service instances
// without a central coordinator. Every local write is broadcast to all
// connected peers; a node joining the mesh receives the full data set
// right after its handshake completes.
//
// # Leases
//
// With leasing enabled (the default), a successful write to a key
// grants the writing node exclusive write access to that key for one
// hour. Another node writing inside that window gets ErrLeaseConflict;
// conflicting writes arriving over the network are dropped silently.
// Arbitration is deterministic on every node: writes with equal
// timestamps resolve in favor of the lexicographically smaller node
// ID, regardless of arrival order. The leasing setting is encoded into
// the protocol identifier, so nodes that disagree on it never sync.
//
// # Data model
//
// Keys and values are opaque byte sequences handled through a Codec.
// A value that marshals to zero bytes is the deletion sentinel:
// writing it removes the key everywhere. Deleting is just such a
// write, so it obeys the same lease rules.
//
// # Generics
//
// The DB type is generic over key and value types. Keys must be string
// or a type with underlying string. Values can be any type.
//
// # Networking
//
// Replication is enabled when a bind address is provided. Without a
// bind address, the database works in local in-memory mode. Peers are
// found through seed addresses, mDNS discovery, or both.
//
// Example
//
//	db, err := synckv.New[string, string](
//		synckv.WithBindAddr("127.0.0.1:9001"),
//		synckv.WithSeeds([]string{"127.0.0.1:9002"}),
//		synckv.WithCodec(synckv.StringCodec{}),
//	)
//	if err != nil {
//		// handle error
//	}
//	_ = db.Set(context.Background(), "key", "value")
//	_, _ = db.Get(context.Background(), "key")
package synckv
