package lease

// Window is how long a successful write grants its owner exclusive
// write access to a key, in seconds.
const Window = 3600

// Meta records the provenance of a stored value: the node that wrote
// it and the write time in integer UTC seconds. A Meta at key K is an
// implicit lease on K held by Owner until Timestamp+Window.
type Meta struct {
	Owner     string
	Timestamp int64
}

// Expired reports whether the lease carried by m has lapsed at the
// given instant. Expiry is strict: a lease written at T is still held
// at exactly T+Window.
func (m Meta) Expired(now int64) bool {
	return m.Timestamp < now-Window
}

// MayStore decides whether candidate may replace existing at some key.
// The write is permitted if:
//
//   - there is no value at that key, or
//   - the network is not enforcing leases, or
//   - the candidate owner already holds the key, or
//   - the existing record carries a strictly newer timestamp, or
//   - the lease on that key has lapsed, or
//   - the timestamps are equal and the candidate owner orders first.
//
// Conditions are checked in that order and the first match wins, so
// the outcome is identical on every node regardless of arrival order.
func MayStore(existing *Meta, candidate Meta, leasing bool, now int64) bool {
	switch {
	case existing == nil:
		return true
	case !leasing:
		return true
	case existing.Owner == candidate.Owner:
		return true
	case existing.Timestamp > candidate.Timestamp:
		return true
	case existing.Expired(now):
		return true
	case existing.Timestamp == candidate.Timestamp && existing.Owner > candidate.Owner:
		return true
	}
	return false
}
