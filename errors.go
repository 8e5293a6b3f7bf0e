package synckv

import "errors"

var (
	// ErrNotFound indicates that the requested key is missing.
	ErrNotFound = errors.New("synckv: key not found")
	// ErrLeaseConflict indicates that another node wrote the key within
	// the lease window and still holds exclusive write access to it.
	ErrLeaseConflict = errors.New("synckv: key is leased by another owner")
	// ErrReservedKey indicates a key the wire encoding cannot carry.
	ErrReservedKey = errors.New("synckv: reserved key")
	// ErrClosed indicates that the DB has been closed.
	ErrClosed = errors.New("synckv: db is closed")
	// ErrTimeout indicates that the context deadline expired.
	ErrTimeout = errors.New("synckv: operation timed out")
	// ErrCanceled indicates that the context was canceled.
	ErrCanceled = errors.New("synckv: operation canceled")
)
