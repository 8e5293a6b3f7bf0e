package wire

import "errors"

// ErrReservedKey indicates a key that collides with framing-reserved
// byte sequences and cannot be stored.
var ErrReservedKey = errors.New("wire: reserved key")

// SanitizeKey returns the canonical byte form of a key. The empty
// sequence is reserved (an empty value is the deletion sentinel, and
// an empty key would make the two indistinguishable on the wire).
// The result is a copy so later caller mutation cannot leak into
// stored state.
func SanitizeKey(key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, ErrReservedKey
	}
	out := make([]byte, len(key))
	copy(out, key)
	return out, nil
}

// SanitizeValue returns the canonical byte form of a value. Nil and
// empty both normalize to nil, the deletion sentinel.
func SanitizeValue(value []byte) []byte {
	if len(value) == 0 {
		return nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out
}
