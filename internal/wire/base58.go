package wire

import (
	"errors"
	"fmt"
)

// Timestamps travel as text-safe base58 so they can sit alongside the
// other packet fields on any transport that is not fully binary-clean.
const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

var ErrBase58 = errors.New("wire: invalid base58 digit")

var base58Index = func() [256]int8 {
	var idx [256]int8
	for i := range idx {
		idx[i] = -1
	}
	for i := 0; i < len(base58Alphabet); i++ {
		idx[base58Alphabet[i]] = int8(i)
	}
	return idx
}()

// ToBase58 renders n in base58 text. Zero encodes as "1".
func ToBase58(n uint64) []byte {
	if n == 0 {
		return []byte{base58Alphabet[0]}
	}
	var buf [11]byte // 58^11 > 2^64
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = base58Alphabet[n%58]
		n /= 58
	}
	out := make([]byte, len(buf)-i)
	copy(out, buf[i:])
	return out
}

// FromBase58 parses text produced by ToBase58.
func FromBase58(text []byte) (uint64, error) {
	if len(text) == 0 {
		return 0, fmt.Errorf("%w: empty input", ErrBase58)
	}
	var n uint64
	for _, c := range text {
		digit := base58Index[c]
		if digit < 0 {
			return 0, fmt.Errorf("%w: %q", ErrBase58, c)
		}
		n = n*58 + uint64(digit)
	}
	return n, nil
}
