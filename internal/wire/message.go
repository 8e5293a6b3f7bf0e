// Package wire defines the canonical byte encoding shared by all
// synckv nodes: message framing, the base58 integer text encoding used
// for timestamp fields, and key sanitization.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Message flags. The flag identifies the message kind; the fields that
// follow depend on it.
const (
	// FlagHandshake carries [protocol, nodeID, listenAddr].
	FlagHandshake byte = 0x01
	// FlagStore carries [key, value] for a freshly originated write or
	// [key, value, owner, timestamp-base58] for a replicated one.
	FlagStore byte = 0x02
)

var ErrMalformed = errors.New("wire: malformed message")

// Message is a parsed packet: a kind flag and its opaque fields.
type Message struct {
	Flag   byte
	Fields [][]byte
}

// Encode serializes msg as flag, field count, then each field
// length-prefixed with an unsigned varint.
func Encode(msg Message) []byte {
	size := 1 + binary.MaxVarintLen64
	for _, field := range msg.Fields {
		size += binary.MaxVarintLen64 + len(field)
	}
	out := make([]byte, 0, size)
	out = append(out, msg.Flag)
	out = binary.AppendUvarint(out, uint64(len(msg.Fields)))
	for _, field := range msg.Fields {
		out = binary.AppendUvarint(out, uint64(len(field)))
		out = append(out, field...)
	}
	return out
}

// Decode parses a packet produced by Encode. Trailing bytes are
// rejected so a framing error cannot silently truncate a field.
func Decode(data []byte) (Message, error) {
	if len(data) < 1 {
		return Message{}, fmt.Errorf("%w: empty packet", ErrMalformed)
	}
	msg := Message{Flag: data[0]}
	rest := data[1:]

	count, n := binary.Uvarint(rest)
	if n <= 0 {
		return Message{}, fmt.Errorf("%w: bad field count", ErrMalformed)
	}
	rest = rest[n:]
	if count > uint64(len(rest)) {
		return Message{}, fmt.Errorf("%w: field count %d exceeds packet", ErrMalformed, count)
	}

	msg.Fields = make([][]byte, 0, count)
	for i := uint64(0); i < count; i++ {
		size, n := binary.Uvarint(rest)
		if n <= 0 {
			return Message{}, fmt.Errorf("%w: bad field length", ErrMalformed)
		}
		rest = rest[n:]
		if size > uint64(len(rest)) {
			return Message{}, fmt.Errorf("%w: field length %d exceeds packet", ErrMalformed, size)
		}
		msg.Fields = append(msg.Fields, rest[:size:size])
		rest = rest[size:]
	}
	if len(rest) != 0 {
		return Message{}, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, len(rest))
	}
	return msg, nil
}
