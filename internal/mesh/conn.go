package mesh

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/DobryySoul/synckv/internal/wire"
)

// maxMessageSize bounds a single framed message so a corrupt or
// hostile length prefix cannot force an oversized allocation.
const maxMessageSize = 16 << 20

const sendTimeout = 10 * time.Second

// Conn is a single established peer connection. It implements
// syncproto.Peer for unicast seeding.
type Conn struct {
	id     string
	conn   net.Conn
	sendMu sync.Mutex
}

// ID returns the peer's node identity learned during the handshake.
func (c *Conn) ID() string {
	return c.id
}

// Send writes one framed message to the peer.
func (c *Conn) Send(msg wire.Message) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(sendTimeout))
	return writeMessage(c.conn, msg)
}

// writeMessage frames msg with a 4-byte big-endian length prefix. The
// header and payload go out in a single Write so concurrent senders
// cannot interleave.
func writeMessage(w io.Writer, msg wire.Message) error {
	payload := wire.Encode(msg)
	if len(payload) > maxMessageSize {
		return fmt.Errorf("mesh: message of %d bytes exceeds limit", len(payload))
	}
	framed := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(framed, uint32(len(payload)))
	copy(framed[4:], payload)
	_, err := w.Write(framed)
	return err
}

func readMessage(r io.Reader) (wire.Message, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return wire.Message{}, err
	}
	size := binary.BigEndian.Uint32(header[:])
	if size > maxMessageSize {
		return wire.Message{}, fmt.Errorf("mesh: message of %d bytes exceeds limit", size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return wire.Message{}, err
	}
	return wire.Decode(payload)
}
