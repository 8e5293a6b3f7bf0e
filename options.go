package synckv

import (
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
)

// baseProtocol is the negotiated protocol name. A digit encoding the
// leasing policy is appended so that nodes enforcing leases never sync
// with nodes that do not; the handshake rejects mismatches.
const baseProtocol = "sync"

// Option configures the database on creation.
// Return an error to reject an invalid option value.
type Option func(*Config) error

// Config holds runtime configuration for a synckv node.
// Users typically set it via Option helpers.
type Config struct {
	NodeID       string
	BindAddr     string
	Seeds        []string
	Discovery    bool
	Leasing      bool
	codec        any
	errorHandler func(error)
	clock        func() time.Time
}

func defaultConfig() Config {
	return Config{
		Discovery: true,
		Leasing:   true,
	}
}

func (c *Config) finalize() error {
	if c.NodeID == "" {
		c.NodeID = uuid.NewString()
	}
	if c.BindAddr != "" {
		if err := validateAddr(c.BindAddr); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) protocolID() string {
	if c.Leasing {
		return baseProtocol + "1"
	}
	return baseProtocol + "0"
}

// WithNodeID sets a stable node identifier used as write owner and in
// handshakes. Node IDs are compared lexicographically to break ties
// between writes with equal timestamps. If omitted, a random UUID is
// generated.
func WithNodeID(nodeID string) Option {
	return func(c *Config) error {
		if nodeID == "" {
			return fmt.Errorf("synckv: node id cannot be empty")
		}
		c.NodeID = nodeID
		return nil
	}
}

// WithBindAddr sets the local bind address in host:port form.
// It is validated with net.SplitHostPort.
func WithBindAddr(addr string) Option {
	return func(c *Config) error {
		if addr == "" {
			return fmt.Errorf("synckv: bind addr cannot be empty")
		}
		if err := validateAddr(addr); err != nil {
			return err
		}
		c.BindAddr = addr
		return nil
	}
}

// WithSeeds sets the initial seed node addresses for bootstrapping.
func WithSeeds(seeds []string) Option {
	return func(c *Config) error {
		c.Seeds = append([]string(nil), seeds...)
		return nil
	}
}

// WithDiscovery enables or disables discovery mechanisms like mDNS.
func WithDiscovery(enabled bool) Option {
	return func(c *Config) error {
		c.Discovery = enabled
		return nil
	}
}

// WithLeasing enables or disables lease enforcement. With leasing on
// (the default), a successful write grants its owner exclusive write
// access to the key for one hour. The setting is part of the protocol
// identifier, so all nodes of a mesh must agree on it.
func WithLeasing(enabled bool) Option {
	return func(c *Config) error {
		c.Leasing = enabled
		return nil
	}
}

// WithCodec sets the value codec used for storage and transport.
func WithCodec[V any](codec Codec[V]) Option {
	return func(c *Config) error {
		if codec == nil {
			return fmt.Errorf("synckv: codec cannot be nil")
		}
		c.codec = codec
		return nil
	}
}

// WithErrorHandler sets a callback for internal errors (serialization, network).
// It is best-effort and must be fast and non-blocking.
func WithErrorHandler(handler func(error)) Option {
	return func(c *Config) error {
		if handler == nil {
			return fmt.Errorf("synckv: error handler cannot be nil")
		}
		c.errorHandler = handler
		return nil
	}
}

// WithClock overrides the time source used for write timestamps and
// lease expiry. Intended for tests; defaults to time.Now.
func WithClock(clock func() time.Time) Option {
	return func(c *Config) error {
		if clock == nil {
			return fmt.Errorf("synckv: clock cannot be nil")
		}
		c.clock = clock
		return nil
	}
}

func validateAddr(addr string) error {
	_, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("synckv: invalid address %q: %w", addr, err)
	}
	return nil
}
