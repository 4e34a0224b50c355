package swim

import (
	"time"

	kitlog "github.com/go-kit/log"
)

type Config struct {
	// Name identifies the node in the cluster. It must be the same as the
	// name the client sends its requests with, since replies are addressed to it.
	Name string

	// BindAddr and BindPort is where the node listens for both the gossip
	// and the user messages.
	BindAddr string
	BindPort int

	// AdvertiseAddr and AdvertisePort are announced to the other nodes, if
	// the node is behind a NAT. Empty means the bind address is used.
	AdvertiseAddr string
	AdvertisePort int

	// GroupSize is the number of nodes closest to a name a message is sent to.
	GroupSize int

	// Reliable makes messages go over TCP. Otherwise, they are sent as
	// single UDP packets, which limits the size of a message.
	Reliable bool

	// LeaveTimeout is how long Shutdown waits for the leave message to
	// propagate through the cluster.
	LeaveTimeout time.Duration

	// Logger is used both for the transport's own messages and for the
	// output of the underlying memberlist. If not provided, it is silent.
	Logger kitlog.Logger
}

// DefaultConfig creates a Config suitable for a local network.
func DefaultConfig() *Config {
	return &Config{
		BindAddr:     "0.0.0.0",
		BindPort:     7946,
		GroupSize:    4,
		Reliable:     true,
		LeaveTimeout: 5 * time.Second,
		Logger:       kitlog.NewNopLogger(),
	}
}
