package transport

//go:generate mockgen -source=transport.go -destination=transport_mock.go -package=transport

import (
	"github.com/maxpoletaev/vaultnfs/message"
)

// Receiver consumes envelopes arriving from the network. OnMessage may be
// called concurrently from several transport goroutines and must not block
// for long.
type Receiver interface {
	OnMessage(env *message.Envelope)
}

// Transport delivers envelopes to the group of nodes responsible for a name.
// Which nodes form the group, and how they are found, is up to the
// implementation.
type Transport interface {
	// Send routes the envelope towards the group closest to target. It may
	// block for the duration of a single network write, but never waits for
	// replies.
	Send(env *message.Envelope, target message.NodeID) error

	// SetReceiver sets the consumer of incoming envelopes. Envelopes received
	// before a receiver is set are dropped.
	SetReceiver(r Receiver)
}
