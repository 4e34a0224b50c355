package client

import (
	"fmt"
	"sync"

	"github.com/maxpoletaev/vaultnfs/message"
	"github.com/maxpoletaev/vaultnfs/transport"
)

// responder decides what a group member answers to a request. Returning nil
// means the member stays silent.
type responder func(member message.NodeID, env *message.Envelope) message.Response

// fakeGroup is a transport where every request is answered by the members
// of a single group, synchronously within Send.
type fakeGroup struct {
	members []message.NodeID
	respond responder

	mut      sync.Mutex
	receiver transport.Receiver
	sent     []*message.Envelope
	handled  chan *message.Envelope
}

func newFakeGroup(size int, respond responder) *fakeGroup {
	members := make([]message.NodeID, size)
	for i := range members {
		members[i] = message.NodeID(fmt.Sprintf("node%d", i+1))
	}

	return &fakeGroup{
		members: members,
		respond: respond,
		handled: make(chan *message.Envelope, 100),
	}
}

func (g *fakeGroup) SetReceiver(r transport.Receiver) {
	g.mut.Lock()
	defer g.mut.Unlock()

	g.receiver = r
}

func (g *fakeGroup) Send(env *message.Envelope, target message.NodeID) error {
	g.mut.Lock()
	g.sent = append(g.sent, env)
	receiver := g.receiver
	g.mut.Unlock()

	if g.respond != nil {
		for _, member := range g.members {
			resp := g.respond(member, env)
			if resp == nil {
				continue
			}

			receiver.OnMessage(&message.Envelope{
				ID:       env.ID,
				Sender:   member,
				Receiver: env.Sender,
				Kind:     resp.Kind(),
				Payload:  resp.Marshal(),
			})
		}
	}

	g.handled <- env

	return nil
}

func (g *fakeGroup) Sent() []*message.Envelope {
	g.mut.Lock()
	defer g.mut.Unlock()

	sent := make([]*message.Envelope, len(g.sent))
	copy(sent, g.sent)

	return sent
}
