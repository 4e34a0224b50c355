package dispatch

import (
	"sync"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/maxpoletaev/vaultnfs/correlation"
	"github.com/maxpoletaev/vaultnfs/message"
	"github.com/maxpoletaev/vaultnfs/transport"
)

// Dispatcher wraps requests into envelopes and hands them to the transport.
// Sends happen in the background: the caller is never blocked by the network,
// and a failed send is only logged. An operation whose request was lost is
// resolved by its deadline.
type Dispatcher struct {
	self      message.NodeID
	transport transport.Transport
	logger    kitlog.Logger
	wg        sync.WaitGroup

	// Guards closed and wg.Add, so that no send starts once Close is waiting.
	mut    sync.Mutex
	closed bool
}

func New(self message.NodeID, tr transport.Transport, logger kitlog.Logger) *Dispatcher {
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}

	return &Dispatcher{
		self:      self,
		transport: tr,
		logger:    logger,
	}
}

// Send routes the request to the group responsible for target. Use
// correlation.NoID for requests nobody is going to wait a reply for.
func (d *Dispatcher) Send(id correlation.ID, req message.Request, target message.NodeID) {
	env := &message.Envelope{
		ID:       id,
		Sender:   d.self,
		Receiver: target,
		Kind:     req.Kind(),
		Payload:  req.Marshal(),
	}

	d.mut.Lock()

	if d.closed {
		d.mut.Unlock()
		level.Warn(d.logger).Log("msg", "dispatcher is closed, request dropped", "kind", req.Kind(), "id", id)

		return
	}

	d.wg.Add(1)
	d.mut.Unlock()

	go func() {
		defer d.wg.Done()

		if err := d.transport.Send(env, target); err != nil {
			level.Warn(d.logger).Log(
				"msg", "failed to send request",
				"kind", env.Kind,
				"id", id,
				"target", target,
				"err", err,
			)

			return
		}

		level.Debug(d.logger).Log("msg", "request sent", "kind", env.Kind, "id", id, "target", target)
	}()
}

// Close waits for the requests being sent. Requests sent after Close are dropped.
func (d *Dispatcher) Close() {
	d.mut.Lock()
	d.closed = true
	d.mut.Unlock()

	d.wg.Wait()
}
