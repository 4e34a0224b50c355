package swim

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/memberlist"
	"github.com/twmb/murmur3"

	"github.com/maxpoletaev/vaultnfs/internal/generic"
	"github.com/maxpoletaev/vaultnfs/internal/multierror"
	"github.com/maxpoletaev/vaultnfs/message"
	"github.com/maxpoletaev/vaultnfs/transport"
)

var ErrNoMembers = errors.New("no members to send the message to")

// Transport sends envelopes as memberlist user messages. Cluster membership
// and failure detection are entirely up to memberlist, the transport only
// decides which of the alive members form the group of a name.
type Transport struct {
	list         *memberlist.Memberlist
	logger       kitlog.Logger
	groupSize    int
	reliable     bool
	leaveTimeout time.Duration

	mut      sync.RWMutex
	receiver transport.Receiver
}

// Create starts the memberlist listeners. The node is alone in its cluster
// until Join is called.
func Create(conf *Config) (*Transport, error) {
	if conf.GroupSize < 1 {
		return nil, fmt.Errorf("group size must be positive, got %d", conf.GroupSize)
	}

	logger := conf.Logger
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}

	t := &Transport{
		logger:       logger,
		groupSize:    conf.GroupSize,
		reliable:     conf.Reliable,
		leaveTimeout: conf.LeaveTimeout,
	}

	mlConf := memberlist.DefaultLANConfig()
	mlConf.Name = conf.Name
	mlConf.BindAddr = conf.BindAddr
	mlConf.BindPort = conf.BindPort
	mlConf.AdvertiseAddr = conf.AdvertiseAddr
	mlConf.AdvertisePort = conf.AdvertisePort
	mlConf.Delegate = &delegate{t: t}
	mlConf.LogOutput = kitlog.NewStdlibAdapter(level.Debug(kitlog.With(logger, "component", "memberlist")))

	if mlConf.AdvertisePort == 0 {
		mlConf.AdvertisePort = conf.BindPort
	}

	list, err := memberlist.Create(mlConf)
	if err != nil {
		return nil, fmt.Errorf("failed to create memberlist: %w", err)
	}

	t.list = list

	return t, nil
}

// Join contacts the given nodes to learn about the cluster. It returns the
// number of nodes successfully contacted.
func (t *Transport) Join(addrs []string) (int, error) {
	return t.list.Join(addrs)
}

// NumMembers returns the number of alive members, including the local node.
func (t *Transport) NumMembers() int {
	return t.list.NumMembers()
}

// SetReceiver implements transport.Transport.
func (t *Transport) SetReceiver(r transport.Receiver) {
	t.mut.Lock()
	defer t.mut.Unlock()

	t.receiver = r
}

// Send implements transport.Transport. The message is sent to every member of
// the group closest to target, an error is returned if any of them could not
// be reached.
func (t *Transport) Send(env *message.Envelope, target message.NodeID) error {
	group := closestNodes(t.list.Members(), t.list.LocalNode().Name, target, t.groupSize)
	if len(group) == 0 {
		return ErrNoMembers
	}

	data := env.Marshal()
	errs := multierror.New[string]()

	for _, node := range group {
		var err error

		if t.reliable {
			err = t.list.SendReliable(node, data)
		} else {
			err = t.list.SendBestEffort(node, data)
		}

		if err != nil {
			errs.Add(node.Name, err)
		}
	}

	return errs.Combined()
}

// Shutdown announces the departure of the node and stops the listeners.
func (t *Transport) Shutdown() error {
	if err := t.list.Leave(t.leaveTimeout); err != nil {
		level.Warn(t.logger).Log("msg", "failed to leave the cluster gracefully", "err", err)
	}

	return t.list.Shutdown()
}

func (t *Transport) receive(b []byte) {
	env, err := message.UnmarshalEnvelope(b)
	if err != nil {
		level.Warn(t.logger).Log("msg", "failed to decode incoming message", "err", err)
		return
	}

	t.mut.RLock()
	receiver := t.receiver
	t.mut.RUnlock()

	if receiver == nil {
		level.Debug(t.logger).Log("msg", "no receiver set, message dropped", "kind", env.Kind)
		return
	}

	receiver.OnMessage(env)
}

// closestNodes picks up to n nodes whose hashed names are closest to the
// hashed target by XOR distance. The local node never takes part in a group.
func closestNodes(nodes []*memberlist.Node, self string, target message.NodeID, n int) []*memberlist.Node {
	nodes = generic.Filter(nodes, func(node *memberlist.Node) bool {
		return node.Name != self
	})

	targetHash := murmur3.StringSum64(string(target))

	distance := func(node *memberlist.Node) uint64 {
		return murmur3.StringSum64(node.Name) ^ targetHash
	}

	sort.Slice(nodes, func(i, j int) bool {
		di, dj := distance(nodes[i]), distance(nodes[j])
		if di != dj {
			return di < dj
		}

		return nodes[i].Name < nodes[j].Name
	})

	return generic.Take(nodes, n)
}
