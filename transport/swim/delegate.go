package swim

import (
	"github.com/hashicorp/memberlist"
)

// delegate hooks the transport into memberlist. Only user messages are of
// interest, the node carries no metadata or state of its own.
type delegate struct {
	t *Transport
}

func (d *delegate) NodeMeta(int) []byte { return nil }

// NotifyMsg is called for every user message. The buffer is reused by
// memberlist after the call returns.
func (d *delegate) NotifyMsg(b []byte) { d.t.receive(b) }

func (d *delegate) GetBroadcasts(int, int) [][]byte { return nil }

func (d *delegate) LocalState(bool) []byte { return nil }

func (d *delegate) MergeRemoteState([]byte, bool) {}

var _ memberlist.Delegate = (*delegate)(nil)
