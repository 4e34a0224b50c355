package correlation

import (
	"fmt"
	"math/rand"

	"github.com/twmb/murmur3"

	"github.com/maxpoletaev/vaultnfs/internal/counter"
)

// ID ties an outgoing request to the replies it causes. The upper half is a
// hash of the node that minted it, the lower half a node-local sequence.
type ID uint64

// NoID marks requests that do not expect any reply.
const NoID ID = 0

// Source returns the hash of the identity that minted the id.
func (id ID) Source() uint32 {
	return uint32(id >> 32)
}

// Seq returns the node-local part of the id.
func (id ID) Seq() uint32 {
	return uint32(id)
}

func (id ID) String() string {
	return fmt.Sprintf("%08x-%08x", id.Source(), id.Seq())
}

// IDSource mints ids for a single node. The sequence starts at a random offset,
// so that a restarted node is unlikely to reuse ids still known to its peers.
// It is safe for concurrent use.
type IDSource struct {
	prefix uint64
	seq    *counter.Rolling
}

// NewIDSource creates a source of ids for the given node identity.
func NewIDSource(identity string) *IDSource {
	return newIDSource(identity, rand.Uint32())
}

func newIDSource(identity string, offset uint32) *IDSource {
	return &IDSource{
		prefix: uint64(murmur3.StringSum32(identity)) << 32,
		seq:    counter.NewRolling(offset),
	}
}

// Next returns a new id. It is never NoID.
func (s *IDSource) Next() ID {
	for {
		if id := ID(s.prefix | uint64(s.seq.Next())); id != NoID {
			return id
		}
	}
}
