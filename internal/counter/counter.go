// Package counter provides a lock-free sequence counter that rolls over
// instead of overflowing.
package counter

import "sync/atomic"

// Rolling is a 32-bit sequence. Zero is never returned by Next, so that the
// zero value of whatever the sequence is embedded into stays reserved.
type Rolling struct {
	v atomic.Uint32
}

// NewRolling creates a counter that starts right after the given offset.
func NewRolling(offset uint32) *Rolling {
	c := &Rolling{}
	c.v.Store(offset)

	return c
}

// Next returns the next value of the sequence.
func (c *Rolling) Next() uint32 {
	for {
		if n := c.v.Add(1); n != 0 {
			return n
		}
	}
}
