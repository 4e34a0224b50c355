package correlation

import (
	"errors"
	"fmt"
	"sync"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/raulk/clock"

	"github.com/maxpoletaev/vaultnfs/quorum"
)

var (
	ErrClosed      = errors.New("correlation table is closed")
	ErrDuplicateID = errors.New("duplicate correlation id")
)

// Operation is the per-request state kept by a table. *quorum.Op satisfies it.
type Operation[T any] interface {
	Accumulate(reply quorum.Reply[T]) quorum.State
	Expire()
	Fail(err error)
	Complete()
}

type entry[T any] struct {
	op       Operation[T]
	timer    *clock.Timer
	expected int
	received int
}

// Table keeps track of the in-flight operations of one response type. All
// registrations, replies and deadlines are processed one at a time by the
// table's own goroutine, which is the only one to ever touch the operations,
// so they need no locking of their own.
type Table[T any] struct {
	name    string
	ids     *IDSource
	logger  kitlog.Logger
	clock   clock.Clock
	metrics *Metrics
	strict  bool

	tasks     chan func()
	quit      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	// Owned by the executor goroutine.
	entries map[ID]*entry[T]
}

// New creates a table and starts its executor. The table must be closed to
// release the goroutine.
func New[T any](name string, ids *IDSource, opts ...Option) *Table[T] {
	o := options{
		logger: kitlog.NewNopLogger(),
		clock:  clock.New(),
	}

	for _, opt := range opts {
		opt(&o)
	}

	if o.metrics == nil {
		o.metrics = NewMetrics(nil)
	}

	t := &Table[T]{
		name:    name,
		ids:     ids,
		logger:  kitlog.With(o.logger, "table", name),
		clock:   o.clock,
		metrics: o.metrics,
		strict:  o.strict,
		tasks:   make(chan func()),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
		entries: make(map[ID]*entry[T]),
	}

	go t.run()

	return t
}

// Name returns the response type the table is responsible for.
func (t *Table[T]) Name() string {
	return t.name
}

// NewID mints an id for an operation about to be registered.
func (t *Table[T]) NewID() ID {
	return t.ids.Next()
}

// Register starts tracking an operation that expects up to expected replies
// and must be resolved within timeout. If the table is closed, the operation
// is failed with ErrClosed right away.
func (t *Table[T]) Register(id ID, op Operation[T], timeout time.Duration, expected int) {
	if !t.post(func() { t.register(id, op, timeout, expected) }) {
		op.Fail(ErrClosed)
		op.Complete()
	}
}

// Deliver passes a reply to the operation registered under id. Replies for
// unknown ids are dropped.
func (t *Table[T]) Deliver(id ID, reply quorum.Reply[T]) {
	if !t.post(func() { t.deliver(id, reply) }) {
		t.metrics.dropped(t.name, dropClosed)
		level.Debug(t.logger).Log("msg", "reply dropped, table is closed", "id", id, "sender", reply.Sender)
	}
}

// Len returns the number of in-flight operations.
func (t *Table[T]) Len() int {
	res := make(chan int, 1)

	if !t.post(func() { res <- len(t.entries) }) {
		return 0
	}

	return <-res
}

// Close fails every in-flight operation with ErrClosed and stops the executor.
// It is safe to call Close more than once.
func (t *Table[T]) Close() {
	t.closeOnce.Do(func() {
		close(t.quit)
	})

	<-t.stopped
}

func (t *Table[T]) post(task func()) bool {
	select {
	case t.tasks <- task:
		return true
	case <-t.quit:
		return false
	}
}

func (t *Table[T]) run() {
	defer close(t.stopped)

	for {
		select {
		case task := <-t.tasks:
			task()
		case <-t.quit:
			t.shutdown()
			return
		}
	}
}

func (t *Table[T]) register(id ID, op Operation[T], timeout time.Duration, expected int) {
	if _, exists := t.entries[id]; exists {
		if t.strict {
			panic(fmt.Sprintf("correlation id %s is already registered in table %s", id, t.name))
		}

		level.Error(t.logger).Log("msg", "correlation id is already registered", "id", id)
		t.metrics.Resolved.WithLabelValues(t.name, outcomeDuplicateID).Inc()

		op.Fail(ErrDuplicateID)
		op.Complete()

		return
	}

	e := &entry[T]{
		op:       op,
		expected: expected,
	}

	// The timer callback must not block: with a mock clock it may run while
	// the clock is locked, and the executor itself may be waiting for it.
	e.timer = t.clock.AfterFunc(timeout, func() {
		go t.post(func() { t.expire(id, e) })
	})

	t.entries[id] = e
	t.metrics.added(t.name)

	level.Debug(t.logger).Log("msg", "operation registered", "id", id, "timeout", timeout, "expected", expected)
}

func (t *Table[T]) deliver(id ID, reply quorum.Reply[T]) {
	e, ok := t.entries[id]
	if !ok {
		t.metrics.dropped(t.name, dropUnknown)
		level.Debug(t.logger).Log("msg", "reply for unknown operation", "id", id, "sender", reply.Sender)

		return
	}

	if e.received >= e.expected {
		t.metrics.dropped(t.name, dropExcess)
		return
	}

	switch e.op.Accumulate(reply) {
	case quorum.Duplicate:
		t.metrics.dropped(t.name, dropDuplicate)
		level.Warn(t.logger).Log("msg", "duplicate reply from the same sender", "id", id, "sender", reply.Sender)

	case quorum.Ignored:
		t.metrics.dropped(t.name, dropExcess)

	case quorum.Resolved:
		e.received++
		t.remove(id, e, outcomeResolved)

		level.Debug(t.logger).Log("msg", "operation resolved", "id", id, "received", e.received)

		e.op.Complete()

	case quorum.Pending:
		e.received++

		if e.received < e.expected {
			return
		}

		t.remove(id, e, outcomeExhausted)
		e.op.Expire()

		level.Warn(t.logger).Log("msg", "all replies received without resolution", "id", id, "received", e.received)

		e.op.Complete()
	}
}

func (t *Table[T]) expire(id ID, e *entry[T]) {
	// The operation may have been resolved while the timer callback was queued.
	if cur, ok := t.entries[id]; !ok || cur != e {
		return
	}

	t.remove(id, e, outcomeTimeout)
	e.op.Expire()

	level.Debug(t.logger).Log("msg", "operation timed out", "id", id, "received", e.received, "expected", e.expected)

	e.op.Complete()
}

func (t *Table[T]) remove(id ID, e *entry[T], outcome string) {
	delete(t.entries, id)
	e.timer.Stop()
	t.metrics.removed(t.name, outcome)
}

func (t *Table[T]) shutdown() {
	if len(t.entries) > 0 {
		level.Info(t.logger).Log("msg", "failing in-flight operations", "count", len(t.entries))
	}

	for id, e := range t.entries {
		t.remove(id, e, outcomeClosed)
		e.op.Fail(ErrClosed)
		e.op.Complete()
	}
}
