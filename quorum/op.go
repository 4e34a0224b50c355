package quorum

import (
	"github.com/maxpoletaev/vaultnfs/internal/multierror"
	"github.com/maxpoletaev/vaultnfs/internal/set"
)

// Reply is a single response received from a peer. Err is set when the peer
// reported a failure, in which case Value holds the zero value.
type Reply[T any] struct {
	Sender string
	Value  T
	Err    error
}

// Result is the outcome of an operation. Values holds the successful reply
// values in arrival order.
type Result[T any] struct {
	Values []T
	Err    error
}

// State is returned by Accumulate to tell what happened to the reply.
type State int

const (
	// Pending means the reply was counted, but the operation is not resolved yet.
	Pending State = iota

	// Duplicate means the sender has already replied, the reply was discarded.
	Duplicate

	// Resolved means the reply resolved the operation.
	Resolved

	// Ignored means the operation was already resolved or had collected all
	// the replies it expects, the reply was discarded.
	Ignored
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Duplicate:
		return "duplicate"
	case Resolved:
		return "resolved"
	case Ignored:
		return "ignored"
	default:
		return ""
	}
}

// Op is the aggregation state of a single in-flight operation.
type Op[T any] struct {
	policy    Policy
	replies   []Reply[T]
	senders   set.Set[string]
	successes int
	failures  int
	resolved  bool
	completed bool
	result    Result[T]
	done      func(Result[T])
}

// NewOp creates an operation that calls done with the result once it is resolved
// and completed. The policy is expected to be valid.
func NewOp[T any](policy Policy, done func(Result[T])) *Op[T] {
	return &Op[T]{
		policy:  policy,
		done:    done,
		senders: set.WithCapacity[string](policy.Expected),
		replies: make([]Reply[T], 0, policy.Expected),
	}
}

// Accumulate records a reply and reports whether it resolved the operation.
func (op *Op[T]) Accumulate(reply Reply[T]) State {
	if op.resolved || len(op.replies) >= op.policy.Expected {
		return Ignored
	}

	// A single peer replying twice must not be able to bias the outcome.
	if !op.senders.Insert(reply.Sender) {
		return Duplicate
	}

	op.replies = append(op.replies, reply)

	if reply.Err == nil {
		op.successes++
	} else {
		op.failures++
	}

	switch {
	case op.policy.Mode == First && reply.Err == nil:
		op.resolve(Result[T]{Values: []T{reply.Value}})
	case op.policy.Mode == First:
		op.resolve(Result[T]{Err: op.failure(ReasonRejected)})
	case op.successes >= op.policy.Required:
		op.resolve(Result[T]{Values: op.values()})
	case op.policy.Unreachable(op.failures):
		op.resolve(Result[T]{Err: op.failure(ReasonRejected)})
	default:
		return Pending
	}

	return Resolved
}

// Expire forces the resolution of an operation whose deadline has passed. It
// does nothing if the operation is already resolved.
func (op *Op[T]) Expire() {
	if op.resolved {
		return
	}

	if len(op.replies) == 0 {
		op.resolve(Result[T]{Err: ErrNoResponse})
		return
	}

	op.resolve(Result[T]{Err: op.failure(ReasonTimeout)})
}

// Fail resolves the operation with the given error unless it is already resolved.
func (op *Op[T]) Fail(err error) {
	if !op.resolved {
		op.resolve(Result[T]{Err: err})
	}
}

// Complete passes the result to the completion callback. Only the first call
// after resolution has an effect.
func (op *Op[T]) Complete() {
	if !op.resolved || op.completed {
		return
	}

	op.completed = true

	if op.done != nil {
		op.done(op.result)
	}
}

// Resolved reports whether the outcome of the operation is known.
func (op *Op[T]) Resolved() bool {
	return op.resolved
}

// Tally returns the current reply counters.
func (op *Op[T]) Tally() Tally {
	return Tally{
		Required:  op.policy.Required,
		Expected:  op.policy.Expected,
		Successes: op.successes,
		Failures:  op.failures,
	}
}

func (op *Op[T]) resolve(res Result[T]) {
	op.resolved = true
	op.result = res
}

func (op *Op[T]) values() []T {
	values := make([]T, 0, op.successes)

	for _, r := range op.replies {
		if r.Err == nil {
			values = append(values, r.Value)
		}
	}

	return values
}

func (op *Op[T]) failure(reason Reason) *Error {
	peers := multierror.New[string]()

	for _, r := range op.replies {
		if r.Err != nil {
			peers.Add(r.Sender, r.Err)
		}
	}

	return &Error{
		Reason: reason,
		Tally:  op.Tally(),
		Peers:  peers,
	}
}
