package quorum

import (
	"fmt"

	"google.golang.org/grpc/codes"

	"github.com/maxpoletaev/vaultnfs/internal/baseerror"
	"github.com/maxpoletaev/vaultnfs/internal/generic"
	"github.com/maxpoletaev/vaultnfs/internal/grpcutil"
	"github.com/maxpoletaev/vaultnfs/internal/multierror"
)

var (
	// ErrTimeout is matched by every failure caused by the deadline.
	ErrTimeout = baseerror.New("operation timed out")

	// ErrNoResponse is returned when the deadline passed without a single reply.
	ErrNoResponse = ErrTimeout.New("no response received")

	// ErrRejected is matched by failures where enough peers explicitly refused
	// the operation for success to become unreachable.
	ErrRejected = baseerror.New("operation rejected")
)

// Reason tells why an operation failed.
type Reason int

const (
	ReasonTimeout Reason = iota
	ReasonRejected
)

func (r Reason) sentinel() error {
	if r == ReasonRejected {
		return ErrRejected
	}

	return ErrTimeout
}

// Tally is a snapshot of the replies counted by an operation.
type Tally struct {
	Required  int
	Expected  int
	Successes int
	Failures  int
}

// Error is the aggregate failure of an operation. It carries the tally at the
// moment of resolution and the error reported by every failed peer.
type Error struct {
	Reason Reason
	Tally  Tally
	Peers  *multierror.Error[string]
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %d of %d required successes, %d failures, %d replies expected",
		e.Reason.sentinel(), e.Tally.Successes, e.Tally.Required, e.Tally.Failures, e.Tally.Expected)

	if e.Peers != nil && e.Peers.Len() > 0 {
		msg += " (" + e.Peers.Error() + ")"
	}

	return msg
}

// Is makes the error match ErrTimeout or ErrRejected depending on the reason.
func (e *Error) Is(target error) bool {
	return target == e.Reason.sentinel()
}

func (e *Error) Unwrap() []error {
	if e.Peers == nil {
		return nil
	}

	return e.Peers.Unwrap()
}

// Code returns the status code reported by most of the failed peers. Without
// peer errors, timeouts map to DeadlineExceeded.
func (e *Error) Code() codes.Code {
	counts := make(map[codes.Code]int)

	if e.Peers != nil {
		e.Peers.Each(func(_ string, err error) {
			counts[grpcutil.ErrorCode(err)]++
		})
	}

	if code, ok := generic.MaxValueKey(counts); ok {
		return code
	}

	if e.Reason == ReasonTimeout {
		return codes.DeadlineExceeded
	}

	return codes.Unknown
}
