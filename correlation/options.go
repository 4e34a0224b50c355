package correlation

import (
	kitlog "github.com/go-kit/log"
	"github.com/raulk/clock"
)

type options struct {
	logger  kitlog.Logger
	clock   clock.Clock
	metrics *Metrics
	strict  bool
}

type Option func(*options)

func WithLogger(l kitlog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithClock replaces the clock used for deadlines.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithStrict makes a duplicate registration crash the process instead of
// failing the offending operation.
func WithStrict(strict bool) Option {
	return func(o *options) {
		o.strict = strict
	}
}
