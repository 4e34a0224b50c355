package correlation

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "vaultnfs_correlation"

// Outcomes of an operation as seen by a table.
const (
	outcomeResolved    = "resolved"
	outcomeTimeout     = "timeout"
	outcomeExhausted   = "exhausted"
	outcomeClosed      = "closed"
	outcomeDuplicateID = "duplicate_id"
)

// Reasons a reply is dropped without affecting any operation.
const (
	dropUnknown   = "unknown_id"
	dropDuplicate = "duplicate_sender"
	dropExcess    = "excess"
	dropClosed    = "closed"
)

// Metrics groups the collectors shared by all tables of a node. Every series is
// labeled with the table name.
type Metrics struct {
	Pending  *prometheus.GaugeVec
	Resolved *prometheus.CounterVec
	Dropped  *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg, unless reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Pending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "pending_operations",
			Help:      "Number of operations waiting for replies.",
		}, []string{"table"}),
		Resolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "operations_total",
			Help:      "Number of operations removed from the table, by outcome.",
		}, []string{"table", "outcome"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "dropped_replies_total",
			Help:      "Number of replies discarded without affecting an operation, by reason.",
		}, []string{"table", "reason"}),
	}

	if reg != nil {
		reg.MustRegister(m.Pending, m.Resolved, m.Dropped)
	}

	return m
}

func (m *Metrics) added(table string) {
	m.Pending.WithLabelValues(table).Inc()
}

func (m *Metrics) removed(table, outcome string) {
	m.Pending.WithLabelValues(table).Dec()
	m.Resolved.WithLabelValues(table, outcome).Inc()
}

func (m *Metrics) dropped(table, reason string) {
	m.Dropped.WithLabelValues(table, reason).Inc()
}
