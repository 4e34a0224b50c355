package client

import (
	"fmt"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/raulk/clock"

	"github.com/maxpoletaev/vaultnfs/message"
	"github.com/maxpoletaev/vaultnfs/quorum"
)

const (
	// DefaultGroupSize is the number of nodes closest to a name that are
	// responsible for it.
	DefaultGroupSize = 4

	DefaultTimeout = 10 * time.Second
)

// Policy is how a single kind of operation is resolved.
type Policy struct {
	Quorum  quorum.Policy
	Timeout time.Duration
}

// Policies holds the policy of every operation awaiting replies.
type Policies struct {
	CreateAccount     Policy
	RegisterPmid      Policy
	PmidHealth        Policy
	Get               Policy
	Put               Policy
	GetVersions       Policy
	GetBranch         Policy
	PutVersion        Policy
	CreateVersionTree Policy
}

// DefaultPolicies derives the policies from the size of a group. Account
// creation is answered by the managers of both the maid and the anmaid, so
// twice as many replies are expected.
func DefaultPolicies(groupSize int) Policies {
	withTimeout := func(p quorum.Policy) Policy {
		return Policy{Quorum: p, Timeout: DefaultTimeout}
	}

	return Policies{
		CreateAccount:     withTimeout(quorum.AtLeast(groupSize-1, groupSize*2)),
		RegisterPmid:      withTimeout(quorum.AtLeast(groupSize-1, groupSize-1)),
		PmidHealth:        withTimeout(quorum.FirstOf(groupSize - 1)),
		Get:               withTimeout(quorum.FirstOf(groupSize)),
		Put:               withTimeout(quorum.AtLeast(groupSize-1, groupSize)),
		GetVersions:       withTimeout(quorum.Majority(groupSize)),
		GetBranch:         withTimeout(quorum.Majority(groupSize)),
		PutVersion:        withTimeout(quorum.Majority(groupSize)),
		CreateVersionTree: withTimeout(quorum.Majority(groupSize)),
	}
}

func (p Policies) each(fn func(name string, policy Policy) error) error {
	policies := []struct {
		name   string
		policy Policy
	}{
		{"create_account", p.CreateAccount},
		{"register_pmid", p.RegisterPmid},
		{"pmid_health", p.PmidHealth},
		{"get", p.Get},
		{"put", p.Put},
		{"get_versions", p.GetVersions},
		{"get_branch", p.GetBranch},
		{"put_version", p.PutVersion},
		{"create_version_tree", p.CreateVersionTree},
	}

	for _, entry := range policies {
		if err := fn(entry.name, entry.policy); err != nil {
			return err
		}
	}

	return nil
}

// Validate checks that every policy can be satisfied and has a deadline.
func (p Policies) Validate() error {
	return p.each(func(name string, policy Policy) error {
		if err := policy.Quorum.Validate(); err != nil {
			return fmt.Errorf("invalid %s policy: %w", name, err)
		}

		if policy.Timeout <= 0 {
			return fmt.Errorf("invalid %s policy: timeout must be positive", name)
		}

		return nil
	})
}

type Config struct {
	// Self is the name of the client (its maid). It is the sender of every
	// request, the prefix of every correlation id, and the group addressed by
	// account-level requests.
	Self message.NodeID

	// PmidHint is the storage provider the client would like its data to be
	// stored on. It can be changed at any time with SetPmidNodeHint.
	PmidHint message.NodeID

	// Policies define the quorum and the deadline of every operation. See
	// DefaultPolicies.
	Policies Policies

	// Logger is used to record dropped replies and failed sends. If not
	// provided, the client is silent.
	Logger kitlog.Logger

	// Clock drives the operation deadlines. Tests replace it with a mock.
	Clock clock.Clock

	// Registerer receives the correlation metrics. Nil disables registration.
	Registerer prometheus.Registerer

	// Strict makes a duplicate correlation id panic instead of failing
	// the operation.
	Strict bool
}

// DefaultConfig creates a Config for a network with the default group size.
func DefaultConfig() *Config {
	return &Config{
		Policies: DefaultPolicies(DefaultGroupSize),
		Logger:   kitlog.NewNopLogger(),
		Clock:    clock.New(),
	}
}
