package client

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/raulk/clock"
	"google.golang.org/grpc/codes"

	"github.com/maxpoletaev/vaultnfs/correlation"
	"github.com/maxpoletaev/vaultnfs/dispatch"
	"github.com/maxpoletaev/vaultnfs/internal/generic"
	"github.com/maxpoletaev/vaultnfs/message"
	"github.com/maxpoletaev/vaultnfs/quorum"
	"github.com/maxpoletaev/vaultnfs/router"
	"github.com/maxpoletaev/vaultnfs/transport"
)

// ErrAccountExists is returned by CreateAccount when the managers refused to
// create an account because it is already there. It wraps the quorum error.
var ErrAccountExists = errors.New("account already exists")

// Client is the entry point of a node talking to the network. Every
// operation is sent to a group of nodes and resolved once enough of them have
// replied, or when its deadline passes.
type Client struct {
	self       message.NodeID
	policies   Policies
	logger     kitlog.Logger
	tables     *router.Tables
	router     *router.Router
	dispatcher *dispatch.Dispatcher

	hintMut  sync.Mutex
	pmidHint message.NodeID
}

// New creates a client and makes it the receiver of the transport.
func New(conf *Config, tr transport.Transport) (*Client, error) {
	if conf.Self == "" {
		return nil, errors.New("client name is not set")
	}

	if err := conf.Policies.Validate(); err != nil {
		return nil, err
	}

	logger := conf.Logger
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}

	clk := conf.Clock
	if clk == nil {
		clk = clock.New()
	}

	tables := router.NewTables(
		correlation.NewIDSource(string(conf.Self)),
		correlation.WithLogger(logger),
		correlation.WithClock(clk),
		correlation.WithMetrics(correlation.NewMetrics(conf.Registerer)),
		correlation.WithStrict(conf.Strict),
	)

	c := &Client{
		self:       conf.Self,
		policies:   conf.Policies,
		logger:     logger,
		tables:     tables,
		router:     router.New(tables, logger),
		dispatcher: dispatch.New(conf.Self, tr, logger),
		pmidHint:   conf.PmidHint,
	}

	tr.SetReceiver(c.router)

	return c, nil
}

// PmidNodeHint returns the storage provider data is currently put on.
func (c *Client) PmidNodeHint() message.NodeID {
	c.hintMut.Lock()
	defer c.hintMut.Unlock()

	return c.pmidHint
}

// SetPmidNodeHint changes the storage provider used by subsequent puts.
func (c *Client) SetPmidNodeHint(pmid message.NodeID) {
	c.hintMut.Lock()
	defer c.hintMut.Unlock()

	c.pmidHint = pmid
}

// Close stops sending requests and fails the operations still in flight
// with correlation.ErrClosed.
func (c *Client) Close() {
	c.dispatcher.Close()
	c.tables.Close()
}

// CallOption alters a single operation.
type CallOption func(*callOptions)

type callOptions struct {
	timeout time.Duration
}

// WithTimeout overrides the deadline of the operation's policy. Zero or
// negative values keep the policy timeout.
func WithTimeout(timeout time.Duration) CallOption {
	return func(o *callOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

type call[R, T any] struct {
	table  *correlation.Table[R]
	policy Policy
	req    message.Request
	target message.NodeID
	reduce func(values []R) T
	mapErr func(err error) error
}

func send[R, T any](c *Client, cl call[R, T], opts []CallOption) *Future[T] {
	o := callOptions{timeout: cl.policy.Timeout}
	for _, opt := range opts {
		opt(&o)
	}

	f := newFuture[T]()

	op := quorum.NewOp(cl.policy.Quorum, func(res quorum.Result[R]) {
		if res.Err != nil {
			if cl.mapErr != nil {
				res.Err = cl.mapErr(res.Err)
			}

			var zero T
			f.resolve(zero, res.Err)

			return
		}

		f.resolve(cl.reduce(res.Values), nil)
	})

	// The operation must be registered before the request leaves, otherwise
	// a quick reply would find nobody waiting for it.
	id := cl.table.NewID()
	cl.table.Register(id, op, o.timeout, cl.policy.Quorum.Expected)

	select {
	case <-f.Done():
		// Rejected by the table, most likely closed.
		return f
	default:
	}

	c.dispatcher.Send(id, cl.req, cl.target)

	level.Debug(c.logger).Log("msg", "operation started", "kind", cl.req.Kind(), "id", id, "policy", cl.policy.Quorum)

	return f
}

// CreateAccount opens an account for the client. The future fails with
// ErrAccountExists if the managers already know the account.
func (c *Client) CreateAccount(creation message.AccountCreation, opts ...CallOption) *Future[struct{}] {
	return send(c, call[struct{}, struct{}]{
		table:  c.tables.CreateAccount,
		policy: c.policies.CreateAccount,
		req:    creation,
		target: c.self,
		reduce: none[struct{}],
		mapErr: accountError,
	}, opts)
}

// RemoveAccount asks the managers to close the account. Nobody waits for
// the outcome.
func (c *Client) RemoveAccount(removal message.AccountRemoval) {
	c.dispatcher.Send(correlation.NoID, removal, c.self)
}

// RegisterPmid associates a storage provider with the account.
func (c *Client) RegisterPmid(registration message.PmidRegistration, opts ...CallOption) *Future[struct{}] {
	return send(c, call[struct{}, struct{}]{
		table:  c.tables.RegisterPmid,
		policy: c.policies.RegisterPmid,
		req:    registration,
		target: c.self,
		reduce: none[struct{}],
	}, opts)
}

// UnregisterPmid detaches a storage provider from the account. Nobody waits
// for the outcome.
func (c *Client) UnregisterPmid(pmid message.NodeID) {
	c.dispatcher.Send(correlation.NoID, message.UnregisterPmid{Pmid: pmid}, c.self)
}

// PmidHealth asks the managers of a storage provider for its available space.
func (c *Client) PmidHealth(pmid message.NodeID, opts ...CallOption) *Future[uint64] {
	return send(c, call[uint64, uint64]{
		table:  c.tables.PmidHealth,
		policy: c.policies.PmidHealth,
		req:    message.PmidHealthQuery{Pmid: pmid},
		target: pmid,
		reduce: first[uint64],
	}, opts)
}

// Get fetches data from the group holding it. A cached copy served on the
// way counts as a regular reply.
func (c *Client) Get(name message.DataName, opts ...CallOption) *Future[message.Data] {
	return send(c, call[message.Data, message.Data]{
		table:  c.tables.Get,
		policy: c.policies.Get,
		req:    message.GetRequest{Name: name},
		target: name.ID,
		reduce: first[message.Data],
	}, opts)
}

// Put stores data through the client's managers, suggesting the current pmid
// hint as the storage provider.
func (c *Client) Put(data message.Data, opts ...CallOption) *Future[struct{}] {
	return send(c, call[struct{}, struct{}]{
		table:  c.tables.Put,
		policy: c.policies.Put,
		req:    message.PutRequest{Data: data, PmidHint: c.PmidNodeHint()},
		target: c.self,
		reduce: none[struct{}],
	}, opts)
}

// Delete removes data owned by the client. Nobody waits for the outcome.
func (c *Client) Delete(name message.DataName) {
	c.dispatcher.Send(correlation.NoID, message.DeleteRequest{Name: name}, c.self)
}

// GetVersions returns the tips of a version tree, as reported by most of
// the replying nodes.
func (c *Client) GetVersions(name message.DataName, opts ...CallOption) *Future[[]message.VersionName] {
	return send(c, call[[]message.VersionName, []message.VersionName]{
		table:  c.tables.GetVersions,
		policy: c.policies.GetVersions,
		req:    message.GetVersionsRequest{Name: name},
		target: name.ID,
		reduce: mostCommonVersions,
	}, opts)
}

// GetBranch returns the versions from tip down to the root of the tree.
func (c *Client) GetBranch(name message.DataName, tip message.VersionName, opts ...CallOption) *Future[[]message.VersionName] {
	return send(c, call[[]message.VersionName, []message.VersionName]{
		table:  c.tables.GetBranch,
		policy: c.policies.GetBranch,
		req:    message.GetBranchRequest{Name: name, Tip: tip},
		target: name.ID,
		reduce: mostCommonVersions,
	}, opts)
}

// CreateVersionTree creates an empty version tree rooted at req.Root.
func (c *Client) CreateVersionTree(req message.CreateVersionTreeRequest, opts ...CallOption) *Future[struct{}] {
	return send(c, call[struct{}, struct{}]{
		table:  c.tables.CreateVersionTree,
		policy: c.policies.CreateVersionTree,
		req:    req,
		target: c.self,
		reduce: none[struct{}],
	}, opts)
}

// PutVersion appends a version to a tree and returns the resulting tip.
func (c *Client) PutVersion(req message.PutVersionRequest, opts ...CallOption) *Future[message.VersionName] {
	return send(c, call[message.VersionName, message.VersionName]{
		table:  c.tables.PutVersion,
		policy: c.policies.PutVersion,
		req:    req,
		target: c.self,
		reduce: func(values []message.VersionName) message.VersionName {
			return mostCommon(values, versionKey)
		},
	}, opts)
}

func accountError(err error) error {
	var qerr *quorum.Error

	if errors.As(err, &qerr) && errors.Is(err, quorum.ErrRejected) && qerr.Code() == codes.AlreadyExists {
		return fmt.Errorf("%w: %w", ErrAccountExists, err)
	}

	return err
}

func none[T any]([]T) struct{} {
	return struct{}{}
}

func first[T any](values []T) T {
	var zero T
	if len(values) == 0 {
		return zero
	}

	return values[0]
}

// mostCommon returns the value reported by most peers, comparing values by
// their key. Ties are broken in favour of the smallest key.
func mostCommon[T any](values []T, key func(T) string) T {
	var zero T

	counts := make(map[string]int, len(values))
	for _, v := range values {
		counts[key(v)]++
	}

	winner, ok := generic.MaxValueKey(counts)
	if !ok {
		return zero
	}

	for _, v := range values {
		if key(v) == winner {
			return v
		}
	}

	return zero
}

func mostCommonVersions(values [][]message.VersionName) []message.VersionName {
	return mostCommon(values, func(versions []message.VersionName) string {
		keys := make([]string, len(versions))
		for i, v := range versions {
			keys[i] = versionKey(v)
		}

		return strings.Join(keys, ",")
	})
}

func versionKey(v message.VersionName) string {
	return fmt.Sprintf("%d/%x", v.Index, string(v.ID))
}
