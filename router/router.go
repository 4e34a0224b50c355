package router

import (
	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/maxpoletaev/vaultnfs/correlation"
	"github.com/maxpoletaev/vaultnfs/message"
	"github.com/maxpoletaev/vaultnfs/quorum"
	"github.com/maxpoletaev/vaultnfs/transport"
)

// Tables holds one correlation table per response type. GetCachedResponse
// replies share the Get table and PutFailure replies share the Put table,
// since they answer the same requests.
type Tables struct {
	Get               *correlation.Table[message.Data]
	Put               *correlation.Table[struct{}]
	GetVersions       *correlation.Table[[]message.VersionName]
	GetBranch         *correlation.Table[[]message.VersionName]
	PutVersion        *correlation.Table[message.VersionName]
	CreateVersionTree *correlation.Table[struct{}]
	PmidHealth        *correlation.Table[uint64]
	CreateAccount     *correlation.Table[struct{}]
	RegisterPmid      *correlation.Table[struct{}]
}

// NewTables creates every table, sharing the same id source.
func NewTables(ids *correlation.IDSource, opts ...correlation.Option) *Tables {
	return &Tables{
		Get:               correlation.New[message.Data]("get", ids, opts...),
		Put:               correlation.New[struct{}]("put", ids, opts...),
		GetVersions:       correlation.New[[]message.VersionName]("get_versions", ids, opts...),
		GetBranch:         correlation.New[[]message.VersionName]("get_branch", ids, opts...),
		PutVersion:        correlation.New[message.VersionName]("put_version", ids, opts...),
		CreateVersionTree: correlation.New[struct{}]("create_version_tree", ids, opts...),
		PmidHealth:        correlation.New[uint64]("pmid_health", ids, opts...),
		CreateAccount:     correlation.New[struct{}]("create_account", ids, opts...),
		RegisterPmid:      correlation.New[struct{}]("register_pmid", ids, opts...),
	}
}

// Close closes every table, failing the operations still in flight.
func (t *Tables) Close() {
	t.Get.Close()
	t.Put.Close()
	t.GetVersions.Close()
	t.GetBranch.Close()
	t.PutVersion.Close()
	t.CreateVersionTree.Close()
	t.PmidHealth.Close()
	t.CreateAccount.Close()
	t.RegisterPmid.Close()
}

// Router decodes incoming envelopes and passes the replies to the table
// waiting for them. Nothing that fails to decode, or is not a response,
// ever reaches an operation.
type Router struct {
	tables *Tables
	logger kitlog.Logger
}

func New(tables *Tables, logger kitlog.Logger) *Router {
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}

	return &Router{
		tables: tables,
		logger: logger,
	}
}

// OnMessage implements transport.Receiver.
func (r *Router) OnMessage(env *message.Envelope) {
	logger := kitlog.With(r.logger, "kind", env.Kind, "id", env.ID, "sender", env.Sender)

	if !env.Kind.IsResponse() {
		level.Warn(logger).Log("msg", "unexpected message kind, dropped")
		return
	}

	if env.ID == correlation.NoID {
		level.Warn(logger).Log("msg", "response without correlation id, dropped")
		return
	}

	resp, err := message.DecodeResponse(env.Kind, env.Payload)
	if err != nil {
		level.Warn(logger).Log("msg", "malformed response, dropped", "err", err)
		return
	}

	sender := string(env.Sender)

	switch m := resp.(type) {
	case *message.GetResponse:
		deliver(r.tables.Get, env.ID, sender, m.Data, m.Err)
	case *message.GetCachedResponse:
		deliver(r.tables.Get, env.ID, sender, m.Data, m.Err)
	case *message.PutResponse:
		deliver(r.tables.Put, env.ID, sender, struct{}{}, m.Err)
	case *message.PutFailure:
		deliver(r.tables.Put, env.ID, sender, struct{}{}, m.Err)
	case *message.GetVersionsResponse:
		deliver(r.tables.GetVersions, env.ID, sender, m.Versions, m.Err)
	case *message.GetBranchResponse:
		deliver(r.tables.GetBranch, env.ID, sender, m.Versions, m.Err)
	case *message.PutVersionResponse:
		deliver(r.tables.PutVersion, env.ID, sender, m.Tip, m.Err)
	case *message.CreateVersionTreeResponse:
		deliver(r.tables.CreateVersionTree, env.ID, sender, struct{}{}, m.Err)
	case *message.PmidHealthResponse:
		deliver(r.tables.PmidHealth, env.ID, sender, m.Health, m.Err)
	case *message.CreateAccountResponse:
		deliver(r.tables.CreateAccount, env.ID, sender, struct{}{}, m.Err)
	case *message.RegisterPmidResponse:
		deliver(r.tables.RegisterPmid, env.ID, sender, struct{}{}, m.Err)
	default:
		level.Error(logger).Log("msg", "no table for response type, dropped")
	}
}

func deliver[T any](table *correlation.Table[T], id correlation.ID, sender string, value T, err error) {
	reply := quorum.Reply[T]{Sender: sender, Err: err}
	if err == nil {
		reply.Value = value
	}

	table.Deliver(id, reply)
}

var _ transport.Receiver = (*Router)(nil)
