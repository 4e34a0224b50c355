package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/raulk/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/maxpoletaev/vaultnfs/correlation"
	"github.com/maxpoletaev/vaultnfs/message"
	"github.com/maxpoletaev/vaultnfs/quorum"
)

const waitTimeout = 2 * time.Second

type testClient struct {
	*Client
	group *fakeGroup
	clock *clock.Mock
}

func newTestClient(t *testing.T, group *fakeGroup, policies Policies) *testClient {
	mock := clock.NewMock()

	conf := DefaultConfig()
	conf.Self = "maid"
	conf.PmidHint = "pmid1"
	conf.Clock = mock
	conf.Policies = policies
	conf.Registerer = prometheus.NewRegistry()
	conf.Strict = true

	c, err := New(conf, group)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	return &testClient{Client: c, group: group, clock: mock}
}

func waitFuture[T any](t *testing.T, f *Future[T]) (T, error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()

	v, err := f.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "future was not resolved in time")

	return v, err
}

func waitSent(t *testing.T, g *fakeGroup) *message.Envelope {
	t.Helper()

	select {
	case env := <-g.handled:
		return env
	case <-time.After(waitTimeout):
		t.Fatal("request was not sent in time")
		return nil
	}
}

func ok(message.NodeID, *message.Envelope) message.Response {
	return &message.RegisterPmidResponse{}
}

func TestNew_InvalidPolicy(t *testing.T) {
	policies := DefaultPolicies(4)
	policies.Get.Quorum = quorum.AtLeast(5, 4)

	conf := DefaultConfig()
	conf.Self = "maid"
	conf.Policies = policies

	_, err := New(conf, newFakeGroup(1, nil))
	assert.Error(t, err)
}

func TestDefaultPolicies(t *testing.T) {
	p := DefaultPolicies(4)

	assert.Equal(t, quorum.AtLeast(3, 8), p.CreateAccount.Quorum)
	assert.Equal(t, quorum.AtLeast(3, 3), p.RegisterPmid.Quorum)
	assert.Equal(t, quorum.FirstOf(3), p.PmidHealth.Quorum)
	assert.Equal(t, quorum.FirstOf(4), p.Get.Quorum)
	assert.Equal(t, quorum.AtLeast(3, 4), p.Put.Quorum)
	assert.NoError(t, p.Validate())
}

func TestClient_QuorumSuccess(t *testing.T) {
	policies := DefaultPolicies(4)
	policies.RegisterPmid.Quorum = quorum.AtLeast(3, 5)

	group := newFakeGroup(5, ok)
	c := newTestClient(t, group, policies)

	_, err := waitFuture(t, c.RegisterPmid(message.PmidRegistration{Maid: "maid", Pmid: "pmid"}))
	require.NoError(t, err)

	env := waitSent(t, group)
	assert.Equal(t, message.KindRegisterPmidRequest, env.Kind)
	assert.Equal(t, message.NodeID("maid"), env.Receiver)
	assert.Equal(t, 0, c.tables.RegisterPmid.Len())
}

func TestClient_QuorumDefinitiveFailure(t *testing.T) {
	policies := DefaultPolicies(4)
	policies.RegisterPmid.Quorum = quorum.AtLeast(3, 5)

	replies := 0
	group := newFakeGroup(5, func(member message.NodeID, env *message.Envelope) message.Response {
		replies++
		if replies <= 3 {
			return &message.RegisterPmidResponse{Err: status.Error(codes.PermissionDenied, "bad signature")}
		}

		return &message.RegisterPmidResponse{}
	})

	c := newTestClient(t, group, policies)

	_, err := waitFuture(t, c.RegisterPmid(message.PmidRegistration{Maid: "maid", Pmid: "pmid"}))
	require.ErrorIs(t, err, quorum.ErrRejected)

	var qerr *quorum.Error
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, 3, qerr.Tally.Failures)
	assert.Equal(t, 0, qerr.Tally.Successes)
	assert.Equal(t, codes.PermissionDenied, qerr.Code())
}

func TestClient_FirstOfKind(t *testing.T) {
	group := newFakeGroup(3, func(member message.NodeID, env *message.Envelope) message.Response {
		return &message.PmidHealthResponse{Health: uint64(len(member)) * 100}
	})

	c := newTestClient(t, group, DefaultPolicies(4))

	health, err := waitFuture(t, c.PmidHealth("pmid"))
	require.NoError(t, err)
	assert.Equal(t, uint64(500), health)

	env := waitSent(t, group)
	assert.Equal(t, message.NodeID("pmid"), env.Receiver)
}

func TestClient_TimeoutWithoutReplies(t *testing.T) {
	group := newFakeGroup(3, nil)
	c := newTestClient(t, group, DefaultPolicies(4))

	f := c.PmidHealth("pmid", WithTimeout(time.Second))
	waitSent(t, group)
	c.tables.PmidHealth.Len()

	c.clock.Add(500 * time.Millisecond)

	select {
	case <-f.Done():
		t.Fatal("resolved before the deadline")
	case <-time.After(20 * time.Millisecond):
	}

	c.clock.Add(time.Second)

	_, err := waitFuture(t, f)
	assert.ErrorIs(t, err, quorum.ErrNoResponse)
	assert.ErrorIs(t, err, quorum.ErrTimeout)
}

func TestClient_NonPositiveTimeoutKeepsPolicy(t *testing.T) {
	group := newFakeGroup(3, nil)
	c := newTestClient(t, group, DefaultPolicies(4))

	zero := c.PmidHealth("pmid", WithTimeout(0))
	negative := c.PmidHealth("pmid", WithTimeout(-time.Second))
	waitSent(t, group)
	waitSent(t, group)
	c.tables.PmidHealth.Len()

	c.clock.Add(DefaultTimeout - time.Millisecond)

	for _, f := range []*Future[uint64]{zero, negative} {
		select {
		case <-f.Done():
			t.Fatal("resolved before the policy deadline")
		case <-time.After(20 * time.Millisecond):
		}
	}

	c.clock.Add(time.Millisecond)

	_, err := waitFuture(t, zero)
	assert.ErrorIs(t, err, quorum.ErrNoResponse)

	_, err = waitFuture(t, negative)
	assert.ErrorIs(t, err, quorum.ErrNoResponse)
}

func TestClient_TimeoutWithPartialReplies(t *testing.T) {
	policies := DefaultPolicies(4)
	policies.Put.Quorum = quorum.AtLeast(3, 5)

	group := newFakeGroup(5, func(member message.NodeID, env *message.Envelope) message.Response {
		switch member {
		case "node1", "node2":
			return &message.PutResponse{}
		default:
			return nil
		}
	})

	c := newTestClient(t, group, policies)

	f := c.Put(message.Data{Name: message.DataName{ID: "chunk"}, Content: []byte("content")})
	waitSent(t, group)
	c.tables.Put.Len()
	c.clock.Add(DefaultTimeout)

	_, err := waitFuture(t, f)
	require.ErrorIs(t, err, quorum.ErrTimeout)
	assert.NotErrorIs(t, err, quorum.ErrNoResponse)

	var qerr *quorum.Error
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, 2, qerr.Tally.Successes)
	assert.Equal(t, 0, qerr.Tally.Failures)
	assert.Equal(t, codes.DeadlineExceeded, qerr.Code())
}

func TestClient_CreateAccountExists(t *testing.T) {
	policies := DefaultPolicies(4)

	group := newFakeGroup(8, func(message.NodeID, *message.Envelope) message.Response {
		return &message.CreateAccountResponse{Err: status.Error(codes.AlreadyExists, "account exists")}
	})

	c := newTestClient(t, group, policies)

	_, err := waitFuture(t, c.CreateAccount(message.AccountCreation{PublicMaid: []byte("maid")}))
	assert.ErrorIs(t, err, ErrAccountExists)
	assert.ErrorIs(t, err, quorum.ErrRejected)

	err = EnsureAccount(context.Background(), c.Client, message.AccountCreation{PublicMaid: []byte("maid")})
	assert.NoError(t, err)
}

func TestClient_CreateAccountFailure(t *testing.T) {
	group := newFakeGroup(8, func(message.NodeID, *message.Envelope) message.Response {
		return &message.CreateAccountResponse{Err: status.Error(codes.Unavailable, "busy")}
	})

	c := newTestClient(t, group, DefaultPolicies(4))

	err := EnsureAccount(context.Background(), c.Client, message.AccountCreation{PublicMaid: []byte("maid")})
	require.ErrorIs(t, err, quorum.ErrRejected)
	assert.NotErrorIs(t, err, ErrAccountExists)
}

func TestClient_PutCarriesHint(t *testing.T) {
	group := newFakeGroup(4, func(message.NodeID, *message.Envelope) message.Response {
		return &message.PutResponse{}
	})

	c := newTestClient(t, group, DefaultPolicies(4))
	c.SetPmidNodeHint("pmid2")

	data := message.Data{Name: message.DataName{Type: 1, ID: "chunk"}, Content: []byte("content")}

	_, err := waitFuture(t, c.Put(data))
	require.NoError(t, err)

	env := waitSent(t, group)
	req, err := message.DecodeRequest(env.Kind, env.Payload)
	require.NoError(t, err)
	assert.Equal(t, message.PutRequest{Data: data, PmidHint: "pmid2"}, req)
}

func TestClient_GetVersionsMajority(t *testing.T) {
	agreed := []message.VersionName{{Index: 2, ID: "v2"}}
	stale := []message.VersionName{{Index: 1, ID: "v1"}}

	group := newFakeGroup(4, func(member message.NodeID, env *message.Envelope) message.Response {
		if member == "node1" {
			return &message.GetVersionsResponse{Versions: stale}
		}

		return &message.GetVersionsResponse{Versions: agreed}
	})

	c := newTestClient(t, group, DefaultPolicies(4))

	versions, err := waitFuture(t, c.GetVersions(message.DataName{ID: "tree"}))
	require.NoError(t, err)
	assert.Equal(t, agreed, versions)
}

func TestClient_CreateVersionTree(t *testing.T) {
	group := newFakeGroup(4, func(message.NodeID, *message.Envelope) message.Response {
		return &message.CreateVersionTreeResponse{}
	})

	c := newTestClient(t, group, DefaultPolicies(4))

	req := message.CreateVersionTreeRequest{
		Name:        message.DataName{ID: "tree"},
		Root:        message.VersionName{Index: 0, ID: "root"},
		MaxVersions: 16,
		MaxBranches: 4,
	}

	_, err := waitFuture(t, c.CreateVersionTree(req))
	require.NoError(t, err)

	env := waitSent(t, group)
	assert.Equal(t, message.KindCreateVersionTreeRequest, env.Kind)
	assert.Equal(t, message.NodeID("maid"), env.Receiver)
	assert.Equal(t, 0, c.tables.CreateVersionTree.Len())
}

func TestClient_FireAndForget(t *testing.T) {
	group := newFakeGroup(4, nil)
	c := newTestClient(t, group, DefaultPolicies(4))

	c.RemoveAccount(message.AccountRemoval{PublicMaid: []byte("maid")})
	c.UnregisterPmid("pmid")
	c.Delete(message.DataName{ID: "chunk"})

	kinds := make(map[message.Kind]bool)

	for i := 0; i < 3; i++ {
		env := waitSent(t, group)
		assert.Equal(t, correlation.NoID, env.ID)
		assert.Equal(t, message.NodeID("maid"), env.Receiver)
		kinds[env.Kind] = true
	}

	assert.Equal(t, map[message.Kind]bool{
		message.KindRemoveAccountRequest:  true,
		message.KindUnregisterPmidRequest: true,
		message.KindDeleteRequest:         true,
	}, kinds)
}

func TestClient_CloseFailsPending(t *testing.T) {
	group := newFakeGroup(4, nil)
	c := newTestClient(t, group, DefaultPolicies(4))

	f := c.Get(message.DataName{ID: "chunk"})
	waitSent(t, group)

	c.Close()

	_, err := waitFuture(t, f)
	assert.ErrorIs(t, err, correlation.ErrClosed)

	_, err = waitFuture(t, c.Get(message.DataName{ID: "chunk"}))
	assert.ErrorIs(t, err, correlation.ErrClosed)
}

func TestClient_PmidNodeHintConcurrent(t *testing.T) {
	c := newTestClient(t, newFakeGroup(1, nil), DefaultPolicies(4))

	wg := sync.WaitGroup{}

	for i := 0; i < 10; i++ {
		wg.Add(2)

		go func() {
			defer wg.Done()
			c.SetPmidNodeHint("pmid2")
		}()

		go func() {
			defer wg.Done()
			hint := c.PmidNodeHint()
			assert.Contains(t, []message.NodeID{"pmid1", "pmid2"}, hint)
		}()
	}

	wg.Wait()
	assert.Equal(t, message.NodeID("pmid2"), c.PmidNodeHint())
}

func TestFuture_WaitCanceled(t *testing.T) {
	f := newFuture[int]()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	f.resolve(1, nil)
	f.resolve(2, assert.AnError)

	v, err := f.Result()
	assert.NoError(t, err)
	assert.Equal(t, 1, v)
}
