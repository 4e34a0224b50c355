package dispatch

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxpoletaev/vaultnfs/correlation"
	"github.com/maxpoletaev/vaultnfs/message"
	"github.com/maxpoletaev/vaultnfs/transport"
)

func TestDispatcher_Send(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := transport.NewMockTransport(ctrl)
	d := New("self", tr, kitlog.NewNopLogger())

	req := message.PmidHealthQuery{Pmid: "pmid"}

	var sent *message.Envelope

	tr.EXPECT().Send(gomock.Any(), message.NodeID("pmid")).DoAndReturn(
		func(env *message.Envelope, target message.NodeID) error {
			sent = env
			return nil
		},
	)

	d.Send(correlation.ID(42), req, "pmid")
	d.Close()

	require.NotNil(t, sent)
	assert.Equal(t, correlation.ID(42), sent.ID)
	assert.Equal(t, message.NodeID("self"), sent.Sender)
	assert.Equal(t, message.NodeID("pmid"), sent.Receiver)
	assert.Equal(t, message.KindPmidHealthRequest, sent.Kind)
	assert.Equal(t, req.Marshal(), sent.Payload)
}

func TestDispatcher_SendErrorIsNotFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := transport.NewMockTransport(ctrl)
	d := New("self", tr, nil)

	tr.EXPECT().Send(gomock.Any(), gomock.Any()).Return(assert.AnError).Times(2)

	d.Send(correlation.NoID, message.UnregisterPmid{Pmid: "pmid"}, "pmid")
	d.Send(correlation.NoID, message.UnregisterPmid{Pmid: "pmid"}, "pmid")
	d.Close()
}

func TestDispatcher_SendAfterClose(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := transport.NewMockTransport(ctrl)
	d := New("self", tr, nil)

	d.Close()

	// No calls are expected on the transport.
	d.Send(correlation.ID(1), message.GetRequest{}, "name")
}

func TestDispatcher_NoSendAfterCloseReturns(t *testing.T) {
	for round := 0; round < 50; round++ {
		ctrl := gomock.NewController(t)
		tr := transport.NewMockTransport(ctrl)
		d := New("self", tr, nil)

		var (
			closed   atomic.Bool
			inFlight atomic.Int32
			late     atomic.Int32
		)

		tr.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(
			func(*message.Envelope, message.NodeID) error {
				if closed.Load() {
					late.Add(1)
				}

				inFlight.Add(1)
				time.Sleep(time.Millisecond)
				inFlight.Add(-1)

				return nil
			},
		).AnyTimes()

		wg := sync.WaitGroup{}

		for i := 0; i < 4; i++ {
			wg.Add(1)

			go func() {
				defer wg.Done()

				for j := 0; j < 20; j++ {
					d.Send(correlation.ID(1), message.GetRequest{}, "name")
				}
			}()
		}

		d.Close()
		closed.Store(true)

		// Every send that was let through has finished by the time Close returns.
		assert.Equal(t, int32(0), inFlight.Load())

		wg.Wait()
		time.Sleep(5 * time.Millisecond)

		assert.Equal(t, int32(0), late.Load(), "transport used after Close returned")
	}
}
