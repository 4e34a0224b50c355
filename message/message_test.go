package message

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/maxpoletaev/vaultnfs/correlation"
	"github.com/maxpoletaev/vaultnfs/internal/grpcutil"
)

func TestEnvelope_Marshal(t *testing.T) {
	env := &Envelope{
		ID:       correlation.ID(0xdeadbeef00000001),
		Sender:   "client",
		Receiver: "group",
		Kind:     KindGetRequest,
		Payload:  []byte{1, 2, 3},
	}

	got, err := UnmarshalEnvelope(env.Marshal())
	require.NoError(t, err)
	assert.Equal(t, env, got)
}

func TestEnvelope_NoID(t *testing.T) {
	env := &Envelope{Sender: "client", Receiver: "group", Kind: KindRemoveAccountRequest}

	got, err := UnmarshalEnvelope(env.Marshal())
	require.NoError(t, err)
	assert.Equal(t, correlation.NoID, got.ID)
}

func TestUnmarshalEnvelope_Malformed(t *testing.T) {
	tests := map[string][]byte{
		"truncated":    {0x0a, 0x05, 'a'},
		"no kind":      appendString(nil, 2, "sender"),
		"unknown kind": appendUint(nil, 4, uint64(kindMax)+3),
		"wrong wire type": protowire.AppendVarint(
			protowire.AppendTag(nil, 2, protowire.VarintType), 7),
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := UnmarshalEnvelope(data)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestKind(t *testing.T) {
	assert.True(t, KindPmidHealthRequest.IsRequest())
	assert.False(t, KindPmidHealthRequest.IsResponse())
	assert.True(t, KindPutFailure.IsResponse())
	assert.False(t, KindUnknown.Valid())
	assert.Equal(t, "register_pmid_response", KindRegisterPmidResponse.String())
	assert.Equal(t, "unknown", Kind(200).String())
}

func TestNodeID_String(t *testing.T) {
	assert.Equal(t, "61626364..", NodeID("abcdefgh").String())
	assert.Equal(t, "6162", NodeID("ab").String())
}

func TestDecodeRequest(t *testing.T) {
	name := DataName{Type: 3, ID: "chunk"}

	tests := map[string]Request{
		"create account": AccountCreation{PublicMaid: []byte("maid"), PublicAnmaid: []byte("anmaid")},
		"register pmid":  PmidRegistration{Maid: "maid", Pmid: "pmid", Signature: []byte("sig")},
		"put": PutRequest{
			Data:     Data{Name: name, Content: []byte("content")},
			PmidHint: "pmid",
		},
		"put version": PutVersionRequest{
			Name:       name,
			OldVersion: VersionName{Index: 1, ID: "v1"},
			NewVersion: VersionName{Index: 2, ID: "v2"},
		},
		"create version tree": CreateVersionTreeRequest{
			Name:        name,
			Root:        VersionName{ID: "root"},
			MaxVersions: 100,
			MaxBranches: 4,
		},
		"health": PmidHealthQuery{Pmid: "pmid"},
		"delete": DeleteRequest{Name: name},
	}

	for testName, req := range tests {
		t.Run(testName, func(t *testing.T) {
			got, err := DecodeRequest(req.Kind(), req.Marshal())
			require.NoError(t, err)
			assert.Equal(t, req, got)
		})
	}
}

func TestDecodeRequest_ResponseKind(t *testing.T) {
	_, err := DecodeRequest(KindGetResponse, nil)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeResponse_Values(t *testing.T) {
	data := Data{Name: DataName{Type: 1, ID: "name"}, Content: []byte("content")}

	resp, err := DecodeResponse(KindGetCachedResponse, (&GetCachedResponse{Data: data}).Marshal())
	require.NoError(t, err)
	assert.Equal(t, &GetCachedResponse{Data: data}, resp)

	versions := []VersionName{{Index: 2, ID: "b"}, {}, {Index: 1, ID: "a"}}
	resp, err = DecodeResponse(KindGetBranchResponse, (&GetBranchResponse{Versions: versions}).Marshal())
	require.NoError(t, err)
	assert.Equal(t, versions, resp.(*GetBranchResponse).Versions)

	resp, err = DecodeResponse(KindPmidHealthResponse, (&PmidHealthResponse{Health: 42}).Marshal())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), resp.(*PmidHealthResponse).Health)

	resp, err = DecodeResponse(KindPmidHealthResponse, (&PmidHealthResponse{}).Marshal())
	require.NoError(t, err)
	assert.Equal(t, &PmidHealthResponse{}, resp)
}

func TestDecodeResponse_Failure(t *testing.T) {
	failure := grpcutil.NewError(codes.AlreadyExists, "ACCOUNT_EXISTS", "account exists",
		map[string]string{"maid": "abc"})

	resp, err := DecodeResponse(KindCreateAccountResponse, (&CreateAccountResponse{Err: failure}).Marshal())
	require.NoError(t, err)

	replyErr := resp.(*CreateAccountResponse).Err
	require.Error(t, replyErr)
	assert.Equal(t, codes.AlreadyExists, status.Code(replyErr))
	assert.Equal(t, "account exists", status.Convert(replyErr).Message())

	info := grpcutil.ErrorInfo(replyErr)
	require.NotNil(t, info)
	assert.Equal(t, "ACCOUNT_EXISTS", info.Reason)
	assert.Equal(t, "abc", info.Metadata["maid"])
}

func TestDecodeResponse_PlainErrorBecomesUnknown(t *testing.T) {
	payload := (&PutResponse{Err: errors.New("disk full")}).Marshal()

	resp, err := DecodeResponse(KindPutResponse, payload)
	require.NoError(t, err)
	assert.Equal(t, codes.Unknown, status.Code(resp.(*PutResponse).Err))
}

func TestDecodeResponse_PutFailure(t *testing.T) {
	name := DataName{Type: 2, ID: "chunk"}

	resp, err := DecodeResponse(KindPutFailure, (&PutFailure{Name: name}).Marshal())
	require.NoError(t, err)

	failure := resp.(*PutFailure)
	assert.Equal(t, name, failure.Name)
	assert.Error(t, failure.Err)

	_, err = DecodeResponse(KindPutFailure, nil)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeResponse_Malformed(t *testing.T) {
	tests := map[string]struct {
		kind    Kind
		payload []byte
	}{
		"request kind": {
			kind: KindGetRequest,
		},
		"truncated": {
			kind:    KindGetResponse,
			payload: []byte{0x0a, 0x10},
		},
		"garbage status": {
			kind:    KindPutResponse,
			payload: appendBytes(nil, 2, []byte{0xff, 0xff}),
		},
		"value of wrong type": {
			kind:    KindGetVersionsResponse,
			payload: appendUint(nil, 1, 5),
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeResponse(tt.kind, tt.payload)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}
