package message

import (
	"fmt"

	spb "google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Response is the payload of an incoming envelope. The set of implementations
// is closed, every variant corresponds to exactly one response kind. Err is
// set when the peer reported a failure.
type Response interface {
	Kind() Kind
	Marshal() []byte
	isResponse()
}

type GetResponse struct {
	Data Data
	Err  error
}

// GetCachedResponse is a GetResponse served from a cache on the route.
type GetCachedResponse struct {
	Data Data
	Err  error
}

type PutResponse struct {
	Err error
}

// PutFailure is sent when the data could not be stored. It always carries an error.
type PutFailure struct {
	Name DataName
	Err  error
}

type GetVersionsResponse struct {
	Versions []VersionName
	Err      error
}

type GetBranchResponse struct {
	Versions []VersionName
	Err      error
}

type PutVersionResponse struct {
	Tip VersionName
	Err error
}

type CreateVersionTreeResponse struct {
	Err error
}

type PmidHealthResponse struct {
	Health uint64
	Err    error
}

type CreateAccountResponse struct {
	Err error
}

type RegisterPmidResponse struct {
	Err error
}

func (*GetResponse) Kind() Kind               { return KindGetResponse }
func (*GetCachedResponse) Kind() Kind         { return KindGetCachedResponse }
func (*PutResponse) Kind() Kind               { return KindPutResponse }
func (*PutFailure) Kind() Kind                { return KindPutFailure }
func (*GetVersionsResponse) Kind() Kind       { return KindGetVersionsResponse }
func (*GetBranchResponse) Kind() Kind         { return KindGetBranchResponse }
func (*PutVersionResponse) Kind() Kind        { return KindPutVersionResponse }
func (*CreateVersionTreeResponse) Kind() Kind { return KindCreateVersionTreeResponse }
func (*PmidHealthResponse) Kind() Kind        { return KindPmidHealthResponse }
func (*CreateAccountResponse) Kind() Kind     { return KindCreateAccountResponse }
func (*RegisterPmidResponse) Kind() Kind      { return KindRegisterPmidResponse }

func (*GetResponse) isResponse()               {}
func (*GetCachedResponse) isResponse()         {}
func (*PutResponse) isResponse()               {}
func (*PutFailure) isResponse()                {}
func (*GetVersionsResponse) isResponse()       {}
func (*GetBranchResponse) isResponse()         {}
func (*PutVersionResponse) isResponse()        {}
func (*CreateVersionTreeResponse) isResponse() {}
func (*PmidHealthResponse) isResponse()        {}
func (*CreateAccountResponse) isResponse()     {}
func (*RegisterPmidResponse) isResponse()      {}

func (r *GetResponse) Marshal() []byte {
	return marshalReply(r.Data.marshal(), r.Err)
}

func (r *GetCachedResponse) Marshal() []byte {
	return marshalReply(r.Data.marshal(), r.Err)
}

func (r *PutResponse) Marshal() []byte {
	return marshalReply(nil, r.Err)
}

func (r *GetVersionsResponse) Marshal() []byte {
	return marshalReply(marshalVersions(r.Versions), r.Err)
}

func (r *GetBranchResponse) Marshal() []byte {
	return marshalReply(marshalVersions(r.Versions), r.Err)
}

func (r *PutVersionResponse) Marshal() []byte {
	return marshalReply(r.Tip.marshal(), r.Err)
}

func (r *CreateVersionTreeResponse) Marshal() []byte {
	return marshalReply(nil, r.Err)
}

func (r *CreateAccountResponse) Marshal() []byte {
	return marshalReply(nil, r.Err)
}

func (r *RegisterPmidResponse) Marshal() []byte {
	return marshalReply(nil, r.Err)
}

func (r *PutFailure) Marshal() []byte {
	err := r.Err
	if err == nil {
		err = status.Error(codes.Unknown, "put failed")
	}

	return marshalReply(r.Name.marshal(), err)
}

func (r *PmidHealthResponse) Marshal() []byte {
	if r.Err != nil {
		return marshalReply(nil, r.Err)
	}

	value, err := proto.Marshal(wrapperspb.UInt64(r.Health))
	if err != nil {
		return marshalReply(nil, status.Error(codes.Internal, err.Error()))
	}

	return marshalReply(value, nil)
}

// DecodeResponse parses the payload of a response envelope.
func DecodeResponse(kind Kind, payload []byte) (Response, error) {
	value, replyErr, err := unmarshalReply(payload)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindGetResponse:
		r := &GetResponse{Err: replyErr}
		if replyErr == nil {
			err = r.Data.unmarshal(value)
		}

		return orErr[Response](r, err)

	case KindGetCachedResponse:
		r := &GetCachedResponse{Err: replyErr}
		if replyErr == nil {
			err = r.Data.unmarshal(value)
		}

		return orErr[Response](r, err)

	case KindPutResponse:
		return &PutResponse{Err: replyErr}, nil

	case KindPutFailure:
		if replyErr == nil {
			return nil, fmt.Errorf("%w: put failure without an error", ErrMalformed)
		}

		r := &PutFailure{Err: replyErr}
		err = r.Name.unmarshal(value)

		return orErr[Response](r, err)

	case KindGetVersionsResponse:
		r := &GetVersionsResponse{Err: replyErr}
		if replyErr == nil {
			r.Versions, err = unmarshalVersions(value)
		}

		return orErr[Response](r, err)

	case KindGetBranchResponse:
		r := &GetBranchResponse{Err: replyErr}
		if replyErr == nil {
			r.Versions, err = unmarshalVersions(value)
		}

		return orErr[Response](r, err)

	case KindPutVersionResponse:
		r := &PutVersionResponse{Err: replyErr}
		if replyErr == nil {
			err = r.Tip.unmarshal(value)
		}

		return orErr[Response](r, err)

	case KindCreateVersionTreeResponse:
		return &CreateVersionTreeResponse{Err: replyErr}, nil

	case KindPmidHealthResponse:
		r := &PmidHealthResponse{Err: replyErr}
		if replyErr == nil {
			health := &wrapperspb.UInt64Value{}
			if err := proto.Unmarshal(value, health); err != nil {
				return nil, fmt.Errorf("%w: health value: %v", ErrMalformed, err)
			}

			r.Health = health.GetValue()
		}

		return r, nil

	case KindCreateAccountResponse:
		return &CreateAccountResponse{Err: replyErr}, nil

	case KindRegisterPmidResponse:
		return &RegisterPmidResponse{Err: replyErr}, nil

	default:
		return nil, fmt.Errorf("%w: %s is not a response", ErrMalformed, kind)
	}
}

func orErr[T any](v T, err error) (T, error) {
	if err != nil {
		var zero T
		return zero, err
	}

	return v, nil
}

// marshalReply encodes either the value (field 1) or the failure status (field 2).
func marshalReply(value []byte, replyErr error) []byte {
	if replyErr == nil {
		return appendBytes(nil, 1, value)
	}

	st, err := proto.Marshal(status.Convert(replyErr).Proto())
	if err != nil {
		st, _ = proto.Marshal(&spb.Status{Code: int32(codes.Unknown), Message: replyErr.Error()})
	}

	b := appendBytes(nil, 1, value)

	return appendBytes(b, 2, st)
}

func unmarshalReply(b []byte) (value []byte, replyErr error, err error) {
	err = walk(b, func(num protowire.Number, f field) error {
		switch num {
		case 1:
			v, err := f.data()
			value = v

			return err
		case 2:
			v, err := f.data()
			if err != nil {
				return err
			}

			st := &spb.Status{}
			if err := proto.Unmarshal(v, st); err != nil {
				return fmt.Errorf("%w: status: %v", ErrMalformed, err)
			}

			// A status with code OK is not a failure.
			replyErr = status.ErrorProto(st)
		}

		return nil
	})

	return value, replyErr, err
}
