package message

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Request is the payload of an outgoing envelope.
type Request interface {
	Kind() Kind
	Marshal() []byte
}

// AccountCreation asks the managers of a client to open its account.
type AccountCreation struct {
	PublicMaid   []byte
	PublicAnmaid []byte
}

// AccountRemoval asks the managers of a client to close its account.
type AccountRemoval struct {
	PublicMaid []byte
	Signature  []byte
}

// PmidRegistration associates a storage provider (pmid) with a client account.
type PmidRegistration struct {
	Maid      NodeID
	Pmid      NodeID
	Signature []byte
}

type UnregisterPmid struct {
	Pmid NodeID
}

type PmidHealthQuery struct {
	Pmid NodeID
}

type GetRequest struct {
	Name DataName
}

type DeleteRequest struct {
	Name DataName
}

// PutRequest stores data, PmidHint names the storage provider the client
// would like the data to end up on.
type PutRequest struct {
	Data     Data
	PmidHint NodeID
}

type GetVersionsRequest struct {
	Name DataName
}

// GetBranchRequest asks for the versions from Tip down to the root of the tree.
type GetBranchRequest struct {
	Name DataName
	Tip  VersionName
}

type PutVersionRequest struct {
	Name       DataName
	OldVersion VersionName
	NewVersion VersionName
}

type CreateVersionTreeRequest struct {
	Name        DataName
	Root        VersionName
	MaxVersions uint32
	MaxBranches uint32
}

func (AccountCreation) Kind() Kind          { return KindCreateAccountRequest }
func (AccountRemoval) Kind() Kind           { return KindRemoveAccountRequest }
func (PmidRegistration) Kind() Kind         { return KindRegisterPmidRequest }
func (UnregisterPmid) Kind() Kind           { return KindUnregisterPmidRequest }
func (PmidHealthQuery) Kind() Kind          { return KindPmidHealthRequest }
func (GetRequest) Kind() Kind               { return KindGetRequest }
func (DeleteRequest) Kind() Kind            { return KindDeleteRequest }
func (PutRequest) Kind() Kind               { return KindPutRequest }
func (GetVersionsRequest) Kind() Kind       { return KindGetVersionsRequest }
func (GetBranchRequest) Kind() Kind         { return KindGetBranchRequest }
func (PutVersionRequest) Kind() Kind        { return KindPutVersionRequest }
func (CreateVersionTreeRequest) Kind() Kind { return KindCreateVersionTreeRequest }

func (r AccountCreation) Marshal() []byte {
	var b []byte
	b = appendBytes(b, 1, r.PublicMaid)
	b = appendBytes(b, 2, r.PublicAnmaid)

	return b
}

func (r AccountRemoval) Marshal() []byte {
	var b []byte
	b = appendBytes(b, 1, r.PublicMaid)
	b = appendBytes(b, 2, r.Signature)

	return b
}

func (r PmidRegistration) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, string(r.Maid))
	b = appendString(b, 2, string(r.Pmid))
	b = appendBytes(b, 3, r.Signature)

	return b
}

func (r UnregisterPmid) Marshal() []byte {
	return appendString(nil, 1, string(r.Pmid))
}

func (r PmidHealthQuery) Marshal() []byte {
	return appendString(nil, 1, string(r.Pmid))
}

func (r GetRequest) Marshal() []byte {
	return appendBytes(nil, 1, r.Name.marshal())
}

func (r DeleteRequest) Marshal() []byte {
	return appendBytes(nil, 1, r.Name.marshal())
}

func (r PutRequest) Marshal() []byte {
	var b []byte
	b = appendBytes(b, 1, r.Data.marshal())
	b = appendString(b, 2, string(r.PmidHint))

	return b
}

func (r GetVersionsRequest) Marshal() []byte {
	return appendBytes(nil, 1, r.Name.marshal())
}

func (r GetBranchRequest) Marshal() []byte {
	var b []byte
	b = appendBytes(b, 1, r.Name.marshal())
	b = appendBytes(b, 2, r.Tip.marshal())

	return b
}

func (r PutVersionRequest) Marshal() []byte {
	var b []byte
	b = appendBytes(b, 1, r.Name.marshal())
	b = appendBytes(b, 2, r.OldVersion.marshal())
	b = appendBytes(b, 3, r.NewVersion.marshal())

	return b
}

func (r CreateVersionTreeRequest) Marshal() []byte {
	var b []byte
	b = appendBytes(b, 1, r.Name.marshal())
	b = appendBytes(b, 2, r.Root.marshal())
	b = appendUint(b, 3, uint64(r.MaxVersions))
	b = appendUint(b, 4, uint64(r.MaxBranches))

	return b
}

// DecodeRequest parses the payload of a request envelope. It is what the
// receiving group does with the bytes produced by Request.Marshal.
func DecodeRequest(kind Kind, payload []byte) (Request, error) {
	var (
		req Request
		err error
	)

	switch kind {
	case KindCreateAccountRequest:
		r := AccountCreation{}
		err = walk(payload, func(num protowire.Number, f field) (err error) {
			switch num {
			case 1:
				r.PublicMaid, err = copyData(f)
			case 2:
				r.PublicAnmaid, err = copyData(f)
			}

			return err
		})
		req = r

	case KindRemoveAccountRequest:
		r := AccountRemoval{}
		err = walk(payload, func(num protowire.Number, f field) (err error) {
			switch num {
			case 1:
				r.PublicMaid, err = copyData(f)
			case 2:
				r.Signature, err = copyData(f)
			}

			return err
		})
		req = r

	case KindRegisterPmidRequest:
		r := PmidRegistration{}
		err = walk(payload, func(num protowire.Number, f field) (err error) {
			switch num {
			case 1:
				r.Maid, err = nodeID(f)
			case 2:
				r.Pmid, err = nodeID(f)
			case 3:
				r.Signature, err = copyData(f)
			}

			return err
		})
		req = r

	case KindUnregisterPmidRequest:
		r := UnregisterPmid{}
		r.Pmid, err = singleNodeID(payload)
		req = r

	case KindPmidHealthRequest:
		r := PmidHealthQuery{}
		r.Pmid, err = singleNodeID(payload)
		req = r

	case KindGetRequest:
		r := GetRequest{}
		r.Name, err = singleDataName(payload)
		req = r

	case KindDeleteRequest:
		r := DeleteRequest{}
		r.Name, err = singleDataName(payload)
		req = r

	case KindGetVersionsRequest:
		r := GetVersionsRequest{}
		r.Name, err = singleDataName(payload)
		req = r

	case KindPutRequest:
		r := PutRequest{}
		err = walk(payload, func(num protowire.Number, f field) error {
			switch num {
			case 1:
				return nested(f, r.Data.unmarshal)
			case 2:
				v, err := nodeID(f)
				r.PmidHint = v

				return err
			}

			return nil
		})
		req = r

	case KindGetBranchRequest:
		r := GetBranchRequest{}
		err = walk(payload, func(num protowire.Number, f field) error {
			switch num {
			case 1:
				return nested(f, r.Name.unmarshal)
			case 2:
				return nested(f, r.Tip.unmarshal)
			}

			return nil
		})
		req = r

	case KindPutVersionRequest:
		r := PutVersionRequest{}
		err = walk(payload, func(num protowire.Number, f field) error {
			switch num {
			case 1:
				return nested(f, r.Name.unmarshal)
			case 2:
				return nested(f, r.OldVersion.unmarshal)
			case 3:
				return nested(f, r.NewVersion.unmarshal)
			}

			return nil
		})
		req = r

	case KindCreateVersionTreeRequest:
		r := CreateVersionTreeRequest{}
		err = walk(payload, func(num protowire.Number, f field) error {
			switch num {
			case 1:
				return nested(f, r.Name.unmarshal)
			case 2:
				return nested(f, r.Root.unmarshal)
			case 3:
				v, err := f.uint()
				r.MaxVersions = uint32(v)

				return err
			case 4:
				v, err := f.uint()
				r.MaxBranches = uint32(v)

				return err
			}

			return nil
		})
		req = r

	default:
		return nil, fmt.Errorf("%w: %s is not a request", ErrMalformed, kind)
	}

	if err != nil {
		return nil, err
	}

	return req, nil
}

func copyData(f field) ([]byte, error) {
	v, err := f.data()
	if err != nil {
		return nil, err
	}

	return append([]byte(nil), v...), nil
}

func nodeID(f field) (NodeID, error) {
	v, err := f.data()
	return NodeID(v), err
}

func nested(f field, unmarshal func([]byte) error) error {
	v, err := f.data()
	if err != nil {
		return err
	}

	return unmarshal(v)
}

func singleNodeID(payload []byte) (id NodeID, err error) {
	err = walk(payload, func(num protowire.Number, f field) (err error) {
		if num == 1 {
			id, err = nodeID(f)
		}

		return err
	})

	return id, err
}

func singleDataName(payload []byte) (name DataName, err error) {
	err = walk(payload, func(num protowire.Number, f field) error {
		if num == 1 {
			return nested(f, name.unmarshal)
		}

		return nil
	})

	return name, err
}
