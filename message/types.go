package message

import (
	"encoding/hex"

	"google.golang.org/protobuf/encoding/protowire"
)

// NodeID is the identity of a node or the name of a piece of data. Both live
// in the same address space, which is what lets a request be routed to the
// group of nodes closest to a name.
type NodeID string

func (id NodeID) String() string {
	const debugLen = 4

	if len(id) > debugLen {
		return hex.EncodeToString([]byte(id[:debugLen])) + ".."
	}

	return hex.EncodeToString([]byte(id))
}

// DataType distinguishes kinds of stored data sharing the same name space.
type DataType uint32

// DataName identifies a piece of data.
type DataName struct {
	Type DataType
	ID   NodeID
}

func (n DataName) marshal() []byte {
	var b []byte
	b = appendUint(b, 1, uint64(n.Type))
	b = appendString(b, 2, string(n.ID))

	return b
}

func (n *DataName) unmarshal(b []byte) error {
	return walk(b, func(num protowire.Number, f field) error {
		switch num {
		case 1:
			v, err := f.uint()
			n.Type = DataType(v)

			return err
		case 2:
			v, err := f.data()
			n.ID = NodeID(v)

			return err
		}

		return nil
	})
}

// Data is a named blob.
type Data struct {
	Name    DataName
	Content []byte
}

func (d Data) marshal() []byte {
	var b []byte
	b = appendBytes(b, 1, d.Name.marshal())
	b = appendBytes(b, 2, d.Content)

	return b
}

func (d *Data) unmarshal(b []byte) error {
	return walk(b, func(num protowire.Number, f field) error {
		switch num {
		case 1:
			v, err := f.data()
			if err != nil {
				return err
			}

			return d.Name.unmarshal(v)
		case 2:
			v, err := f.data()
			d.Content = append([]byte(nil), v...)

			return err
		}

		return nil
	})
}

// VersionName identifies a single version in a version tree.
type VersionName struct {
	Index uint64
	ID    NodeID
}

func (v VersionName) marshal() []byte {
	var b []byte
	b = appendUint(b, 1, v.Index)
	b = appendString(b, 2, string(v.ID))

	return b
}

func (v *VersionName) unmarshal(b []byte) error {
	return walk(b, func(num protowire.Number, f field) error {
		switch num {
		case 1:
			idx, err := f.uint()
			v.Index = idx

			return err
		case 2:
			id, err := f.data()
			v.ID = NodeID(id)

			return err
		}

		return nil
	})
}

func marshalVersions(versions []VersionName) []byte {
	var b []byte
	for _, v := range versions {
		// An empty version still has to take a slot in the list.
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, v.marshal())
	}

	return b
}

func unmarshalVersions(b []byte) ([]VersionName, error) {
	var versions []VersionName

	err := walk(b, func(num protowire.Number, f field) error {
		if num != 1 {
			return nil
		}

		data, err := f.data()
		if err != nil {
			return err
		}

		var v VersionName
		if err := v.unmarshal(data); err != nil {
			return err
		}

		versions = append(versions, v)

		return nil
	})

	return versions, err
}
