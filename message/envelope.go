package message

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/maxpoletaev/vaultnfs/correlation"
)

// Envelope wraps a request or a response on its way between a client and a
// group. ID is correlation.NoID for requests that do not expect replies.
type Envelope struct {
	ID       correlation.ID
	Sender   NodeID
	Receiver NodeID
	Kind     Kind
	Payload  []byte
}

func (e *Envelope) Marshal() []byte {
	var b []byte

	if e.ID != correlation.NoID {
		b = protowire.AppendTag(b, 1, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, uint64(e.ID))
	}

	b = appendString(b, 2, string(e.Sender))
	b = appendString(b, 3, string(e.Receiver))
	b = appendUint(b, 4, uint64(e.Kind))
	b = appendBytes(b, 5, e.Payload)

	return b
}

// UnmarshalEnvelope decodes an envelope and checks that its kind is known.
func UnmarshalEnvelope(b []byte) (*Envelope, error) {
	e := &Envelope{}

	err := walk(b, func(num protowire.Number, f field) error {
		switch num {
		case 1:
			v, err := f.fixed64()
			e.ID = correlation.ID(v)

			return err
		case 2:
			v, err := f.data()
			e.Sender = NodeID(v)

			return err
		case 3:
			v, err := f.data()
			e.Receiver = NodeID(v)

			return err
		case 4:
			v, err := f.uint()
			if v >= uint64(kindMax) {
				return fmt.Errorf("%w: unknown kind %d", ErrMalformed, v)
			}

			e.Kind = Kind(v)

			return err
		case 5:
			v, err := f.data()
			e.Payload = append([]byte(nil), v...)

			return err
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	if !e.Kind.Valid() {
		return nil, fmt.Errorf("%w: missing kind", ErrMalformed)
	}

	return e, nil
}
