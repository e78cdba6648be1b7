package wire

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/fxsml/ubinder/message"
)

// ErrMalformed is returned when a frame body cannot be decoded.
var ErrMalformed = errors.New("wire: malformed frame")

// Codec converts messages to frame bodies and back.
type Codec interface {
	Encode(msg message.Message) ([]byte, error)
	Decode(data []byte) (message.Message, error)
}

// BinaryCodec is the default Codec. A body is the kind byte, the correlation
// id as uvarint for requests and responses, then the payload.
type BinaryCodec struct{}

func (BinaryCodec) Encode(msg message.Message) ([]byte, error) {
	if !msg.Kind().Valid() {
		return nil, fmt.Errorf("wire: encode: %w", message.ErrInvalidKind)
	}
	payload := msg.Payload()
	buf := make([]byte, 0, 1+binary.MaxVarintLen32+len(payload))
	buf = append(buf, byte(msg.Kind()))
	if id, ok := msg.CorrelationID(); ok {
		buf = binary.AppendUvarint(buf, uint64(id))
	}
	return append(buf, payload...), nil
}

func (BinaryCodec) Decode(data []byte) (message.Message, error) {
	if len(data) == 0 {
		return message.Message{}, fmt.Errorf("%w: empty body", ErrMalformed)
	}
	kind := message.Kind(data[0])
	rest := data[1:]

	var id uint32
	if kind.Correlated() {
		v, n := binary.Uvarint(rest)
		if n <= 0 || v > uint64(^uint32(0)) {
			return message.Message{}, fmt.Errorf("%w: bad correlation id", ErrMalformed)
		}
		id = uint32(v)
		rest = rest[n:]
	}

	var payload []byte
	if len(rest) > 0 {
		payload = rest
	}
	msg, err := message.Build(kind, id, payload)
	if err != nil {
		return message.Message{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return msg, nil
}
