package cloudevents

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/cloudevents/sdk-go/v2/types"
	"github.com/google/uuid"

	"github.com/fxsml/ubinder/message"
	"github.com/fxsml/ubinder/wire"
)

// Event types, one per message kind.
const (
	TypeRequest      = "ubinder.request"
	TypeResponse     = "ubinder.response"
	TypeNotification = "ubinder.notification"
	TypeExit         = "ubinder.exit"
)

const (
	// ExtensionCorrelationID carries the correlation id of requests and
	// responses as a decimal string.
	ExtensionCorrelationID = "correlationid"
	// DefaultSource is used when no source is given.
	DefaultSource = "/ubinder"

	contentType = "application/octet-stream"
)

// ErrUnknownType is returned for events whose type is not a ubinder type.
var ErrUnknownType = errors.New("cloudevents: unknown event type")

var kindTypes = map[message.Kind]string{
	message.KindRequest:      TypeRequest,
	message.KindResponse:     TypeResponse,
	message.KindNotification: TypeNotification,
	message.KindExit:         TypeExit,
}

// ToEvent converts msg into a CloudEvent with a fresh id.
func ToEvent(msg message.Message, source string) (*cloudevents.Event, error) {
	typ, ok := kindTypes[msg.Kind()]
	if !ok {
		return nil, fmt.Errorf("cloudevents: %w", message.ErrInvalidKind)
	}
	if source == "" {
		source = DefaultSource
	}

	e := cloudevents.NewEvent()
	e.SetID(uuid.NewString())
	e.SetType(typ)
	e.SetSource(source)
	e.SetTime(time.Now())
	if id, ok := msg.CorrelationID(); ok {
		e.SetExtension(ExtensionCorrelationID, strconv.FormatUint(uint64(id), 10))
	}
	if data := msg.Payload(); len(data) > 0 {
		if err := e.SetData(contentType, data); err != nil {
			return nil, fmt.Errorf("cloudevents: set data: %w", err)
		}
	}
	return &e, nil
}

// FromEvent converts a CloudEvent produced by ToEvent back into a message.
// The payload aliases the event data.
func FromEvent(e *cloudevents.Event) (message.Message, error) {
	if e == nil {
		return message.Message{}, errors.New("cloudevents: nil event")
	}

	var kind message.Kind
	for k, typ := range kindTypes {
		if typ == e.Type() {
			kind = k
			break
		}
	}
	if kind == 0 {
		return message.Message{}, fmt.Errorf("%w: %q", ErrUnknownType, e.Type())
	}

	var id uint32
	if kind.Correlated() {
		v, ok := e.Extensions()[ExtensionCorrelationID]
		if !ok {
			return message.Message{}, fmt.Errorf("cloudevents: %s without %s", e.Type(), ExtensionCorrelationID)
		}
		s, err := types.ToString(v)
		if err != nil {
			return message.Message{}, fmt.Errorf("cloudevents: %s: %w", ExtensionCorrelationID, err)
		}
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return message.Message{}, fmt.Errorf("cloudevents: %s: %w", ExtensionCorrelationID, err)
		}
		id = uint32(n)
	}

	var data []byte
	if b := e.Data(); len(b) > 0 {
		data = b
	}
	return message.Build(kind, id, data)
}

// Codec encodes messages as CloudEvents in structured JSON mode. It
// satisfies wire.Codec.
type Codec struct {
	// Source is the event source; DefaultSource when empty.
	Source string
}

var _ wire.Codec = Codec{}

func (c Codec) Encode(msg message.Message) ([]byte, error) {
	e, err := ToEvent(msg, c.Source)
	if err != nil {
		return nil, err
	}
	return json.Marshal(e)
}

func (Codec) Decode(data []byte) (message.Message, error) {
	var e cloudevents.Event
	if err := json.Unmarshal(data, &e); err != nil {
		return message.Message{}, fmt.Errorf("%w: %w", wire.ErrMalformed, err)
	}
	if err := e.Validate(); err != nil {
		return message.Message{}, fmt.Errorf("%w: %w", wire.ErrMalformed, err)
	}
	msg, err := FromEvent(&e)
	if err != nil {
		return message.Message{}, fmt.Errorf("%w: %w", wire.ErrMalformed, err)
	}
	return msg, nil
}
