package message

import (
	"bytes"
	"fmt"
)

// Kind identifies the transport event carried by a Message.
type Kind uint8

const (
	// KindRequest is a correlated request expecting a Response with the same id.
	KindRequest Kind = iota + 1
	// KindResponse answers the Request with the same correlation id.
	KindResponse
	// KindNotification is a one-way message without correlation id.
	KindNotification
	// KindExit terminates the receiving endpoint's receive loop.
	KindExit
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindResponse:
		return "response"
	case KindNotification:
		return "notification"
	case KindExit:
		return "exit"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Valid reports whether k is one of the four defined kinds.
func (k Kind) Valid() bool {
	return k >= KindRequest && k <= KindExit
}

// Correlated reports whether messages of kind k carry a correlation id.
func (k Kind) Correlated() bool {
	return k == KindRequest || k == KindResponse
}

// Message describes one transport event. It is a value: once built it is
// never mutated, and the receiving endpoint consumes it exactly once.
//
// The zero Message is invalid.
type Message struct {
	kind    Kind
	id      uint32
	payload []byte
}

// NewRequest builds a Request. The payload is copied.
func NewRequest(id uint32, data []byte) Message {
	return Message{kind: KindRequest, id: id, payload: bytes.Clone(data)}
}

// NewResponse builds a Response for the Request with the same id.
// The payload is copied.
func NewResponse(id uint32, data []byte) Message {
	return Message{kind: KindResponse, id: id, payload: bytes.Clone(data)}
}

// NewNotification builds a Notification. The payload is copied.
func NewNotification(data []byte) Message {
	return Message{kind: KindNotification, payload: bytes.Clone(data)}
}

// NewExit builds an Exit message.
func NewExit() Message {
	return Message{kind: KindExit}
}

// Build assembles a Message from decoded wire fields. Unlike the typed
// constructors it takes ownership of payload without copying.
// The id is ignored for uncorrelated kinds; Exit messages must not carry
// a payload.
func Build(kind Kind, id uint32, payload []byte) (Message, error) {
	if !kind.Valid() {
		return Message{}, fmt.Errorf("%w: %d", ErrInvalidKind, uint8(kind))
	}
	if kind == KindExit && len(payload) > 0 {
		return Message{}, ErrExitPayload
	}
	if !kind.Correlated() {
		id = 0
	}
	return Message{kind: kind, id: id, payload: payload}, nil
}

// Kind returns the message kind.
func (m Message) Kind() Kind {
	return m.kind
}

// CorrelationID returns the correlation id and whether the kind carries one.
func (m Message) CorrelationID() (uint32, bool) {
	if !m.kind.Correlated() {
		return 0, false
	}
	return m.id, true
}

// Payload returns the opaque payload. Ownership passes to the caller; the
// Message must not be consumed again afterwards.
func (m Message) Payload() []byte {
	return m.payload
}

// IsZero reports whether m is the zero Message.
func (m Message) IsZero() bool {
	return m.kind == 0
}

func (m Message) String() string {
	if m.kind.Correlated() {
		return fmt.Sprintf("%s[id=%d len=%d]", m.kind, m.id, len(m.payload))
	}
	return fmt.Sprintf("%s[len=%d]", m.kind, len(m.payload))
}
