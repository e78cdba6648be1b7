package message

import "errors"

var (
	// ErrInvalidKind is returned by Build for an undefined message kind.
	ErrInvalidKind = errors.New("message: invalid kind")
	// ErrExitPayload is returned by Build for an Exit message with payload.
	ErrExitPayload = errors.New("message: exit must not carry a payload")
)
