package ubinder

import "errors"

var (
	// ErrAlreadyRegistered is returned when Register is called twice.
	ErrAlreadyRegistered = errors.New("ubinder: server already registered")
	// ErrNilHandler is returned when Register is called without a handler.
	ErrNilHandler = errors.New("ubinder: nil handler")
	// ErrAlreadyListening is returned when StartListen is called twice.
	ErrAlreadyListening = errors.New("ubinder: already listening")
	// ErrNotListening is returned when Exit is called before StartListen.
	ErrNotListening = errors.New("ubinder: not listening")
	// ErrClosed is returned by operations on a channel after Exit.
	ErrClosed = errors.New("ubinder: channel closed")
)
