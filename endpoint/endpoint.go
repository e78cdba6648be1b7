package endpoint

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/fxsml/ubinder/message"
)

var (
	// ErrAlreadyListening is returned when StartListen is called twice.
	ErrAlreadyListening = errors.New("endpoint: already listening")
	// ErrExitSent is returned by sends after this endpoint has sent Exit.
	// Nothing may follow an Exit in a pipe.
	ErrExitSent = errors.New("endpoint: exit already sent")
)

// Logger defines an interface for logging at different severity levels.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// State is the lifecycle state of an Endpoint.
type State int32

const (
	StateCreated State = iota
	StateListening
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateListening:
		return "listening"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Config configures an Endpoint.
type Config struct {
	// Name identifies the endpoint in log output, e.g. "client" or "server".
	Name string
	// Logger defaults to slog.Default().
	Logger Logger
}

// Endpoint is one side of a duplex channel. It encodes outbound calls into
// messages pushed with push, and runs a receive loop that pulls inbound
// messages with pull and dispatches them to its Handler.
//
// An Endpoint never removes anything from the pipe it pushes to, and never
// pushes to the pipe it pulls from.
type Endpoint struct {
	push    func(message.Message)
	pull    func() message.Message
	handler Handler
	name    string
	logger  Logger

	// sendMu orders sends against Exit: regular sends hold the read lock,
	// SendExit holds the write lock.
	sendMu   sync.RWMutex
	exitSent bool

	mu    sync.Mutex
	state State
	done  chan struct{}
}

// New creates an Endpoint in the Created state.
func New(push func(message.Message), pull func() message.Message, h Handler, cfg Config) *Endpoint {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Endpoint{
		push:    push,
		pull:    pull,
		handler: h,
		name:    cfg.Name,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// SendRequest pushes a Request with the given correlation id. The endpoint
// keeps no record of outstanding requests; matching the Response is up to
// the caller.
func (e *Endpoint) SendRequest(id uint32, data []byte) error {
	return e.send(message.NewRequest(id, data))
}

// SendResponse pushes a Response for the Request with the same id.
func (e *Endpoint) SendResponse(id uint32, data []byte) error {
	return e.send(message.NewResponse(id, data))
}

// SendNotification pushes a Notification.
func (e *Endpoint) SendNotification(data []byte) error {
	return e.send(message.NewNotification(data))
}

// SendExit pushes an Exit. Subsequent sends return ErrExitSent.
func (e *Endpoint) SendExit() error {
	e.sendMu.Lock()
	defer e.sendMu.Unlock()
	if e.exitSent {
		return ErrExitSent
	}
	e.exitSent = true
	e.push(message.NewExit())
	e.logger.Debug("UBINDER: exit sent", "side", e.name)
	return nil
}

func (e *Endpoint) send(msg message.Message) error {
	e.sendMu.RLock()
	defer e.sendMu.RUnlock()
	if e.exitSent {
		return ErrExitSent
	}
	e.push(msg)
	return nil
}

// StartListen starts the receive loop on its own goroutine.
func (e *Endpoint) StartListen() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateCreated {
		return ErrAlreadyListening
	}
	e.state = StateListening
	go e.listen()
	return nil
}

// State returns the current lifecycle state.
func (e *Endpoint) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Done returns a channel that is closed once the endpoint has processed an
// Exit and its receive loop has stopped.
func (e *Endpoint) Done() <-chan struct{} {
	return e.done
}

func (e *Endpoint) listen() {
	e.logger.Debug("UBINDER: listening", "side", e.name)
	defer e.terminate()

	for {
		msg := e.pull()
		if !Dispatch(e.handler, msg) {
			continue
		}
		// Acknowledge an Exit initiated by the peer so its loop terminates
		// too. If we initiated, the received Exit is the acknowledgment.
		if err := e.SendExit(); err == nil {
			e.logger.Debug("UBINDER: exit acknowledged", "side", e.name)
		}
		return
	}
}

func (e *Endpoint) terminate() {
	e.mu.Lock()
	e.state = StateTerminated
	e.mu.Unlock()
	close(e.done)
	e.logger.Debug("UBINDER: terminated", "side", e.name)
}
