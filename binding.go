package ubinder

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fxsml/ubinder/endpoint"
	"github.com/fxsml/ubinder/message"
	"github.com/fxsml/ubinder/pipe"
)

// Sender is the outbound capability of one side of a channel.
type Sender interface {
	SendRequest(id uint32, data []byte) error
	SendResponse(id uint32, data []byte) error
	SendNotification(data []byte) error
	SendExit() error
}

// Initializer connects the host wrapper to the client side. It receives the
// Sender the wrapper uses to inject outbound traffic and returns the Handler
// that receives inbound client traffic. A nil Handler ignores all traffic.
type Initializer func(out Sender) endpoint.Handler

// Config configures a Binding.
type Config struct {
	// ExitTimeout bounds Channel.Exit. Zero waits until both endpoints have
	// terminated.
	ExitTimeout time.Duration
	// Logger defaults to slog.Default().
	Logger Logger
}

// Binding owns the two pipes of a duplex channel and its client endpoint.
// It is the unregistered state of the channel: sends become available on the
// Channel returned by Register.
type Binding struct {
	id     string
	config Config
	logger Logger

	toServer *pipe.Pipe[message.Message]
	toClient *pipe.Pipe[message.Message]
	client   *endpoint.Endpoint

	mu      sync.Mutex
	channel *Channel
}

// New creates a Binding and its client endpoint. The client pushes to the
// client-to-server pipe and pulls from the server-to-client pipe.
func New(init Initializer, cfg Config) *Binding {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	b := &Binding{
		id:       uuid.NewString(),
		config:   cfg,
		logger:   logger,
		toServer: pipe.New[message.Message](),
		toClient: pipe.New[message.Message](),
	}

	wrapper := &wrapperHandler{}
	b.client = endpoint.New(b.toServer.Push, b.toClient.Get, wrapper, endpoint.Config{
		Name:   "client",
		Logger: b.sideLogger(),
	})
	wrapper.h = init(b.client)

	logger.Debug("UBINDER: binding created", "binding", b.id)
	return b
}

// ID returns the unique id of the binding, used in log attributes.
func (b *Binding) ID() string {
	return b.id
}

// Register creates the server endpoint with h as its handler and returns the
// active Channel. The server pushes to the server-to-client pipe and pulls
// from the client-to-server pipe. Register may be called once.
func (b *Binding) Register(h endpoint.Handler) (*Channel, error) {
	if h == nil {
		return nil, ErrNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.channel != nil {
		return nil, ErrAlreadyRegistered
	}

	server := endpoint.New(b.toClient.Push, b.toServer.Get, h, endpoint.Config{
		Name:   "server",
		Logger: b.sideLogger(),
	})
	b.channel = newChannel(b, server)

	b.logger.Info("UBINDER: server registered", "binding", b.id)
	return b.channel, nil
}

func (b *Binding) sideLogger() Logger {
	if l, ok := b.logger.(*slog.Logger); ok {
		return l.With("binding", b.id)
	}
	return b.logger
}

// wrapperHandler lets the client endpoint be built before the initializer
// has returned the wrapper's handler.
type wrapperHandler struct {
	h endpoint.Handler
}

func (w *wrapperHandler) handler() endpoint.Handler {
	if w.h == nil {
		return endpoint.HandlerFuncs{}
	}
	return w.h
}

func (w *wrapperHandler) HandleRequest(id uint32, data []byte) {
	w.handler().HandleRequest(id, data)
}

func (w *wrapperHandler) HandleResponse(id uint32, data []byte) {
	w.handler().HandleResponse(id, data)
}

func (w *wrapperHandler) HandleNotification(data []byte) {
	w.handler().HandleNotification(data)
}

func (w *wrapperHandler) HandleExit() {
	w.handler().HandleExit()
}
