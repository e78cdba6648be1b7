package natspipe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/fxsml/ubinder/message"
	"github.com/fxsml/ubinder/pipe"
	"github.com/fxsml/ubinder/wire"
)

// ErrClosed is returned by Push after Close.
var ErrClosed = errors.New("natspipe: closed")

// Config configures a Pipe. Scalar fields load from the "nats" stage.
type Config struct {
	// URL is used by Connect. Defaults to nats.DefaultURL.
	URL string
	// Subject carries the messages. Defaults to "ubinder".
	Subject string
	// ConnectTimeout defaults to 5 seconds.
	ConnectTimeout time.Duration
	// Codec defaults to wire.BinaryCodec.
	Codec wire.Codec
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

func (c Config) applyDefaults() Config {
	if c.URL == "" {
		c.URL = nats.DefaultURL
	}
	if c.Subject == "" {
		c.Subject = "ubinder"
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.Codec == nil {
		c.Codec = wire.BinaryCodec{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Connect dials cfg.URL and logs connection state changes.
func Connect(cfg Config) (*nats.Conn, error) {
	cfg = cfg.applyDefaults()
	conn, err := nats.Connect(
		cfg.URL,
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				cfg.Logger.Warn("UBINDER: nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			cfg.Logger.Info("UBINDER: nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("natspipe: connect %s: %w", cfg.URL, err)
	}
	return conn, nil
}

// Pipe publishes messages to a subject and queues the messages received on
// it. Received messages go to an unbounded in-process pipe, so a slow
// endpoint never causes the subscription to drop messages.
type Pipe struct {
	conn   *nats.Conn
	config Config
	in     *pipe.Pipe[message.Message]

	mu  sync.Mutex
	sub *nats.Subscription
}

// New subscribes to cfg.Subject on conn. The subscription is flushed before
// New returns, so messages published afterwards are received.
func New(conn *nats.Conn, cfg Config) (*Pipe, error) {
	p := &Pipe{
		conn:   conn,
		config: cfg.applyDefaults(),
		in:     pipe.New[message.Message](),
	}
	sub, err := conn.Subscribe(p.config.Subject, p.receive)
	if err != nil {
		return nil, fmt.Errorf("natspipe: subscribe %s: %w", p.config.Subject, err)
	}
	if err := conn.FlushTimeout(p.config.ConnectTimeout); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("natspipe: flush: %w", err)
	}
	p.sub = sub
	return p, nil
}

func (p *Pipe) receive(m *nats.Msg) {
	msg, err := p.config.Codec.Decode(m.Data)
	if err != nil {
		p.config.Logger.Warn("UBINDER: dropping undecodable nats message",
			"subject", m.Subject,
			"error", err,
		)
		return
	}
	p.in.Push(msg)
}

// Subject returns the subject.
func (p *Pipe) Subject() string {
	return p.config.Subject
}

// Push publishes msg.
func (p *Pipe) Push(msg message.Message) error {
	p.mu.Lock()
	closed := p.sub == nil
	p.mu.Unlock()
	if closed {
		return ErrClosed
	}

	data, err := p.config.Codec.Encode(msg)
	if err != nil {
		return err
	}
	if err := p.conn.Publish(p.config.Subject, data); err != nil {
		return fmt.Errorf("natspipe: publish %s: %w", p.config.Subject, err)
	}
	return nil
}

// Get returns the next received message, blocking until one arrives or ctx
// ends.
func (p *Pipe) Get(ctx context.Context) (message.Message, error) {
	return p.in.GetContext(ctx)
}

// Len returns the number of received messages not yet taken by Get.
func (p *Pipe) Len() int {
	return p.in.Len()
}

// Close unsubscribes and queues an Exit, so an endpoint pulling from the
// Pipe terminates. The connection stays open.
func (p *Pipe) Close() error {
	p.mu.Lock()
	sub := p.sub
	p.sub = nil
	p.mu.Unlock()
	if sub == nil {
		return nil
	}

	err := sub.Unsubscribe()
	p.in.Push(message.NewExit())
	if err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("natspipe: unsubscribe %s: %w", p.config.Subject, err)
	}
	return nil
}

// PushFunc adapts Push to the push capability of an endpoint. The first
// failed push is logged and breaks the returned func: every later message is
// dropped as well, so no message overtakes a lost one.
func (p *Pipe) PushFunc() func(message.Message) {
	var broken atomic.Bool
	return func(msg message.Message) {
		if broken.Load() {
			p.config.Logger.Warn("UBINDER: nats push dropped after earlier failure",
				"subject", p.config.Subject,
				"message", msg.String(),
			)
			return
		}
		if err := p.Push(msg); err != nil {
			broken.Store(true)
			p.config.Logger.Error("UBINDER: nats push failed",
				"subject", p.config.Subject,
				"message", msg.String(),
				"error", err,
			)
		}
	}
}

// PullFunc adapts Get to the pull capability of an endpoint. When ctx ends
// it yields an Exit so the endpoint terminates.
func (p *Pipe) PullFunc(ctx context.Context) func() message.Message {
	return func() message.Message {
		msg, err := p.Get(ctx)
		if err != nil {
			return message.NewExit()
		}
		return msg
	}
}
