// Package redispipe carries messages between processes over a Redis list.
//
// A Pipe has the same contract as the in-process pipe: Push appends without
// blocking on a consumer, Get blocks until a message is available. Two Pipes
// on distinct keys connect two endpoints in separate processes:
//
//	a2b := redispipe.New(client, redispipe.Config{Key: "svc:a2b"})
//	b2a := redispipe.New(client, redispipe.Config{Key: "svc:b2a"})
//	ep := endpoint.New(a2b.PushFunc(ctx), b2a.PullFunc(ctx), handler, endpoint.Config{Name: "a"})
package redispipe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fxsml/ubinder/message"
	"github.com/fxsml/ubinder/wire"
)

// Config configures a Pipe. Scalar fields load from the "redis" stage.
type Config struct {
	// Addr is used by NewClient. Defaults to "localhost:6379".
	Addr string
	// Key of the Redis list. Defaults to "ubinder".
	Key string
	// PollInterval bounds a single BLPOP, which is how often Get notices a
	// cancelled context. Redis accepts whole seconds; defaults to 1s.
	PollInterval time.Duration
	// Codec defaults to wire.BinaryCodec.
	Codec wire.Codec
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

func (c Config) applyDefaults() Config {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.Key == "" {
		c.Key = "ubinder"
	}
	if c.PollInterval < time.Second {
		c.PollInterval = time.Second
	}
	if c.Codec == nil {
		c.Codec = wire.BinaryCodec{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// NewClient connects a client to cfg.Addr.
func NewClient(cfg Config) *redis.Client {
	cfg = cfg.applyDefaults()
	return redis.NewClient(&redis.Options{Addr: cfg.Addr})
}

// Pipe is a FIFO queue of messages stored in a Redis list.
type Pipe struct {
	client redis.Cmdable
	config Config
}

// New creates a Pipe on client.
func New(client redis.Cmdable, cfg Config) *Pipe {
	return &Pipe{client: client, config: cfg.applyDefaults()}
}

// Key returns the list key.
func (p *Pipe) Key() string {
	return p.config.Key
}

// Push appends msg to the list.
func (p *Pipe) Push(ctx context.Context, msg message.Message) error {
	data, err := p.config.Codec.Encode(msg)
	if err != nil {
		return err
	}
	if err := p.client.RPush(ctx, p.config.Key, data).Err(); err != nil {
		return fmt.Errorf("redispipe: push %s: %w", p.config.Key, err)
	}
	return nil
}

// Get removes and returns the oldest message, blocking until one is
// available or ctx ends.
func (p *Pipe) Get(ctx context.Context) (message.Message, error) {
	for {
		if err := ctx.Err(); err != nil {
			return message.Message{}, err
		}
		res, err := p.client.BLPop(ctx, p.config.PollInterval, p.config.Key).Result()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case err != nil:
			if ctx.Err() != nil {
				return message.Message{}, ctx.Err()
			}
			return message.Message{}, fmt.Errorf("redispipe: get %s: %w", p.config.Key, err)
		}
		// BLPOP replies with [key, value].
		return p.config.Codec.Decode([]byte(res[1]))
	}
}

// Len returns the number of queued messages.
func (p *Pipe) Len(ctx context.Context) (int64, error) {
	return p.client.LLen(ctx, p.config.Key).Result()
}

// PushFunc adapts Push to the push capability of an endpoint. The first
// failed push is logged and breaks the returned func: every later message is
// dropped as well, so no message overtakes a lost one.
func (p *Pipe) PushFunc(ctx context.Context) func(message.Message) {
	var broken atomic.Bool
	return func(msg message.Message) {
		if broken.Load() {
			p.config.Logger.Warn("UBINDER: redis push dropped after earlier failure",
				"key", p.config.Key,
				"message", msg.String(),
			)
			return
		}
		if err := p.Push(ctx, msg); err != nil {
			broken.Store(true)
			p.config.Logger.Error("UBINDER: redis push failed",
				"key", p.config.Key,
				"message", msg.String(),
				"error", err,
			)
		}
	}
}

// PullFunc adapts Get to the pull capability of an endpoint. When Get fails
// or ctx ends it yields an Exit so the endpoint terminates.
func (p *Pipe) PullFunc(ctx context.Context) func() message.Message {
	return func() message.Message {
		msg, err := p.Get(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.config.Logger.Error("UBINDER: redis get failed", "key", p.config.Key, "error", err)
			}
			return message.NewExit()
		}
		return msg
	}
}
