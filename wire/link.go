package wire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/fxsml/ubinder/message"
	"github.com/fxsml/ubinder/pipe"
)

// Config configures a Link.
type Config struct {
	// Codec defaults to BinaryCodec.
	Codec Codec
	// MaxFrameSize defaults to DefaultMaxFrameSize.
	MaxFrameSize int
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Link carries the two pipes of a local endpoint across a byte stream.
// Messages pushed to out are written to the stream; frames read from the
// stream are pushed to in. The local endpoint is wired exactly as it would be
// to an in-process peer: push to out, pull from in.
type Link struct {
	rw     io.ReadWriter
	out    *pipe.Pipe[message.Message]
	in     *pipe.Pipe[message.Message]
	enc    *Encoder
	dec    *Decoder
	logger *slog.Logger
}

// NewLink creates a Link over rw.
func NewLink(rw io.ReadWriter, out, in *pipe.Pipe[message.Message], cfg Config) *Link {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Link{
		rw:     rw,
		out:    out,
		in:     in,
		enc:    NewEncoder(rw, cfg.Codec, cfg.MaxFrameSize),
		dec:    NewDecoder(rw, cfg.Codec, cfg.MaxFrameSize),
		logger: logger,
	}
}

// Run pumps both directions until an Exit has passed each way, an error
// occurs, or ctx ends. If rw is an io.Closer it is closed when Run returns.
//
// When the stream fails before the peer's Exit arrived, Run pushes an Exit
// to in so the local endpoint terminates instead of waiting forever.
//
// An outbound message larger than Config.MaxFrameSize is logged and dropped
// without affecting the session. An inbound oversized frame leaves the stream
// unreadable and ends Run with ErrFrameTooLarge.
func (l *Link) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	if c, ok := l.rw.(io.Closer); ok {
		// Closing unblocks a receive stuck in Read.
		stop := context.AfterFunc(ctx, func() { _ = c.Close() })
		defer func() {
			if stop() {
				_ = c.Close()
			}
		}()
	}

	g.Go(func() error { return l.send(ctx) })
	g.Go(func() error { return l.receive(ctx) })
	return g.Wait()
}

func (l *Link) send(ctx context.Context) error {
	for {
		msg, err := l.out.GetContext(ctx)
		if err != nil {
			return err
		}
		if err := l.enc.Encode(msg); err != nil {
			if errors.Is(err, ErrFrameTooLarge) {
				l.logger.Error("UBINDER: dropping oversized message", "message", msg.String(), "error", err)
				continue
			}
			return fmt.Errorf("wire: send %s: %w", msg, err)
		}
		if msg.Kind() == message.KindExit {
			return nil
		}
	}
}

func (l *Link) receive(ctx context.Context) error {
	for {
		msg, err := l.dec.Decode()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			l.in.Push(message.NewExit())
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Error("UBINDER: link receive failed", "error", err)
			return fmt.Errorf("wire: receive: %w", err)
		}
		l.in.Push(msg)
		if msg.Kind() == message.KindExit {
			return nil
		}
	}
}
