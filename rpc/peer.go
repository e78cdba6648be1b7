package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/fxsml/ubinder/endpoint"
)

var (
	// ErrClosed is returned for calls on a closed Peer and for calls still
	// pending when the Peer is closed.
	ErrClosed = errors.New("rpc: peer closed")
	// ErrNotAttached is returned for calls before Attach.
	ErrNotAttached = errors.New("rpc: no sender attached")
)

// Sender is the outbound capability of a Peer. Endpoints, ubinder.Channel
// and the client-side ubinder.Sender all satisfy it.
type Sender interface {
	SendRequest(id uint32, data []byte) error
	SendResponse(id uint32, data []byte) error
}

// ServeFunc answers an inbound request.
type ServeFunc func(ctx context.Context, data []byte) ([]byte, error)

// Config configures a Peer.
type Config struct {
	// MaxInFlight bounds the number of outstanding calls. Zero means no limit.
	MaxInFlight int64
	// Timeout applies to every Call. Zero means calls wait for their
	// response or the caller's context.
	Timeout time.Duration
	// Serve answers inbound requests. When nil, requests are passed to Next.
	Serve ServeFunc
	// ServeConcurrently runs Serve on its own goroutine per request instead
	// of on the receive loop. Required if Serve issues calls on the same Peer.
	ServeConcurrently bool
	// Next receives notifications, exits, and requests when Serve is nil.
	Next endpoint.Handler
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

type call struct {
	done chan struct{}
	data []byte
	err  error
}

// Peer correlates requests with responses on one side of a channel. It is an
// endpoint.Handler: register it as the side's handler, then Attach that
// side's Sender.
//
// Ids are assigned per Peer and never reused while a call is outstanding.
// A response with an unknown id is logged and dropped, so each call observes
// at most one response.
type Peer struct {
	config Config
	next   endpoint.Handler
	logger *slog.Logger
	sem    *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	sender  Sender
	nextID  uint32
	pending map[uint32]*call
	closed  bool
	serving sync.WaitGroup
}

// NewPeer creates a Peer. Calls fail with ErrNotAttached until Attach.
func NewPeer(cfg Config) *Peer {
	next := cfg.Next
	if next == nil {
		next = endpoint.HandlerFuncs{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &Peer{
		config:  cfg,
		next:    next,
		logger:  logger,
		pending: make(map[uint32]*call),
	}
	if cfg.MaxInFlight > 0 {
		p.sem = semaphore.NewWeighted(cfg.MaxInFlight)
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())
	return p
}

// Attach sets the Sender used for requests and responses.
func (p *Peer) Attach(s Sender) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sender = s
}

// Call sends data as a request and blocks until the matching response
// arrives, ctx ends, or the Peer is closed.
func (p *Peer) Call(ctx context.Context, data []byte) ([]byte, error) {
	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}
	if p.sem != nil {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("rpc: acquire: %w", err)
		}
		defer p.sem.Release(1)
	}

	sender, id, c, err := p.register()
	if err != nil {
		return nil, err
	}
	if err := sender.SendRequest(id, data); err != nil {
		p.forget(id)
		return nil, fmt.Errorf("rpc: request %d: %w", id, err)
	}

	select {
	case <-c.done:
		return c.data, c.err
	case <-ctx.Done():
		if !p.forget(id) {
			// Resolved concurrently; the response wins.
			<-c.done
			return c.data, c.err
		}
		return nil, fmt.Errorf("rpc: request %d: %w", id, ctx.Err())
	}
}

// Go is the callback form of Call. fn runs on its own goroutine.
func (p *Peer) Go(ctx context.Context, data []byte, fn func(resp []byte, err error)) {
	go func() {
		fn(p.Call(ctx, data))
	}()
}

// Pending returns the number of outstanding calls.
func (p *Peer) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Close fails all pending calls with ErrClosed and rejects new ones.
// It waits for concurrently running Serve calls to return.
func (p *Peer) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	pending := p.pending
	p.pending = make(map[uint32]*call)
	p.mu.Unlock()

	p.cancel()
	for _, c := range pending {
		c.err = ErrClosed
		close(c.done)
	}
	p.serving.Wait()
}

func (p *Peer) register() (Sender, uint32, *call, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, 0, nil, ErrClosed
	}
	if p.sender == nil {
		return nil, 0, nil, ErrNotAttached
	}

	for {
		p.nextID++
		if _, busy := p.pending[p.nextID]; !busy {
			break
		}
	}
	c := &call{done: make(chan struct{})}
	p.pending[p.nextID] = c
	return p.sender, p.nextID, c, nil
}

// forget removes a pending call and reports whether it was still pending.
func (p *Peer) forget(id uint32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.pending[id]
	delete(p.pending, id)
	return ok
}

// HandleResponse resolves the call with the same id.
func (p *Peer) HandleResponse(id uint32, data []byte) {
	p.mu.Lock()
	c, ok := p.pending[id]
	delete(p.pending, id)
	p.mu.Unlock()

	if !ok {
		p.logger.Warn("UBINDER: unmatched response dropped", "id", id)
		return
	}
	c.data = data
	close(c.done)
}

// HandleRequest answers with Config.Serve or passes the request to Next.
func (p *Peer) HandleRequest(id uint32, data []byte) {
	if p.config.Serve == nil {
		p.next.HandleRequest(id, data)
		return
	}
	if !p.config.ServeConcurrently {
		p.serve(id, data)
		return
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.serving.Add(1)
	p.mu.Unlock()
	go func() {
		defer p.serving.Done()
		p.serve(id, data)
	}()
}

func (p *Peer) serve(id uint32, data []byte) {
	resp, err := p.config.Serve(p.ctx, data)
	if err != nil {
		p.logger.Error("UBINDER: serve failed", "id", id, "error", err)
		resp = nil
	}

	p.mu.Lock()
	sender := p.sender
	p.mu.Unlock()
	if sender == nil {
		p.logger.Error("UBINDER: cannot respond", "id", id, "error", ErrNotAttached)
		return
	}
	if err := sender.SendResponse(id, resp); err != nil {
		p.logger.Error("UBINDER: respond failed", "id", id, "error", err)
	}
}

// HandleNotification passes the notification to Next.
func (p *Peer) HandleNotification(data []byte) {
	p.next.HandleNotification(data)
}

// HandleExit closes the Peer and passes the exit to Next.
func (p *Peer) HandleExit() {
	p.Close()
	p.next.HandleExit()
}
