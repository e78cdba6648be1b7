package ubinder

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fxsml/ubinder/endpoint"
)

// Channel is a Binding with a registered server: the fully bidirectional,
// active state. Sends on a Channel originate from the server side.
type Channel struct {
	binding *Binding

	mu        sync.RWMutex
	client    *endpoint.Endpoint
	server    *endpoint.Endpoint
	listening bool
	closed    bool
	exiting   bool
	done      chan struct{}
	doneOnce  sync.Once
}

func newChannel(b *Binding, server *endpoint.Endpoint) *Channel {
	return &Channel{
		binding: b,
		client:  b.client,
		server:  server,
		done:    make(chan struct{}),
	}
}

// ID returns the id of the owning Binding.
func (c *Channel) ID() string {
	return c.binding.id
}

// SendRequest sends a Request from the server to the client.
func (c *Channel) SendRequest(id uint32, data []byte) error {
	server, err := c.target()
	if err != nil {
		return err
	}
	return closedIfExited(server.SendRequest(id, data))
}

// SendResponse sends a Response from the server to the client.
func (c *Channel) SendResponse(id uint32, data []byte) error {
	server, err := c.target()
	if err != nil {
		return err
	}
	return closedIfExited(server.SendResponse(id, data))
}

// SendNotification sends a Notification from the server to the client.
func (c *Channel) SendNotification(data []byte) error {
	server, err := c.target()
	if err != nil {
		return err
	}
	return closedIfExited(server.SendNotification(data))
}

// closedIfExited maps the server's ErrExitSent to ErrClosed. The server has
// sent its Exit once the host shut the channel down through its Sender.
func closedIfExited(err error) error {
	if errors.Is(err, endpoint.ErrExitSent) {
		return ErrClosed
	}
	return err
}

func (c *Channel) target() (*endpoint.Endpoint, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClosed
	}
	return c.server, nil
}

// StartListen starts the receive loops of both endpoints. Until both listen,
// traffic towards the idle side queues up undelivered.
func (c *Channel) StartListen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.listening {
		return ErrAlreadyListening
	}
	c.listening = true

	if err := c.client.StartListen(); err != nil {
		return fmt.Errorf("ubinder: client: %w", err)
	}
	if err := c.server.StartListen(); err != nil {
		return fmt.Errorf("ubinder: server: %w", err)
	}
	go c.watch(c.client, c.server)
	c.binding.logger.Info("UBINDER: listening", "binding", c.binding.id)
	return nil
}

// watch closes the channel once both endpoints have terminated, which also
// covers an Exit sent by the host through its Sender.
func (c *Channel) watch(client, server *endpoint.Endpoint) {
	<-server.Done()
	<-client.Done()

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.finish()
}

func (c *Channel) finish() {
	c.doneOnce.Do(func() {
		close(c.done)
		c.binding.logger.Info("UBINDER: exit complete", "binding", c.binding.id)
	})
}

// Exit sends an Exit from the client and blocks until both endpoints have
// terminated, then releases them. After Exit returns the Channel must not be
// used again; further sends return ErrClosed. Config.ExitTimeout bounds the
// wait.
func (c *Channel) Exit() error {
	ctx := context.Background()
	if timeout := c.binding.config.ExitTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return c.ExitContext(ctx)
}

// ExitContext is like Exit but stops waiting when ctx ends. The channel is
// closed for sends either way. After the host has shut the channel down
// through its Sender, ExitContext completes at once and releases the
// endpoints; a second call returns ErrClosed.
func (c *Channel) ExitContext(ctx context.Context) error {
	c.mu.Lock()
	if c.exiting {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.listening {
		c.mu.Unlock()
		return ErrNotListening
	}
	c.exiting = true
	c.closed = true
	client, server := c.client, c.server
	c.mu.Unlock()

	logger := c.binding.logger
	logger.Info("UBINDER: exit requested", "binding", c.binding.id)

	// The host may already have sent Exit through the client Sender.
	if err := client.SendExit(); err != nil && !errors.Is(err, endpoint.ErrExitSent) {
		return fmt.Errorf("ubinder: exit: %w", err)
	}

	for _, ep := range []*endpoint.Endpoint{server, client} {
		select {
		case <-ep.Done():
		case <-ctx.Done():
			logger.Warn("UBINDER: exit interrupted", "binding", c.binding.id, "error", ctx.Err())
			return fmt.Errorf("ubinder: exit: %w", ctx.Err())
		}
	}

	c.mu.Lock()
	c.client = nil
	c.server = nil
	c.mu.Unlock()
	c.finish()
	return nil
}

// Done returns a channel that is closed once both endpoints have terminated,
// whether through Exit or an Exit sent by the host.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}
