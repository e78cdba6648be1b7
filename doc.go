// Package ubinder provides an in-process duplex message channel between a
// client side and a server side.
//
// The two sides exchange correlated requests and responses, one-way
// notifications, and an exit handshake. Each direction has its own unbounded
// [pipe.Pipe], so every side is a single producer for one pipe and a single
// consumer of the other: delivery is in order and exactly once per direction.
//
// The ubinder family includes:
//
//   - [message]: the transport event
//   - [pipe]: the blocking FIFO between endpoints
//   - [endpoint]: one side of the channel and its receive loop
//   - [rpc]: request/response correlation above an endpoint
//   - [eventloop]: re-dispatch of callbacks onto a single goroutine
//   - [wire], [cloudevents], [redispipe], [natspipe]: cross-process bridges
//
// # Quick Start
//
//	b := ubinder.New(func(out ubinder.Sender) endpoint.Handler {
//		// keep out to inject client traffic; return the client's handler
//		return clientHandler
//	}, ubinder.Config{})
//
//	ch, err := b.Register(serverHandler)
//	if err != nil {
//		return err
//	}
//	if err := ch.StartListen(); err != nil {
//		return err
//	}
//	_ = ch.SendNotification([]byte("hello"))
//	return ch.Exit()
//
// # Lifecycle
//
// A [Binding] is the unregistered channel; only [Binding.Register] leads to
// the active [Channel], which is where the send operations live. [Channel.Exit]
// sends an Exit from the client, waits until both endpoints have processed the
// handshake, and releases them.
package ubinder
