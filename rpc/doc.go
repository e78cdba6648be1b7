// Package rpc layers request/response correlation on top of an endpoint.
//
// Endpoints only move messages; they keep no record of outstanding requests
// and have no timeouts. A [Peer] assigns correlation ids, remembers pending
// calls, and resolves them when the matching response arrives:
//
//	client := rpc.NewPeer(rpc.Config{Timeout: 5 * time.Second})
//	b := ubinder.New(func(out ubinder.Sender) endpoint.Handler {
//		client.Attach(out)
//		return client
//	}, ubinder.Config{})
//
//	server := rpc.NewPeer(rpc.Config{Serve: echo})
//	ch, _ := b.Register(server)
//	server.Attach(ch)
//	_ = ch.StartListen()
//
//	resp, err := client.Call(ctx, []byte("ping"))
package rpc
