// Package wire carries endpoint traffic across a byte stream.
//
// Frames are a uvarint body length followed by a body produced by a [Codec].
// The default [BinaryCodec] writes the kind byte, the correlation id as a
// uvarint for requests and responses, and the raw payload. Payloads stay
// opaque.
//
// A [Link] bridges a local endpoint's pipes to a stream, typically a
// net.Conn:
//
//	out := pipe.New[message.Message]()
//	in := pipe.New[message.Message]()
//	ep := endpoint.New(out.Push, in.Get, handler, endpoint.Config{Name: "remote"})
//	link := wire.NewLink(conn, out, in, wire.Config{})
//	go link.Run(ctx)
//	_ = ep.StartListen()
package wire
