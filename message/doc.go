// Package message defines the transport event exchanged between the two
// endpoints of a binding.
//
// A [Message] has a [Kind] (request, response, notification or exit), a
// correlation id for requests and responses, and an opaque payload:
//
//	req := message.NewRequest(42, []byte{1, 2, 3})
//	id, _ := req.CorrelationID() // 42
//	resp := message.NewResponse(id, result)
//
// Constructors copy the payload so the caller's buffer is never aliased by a
// message in flight. Messages are values and are never mutated after
// construction.
package message
