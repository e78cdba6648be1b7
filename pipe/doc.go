// Package pipe provides the blocking queue that carries messages between the
// two endpoints of a binding.
//
// A [Pipe] is unbounded: [Pipe.Push] never blocks, [Pipe.Get] blocks until an
// item is available. A binding owns two pipes, one per direction, and wires
// each to exactly one producer and one consumer, which makes delivery strictly
// in order and exactly once:
//
//	toServer := pipe.New[message.Message]()
//	toServer.Push(message.NewNotification(data))
//	msg := toServer.Get()
//
// There is no flow control. A pipe under sustained one-directional load grows
// without limit.
package pipe
