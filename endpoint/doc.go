// Package endpoint implements one side of a duplex message channel.
//
// An [Endpoint] is wired with a push function for its outbound pipe and a pull
// function for its inbound pipe. Sends build a [message.Message] and push it;
// [Endpoint.StartListen] runs a receive loop that pulls messages and passes
// them to [Dispatch], which invokes exactly one [Handler] method per message.
//
// Lifecycle:
//
//	Created --StartListen--> Listening --Exit received--> Terminated
//
// The endpoint that receives an Exit it did not initiate answers with an Exit
// of its own, so both receive loops of a channel stop after one handshake.
package endpoint
