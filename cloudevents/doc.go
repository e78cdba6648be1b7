// Package cloudevents maps ubinder messages onto CloudEvents.
//
// Each message kind becomes an event type (ubinder.request, ubinder.response,
// ubinder.notification, ubinder.exit). Correlation ids travel in the
// "correlationid" extension and payloads as application/octet-stream data.
//
// Codec plugs the mapping into the wire package, so a Link can carry
// CloudEvents in structured JSON mode:
//
//	link := wire.NewLink(conn, out, in, wire.Config{Codec: cloudevents.Codec{Source: "/svc"}})
package cloudevents
