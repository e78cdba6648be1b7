// Package natspipe carries messages between processes over NATS subjects.
//
// Each direction of a binding uses its own subject. Core NATS delivery is
// at-most-once: messages published while no subscriber exists are lost, so
// both sides create their Pipes before either endpoint sends.
//
//	conn, err := natspipe.Connect(natspipe.Config{URL: "nats://localhost:4222"})
//	if err != nil {
//		return err
//	}
//	a2b, err := natspipe.New(conn, natspipe.Config{Subject: "svc.a2b"})
//	if err != nil {
//		return err
//	}
//	b2a, err := natspipe.New(conn, natspipe.Config{Subject: "svc.b2a"})
//	if err != nil {
//		return err
//	}
//	ep := endpoint.New(a2b.PushFunc(), b2a.PullFunc(ctx), handler, endpoint.Config{Name: "a"})
package natspipe
