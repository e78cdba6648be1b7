package endpoint

import (
	"fmt"
	"runtime/debug"
)

// RecoveryError wraps a panic raised by a handler together with its stack.
type RecoveryError struct {
	// Kind names the handler method that panicked.
	Kind string
	// PanicValue is the original value that was passed to panic().
	PanicValue any
	// StackTrace contains the full stack trace at the point of panic.
	StackTrace string
}

func (e *RecoveryError) Error() string {
	return fmt.Sprintf("endpoint: panic in %s handler: %v", e.Kind, e.PanicValue)
}

// Recover wraps h so that a panic in any of its methods is converted into a
// RecoveryError and passed to report instead of terminating the receive
// goroutine. Endpoints do not recover on their own.
func Recover(h Handler, report func(*RecoveryError)) Handler {
	return &recoverHandler{next: h, report: report}
}

type recoverHandler struct {
	next   Handler
	report func(*RecoveryError)
}

func (r *recoverHandler) recover(kind string) {
	if v := recover(); v != nil {
		r.report(&RecoveryError{
			Kind:       kind,
			PanicValue: v,
			StackTrace: string(debug.Stack()),
		})
	}
}

func (r *recoverHandler) HandleRequest(id uint32, data []byte) {
	defer r.recover("request")
	r.next.HandleRequest(id, data)
}

func (r *recoverHandler) HandleResponse(id uint32, data []byte) {
	defer r.recover("response")
	r.next.HandleResponse(id, data)
}

func (r *recoverHandler) HandleNotification(data []byte) {
	defer r.recover("notification")
	r.next.HandleNotification(data)
}

func (r *recoverHandler) HandleExit() {
	defer r.recover("exit")
	r.next.HandleExit()
}
