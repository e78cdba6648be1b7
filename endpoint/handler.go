package endpoint

import (
	"fmt"

	"github.com/fxsml/ubinder/message"
)

// Handler receives the decoded inbound traffic of an endpoint.
// All four methods are called from the endpoint's receive goroutine, one at a
// time, in the order the messages were pushed by the peer. Payloads are owned
// by the handler.
type Handler interface {
	HandleRequest(id uint32, data []byte)
	HandleResponse(id uint32, data []byte)
	HandleNotification(data []byte)
	HandleExit()
}

// HandlerFuncs adapts plain functions to a Handler. Nil functions ignore the
// corresponding message kind.
type HandlerFuncs struct {
	OnRequest      func(id uint32, data []byte)
	OnResponse     func(id uint32, data []byte)
	OnNotification func(data []byte)
	OnExit         func()
}

func (h HandlerFuncs) HandleRequest(id uint32, data []byte) {
	if h.OnRequest != nil {
		h.OnRequest(id, data)
	}
}

func (h HandlerFuncs) HandleResponse(id uint32, data []byte) {
	if h.OnResponse != nil {
		h.OnResponse(id, data)
	}
}

func (h HandlerFuncs) HandleNotification(data []byte) {
	if h.OnNotification != nil {
		h.OnNotification(data)
	}
}

func (h HandlerFuncs) HandleExit() {
	if h.OnExit != nil {
		h.OnExit()
	}
}

// Dispatch invokes exactly one method of h for msg and reports whether msg
// was an Exit. It panics on an invalid message kind; producing one is a
// programming error.
func Dispatch(h Handler, msg message.Message) (exit bool) {
	switch msg.Kind() {
	case message.KindRequest:
		id, _ := msg.CorrelationID()
		h.HandleRequest(id, msg.Payload())
	case message.KindResponse:
		id, _ := msg.CorrelationID()
		h.HandleResponse(id, msg.Payload())
	case message.KindNotification:
		h.HandleNotification(msg.Payload())
	case message.KindExit:
		h.HandleExit()
		return true
	default:
		panic(fmt.Sprintf("endpoint: cannot dispatch %s", msg.Kind()))
	}
	return false
}
