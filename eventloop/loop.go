// Package eventloop re-dispatches endpoint callbacks onto a single goroutine.
//
// Endpoint handlers run on the endpoint's receive goroutine. Hosts with a
// single-threaded execution model wrap their handler with [Handler] so every
// callback is queued and executed by [Loop.Run] instead:
//
//	loop := eventloop.New()
//	go loop.Run(ctx)
//	b := ubinder.New(func(out ubinder.Sender) endpoint.Handler {
//		return eventloop.Handler(loop, hostHandler)
//	}, ubinder.Config{})
package eventloop

import (
	"context"
	"errors"

	"github.com/fxsml/ubinder/endpoint"
	"github.com/fxsml/ubinder/pipe"
)

// ErrAlreadyRunning is returned when Run is called while another Run is active.
var ErrAlreadyRunning = errors.New("eventloop: already running")

// Loop is an unbounded task queue drained by one goroutine.
type Loop struct {
	tasks   *pipe.Pipe[func()]
	running chan struct{}
}

// New creates an idle Loop.
func New() *Loop {
	return &Loop{
		tasks:   pipe.New[func()](),
		running: make(chan struct{}, 1),
	}
}

// Push queues task. It never blocks. Tasks run in push order.
func (l *Loop) Push(task func()) {
	if task != nil {
		l.tasks.Push(task)
	}
}

// Stop makes Run return after the tasks queued before Stop have run.
func (l *Loop) Stop() {
	l.tasks.Push(nil)
}

// Run executes queued tasks until Stop is reached or ctx ends. It returns
// nil after Stop and ctx.Err() on cancellation.
func (l *Loop) Run(ctx context.Context) error {
	select {
	case l.running <- struct{}{}:
	default:
		return ErrAlreadyRunning
	}
	defer func() { <-l.running }()

	for {
		task, err := l.tasks.GetContext(ctx)
		if err != nil {
			return err
		}
		if task == nil {
			return nil
		}
		task()
	}
}

// Pending returns the number of queued tasks.
func (l *Loop) Pending() int {
	return l.tasks.Len()
}

// Handler wraps h so that each callback is pushed to loop rather than run on
// the calling goroutine. Ordering between callbacks is preserved.
func Handler(loop *Loop, h endpoint.Handler) endpoint.Handler {
	return &loopHandler{loop: loop, next: h}
}

type loopHandler struct {
	loop *Loop
	next endpoint.Handler
}

func (l *loopHandler) HandleRequest(id uint32, data []byte) {
	l.loop.Push(func() { l.next.HandleRequest(id, data) })
}

func (l *loopHandler) HandleResponse(id uint32, data []byte) {
	l.loop.Push(func() { l.next.HandleResponse(id, data) })
}

func (l *loopHandler) HandleNotification(data []byte) {
	l.loop.Push(func() { l.next.HandleNotification(data) })
}

func (l *loopHandler) HandleExit() {
	l.loop.Push(l.next.HandleExit)
}
