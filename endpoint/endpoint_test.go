package endpoint_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxsml/ubinder/endpoint"
	"github.com/fxsml/ubinder/message"
	"github.com/fxsml/ubinder/pipe"
)

type event struct {
	kind message.Kind
	id   uint32
	data []byte
}

// recorder forwards every handler call to a channel.
type recorder struct {
	events chan event
}

func newRecorder() *recorder {
	return &recorder{events: make(chan event, 100)}
}

func (r *recorder) HandleRequest(id uint32, data []byte) {
	r.events <- event{message.KindRequest, id, data}
}

func (r *recorder) HandleResponse(id uint32, data []byte) {
	r.events <- event{message.KindResponse, id, data}
}

func (r *recorder) HandleNotification(data []byte) {
	r.events <- event{message.KindNotification, 0, data}
}

func (r *recorder) HandleExit() {
	r.events <- event{kind: message.KindExit}
}

func (r *recorder) next(t *testing.T) event {
	t.Helper()
	select {
	case ev := <-r.events:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for handler call")
		return event{}
	}
}

func (r *recorder) none(t *testing.T) {
	t.Helper()
	select {
	case ev := <-r.events:
		t.Fatalf("unexpected handler call: %v", ev.kind)
	case <-time.After(30 * time.Millisecond):
	}
}

// pair wires two endpoints over two pipes the way a binding does.
func pair(a, b endpoint.Handler) (*endpoint.Endpoint, *endpoint.Endpoint) {
	ab := pipe.New[message.Message]()
	ba := pipe.New[message.Message]()
	epA := endpoint.New(ab.Push, ba.Get, a, endpoint.Config{Name: "a"})
	epB := endpoint.New(ba.Push, ab.Get, b, endpoint.Config{Name: "b"})
	return epA, epB
}

func waitDone(t *testing.T, ep *endpoint.Endpoint) {
	t.Helper()
	select {
	case <-ep.Done():
	case <-time.After(time.Second):
		t.Fatal("endpoint did not terminate")
	}
}

func TestEndpoint_RoundTrip(t *testing.T) {
	recA, recB := newRecorder(), newRecorder()
	a, b := pair(recA, recB)
	require.NoError(t, a.StartListen())
	require.NoError(t, b.StartListen())

	require.NoError(t, a.SendRequest(42, []byte{1, 2, 3}))
	ev := recB.next(t)
	assert.Equal(t, message.KindRequest, ev.kind)
	assert.Equal(t, uint32(42), ev.id)
	assert.Equal(t, []byte{1, 2, 3}, ev.data)

	require.NoError(t, b.SendResponse(42, []byte("ok")))
	ev = recA.next(t)
	assert.Equal(t, message.KindResponse, ev.kind)
	assert.Equal(t, uint32(42), ev.id)
	assert.Equal(t, "ok", string(ev.data))

	recA.none(t)
	recB.none(t)
}

func TestEndpoint_DirectionIndependence(t *testing.T) {
	recA, recB := newRecorder(), newRecorder()
	a, b := pair(recA, recB)
	require.NoError(t, a.StartListen())
	require.NoError(t, b.StartListen())

	require.NoError(t, b.SendNotification([]byte("note")))

	ev := recA.next(t)
	assert.Equal(t, message.KindNotification, ev.kind)
	assert.Equal(t, "note", string(ev.data))
	recA.none(t)
	recB.none(t)
}

func TestEndpoint_OrderPreserved(t *testing.T) {
	recA, recB := newRecorder(), newRecorder()
	a, b := pair(recA, recB)
	require.NoError(t, b.StartListen())

	for i := range 50 {
		require.NoError(t, a.SendRequest(uint32(i), nil))
	}
	for i := range 50 {
		assert.Equal(t, uint32(i), recB.next(t).id)
	}
}

func TestEndpoint_ExitHandshake(t *testing.T) {
	recA, recB := newRecorder(), newRecorder()
	a, b := pair(recA, recB)
	require.NoError(t, a.StartListen())
	require.NoError(t, b.StartListen())
	assert.Equal(t, endpoint.StateListening, a.State())

	require.NoError(t, a.SendExit())

	waitDone(t, b)
	waitDone(t, a)
	assert.Equal(t, message.KindExit, recB.next(t).kind)
	assert.Equal(t, message.KindExit, recA.next(t).kind)
	recA.none(t)
	recB.none(t)
	assert.Equal(t, endpoint.StateTerminated, a.State())
	assert.Equal(t, endpoint.StateTerminated, b.State())

	assert.ErrorIs(t, a.SendNotification(nil), endpoint.ErrExitSent)
	assert.ErrorIs(t, b.SendRequest(1, nil), endpoint.ErrExitSent)
}

func TestEndpoint_ContractViolations(t *testing.T) {
	a, _ := pair(newRecorder(), newRecorder())

	require.NoError(t, a.StartListen())
	assert.ErrorIs(t, a.StartListen(), endpoint.ErrAlreadyListening)

	require.NoError(t, a.SendExit())
	assert.ErrorIs(t, a.SendExit(), endpoint.ErrExitSent)
	assert.ErrorIs(t, a.SendResponse(1, nil), endpoint.ErrExitSent)
}

func TestDispatch(t *testing.T) {
	t.Run("nil funcs are ignored", func(t *testing.T) {
		h := endpoint.HandlerFuncs{}
		assert.False(t, endpoint.Dispatch(h, message.NewRequest(1, nil)))
		assert.False(t, endpoint.Dispatch(h, message.NewNotification(nil)))
		assert.True(t, endpoint.Dispatch(h, message.NewExit()))
	})

	t.Run("invalid kind panics", func(t *testing.T) {
		assert.Panics(t, func() {
			endpoint.Dispatch(endpoint.HandlerFuncs{}, message.Message{})
		})
	})
}

func TestRecover(t *testing.T) {
	var reported []*endpoint.RecoveryError
	h := endpoint.Recover(endpoint.HandlerFuncs{
		OnRequest: func(uint32, []byte) { panic("boom") },
		OnExit:    func() { panic(errors.New("exit boom")) },
	}, func(err *endpoint.RecoveryError) {
		reported = append(reported, err)
	})

	assert.NotPanics(t, func() {
		h.HandleRequest(1, nil)
		h.HandleNotification(nil)
		h.HandleExit()
	})

	require.Len(t, reported, 2)
	assert.Equal(t, "request", reported[0].Kind)
	assert.Equal(t, "boom", reported[0].PanicValue)
	assert.NotEmpty(t, reported[0].StackTrace)
	assert.Contains(t, reported[1].Error(), "exit boom")
}
