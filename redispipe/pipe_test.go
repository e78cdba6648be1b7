package redispipe_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxsml/ubinder/config"
	"github.com/fxsml/ubinder/endpoint"
	"github.com/fxsml/ubinder/message"
	"github.com/fxsml/ubinder/redispipe"
	"github.com/fxsml/ubinder/wire"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redispipe.NewClient(redispipe.Config{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return srv, client
}

func TestPipe_FIFO(t *testing.T) {
	_, client := newClient(t)
	p := redispipe.New(client, redispipe.Config{Key: "fifo"})
	ctx := context.Background()

	for i := range uint32(5) {
		require.NoError(t, p.Push(ctx, message.NewRequest(i, []byte{byte(i)})))
	}
	n, err := p.Len(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)

	for i := range uint32(5) {
		msg, err := p.Get(ctx)
		require.NoError(t, err)
		id, _ := msg.CorrelationID()
		assert.Equal(t, i, id)
		assert.Equal(t, []byte{byte(i)}, msg.Payload())
	}
}

func TestPipe_GetBlocks(t *testing.T) {
	_, client := newClient(t)
	p := redispipe.New(client, redispipe.Config{Key: "blocking"})

	got := make(chan message.Message, 1)
	go func() {
		msg, err := p.Get(context.Background())
		if err == nil {
			got <- msg
		}
	}()

	select {
	case <-got:
		t.Fatal("Get returned before Push")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, p.Push(context.Background(), message.NewNotification([]byte("late"))))
	select {
	case msg := <-got:
		assert.Equal(t, "late", string(msg.Payload()))
	case <-time.After(3 * time.Second):
		t.Fatal("Get did not return")
	}
}

func TestPipe_GetContext(t *testing.T) {
	_, client := newClient(t)
	p := redispipe.New(client, redispipe.Config{Key: "empty"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Get(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	exit := p.PullFunc(ctx)()
	assert.Equal(t, message.KindExit, exit.Kind())
}

func TestPipe_Malformed(t *testing.T) {
	srv, client := newClient(t)
	p := redispipe.New(client, redispipe.Config{Key: "bad"})

	_, err := srv.Lpush("bad", "\x09")
	require.NoError(t, err)
	_, err = p.Get(context.Background())
	assert.ErrorIs(t, err, wire.ErrMalformed)
}

func TestPipe_Endpoints(t *testing.T) {
	_, client := newClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a2b := redispipe.New(client, redispipe.Config{Key: "a2b"})
	b2a := redispipe.New(client, redispipe.Config{Key: "b2a"})

	responses := make(chan []byte, 1)
	var b *endpoint.Endpoint
	b = endpoint.New(b2a.PushFunc(ctx), a2b.PullFunc(ctx), endpoint.HandlerFuncs{
		OnRequest: func(id uint32, data []byte) { _ = b.SendResponse(id, append(data, 4)) },
	}, endpoint.Config{Name: "b"})
	a := endpoint.New(a2b.PushFunc(ctx), b2a.PullFunc(ctx), endpoint.HandlerFuncs{
		OnResponse: func(id uint32, data []byte) {
			if id == 42 {
				responses <- data
			}
		},
	}, endpoint.Config{Name: "a"})
	require.NoError(t, a.StartListen())
	require.NoError(t, b.StartListen())

	require.NoError(t, a.SendRequest(42, []byte{1, 2, 3}))
	select {
	case data := <-responses:
		assert.Equal(t, []byte{1, 2, 3, 4}, data)
	case <-ctx.Done():
		t.Fatal("no response")
	}

	require.NoError(t, a.SendExit())
	for _, ep := range []*endpoint.Endpoint{a, b} {
		select {
		case <-ep.Done():
		case <-ctx.Done():
			t.Fatal("endpoint did not terminate")
		}
	}
}

func TestPipe_PushFuncStopsAfterFailure(t *testing.T) {
	_, client := newClient(t)
	p := redispipe.New(client, redispipe.Config{Key: "broken"})
	ctx := context.Background()
	push := p.PushFunc(ctx)

	push(message.NewNotification([]byte("first")))
	push(message.Message{})
	push(message.NewNotification([]byte("after")))

	n, err := p.Len(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	msg, err := p.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", string(msg.Payload()))

	// A fresh push func is unaffected.
	p.PushFunc(ctx)(message.NewNotification([]byte("again")))
	n, err = p.Len(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestConfig_FromEnv(t *testing.T) {
	t.Setenv("UBINDER_REDIS_ADDR", "redis:6380")
	t.Setenv("UBINDER_REDIS_KEY", "jobs")
	t.Setenv("UBINDER_REDIS_POLL_INTERVAL", "2s")

	var cfg redispipe.Config
	require.NoError(t, config.Load("redis", &cfg))
	assert.Equal(t, "redis:6380", cfg.Addr)
	assert.Equal(t, "jobs", cfg.Key)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
}
