package rpc_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxsml/ubinder"
	"github.com/fxsml/ubinder/endpoint"
	"github.com/fxsml/ubinder/rpc"
)

func echo(_ context.Context, data []byte) ([]byte, error) {
	return bytes.ToUpper(data), nil
}

// connect builds a binding with an rpc Peer on each side.
func connect(t *testing.T, clientCfg, serverCfg rpc.Config) (*rpc.Peer, *rpc.Peer, *ubinder.Channel) {
	t.Helper()
	client := rpc.NewPeer(clientCfg)
	b := ubinder.New(func(out ubinder.Sender) endpoint.Handler {
		client.Attach(out)
		return client
	}, ubinder.Config{})

	server := rpc.NewPeer(serverCfg)
	ch, err := b.Register(server)
	require.NoError(t, err)
	server.Attach(ch)
	require.NoError(t, ch.StartListen())
	return client, server, ch
}

func TestPeer_Call(t *testing.T) {
	client, _, ch := connect(t, rpc.Config{}, rpc.Config{Serve: echo})
	defer func() { require.NoError(t, ch.Exit()) }()

	resp, err := client.Call(context.Background(), []byte("ping"))
	require.NoError(t, err)
	assert.Equal(t, "PING", string(resp))
	assert.Zero(t, client.Pending())
}

func TestPeer_CallFromServerSide(t *testing.T) {
	_, server, ch := connect(t, rpc.Config{Serve: echo}, rpc.Config{})
	defer func() { require.NoError(t, ch.Exit()) }()

	resp, err := server.Call(context.Background(), []byte("pong"))
	require.NoError(t, err)
	assert.Equal(t, "PONG", string(resp))
}

func TestPeer_ConcurrentCalls(t *testing.T) {
	client, server, ch := connect(t,
		rpc.Config{MaxInFlight: 8, Serve: echo},
		rpc.Config{Serve: echo, ServeConcurrently: true},
	)
	defer func() { require.NoError(t, ch.Exit()) }()

	var wg sync.WaitGroup
	for i := range 200 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			req := fmt.Sprintf("client-%d", i)
			resp, err := client.Call(context.Background(), []byte(req))
			assert.NoError(t, err)
			assert.Equal(t, bytes.ToUpper([]byte(req)), resp)
		}()
		go func() {
			defer wg.Done()
			req := fmt.Sprintf("server-%d", i)
			resp, err := server.Call(context.Background(), []byte(req))
			assert.NoError(t, err)
			assert.Equal(t, bytes.ToUpper([]byte(req)), resp)
		}()
	}
	wg.Wait()
}

func TestPeer_Timeout(t *testing.T) {
	block := make(chan struct{})
	client, _, ch := connect(t,
		rpc.Config{Timeout: 20 * time.Millisecond},
		rpc.Config{Serve: func(ctx context.Context, data []byte) ([]byte, error) {
			select {
			case <-block:
			case <-ctx.Done():
			}
			return data, nil
		}, ServeConcurrently: true},
	)

	_, err := client.Call(context.Background(), []byte("slow"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, client.Pending())

	close(block)
	require.NoError(t, ch.Exit())
}

func TestPeer_Go(t *testing.T) {
	client, _, ch := connect(t, rpc.Config{}, rpc.Config{Serve: echo})
	defer func() { require.NoError(t, ch.Exit()) }()

	got := make(chan string, 1)
	client.Go(context.Background(), []byte("async"), func(resp []byte, err error) {
		assert.NoError(t, err)
		got <- string(resp)
	})

	select {
	case resp := <-got:
		assert.Equal(t, "ASYNC", resp)
	case <-time.After(time.Second):
		t.Fatal("callback not invoked")
	}
}

func TestPeer_ServeError(t *testing.T) {
	client, _, ch := connect(t, rpc.Config{}, rpc.Config{
		Serve: func(context.Context, []byte) ([]byte, error) {
			return []byte("ignored"), errors.New("bad request")
		},
	})
	defer func() { require.NoError(t, ch.Exit()) }()

	resp, err := client.Call(context.Background(), []byte("x"))
	require.NoError(t, err)
	assert.Empty(t, resp)
}

func TestPeer_ForwardsToNext(t *testing.T) {
	notes := make(chan string, 1)
	requests := make(chan uint32, 1)
	exits := make(chan struct{}, 1)
	_, _, ch := connect(t, rpc.Config{Next: endpoint.HandlerFuncs{
		OnNotification: func(data []byte) { notes <- string(data) },
		OnRequest:      func(id uint32, _ []byte) { requests <- id },
		OnExit:         func() { exits <- struct{}{} },
	}}, rpc.Config{})

	require.NoError(t, ch.SendNotification([]byte("note")))
	require.NoError(t, ch.SendRequest(9, nil))
	assert.Equal(t, "note", <-notes)
	assert.Equal(t, uint32(9), <-requests)

	require.NoError(t, ch.Exit())
	select {
	case <-exits:
	default:
		t.Fatal("exit not forwarded")
	}
}

func TestPeer_CloseFailsPending(t *testing.T) {
	client, _, ch := connect(t, rpc.Config{}, rpc.Config{
		Next: endpoint.HandlerFuncs{}, // requests are swallowed, never answered
	})

	errCh := make(chan error, 1)
	go func() {
		_, err := client.Call(context.Background(), []byte("lost"))
		errCh <- err
	}()
	require.Eventually(t, func() bool { return client.Pending() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, ch.Exit())
	assert.ErrorIs(t, <-errCh, rpc.ErrClosed)

	_, err := client.Call(context.Background(), nil)
	assert.ErrorIs(t, err, rpc.ErrClosed)
}

func TestPeer_NotAttached(t *testing.T) {
	p := rpc.NewPeer(rpc.Config{})
	_, err := p.Call(context.Background(), nil)
	assert.ErrorIs(t, err, rpc.ErrNotAttached)
}

func TestPeer_UnmatchedResponseDropped(t *testing.T) {
	p := rpc.NewPeer(rpc.Config{})
	assert.NotPanics(t, func() { p.HandleResponse(123, []byte("stray")) })
	assert.Zero(t, p.Pending())
}
