package server

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type connHandlerFunc func(c *Conn)

func (f connHandlerFunc) ServeConn(c *Conn) { f(c) }

func TestWorkerSurvivesHandlerPanic(t *testing.T) {
	q := NewConnQueue(2)
	served := make(chan string, 2)
	handler := connHandlerFunc(func(c *Conn) {
		if c.ID == "boom" {
			panic("handler exploded")
		}
		served <- c.ID
	})

	pool := NewWorkerPool(1, q, handler, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	boom, boomPeer := pipeConn(t, "boom")
	ok, _ := pipeConn(t, "ok")
	require.NoError(t, q.Enqueue(context.Background(), boom))
	require.NoError(t, q.Enqueue(context.Background(), ok))

	select {
	case id := <-served:
		assert.Equal(t, "ok", id)
	case <-time.After(2 * time.Second):
		t.Fatal("worker stopped after a handler panic")
	}

	// The panicking connection was still closed.
	_, err := boomPeer.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop on cancel")
	}
}

func TestWorkerPoolServesEachConnectionOnce(t *testing.T) {
	const conns = 20
	q := NewConnQueue(3)
	served := make(chan string, conns)
	pool := NewWorkerPool(3, q, connHandlerFunc(func(c *Conn) { served <- c.ID }), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pool.Run(ctx)

	want := make(map[string]bool)
	for i := 0; i < conns; i++ {
		c, _ := pipeConn(t, string(rune('a'+i)))
		want[c.ID] = true
		require.NoError(t, q.Enqueue(context.Background(), c))
	}

	for i := 0; i < conns; i++ {
		select {
		case id := <-served:
			assert.True(t, want[id], "unexpected or duplicate id %q", id)
			delete(want, id)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for workers")
		}
	}
	assert.Empty(t, want)
}
