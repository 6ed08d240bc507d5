package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipeConn(t *testing.T, id string) (*Conn, net.Conn) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return &Conn{Conn: a, ID: id}, b
}

func TestConnQueueFIFO(t *testing.T) {
	q := NewConnQueue(3)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		c, _ := pipeConn(t, id)
		require.NoError(t, q.Enqueue(ctx, c))
	}

	for _, want := range []string{"a", "b", "c"} {
		c, err := q.Dequeue(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, c.ID)
	}
}

func TestConnQueueBlocksWhenFull(t *testing.T) {
	q := NewConnQueue(2)
	for _, id := range []string{"a", "b"} {
		c, _ := pipeConn(t, id)
		require.NoError(t, q.Enqueue(context.Background(), c))
	}
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, 0, q.Free())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	extra, _ := pipeConn(t, "c")
	err := q.Enqueue(ctx, extra)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, q.Len())
}

func TestConnQueueBlocksWhenEmpty(t *testing.T) {
	q := NewConnQueue(1)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	c, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, c)
	assert.Equal(t, 1, q.Free())
}

func TestConnQueueEnqueueUnblocksAfterDequeue(t *testing.T) {
	q := NewConnQueue(1)
	first, _ := pipeConn(t, "first")
	second, _ := pipeConn(t, "second")
	require.NoError(t, q.Enqueue(context.Background(), first))

	done := make(chan error, 1)
	go func() {
		done <- q.Enqueue(context.Background(), second)
	}()

	select {
	case <-done:
		t.Fatal("enqueue returned while queue was full")
	case <-time.After(20 * time.Millisecond):
	}

	got, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", got.ID)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("enqueue did not resume after a slot was freed")
	}

	got, err = q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "second", got.ID)
}

func TestConnQueueConcurrentInvariant(t *testing.T) {
	const (
		capacity  = 4
		producers = 4
		perProd   = 100
	)
	q := NewConnQueue(capacity)
	ctx := context.Background()

	var seen sync.Map
	var wg sync.WaitGroup

	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProd; i++ {
				c := &Conn{ID: fmt.Sprintf("%d-%d", p, i)}
				if err := q.Enqueue(ctx, c); err != nil {
					t.Error(err)
					return
				}
			}
		}(p)
	}

	var consumed sync.WaitGroup
	total := producers * perProd
	results := make(chan string, total)
	for w := 0; w < capacity; w++ {
		consumed.Add(1)
		go func() {
			defer consumed.Done()
			for {
				dctx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
				c, err := q.Dequeue(dctx)
				cancel()
				if err != nil {
					return
				}
				if n := q.Len(); n < 0 || n > capacity {
					t.Errorf("queue length %d out of range", n)
				}
				results <- c.ID
			}
		}()
	}

	wg.Wait()
	consumed.Wait()
	close(results)

	count := 0
	for id := range results {
		_, dup := seen.LoadOrStore(id, true)
		assert.False(t, dup, "connection %s dequeued twice", id)
		count++
	}
	assert.Equal(t, total, count)
	assert.Equal(t, capacity, q.Len()+q.Free())
	assert.Equal(t, 0, q.Len())
}

func TestConnQueueDrainClosesQueued(t *testing.T) {
	q := NewConnQueue(3)
	var peers []net.Conn
	for _, id := range []string{"a", "b"} {
		c, peer := pipeConn(t, id)
		peers = append(peers, peer)
		require.NoError(t, q.Enqueue(context.Background(), c))
	}

	assert.Equal(t, 2, q.Drain())
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 3, q.Free())

	for _, peer := range peers {
		_, err := peer.Read(make([]byte, 1))
		assert.Error(t, err)
	}

	// Slots released by Drain are usable again.
	c, _ := pipeConn(t, "c")
	require.NoError(t, q.Enqueue(context.Background(), c))
}

func TestNewConnQueueRejectsZeroCapacity(t *testing.T) {
	assert.Panics(t, func() { NewConnQueue(0) })
}
