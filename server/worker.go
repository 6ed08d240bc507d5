package server

import (
	"context"

	"github.com/codetesla51/poolserver/logger"
	"github.com/codetesla51/poolserver/metrics"
	"github.com/sourcegraph/conc/panics"
	"golang.org/x/sync/errgroup"
)

// ConnHandler serves a single connection without closing it.
type ConnHandler interface {
	ServeConn(c *Conn)
}

// WorkerPool runs a fixed number of workers draining a ConnQueue.
type WorkerPool struct {
	size    int
	queue   *ConnQueue
	handler ConnHandler
	metrics metrics.ServerMetrics
}

func NewWorkerPool(size int, queue *ConnQueue, handler ConnHandler, m metrics.ServerMetrics) *WorkerPool {
	if m == nil {
		m = metrics.NewNoopServerMetrics()
	}
	return &WorkerPool{
		size:    size,
		queue:   queue,
		handler: handler,
		metrics: m,
	}
}

// Run starts the workers and blocks until ctx is cancelled and every worker
// has finished its current connection.
func (p *WorkerPool) Run(ctx context.Context) error {
	var g errgroup.Group
	for i := 0; i < p.size; i++ {
		id := i
		g.Go(func() error {
			p.work(ctx, id)
			return nil
		})
	}
	return g.Wait()
}

// work is the loop of one worker: dequeue, serve, close.
func (p *WorkerPool) work(ctx context.Context, id int) {
	logger.Debug("worker started", "worker", id)
	for {
		c, err := p.queue.Dequeue(ctx)
		if err != nil {
			logger.Debug("worker stopped", "worker", id)
			return
		}
		p.metrics.SetQueueDepth(p.queue.Len())
		p.process(id, c)
	}
}

// process serves c and always closes it. A panic is contained to c.
func (p *WorkerPool) process(id int, c *Conn) {
	defer c.closeGracefully()

	var catcher panics.Catcher
	catcher.Try(func() { p.handler.ServeConn(c) })

	if r := catcher.Recovered(); r != nil {
		p.metrics.RecordPanic()
		logger.Error("handler panic recovered",
			"worker", id, "conn", c.ID, "panic", r.Value, "stack", string(r.Stack))
	}
}
