package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/codetesla51/poolserver/config"
	"github.com/codetesla51/poolserver/logger"
	"github.com/codetesla51/poolserver/metrics"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Server ties a listener to the bounded queue and the worker pool.
type Server struct {
	listener net.Listener
	config   *Config
	queue    *ConnQueue
	pool     *WorkerPool
	handler  *Handler
	buffer   *StoredBuffer
	stats    *Stats
	limiter  *rate.Limiter
	metrics  metrics.ServerMetrics
	files    afero.Fs

	closeOnce sync.Once
	closeErr  error
}

// Option customises a Server built by New.
type Option func(*Server)

// WithConfig replaces DefaultConfig.
func WithConfig(cfg *Config) Option {
	return func(s *Server) {
		c := *cfg
		s.config = &c
	}
}

// WithMetrics mirrors activity into m.
func WithMetrics(m metrics.ServerMetrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithFileSystem serves file requests from fs instead of Config.FileRoot.
func WithFileSystem(fs afero.Fs) Option {
	return func(s *Server) { s.files = fs }
}

// CreateServerSocket binds 127.0.0.1:port and prepares a pool of workers.
// Port 0 picks a free port.
func CreateServerSocket(port, workers int, opts ...Option) (*Server, error) {
	return Listen(config.DefaultHost, port, workers, opts...)
}

// Listen binds host:port and prepares a pool of workers.
func Listen(host string, port, workers int, opts ...Option) (*Server, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("listen on %s:%d: %w", host, port, err)
	}
	s, err := New(ln, workers, opts...)
	if err != nil {
		ln.Close()
		return nil, err
	}
	return s, nil
}

// New builds a Server on an existing listener. Nothing runs until Serve.
func New(ln net.Listener, workers int, opts ...Option) (*Server, error) {
	if workers < 1 {
		return nil, fmt.Errorf("worker pool size must be at least 1, got %d", workers)
	}

	s := &Server{
		listener: ln,
		config:   DefaultConfig(),
		buffer:   NewStoredBuffer(),
		stats:    &Stats{},
	}
	for _, opt := range opts {
		opt(s)
	}

	defaults := DefaultConfig()
	if s.config.MaxRequestSize <= 0 {
		s.config.MaxRequestSize = defaults.MaxRequestSize
	}
	if s.config.FileChunkSize <= 0 {
		s.config.FileChunkSize = defaults.FileChunkSize
	}
	if s.metrics == nil {
		s.metrics = metrics.NewNoopServerMetrics()
	}
	if s.files == nil {
		s.files = NewFileSystem(s.config.FileRoot)
	}
	if s.config.AcceptRate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(s.config.AcceptRate), max(1, s.config.AcceptBurst))
	}

	s.queue = NewConnQueue(workers)
	s.handler = NewHandler(s.config, s.buffer, s.stats, s.files, s.metrics)
	s.pool = NewWorkerPool(workers, s.queue, s.handler, s.metrics)
	return s, nil
}

// AcceptClient accepts one connection and enqueues it, blocking while the
// queue is full. An accept failure is returned as-is and is fatal.
func (s *Server) AcceptClient(ctx context.Context) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	nc, err := s.listener.Accept()
	if err != nil {
		return fmt.Errorf("accept: %w", err)
	}

	c := newConn(nc)
	s.metrics.RecordAccept()
	logger.Debug("connection accepted", "conn", c.ID, "remote", nc.RemoteAddr().String())

	if err := s.queue.Enqueue(ctx, c); err != nil {
		c.Close()
		return err
	}
	s.metrics.SetQueueDepth(s.queue.Len())
	return nil
}

// Serve runs the workers and the accept loop until ctx is cancelled, Close
// is called, or accepting fails. Connections still queued at that point are
// closed unanswered. Only an accept failure is returned.
func (s *Server) Serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.pool.Run(ctx)
	})

	g.Go(func() error {
		<-ctx.Done()
		s.Close()
		return nil
	})

	g.Go(func() error {
		for {
			err := s.AcceptClient(ctx)
			if err == nil {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return errServerClosed
			}
			return err
		}
	})

	logger.Info("server accepting connections",
		"addr", s.Addr().String(), "workers", s.queue.Cap())

	err := g.Wait()
	if n := s.queue.Drain(); n > 0 {
		logger.Info("closed queued connections at shutdown", "count", n)
	}
	if errors.Is(err, errServerClosed) {
		return nil
	}
	return err
}

var errServerClosed = errors.New("server closed")

// Close stops accepting. It is safe to call more than once.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.listener.Close()
	})
	return s.closeErr
}

// Addr returns the listener's address, useful after binding port 0.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Stats returns the current counters.
func (s *Server) Stats() StatsSnapshot {
	return s.stats.Snapshot()
}
