package server

import (
	"io"
	"net"
	"time"

	"github.com/google/uuid"
)

// Conn is an accepted connection plus the id used to correlate its log lines.
// It is owned by exactly one component at a time: the acceptor, the queue,
// then a single worker.
type Conn struct {
	net.Conn
	ID       string
	Accepted time.Time
}

const (
	// lingerTimeout bounds how long closeGracefully waits for the peer.
	lingerTimeout = 500 * time.Millisecond
	// lingerLimit bounds how much unread input closeGracefully discards.
	lingerLimit = 256 << 10
)

func newConn(c net.Conn) *Conn {
	return &Conn{
		Conn:     c,
		ID:       uuid.NewString(),
		Accepted: time.Now(),
	}
}

func (c *Conn) setReadDeadline(d time.Duration) {
	if d > 0 {
		_ = c.SetReadDeadline(time.Now().Add(d))
	}
}

func (c *Conn) setWriteDeadline(d time.Duration) {
	if d > 0 {
		_ = c.SetWriteDeadline(time.Now().Add(d))
	}
}

// closeGracefully closes c without discarding a response the peer has not
// read yet. Closing a TCP socket with unread input makes the kernel send a
// reset, so the write side is shut first and the remaining input drained,
// up to lingerLimit bytes or lingerTimeout, before the final Close.
func (c *Conn) closeGracefully() error {
	cw, ok := c.Conn.(interface{ CloseWrite() error })
	if !ok {
		return c.Close()
	}
	if err := cw.CloseWrite(); err != nil {
		return c.Close()
	}
	_ = c.SetReadDeadline(time.Now().Add(lingerTimeout))
	_, _ = io.Copy(io.Discard, io.LimitReader(c.Conn, lingerLimit))
	return c.Close()
}
