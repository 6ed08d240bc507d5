package server

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

// shortWriter accepts at most max bytes per call.
type shortWriter struct {
	buf   bytes.Buffer
	max   int
	calls int
}

func (w *shortWriter) Write(p []byte) (int, error) {
	w.calls++
	if len(p) > w.max {
		p = p[:w.max]
	}
	return w.buf.Write(p)
}

type stuckWriter struct{}

func (stuckWriter) Write([]byte) (int, error) { return 0, nil }

type failingWriter struct{ after int }

func (w *failingWriter) Write(p []byte) (int, error) {
	if len(p) > w.after {
		n := w.after
		w.after = 0
		return n, errors.New("connection reset by peer")
	}
	w.after -= len(p)
	return len(p), nil
}

func TestOkHeader(t *testing.T) {
	assert.Equal(t, "HTTP/1.1 200 OK\r\nContent-Length: 4\r\n\r\n", string(okHeader(4)))
	assert.Equal(t, "HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n", string(okHeader(0)))
	assert.Len(t, okHeader(4), 38)
}

func TestWriteFullRetriesShortWrites(t *testing.T) {
	w := &shortWriter{max: 3}
	payload := []byte("a payload longer than one write")

	n, err := writeFull(w, payload)
	assert.NoError(t, err)
	assert.Equal(t, len(payload), n)
	assert.Equal(t, payload, w.buf.Bytes())
	assert.Equal(t, (len(payload)+2)/3, w.calls)
}

func TestWriteFullZeroProgress(t *testing.T) {
	n, err := writeFull(stuckWriter{}, []byte("x"))
	assert.ErrorIs(t, err, io.ErrShortWrite)
	assert.Equal(t, 0, n)
}

func TestWriteFullTransportFault(t *testing.T) {
	n, err := writeFull(&failingWriter{after: 5}, []byte("0123456789"))
	assert.Error(t, err)
	assert.Equal(t, 5, n)
}
