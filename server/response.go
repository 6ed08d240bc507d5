package server

import (
	"bytes"
	"io"
	"strconv"

	"github.com/codetesla51/poolserver/metrics"
)

// Status codes reported to the access log and metrics.
const (
	statusOK         = "200"
	statusBadRequest = "400"
	statusNotFound   = "404"
)

// Error responses are a bare status line with no headers or body.
const (
	notFoundResponse   = "HTTP/1.1 404 Not Found"
	badRequestResponse = "HTTP/1.1 400 Bad Request"
)

// okHeader builds "HTTP/1.1 200 OK\r\nContent-Length: n\r\n\r\n".
func okHeader(n int64) []byte {
	buf := headerBufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	defer func() {
		if buf.Cap() <= maxPoolBufferSize {
			headerBufferPool.Put(buf)
		}
	}()

	buf.WriteString("HTTP/1.1 200 OK")
	buf.WriteString("\r\nContent-Length: ")
	buf.WriteString(strconv.FormatInt(n, 10))
	buf.WriteString("\r\n\r\n")

	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result
}

// writeFull writes p, retrying short writes until every byte is accepted or
// w reports an error. A zero-byte write without an error is treated as
// io.ErrShortWrite.
func writeFull(w io.Writer, p []byte) (int, error) {
	total := 0
	for total < len(p) {
		n, err := w.Write(p[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.ErrShortWrite
		}
	}
	return total, nil
}

func (h *Handler) write(c *Conn, p []byte) error {
	c.setWriteDeadline(h.config.WriteTimeout)
	_, err := writeFull(c, p)
	return err
}

// sendResponse writes the 200 header and body as two writes and counts the
// request once both are complete.
func (h *Handler) sendResponse(c *Conn, body []byte) error {
	head := okHeader(int64(len(body)))
	if err := h.write(c, head); err != nil {
		return err
	}
	if err := h.write(c, body); err != nil {
		return err
	}

	h.stats.RecordResponse(len(head), len(body))
	h.metrics.RecordBytes(metrics.BytesHeader, len(head))
	h.metrics.RecordBytes(metrics.BytesBody, len(body))
	return nil
}

// sendError writes a bare error status line and counts it.
func (h *Handler) sendError(c *Conn, response string) error {
	if err := h.write(c, []byte(response)); err != nil {
		return err
	}
	h.stats.RecordError(len(response))
	h.metrics.RecordBytes(metrics.BytesError, len(response))
	return nil
}

func (h *Handler) badRequest(c *Conn) (string, error) {
	return statusBadRequest, h.sendError(c, badRequestResponse)
}

func (h *Handler) notFound(c *Conn) (string, error) {
	return statusNotFound, h.sendError(c, notFoundResponse)
}
