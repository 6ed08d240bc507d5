package server

import (
	"errors"

	"github.com/codetesla51/poolserver/logger"
)

// maxEchoSize caps the echoed header block.
const maxEchoSize = 1024

var pongBody = []byte("pong")

func (h *Handler) handlePing(c *Conn, _ *Request) (string, error) {
	return statusOK, h.sendResponse(c, pongBody)
}

// handleEcho returns the header lines following the request line verbatim.
func (h *Handler) handleEcho(c *Conn, req *Request) (string, error) {
	body := req.HeaderBlock()
	if len(body) > maxEchoSize {
		body = body[:maxEchoSize]
	}
	return statusOK, h.sendResponse(c, body)
}

// handleWrite stores up to StoredBufferSize body bytes and answers like read.
func (h *Handler) handleWrite(c *Conn, req *Request) (string, error) {
	length, err := req.ContentLength()
	if err != nil {
		logger.Debug("write rejected", "conn", c.ID, "error", err)
		return h.badRequest(c)
	}
	length = min(length, StoredBufferSize)

	c.setReadDeadline(h.config.ReadTimeout)
	body, err := req.readBody(c, length)
	if err != nil {
		if errors.Is(err, ErrBadRequest) {
			logger.Debug("write rejected", "conn", c.ID, "error", err)
			return h.badRequest(c)
		}
		return "", err
	}

	h.buffer.Store(body)
	return h.handleRead(c, req)
}

func (h *Handler) handleRead(c *Conn, _ *Request) (string, error) {
	return statusOK, h.sendResponse(c, h.buffer.Load())
}

func (h *Handler) handleStats(c *Conn, _ *Request) (string, error) {
	return statusOK, h.sendResponse(c, h.stats.Snapshot().Body())
}
