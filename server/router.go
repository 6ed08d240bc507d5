package server

import (
	"bytes"
	"errors"

	"github.com/codetesla51/poolserver/logger"
	"github.com/codetesla51/poolserver/metrics"
	"github.com/spf13/afero"
)

// commandFunc answers one request and returns the status it sent. A non-nil
// error is a transport fault: the response is incomplete and the
// connection must simply be dropped.
type commandFunc func(h *Handler, c *Conn, req *Request) (string, error)

type route struct {
	command string
	match   func(firstLine []byte) bool
	handle  commandFunc
}

func exactLine(line string) func([]byte) bool {
	return func(first []byte) bool {
		return string(first) == line
	}
}

var filePrefix = []byte("GET /")

// routes are tried in order; the first match wins.
var routes = []route{
	{command: "ping", match: exactLine("GET /ping HTTP/1.1"), handle: (*Handler).handlePing},
	{command: "echo", match: exactLine("GET /echo HTTP/1.1"), handle: (*Handler).handleEcho},
	{command: "write", match: exactLine("POST /write HTTP/1.1"), handle: (*Handler).handleWrite},
	{command: "read", match: exactLine("GET /read HTTP/1.1"), handle: (*Handler).handleRead},
	{command: "stats", match: exactLine("GET /stats HTTP/1.1"), handle: (*Handler).handleStats},
	{command: "file", match: func(first []byte) bool { return bytes.HasPrefix(first, filePrefix) }, handle: (*Handler).handleFile},
}

// Handler parses one request per connection and runs the matching command
// against the shared buffer and counters.
type Handler struct {
	config  *Config
	buffer  *StoredBuffer
	stats   *Stats
	files   afero.Fs
	metrics metrics.ServerMetrics
}

// NewHandler wires a Handler. A nil m disables metrics.
func NewHandler(config *Config, buffer *StoredBuffer, stats *Stats, files afero.Fs, m metrics.ServerMetrics) *Handler {
	if m == nil {
		m = metrics.NewNoopServerMetrics()
	}
	return &Handler{
		config:  config,
		buffer:  buffer,
		stats:   stats,
		files:   files,
		metrics: m,
	}
}

// ServeConn receives one request from c and answers it. It does not close c.
func (h *Handler) ServeConn(c *Conn) {
	log := logger.With("conn", c.ID)

	c.setReadDeadline(h.config.ReadTimeout)
	req, err := readRequest(c, h.config.MaxRequestSize)
	if err != nil {
		if !errors.Is(err, ErrRequestTooLarge) {
			log.Debug("connection released without request", "error", err)
			return
		}
		log.Debug("rejecting oversized request", "limit", h.config.MaxRequestSize)
		status, err := h.badRequest(c)
		h.finish(c, "error", "-", status, err)
		return
	}

	command, status, err := h.dispatch(c, req)
	h.finish(c, command, string(req.FirstLine()), status, err)
}

// dispatch routes req to its command, falling back to a 400.
func (h *Handler) dispatch(c *Conn, req *Request) (string, string, error) {
	first := req.FirstLine()
	for _, r := range routes {
		if r.match(first) {
			status, err := r.handle(h, c, req)
			return r.command, status, err
		}
	}
	status, err := h.badRequest(c)
	return "error", status, err
}

func (h *Handler) finish(c *Conn, command, line, status string, err error) {
	if err != nil {
		logger.Warn("transport fault, dropping connection",
			"conn", c.ID, "command", command, "error", err)
		status = "aborted"
	}
	h.metrics.RecordRequest(command, status)
	if h.config.EnableLogging {
		logRequest(command, line, status)
	}
}
