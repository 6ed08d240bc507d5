package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Byte kinds passed to RecordBytes.
const (
	BytesHeader = "header"
	BytesBody   = "body"
	BytesError  = "error"
)

// ServerMetrics mirrors the request server's activity.
type ServerMetrics interface {
	// RecordRequest counts one finished request by command and status code.
	RecordRequest(command, status string)
	RecordBytes(kind string, n int)
	SetQueueDepth(n int)
	RecordAccept()
	RecordPanic()
}

type serverMetrics struct {
	requestsTotal       *prometheus.CounterVec
	bytesSent           *prometheus.CounterVec
	queueDepth          prometheus.Gauge
	connectionsAccepted prometheus.Counter
	handlerPanics       prometheus.Counter
}

// NewServerMetrics returns a Prometheus-backed ServerMetrics, or a no-op one
// when the registry has not been initialised.
func NewServerMetrics() ServerMetrics {
	if !IsEnabled() {
		return NewNoopServerMetrics()
	}
	return newServerMetrics(GetRegistry())
}

func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	return &serverMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "poolserver_requests_total",
				Help: "Total number of requests by command and status",
			},
			[]string{"command", "status"},
		),
		bytesSent: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "poolserver_bytes_sent_total",
				Help: "Total bytes written to clients by kind (header, body, error)",
			},
			[]string{"kind"},
		),
		queueDepth: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "poolserver_queue_depth",
				Help: "Connections waiting in the bounded queue",
			},
		),
		connectionsAccepted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "poolserver_connections_accepted_total",
				Help: "Total accepted connections",
			},
		),
		handlerPanics: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "poolserver_handler_panics_total",
				Help: "Handler panics recovered by workers",
			},
		),
	}
}

func (m *serverMetrics) RecordRequest(command, status string) {
	m.requestsTotal.WithLabelValues(command, status).Inc()
}

func (m *serverMetrics) RecordBytes(kind string, n int) {
	if n <= 0 {
		return
	}
	m.bytesSent.WithLabelValues(kind).Add(float64(n))
}

func (m *serverMetrics) SetQueueDepth(n int) {
	m.queueDepth.Set(float64(n))
}

func (m *serverMetrics) RecordAccept() {
	m.connectionsAccepted.Inc()
}

func (m *serverMetrics) RecordPanic() {
	m.handlerPanics.Inc()
}

type noopServerMetrics struct{}

// NewNoopServerMetrics returns a ServerMetrics that discards everything.
func NewNoopServerMetrics() ServerMetrics {
	return noopServerMetrics{}
}

func (noopServerMetrics) RecordRequest(string, string) {}
func (noopServerMetrics) RecordBytes(string, int) {}
func (noopServerMetrics) SetQueueDepth(int) {}
func (noopServerMetrics) RecordAccept() {}
func (noopServerMetrics) RecordPanic() {}
