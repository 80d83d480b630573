package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the Prometheus collectors for tool execution and RPC
// traffic. A nil *Recorder is valid and records nothing.
type Recorder struct {
	toolCalls    *prometheus.CounterVec
	toolDuration *prometheus.HistogramVec
	rpcRequests  *prometheus.CounterVec
	sessions     prometheus.Gauge
}

// NewRecorder creates the collectors and registers them with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mcp",
			Name:      "tool_calls_total",
			Help:      "Tool executions by tool name and outcome.",
		}, []string{"tool", "outcome"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mcp",
			Name:      "tool_duration_seconds",
			Help:      "Tool execution latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		rpcRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mcp",
			Name:      "rpc_requests_total",
			Help:      "Dispatched requests by method and response code (0 for success).",
		}, []string{"method", "code"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mcp",
			Name:      "open_sessions",
			Help:      "Currently open transport sessions.",
		}),
	}
	reg.MustRegister(r.toolCalls, r.toolDuration, r.rpcRequests, r.sessions)
	return r
}

// ObserveTool records one tool execution. outcome is "ok" or an error class.
func (r *Recorder) ObserveTool(tool, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.toolCalls.WithLabelValues(tool, outcome).Inc()
	r.toolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// ObserveRPC records one dispatched request.
func (r *Recorder) ObserveRPC(method string, code int) {
	if r == nil {
		return
	}
	r.rpcRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

// SessionOpened and SessionClosed track live transport sessions.
func (r *Recorder) SessionOpened() {
	if r != nil {
		r.sessions.Inc()
	}
}

func (r *Recorder) SessionClosed() {
	if r != nil {
		r.sessions.Dec()
	}
}
