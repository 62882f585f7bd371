package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(chatRequestsTotal, chatRequestTimeouts) }

// Replaces the bare process-wide counters (totalRequests, failedRequests, ...)
// with an exported observability sink.
var chatRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chat_requests_total",
		Help: "Chat submissions by delivery mode and outcome.",
	},
	[]string{"mode", "outcome"}, // outcome: accepted | success | failed | rejected
)

var chatRequestTimeouts = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "chat_request_timeouts_total",
		Help: "Requests that hit the internal processing deadline.",
	},
)

func IncChatRequest(mode, outcome string) {
	chatRequestsTotal.WithLabelValues(norm(mode), norm(outcome)).Inc()
}

func IncTimeout() { chatRequestTimeouts.Inc() }
