// Package metrics provides Prometheus instrumentation for the Linkup chat
// server. It exposes gauges for connection counts, counters for message and
// typing throughput, and histograms for request latency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsTotal tracks the current number of active WebSocket connections.
	ConnectionsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "linkup_connections_total",
		Help: "Current number of active WebSocket connections",
	})

	// MessagesTotal counts the total number of chat messages processed, labeled
	// by outcome: "sent", "delivered", or "blocked".
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "linkup_messages_total",
		Help: "Total number of chat messages processed",
	}, []string{"outcome"}) // outcome = "sent", "delivered", "blocked"

	// TypingSignalsTotal counts typing start/stop signals relayed.
	TypingSignalsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "linkup_typing_signals_total",
		Help: "Total number of typing signals relayed",
	})

	// HistoryLoadDuration records the time to serve a message history request.
	HistoryLoadDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "linkup_history_load_seconds",
		Help:    "Time to load a conversation's message history",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	})

	// RequestDuration records REST request latency by route.
	RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "linkup_request_duration_seconds",
		Help:    "REST request latency by route",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"route"})
)

func init() {
	prometheus.MustRegister(
		ConnectionsTotal,
		MessagesTotal,
		TypingSignalsTotal,
		HistoryLoadDuration,
		RequestDuration,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
