// Package metrics exposes Prometheus collectors for the chat API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChatRequests counts chat requests by delivery mode.
	ChatRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "encompliance_chat_requests_total",
		Help: "Total chat requests received, labeled by delivery mode.",
	}, []string{"mode"})

	// ChatErrors counts chat requests that failed upstream.
	ChatErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "encompliance_chat_errors_total",
		Help: "Total chat requests that failed, labeled by delivery mode.",
	}, []string{"mode"})

	// ChatStreamDuration observes wall-clock stream duration.
	ChatStreamDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "encompliance_chat_stream_duration_seconds",
		Help:    "Duration of streamed chat replies.",
		Buckets: prometheus.DefBuckets,
	})

	// QueryLogWrites counts history log writes.
	QueryLogWrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "encompliance_query_log_writes_total",
		Help: "Total query log entries written.",
	})
)
