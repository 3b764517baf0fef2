// Package metrics provides Prometheus metrics for logmon.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Watch pipeline metrics
	fileEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logmon_file_events_total",
			Help: "File change events processed by the update pipeline",
		},
		[]string{"op"},
	)

	fileEventErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logmon_file_event_errors_total",
			Help: "File change events dropped because of an I/O error",
		},
		[]string{"op"},
	)

	deltaBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logmon_delta_bytes_total",
			Help: "Bytes read from watched files and handed to the hub",
		},
		[]string{"kind"},
	)

	ledgerEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "logmon_ledger_entries",
			Help: "Number of files tracked by the size ledger",
		},
	)

	watchErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "logmon_watch_errors_total",
			Help: "Errors reported by the underlying watch mechanism",
		},
	)

	// Hub metrics
	subscribersConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "logmon_subscribers_connected",
			Help: "Number of connected subscribers",
		},
	)

	messagesBroadcastTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logmon_messages_broadcast_total",
			Help: "Messages published to the hub",
		},
		[]string{"type"},
	)

	messagesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logmon_messages_dropped_total",
			Help: "Messages dropped because a queue was full",
		},
		[]string{"stage"},
	)

	listingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "logmon_listing_duration_seconds",
			Help:    "Time to scan all roots for a listing",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordFileEvent records a processed file event.
func RecordFileEvent(op string) {
	fileEventsTotal.WithLabelValues(op).Inc()
}

// RecordFileEventError records a file event dropped on error.
func RecordFileEventError(op string) {
	fileEventErrorsTotal.WithLabelValues(op).Inc()
}

// RecordDeltaBytes records bytes read for delivery. kind is "delta" or "full".
func RecordDeltaBytes(kind string, n int) {
	deltaBytesTotal.WithLabelValues(kind).Add(float64(n))
}

// SetLedgerEntries sets the tracked file count.
func SetLedgerEntries(n int) {
	ledgerEntries.Set(float64(n))
}

// RecordWatchError records a watch mechanism error.
func RecordWatchError() {
	watchErrorsTotal.Inc()
}

// SetSubscribers sets the connected subscriber count.
func SetSubscribers(n int) {
	subscribersConnected.Set(float64(n))
}

// RecordBroadcast records a message published to the hub.
func RecordBroadcast(msgType string) {
	messagesBroadcastTotal.WithLabelValues(msgType).Inc()
}

// RecordDropped records a message dropped at stage "hub" or "subscriber".
func RecordDropped(stage string) {
	messagesDroppedTotal.WithLabelValues(stage).Inc()
}

// ObserveListing records the duration of a listing scan in seconds.
func ObserveListing(seconds float64) {
	listingDuration.Observe(seconds)
}
