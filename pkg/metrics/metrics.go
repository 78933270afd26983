// Package metrics exposes Prometheus metrics for the read and write paths.
//
// # Basic Usage
//
//	metrics.RowsFetched.Add(float64(n))
//
//	timer := metrics.NewTimer()
//	err := cursor.Fetch()
//	timer.ObserveDuration(metrics.FetchDuration)
//
// All metrics are registered with the default registry on import.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Growth directions for BufferGrowths.
const (
	DirectionRead  = "read"
	DirectionWrite = "write"
)

var (
	// RowsFetched counts rows copied out of transit buffers into batches.
	RowsFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "arrowodbc_rows_fetched_total",
			Help: "Total number of rows fetched from result sets",
		},
	)

	// BatchesProduced counts record batches yielded by readers.
	BatchesProduced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "arrowodbc_batches_total",
			Help: "Total number of record batches produced",
		},
	)

	// RowsInserted counts rows sent through bulk parameter execution.
	RowsInserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "arrowodbc_rows_inserted_total",
			Help: "Total number of rows inserted",
		},
	)

	// ValuesMappedToNull counts values replaced by null because they could
	// not be converted.
	ValuesMappedToNull = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arrowodbc_values_mapped_to_null_total",
			Help: "Values that failed conversion and were mapped to null",
		},
		[]string{"arrow_type"},
	)

	// BufferGrowths counts transit column reallocations.
	BufferGrowths = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arrowodbc_buffer_growths_total",
			Help: "Transit buffer column reallocations",
		},
		[]string{"direction"},
	)

	// FetchDuration observes the latency of one bulk fetch call.
	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "arrowodbc_fetch_duration_seconds",
			Help:    "Latency of bulk fetch calls",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
	)

	// ExecuteDuration observes the latency of one bulk execute call.
	ExecuteDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "arrowodbc_execute_duration_seconds",
			Help:    "Latency of bulk parameter execution",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
	)
)

// Timer measures elapsed time for a histogram observation.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed time.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed seconds in o and returns the duration.
func (t *Timer) ObserveDuration(o prometheus.Observer) time.Duration {
	d := t.Stop()
	o.Observe(d.Seconds())
	return d
}
