package convert

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "convd",
			Subsystem: "ops",
			Name:      "operations_total",
			Help:      "Total operations by kind and result",
		},
		[]string{"op", "result"},
	)

	operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "convd",
			Subsystem: "ops",
			Name:      "operation_duration_seconds",
			Help:      "Duration of operations in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 8),
		},
		[]string{"op"},
	)
)

func init() {
	prometheus.MustRegister(operationsTotal, operationDuration)
}

func observeOp(op, result string, start time.Time) {
	operationsTotal.WithLabelValues(op, result).Inc()
	operationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
