// Package metrics defines the Prometheus collectors for the LDAP connection
// driver. Collectors are optional: the driver only builds and observes them
// when the connection settings carry a Prometheus registerer, so library
// users who do not run Prometheus pay nothing.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the driver's collectors. One instance may be shared by
// any number of connections.
type Metrics struct {
	// PDUsRead counts inbound PDUs by protocol op name.
	PDUsRead *prometheus.CounterVec

	// PDUsWritten counts outbound PDUs by protocol op name.
	PDUsWritten *prometheus.CounterVec

	// BytesRead counts inbound wire bytes.
	BytesRead prometheus.Counter

	// BytesWritten counts outbound wire bytes.
	BytesWritten prometheus.Counter

	// OperationsInFlight gauges currently outstanding requests.
	OperationsInFlight prometheus.Gauge

	// OperationResults counts completed operations by op name and LDAP
	// result code.
	OperationResults *prometheus.CounterVec

	// OperationDuration observes wall time per operation in seconds.
	OperationDuration *prometheus.HistogramVec
}

// New builds the collector set and registers it with reg. Pass
// prometheus.DefaultRegisterer for the process-wide registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PDUsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dittodir",
			Name:      "pdus_read_total",
			Help:      "Inbound LDAP PDUs by protocol op.",
		}, []string{"op"}),
		PDUsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dittodir",
			Name:      "pdus_written_total",
			Help:      "Outbound LDAP PDUs by protocol op.",
		}, []string{"op"}),
		BytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dittodir",
			Name:      "bytes_read_total",
			Help:      "Bytes read from the server.",
		}),
		BytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dittodir",
			Name:      "bytes_written_total",
			Help:      "Bytes written to the server.",
		}),
		OperationsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dittodir",
			Name:      "operations_in_flight",
			Help:      "Outstanding LDAP operations awaiting responses.",
		}),
		OperationResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dittodir",
			Name:      "operation_results_total",
			Help:      "Completed operations by op and LDAP result code.",
		}, []string{"op", "result_code"}),
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dittodir",
			Name:      "operation_duration_seconds",
			Help:      "Operation latency from submit to final response.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.PDUsRead,
			m.PDUsWritten,
			m.BytesRead,
			m.BytesWritten,
			m.OperationsInFlight,
			m.OperationResults,
			m.OperationDuration,
		)
	}
	return m
}
