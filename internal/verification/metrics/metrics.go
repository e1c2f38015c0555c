package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification module.
type Metrics struct {
	// Vendor call latencies by operation
	VendorLatency *prometheus.HistogramVec

	// Flow outcomes by channel and terminal status
	FlowOutcome *prometheus.CounterVec

	// Poll cycles by result (updated, unchanged, terminal, error)
	PollCycles *prometheus.CounterVec

	// Evidence upload sizes in bytes, by channel
	UploadSize *prometheus.HistogramVec
}

// New creates a Metrics instance with all verification metrics registered.
func New() *Metrics {
	return &Metrics{
		VendorLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "montoit_verification_vendor_duration_seconds",
			Help:    "Duration of vendor API calls by operation",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}), // operation: "create_job", "get_job", "cancel_job", "face", "document"

		FlowOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "montoit_verification_flow_outcomes_total",
			Help: "Terminal verification outcomes by channel and status",
		}, []string{"channel", "status"}),

		PollCycles: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "montoit_verification_poll_cycles_total",
			Help: "Poll cycles by result",
		}, []string{"result"}),

		UploadSize: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "montoit_verification_upload_bytes",
			Help:    "Evidence upload sizes in bytes by channel",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		}, []string{"channel"}),
	}
}

// ObserveVendorLatency records the duration of one vendor call.
func (m *Metrics) ObserveVendorLatency(operation string, d time.Duration) {
	if m != nil {
		m.VendorLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}

// IncrementOutcome records a terminal flow outcome.
func (m *Metrics) IncrementOutcome(channel, status string) {
	if m != nil {
		m.FlowOutcome.WithLabelValues(channel, status).Inc()
	}
}

// IncrementPoll records a poll cycle result.
func (m *Metrics) IncrementPoll(result string) {
	if m != nil {
		m.PollCycles.WithLabelValues(result).Inc()
	}
}

// ObserveUploadSize records the size of one evidence upload.
func (m *Metrics) ObserveUploadSize(channel string, bytes int) {
	if m != nil {
		m.UploadSize.WithLabelValues(channel).Observe(float64(bytes))
	}
}
