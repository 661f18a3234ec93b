package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the upload pipeline metrics. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Uploads           *prometheus.CounterVec
	StoredBytes       *prometheus.CounterVec
	Deletes           *prometheus.CounterVec
	PathRejections    prometheus.Counter
	TranscodeDuration *prometheus.HistogramVec
	ReplicaFailures   *prometheus.CounterVec
}

// New creates the metric set under namespace
func New(namespace string) *Metrics {
	return &Metrics{
		Uploads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "upload",
				Name:      "total",
				Help:      "Uploads by folder and outcome",
			},
			[]string{"folder", "outcome"},
		),

		StoredBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "upload",
				Name:      "stored_bytes_total",
				Help:      "Bytes persisted to the storage root",
			},
			[]string{"folder"},
		),

		Deletes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "delete",
				Name:      "total",
				Help:      "Delete requests by outcome",
			},
			[]string{"outcome"},
		),

		PathRejections: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "security",
				Name:      "path_rejections_total",
				Help:      "References rejected for escaping the storage root",
			},
		),

		TranscodeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "transcode",
				Name:      "duration_seconds",
				Help:      "Transcode duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"mode"},
		),

		ReplicaFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "replica",
				Name:      "failures_total",
				Help:      "Replica mirror operations that failed",
			},
			[]string{"op"},
		),
	}
}

// Register registers every collector. Collectors that are already
// registered are tolerated.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.Uploads,
		m.StoredBytes,
		m.Deletes,
		m.PathRejections,
		m.TranscodeDuration,
		m.ReplicaFailures,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveUpload(folder, outcome string, bytes int64) {
	if m == nil {
		return
	}
	m.Uploads.WithLabelValues(folder, outcome).Inc()
	if bytes > 0 {
		m.StoredBytes.WithLabelValues(folder).Add(float64(bytes))
	}
}

func (m *Metrics) ObserveDelete(outcome string) {
	if m == nil {
		return
	}
	m.Deletes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObservePathRejection() {
	if m == nil {
		return
	}
	m.PathRejections.Inc()
}

func (m *Metrics) ObserveTranscode(mode string, d time.Duration) {
	if m == nil {
		return
	}
	m.TranscodeDuration.WithLabelValues(mode).Observe(d.Seconds())
}

func (m *Metrics) ObserveReplicaFailure(op string) {
	if m == nil {
		return
	}
	m.ReplicaFailures.WithLabelValues(op).Inc()
}
