package processor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sirstudly/littlehotelier-sub001/errors"
)

// Job outcomes recorded by Metrics.
const (
	outcomeCompleted = "completed"
	outcomeFailed    = "failed"
	outcomeConflict  = "conflict"
)

// Metrics holds processor counters on a private registry. lhjobs runs as a
// short-lived process, so the registry is exported through a node-exporter
// textfile rather than an HTTP endpoint.
type Metrics struct {
	registry     *prometheus.Registry
	processed    *prometheus.CounterVec
	recovered    prometheus.Counter
	skipped      prometheus.Counter
	duration     *prometheus.HistogramVec
	lastCycle    prometheus.Gauge
	lastRecovery prometheus.Gauge
}

// NewMetrics registers the processor collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lhjobs",
			Name:      "jobs_processed_total",
			Help:      "Jobs claimed by the processor, by type and outcome.",
		}, []string{"job_type", "outcome"}),
		recovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lhjobs",
			Name:      "jobs_recovered_total",
			Help:      "Jobs found processing at cycle start and marked failed.",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lhjobs",
			Name:      "cycles_lock_held_total",
			Help:      "Cycles skipped because another runner held the lock.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lhjobs",
			Name:      "job_duration_seconds",
			Help:      "Handler execution time.",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"job_type"}),
		lastCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lhjobs",
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time the last processing cycle finished.",
		}),
		lastRecovery: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lhjobs",
			Name:      "last_cycle_recovered_jobs",
			Help:      "Jobs recovered by the most recent cycle.",
		}),
	}
	m.registry.MustRegister(m.processed, m.recovered, m.skipped, m.duration, m.lastCycle, m.lastRecovery)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the current values in text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.Wrapf(err, "failed to write metrics to %s", path)
	}
	return nil
}

func (m *Metrics) jobFinished(jobType, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.processed.WithLabelValues(jobType, outcome).Inc()
	if outcome != outcomeConflict {
		m.duration.WithLabelValues(jobType).Observe(elapsed.Seconds())
	}
}

func (m *Metrics) cycleFinished(at time.Time, recovered int) {
	if m == nil {
		return
	}
	m.recovered.Add(float64(recovered))
	m.lastRecovery.Set(float64(recovered))
	m.lastCycle.Set(float64(at.Unix()))
}

func (m *Metrics) lockHeld() {
	if m == nil {
		return
	}
	m.skipped.Inc()
}
