package metrics

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Recorder collects evaluation metrics on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	cases    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	lastRun  prometheus.Gauge
}

// NewRecorder creates a Recorder with all collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		cases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callgen",
			Subsystem: "eval",
			Name:      "cases_total",
			Help:      "Evaluated cases by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "callgen",
			Name:      "generate_duration_seconds",
			Help:      "Wall time of a single call generation.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"outcome"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "callgen",
			Subsystem: "eval",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last evaluation run finished.",
		}),
	}
	r.registry.MustRegister(r.cases, r.duration, r.lastRun)
	return r
}

// ObserveCase records one evaluated case.
func (r *Recorder) ObserveCase(outcome string, d time.Duration) {
	r.cases.WithLabelValues(outcome).Inc()
	r.duration.WithLabelValues(outcome).Observe(d.Seconds())
}

// MarkRunFinished stamps the end of a run.
func (r *Recorder) MarkRunFinished(at time.Time) {
	r.lastRun.Set(float64(at.Unix()))
}

// CaseCount returns the counter for outcome. Intended for tests and summaries.
func (r *Recorder) CaseCount(outcome string) prometheus.Counter {
	return r.cases.WithLabelValues(outcome)
}

// WriteText encodes every gathered family in the Prometheus text format.
func (r *Recorder) WriteText(w io.Writer) error {
	families, err := r.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// WriteTextfile writes the metrics to path for a node_exporter textfile
// collector. The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp metrics file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := r.WriteText(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp metrics file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("chmod metrics file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename metrics file: %w", err)
	}
	return nil
}
