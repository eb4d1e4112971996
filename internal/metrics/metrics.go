// Package metrics records run outcomes in a Prometheus registry and writes
// them in the node_exporter textfile format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"leccap/internal/domain"
)

// Run holds the metrics of a single harvest run on its own registry.
type Run struct {
	reg *prometheus.Registry

	coursesResolved  prometheus.Gauge
	courseOutcomes   *prometheus.CounterVec
	recordings       *prometheus.CounterVec
	yearErrors       prometheus.Counter
	downloadsStarted prometheus.Counter
	duration         prometheus.Gauge
	lastRun          prometheus.Gauge
}

// NewRun creates the run metrics.
func NewRun() *Run {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Run{
		reg: reg,
		coursesResolved: f.NewGauge(prometheus.GaugeOpts{
			Name: "leccap_courses_resolved",
			Help: "Configured courses found on the year listings.",
		}),
		courseOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "leccap_course_results_total",
			Help: "Processed courses, by outcome (ok/skipped/failed).",
		}, []string{"outcome"}),
		recordings: f.NewCounterVec(prometheus.CounterOpts{
			Name: "leccap_recordings_total",
			Help: "Recordings seen on course pages, by result (accepted/rejected/invalid).",
		}, []string{"result"}),
		yearErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "leccap_year_errors_total",
			Help: "Year listings that failed for reasons other than having no courses.",
		}),
		downloadsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "leccap_downloads_started_total",
			Help: "Downloader process groups launched.",
		}),
		duration: f.NewGauge(prometheus.GaugeOpts{
			Name: "leccap_run_duration_seconds",
			Help: "Wall time of the last run.",
		}),
		lastRun: f.NewGauge(prometheus.GaugeOpts{
			Name: "leccap_last_run_timestamp_seconds",
			Help: "Unix time the last run finished.",
		}),
	}
}

// Observe records a finished run.
func (r *Run) Observe(s domain.Summary, took time.Duration, finished time.Time) {
	r.coursesResolved.Set(float64(s.Resolved))
	r.yearErrors.Add(float64(len(s.YearErrors)))
	for _, c := range s.Courses {
		switch {
		case c.Skipped:
			r.courseOutcomes.WithLabelValues("skipped").Inc()
		case c.Err != nil:
			r.courseOutcomes.WithLabelValues("failed").Inc()
		default:
			r.courseOutcomes.WithLabelValues("ok").Inc()
		}
		r.recordings.WithLabelValues("accepted").Add(float64(c.Accepted))
		r.recordings.WithLabelValues("rejected").Add(float64(c.Rejected))
		r.recordings.WithLabelValues("invalid").Add(float64(c.Invalid))
		if c.PGID > 0 {
			r.downloadsStarted.Inc()
		}
	}
	r.duration.Set(took.Seconds())
	r.lastRun.Set(float64(finished.Unix()))
}

// WriteTextfile atomically writes the registry to path.
func (r *Run) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}
