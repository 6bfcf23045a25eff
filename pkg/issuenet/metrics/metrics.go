// Package metrics provides Prometheus metrics for pipeline runs.
//
// A run is a short batch job, so metrics live in a private registry and
// are exported with WriteTextfile for the node exporter's textfile
// collector rather than served over HTTP.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "issuenet"

// Recorder holds the run metrics. A nil *Recorder is valid and records
// nothing.
type Recorder struct {
	reg *prometheus.Registry

	ArticlesLoaded     prometheus.Counter
	RowsSkipped        prometheus.Counter
	DuplicatesRemoved  prometheus.Counter
	IssuesWritten      prometheus.Counter
	ArticlesInserted   prometheus.Counter
	ArticlesSkipped    prometheus.Counter
	NamingFallbacks    prometheus.Counter
	ClustersFound      prometheus.Gauge
	StageDuration      *prometheus.HistogramVec
	LastRunDuration    prometheus.Gauge
	LastRunSuccessTime prometheus.Gauge
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	counter := func(name, help string) prometheus.Counter {
		return f.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return f.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}

	return &Recorder{
		reg:               reg,
		ArticlesLoaded:    counter("articles_loaded_total", "Articles read from the input corpus"),
		RowsSkipped:       counter("rows_skipped_total", "Input rows excluded as malformed"),
		DuplicatesRemoved: counter("duplicates_removed_total", "Near-duplicate articles dropped before clustering"),
		IssuesWritten:     counter("issues_written_total", "Issues persisted"),
		ArticlesInserted:  counter("articles_inserted_total", "Article rows inserted"),
		ArticlesSkipped:   counter("articles_skipped_total", "Articles skipped because their URL was already stored"),
		NamingFallbacks:   counter("naming_fallbacks_total", "Issues named after their first title because labelling failed"),
		ClustersFound:     gauge("clusters_found", "Clusters found by the last run before the top-N cut"),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"stage"}),
		LastRunDuration:    gauge("last_run_duration_seconds", "Wall time of the last run"),
		LastRunSuccessTime: gauge("last_run_success_timestamp_seconds", "Unix time the last successful run finished"),
	}
}

// Registry exposes the underlying registry, e.g. for an HTTP handler.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

// ObserveStage records how long a stage took.
func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// Run is the outcome of one pipeline run.
type Run struct {
	Loaded      int
	RowsSkipped int
	Duplicates  int
	Clusters    int
	Issues      int
	Inserted    int
	URLSkipped  int
	Fallbacks   int
	Duration    time.Duration
	Success     bool
	End         time.Time
}

// RecordRun adds a finished run to the metrics.
func (r *Recorder) RecordRun(run Run) {
	if r == nil {
		return
	}
	add(r.ArticlesLoaded, run.Loaded)
	add(r.RowsSkipped, run.RowsSkipped)
	add(r.DuplicatesRemoved, run.Duplicates)
	add(r.IssuesWritten, run.Issues)
	add(r.ArticlesInserted, run.Inserted)
	add(r.ArticlesSkipped, run.URLSkipped)
	add(r.NamingFallbacks, run.Fallbacks)
	r.ClustersFound.Set(float64(run.Clusters))
	r.LastRunDuration.Set(run.Duration.Seconds())
	if run.Success {
		r.LastRunSuccessTime.Set(float64(run.End.Unix()))
	}
}

func add(c prometheus.Counter, n int) {
	if n > 0 {
		c.Add(float64(n))
	}
}

// WriteTextfile writes all metrics in the text exposition format,
// atomically replacing path.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.reg)
}
