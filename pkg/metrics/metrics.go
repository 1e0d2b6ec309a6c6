// Package metrics exposes Prometheus metrics for the pipeline.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder registers and updates the pipeline's metrics. A nil
// Recorder is valid and records nothing, so callers never need
// nil checks at call sites.
type Recorder struct {
	registry *prometheus.Registry

	jobsTotal        *prometheus.CounterVec
	activeJobs       prometheus.Gauge
	framesComposited prometheus.Counter
	framesPassed     prometheus.Counter
	stageDuration    *prometheus.HistogramVec
	quotaRejections  prometheus.Counter
}

// NewRecorder creates a recorder with its own registry
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		jobsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "faceswap_jobs_total",
			Help: "Total number of jobs by terminal status",
		}, []string{"status"}),
		activeJobs: factory.NewGauge(prometheus.GaugeOpts{
			Name: "faceswap_active_jobs",
			Help: "Number of jobs currently processing",
		}),
		framesComposited: factory.NewCounter(prometheus.CounterOpts{
			Name: "faceswap_frames_composited_total",
			Help: "Frames where the face blend succeeded",
		}),
		framesPassed: factory.NewCounter(prometheus.CounterOpts{
			Name: "faceswap_frames_passed_through_total",
			Help: "Frames passed through unmodified after a soft failure",
		}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "faceswap_stage_duration_seconds",
			Help:    "Wall-clock duration of each pipeline stage",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"stage"}),
		quotaRejections: factory.NewCounter(prometheus.CounterOpts{
			Name: "faceswap_quota_rejections_total",
			Help: "Submissions rejected because the caller's quota was exhausted",
		}),
	}
}

// JobStarted marks a job entering Processing
func (r *Recorder) JobStarted() {
	if r == nil {
		return
	}
	r.activeJobs.Inc()
}

// JobFinished marks a job reaching a terminal status
func (r *Recorder) JobFinished(status string) {
	if r == nil {
		return
	}
	r.activeJobs.Dec()
	r.jobsTotal.WithLabelValues(status).Inc()
}

// FrameProcessed counts one frame result
func (r *Recorder) FrameProcessed(passedThrough bool) {
	if r == nil {
		return
	}
	if passedThrough {
		r.framesPassed.Inc()
		return
	}
	r.framesComposited.Inc()
}

// ObserveStage records one stage's wall-clock duration
func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// QuotaRejected counts a quota-rejected submission
func (r *Recorder) QuotaRejected() {
	if r == nil {
		return
	}
	r.quotaRejections.Inc()
}

// Handler returns the Prometheus scrape handler for this recorder
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve starts a metrics listener on addr and returns a stop function
// suitable for a shutdown manager.
func (r *Recorder) Serve(addr string) func(context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	// A failing listener loses observability, never jobs.
	go func() { _ = srv.ListenAndServe() }()

	return srv.Shutdown
}
