// Package jobs orchestrates face swap jobs end to end: submission,
// quota enforcement, the four-stage frame pipeline, progress tracking,
// and terminal-state bookkeeping. Jobs run asynchronously; callers
// poll job state through snapshots.
package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/huynhanhkhoa2895/face-swap/pkg/catalog"
	"github.com/huynhanhkhoa2895/face-swap/pkg/detect"
	"github.com/huynhanhkhoa2895/face-swap/pkg/logging"
	"github.com/huynhanhkhoa2895/face-swap/pkg/metrics"
	"github.com/huynhanhkhoa2895/face-swap/pkg/models"
	"github.com/huynhanhkhoa2895/face-swap/pkg/quota"
	"github.com/huynhanhkhoa2895/face-swap/pkg/store"
	"github.com/huynhanhkhoa2895/face-swap/pkg/tracing"
	"github.com/huynhanhkhoa2895/face-swap/pkg/video"
)

// FramePipeline is the codec-level frame pipeline the orchestrator
// drives. Implemented by video.FFmpeg.
type FramePipeline interface {
	ExtractFrames(ctx context.Context, videoPath, outDir string, targetFps float64, onProgress video.ProgressFunc) ([]string, error)
	AssembleVideo(ctx context.Context, framesDir, outPath string, targetFps float64, onProgress video.ProgressFunc) error
	MuxAudio(ctx context.Context, videoPath, audioSourcePath, outPath string) error
}

// FrameCompositor blends the user face into a single frame file.
// Implemented by compositor.Compositor.
type FrameCompositor interface {
	ProcessFrame(framePath, facePath, outPath string, placement *models.FacePlacement) (passedThrough bool, err error)
}

// QuotaTracker answers quota checks and records completed generations.
// Implemented by quota.Tracker.
type QuotaTracker interface {
	Check(callerKey string) (quota.Status, error)
	Record(callerKey string) error
}

// Stage progress bands. Each stage maps its internal 0-100 progress
// into a fixed slice of the overall percentage, so overall progress
// is comparable across jobs regardless of stage durations.
var stageBands = map[models.ProgressStage]struct{ base, span float64 }{
	models.StageExtracting:  {0, 25},
	models.StageCompositing: {25, 50},
	models.StageAssembling:  {75, 5},
	models.StageMuxing:      {80, 20},
}

// Options configures the orchestrator
type Options struct {
	// WorkRoot is where per-job scratch directories are created
	WorkRoot string
	// OutputDir is where completed output videos land
	OutputDir string
	// FrameWorkers bounds concurrent frame compositing per job
	FrameWorkers int
	// KeepUploads disables deletion of the uploaded face image after
	// a job completes
	KeepUploads bool
}

// SubmitRequest is one face swap submission
type SubmitRequest struct {
	TemplateID string
	// FacePath is the uploaded face image on local disk
	FacePath string
	// CallerKey identifies the caller for quota purposes; derive it
	// with quota.CallerKey
	CallerKey string
}

// Orchestrator owns the job lifecycle. All exported methods are safe
// for concurrent use.
type Orchestrator struct {
	store      store.JobStore
	catalog    catalog.Catalog
	pipeline   FramePipeline
	compositor FrameCompositor
	detector   detect.Detector
	quota      QuotaTracker
	metrics    *metrics.Recorder
	tracer     *tracing.Provider
	log        *logging.Logger
	opts       Options

	mu       sync.Mutex
	running  map[string]context.CancelFunc
	draining bool
	wg       sync.WaitGroup

	// logLimit throttles per-frame progress log lines; job state is
	// still updated on every frame.
	logLimit *rate.Limiter

	now func() time.Time
}

// New creates an orchestrator. Store, catalog, pipeline, compositor
// and quota are required; detector, metrics and tracer tolerate their
// degraded forms (detect.Unavailable, nil recorder, tracing.Noop).
func New(
	st store.JobStore,
	cat catalog.Catalog,
	pipeline FramePipeline,
	comp FrameCompositor,
	det detect.Detector,
	qt QuotaTracker,
	rec *metrics.Recorder,
	tracer *tracing.Provider,
	log *logging.Logger,
	opts Options,
) *Orchestrator {
	if log == nil {
		log = logging.New(logging.INFO, false)
	}
	if tracer == nil {
		tracer = tracing.Noop()
	}
	if opts.FrameWorkers <= 0 {
		opts.FrameWorkers = 4
	}
	return &Orchestrator{
		store:      st,
		catalog:    cat,
		pipeline:   pipeline,
		compositor: comp,
		detector:   det,
		quota:      qt,
		metrics:    rec,
		tracer:     tracer,
		log:        log.WithComponent("jobs"),
		opts:       opts,
		running:    make(map[string]context.CancelFunc),
		logLimit:   rate.NewLimiter(rate.Every(2*time.Second), 1),
		now:        time.Now,
	}
}

// SubmitJob validates a submission, creates the job record in Queued
// state, and launches processing in the background. The returned
// snapshot carries the job id for later polling.
//
// Quota is checked here so exhausted callers are rejected before any
// work starts, but the quota is consumed only when the job completes.
func (o *Orchestrator) SubmitJob(ctx context.Context, req SubmitRequest) (models.JobSnapshot, error) {
	o.mu.Lock()
	if o.draining {
		o.mu.Unlock()
		return models.JobSnapshot{}, ErrShuttingDown
	}
	o.mu.Unlock()

	status, err := o.quota.Check(req.CallerKey)
	if err != nil {
		return models.JobSnapshot{}, fmt.Errorf("quota check: %w", err)
	}
	if !status.Allowed {
		o.metrics.QuotaRejected()
		return models.JobSnapshot{}, &quota.ExceededError{ResetAt: *status.ResetAt}
	}

	tmpl, err := o.catalog.Lookup(req.TemplateID)
	if err != nil {
		return models.JobSnapshot{}, err
	}
	if _, err := os.Stat(req.FacePath); err != nil {
		return models.JobSnapshot{}, fmt.Errorf("face image: %w", err)
	}

	job := &models.Job{
		ID:         uuid.New().String(),
		TemplateID: tmpl.ID,
		CallerKey:  req.CallerKey,
		Status:     models.JobStatusQueued,
		CreatedAt:  o.now(),
	}
	if err := o.store.Create(job); err != nil {
		return models.JobSnapshot{}, fmt.Errorf("create job record: %w", err)
	}

	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	o.mu.Lock()
	o.running[job.ID] = cancel
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() {
			o.mu.Lock()
			delete(o.running, job.ID)
			o.mu.Unlock()
			cancel()
		}()
		o.run(jobCtx, job.ID, tmpl, req)
	}()

	o.log.Info("job %s submitted for template %s", job.ID, tmpl.ID)
	return job.Snapshot(), nil
}

// GetJobStatus returns a point-in-time snapshot of a job
func (o *Orchestrator) GetJobStatus(id string) (models.JobSnapshot, error) {
	return o.store.Get(id)
}

// GetJobOutputLocation returns the output video path of a completed
// job. For any non-completed job it returns ErrOutputNotAvailable
// carrying the job's current status.
func (o *Orchestrator) GetJobOutputLocation(id string) (string, error) {
	snap, err := o.store.Get(id)
	if err != nil {
		return "", err
	}
	if snap.Status != models.JobStatusCompleted {
		return "", fmt.Errorf("%w: job is %s", ErrOutputNotAvailable, snap.Status)
	}
	return snap.OutputPath, nil
}

// ListJobs returns snapshots of all known jobs
func (o *Orchestrator) ListJobs() []models.JobSnapshot {
	return o.store.All()
}

// Cancel requests cooperative cancellation of a running job. The job
// transitions to Failed once its pipeline observes the cancellation.
func (o *Orchestrator) Cancel(id string) error {
	if _, err := o.store.Get(id); err != nil {
		return err
	}
	o.mu.Lock()
	cancel, ok := o.running[id]
	o.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotRunning, id)
	}
	cancel()
	return nil
}

// Shutdown cancels all running jobs and waits for their goroutines to
// finish cleanup, or for ctx to expire.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.draining = true
	for _, cancel := range o.running {
		cancel()
	}
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown wait: %w", ctx.Err())
	}
}

// run drives one job through the pipeline. It owns every transition
// out of Queued and guarantees the job lands in a terminal state and
// its workspace is removed, whatever happens in between.
func (o *Orchestrator) run(ctx context.Context, jobID string, tmpl *models.Template, req SubmitRequest) {
	ctx, span := o.tracer.StartSpan(ctx, "job.run",
		attribute.String("job.id", jobID),
		attribute.String("template.id", tmpl.ID),
	)

	o.transition(jobID, models.JobStatusProcessing)
	o.metrics.JobStarted()
	o.updateProgress(jobID, models.StageExtracting, 0, 0, 0)

	outputPath, err := o.process(ctx, jobID, tmpl, req)
	tracing.EndSpan(span, err)

	if err != nil {
		o.failJob(jobID, err)
		return
	}
	o.completeJob(jobID, req, outputPath)
}

func (o *Orchestrator) process(ctx context.Context, jobID string, tmpl *models.Template, req SubmitRequest) (string, error) {
	ws, err := newWorkspace(o.opts.WorkRoot, jobID)
	if err != nil {
		return "", &PipelineError{Stage: models.StageExtracting, Err: err}
	}
	defer func() {
		if err := ws.cleanup(); err != nil {
			o.log.Warn("job %s: workspace cleanup failed: %v", jobID, err)
		}
	}()

	facePath, roll, err := o.prepareFace(ctx, ws, req.FacePath)
	if err != nil {
		return "", &PipelineError{Stage: models.StageExtracting, Err: err}
	}

	var frames []string
	err = o.runStage(ctx, jobID, models.StageExtracting, func(ctx context.Context) error {
		var stageErr error
		frames, stageErr = o.pipeline.ExtractFrames(ctx, tmpl.VideoPath, ws.frames, tmpl.FPS, o.videoProgress(jobID, models.StageExtracting))
		return stageErr
	})
	if err != nil {
		return "", err
	}

	err = o.runStage(ctx, jobID, models.StageCompositing, func(ctx context.Context) error {
		return o.compositeFrames(ctx, jobID, ws, frames, facePath, tmpl, roll)
	})
	if err != nil {
		return "", err
	}

	err = o.runStage(ctx, jobID, models.StageAssembling, func(ctx context.Context) error {
		return o.pipeline.AssembleVideo(ctx, ws.composited, ws.assembledPath(), tmpl.FPS, o.videoProgress(jobID, models.StageAssembling))
	})
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(o.opts.OutputDir, 0o755); err != nil {
		return "", &PipelineError{Stage: models.StageMuxing, Err: err}
	}
	outputPath := filepath.Join(o.opts.OutputDir, jobID+".mp4")
	err = o.runStage(ctx, jobID, models.StageMuxing, func(ctx context.Context) error {
		return o.pipeline.MuxAudio(ctx, ws.assembledPath(), tmpl.AudioSource(), outputPath)
	})
	if err != nil {
		// A failed mux can leave a truncated output behind.
		os.Remove(outputPath)
		return "", err
	}

	o.updateProgress(jobID, models.StageMuxing, 100, 0, 0)
	return outputPath, nil
}

// runStage wraps one stage with a trace span, a duration metric, and
// error classification into PipelineError.
func (o *Orchestrator) runStage(ctx context.Context, jobID string, stage models.ProgressStage, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return &PipelineError{Stage: stage, Err: err}
	}

	ctx, span := o.tracer.StartSpan(ctx, "stage."+string(stage), attribute.String("job.id", jobID))
	start := o.now()
	err := fn(ctx)
	o.metrics.ObserveStage(string(stage), o.now().Sub(start))
	tracing.EndSpan(span, err)

	if err != nil {
		return &PipelineError{Stage: stage, Err: err}
	}
	return nil
}

// videoProgress adapts pipeline progress callbacks into banded job
// progress updates.
func (o *Orchestrator) videoProgress(jobID string, stage models.ProgressStage) video.ProgressFunc {
	return func(p video.Progress) {
		o.updateProgress(jobID, stage, p.Percentage, p.CurrentFrame, p.TotalFrames)
	}
}

// updateProgress maps a stage-local percentage into the overall band
// and writes it to the job record. Overall percentage never decreases:
// a late or out-of-order update keeps the highest value seen.
func (o *Orchestrator) updateProgress(jobID string, stage models.ProgressStage, stagePct float64, current, total int) {
	band := stageBands[stage]
	if stagePct < 0 {
		stagePct = 0
	}
	if stagePct > 100 {
		stagePct = 100
	}
	overall := int(band.base + band.span*stagePct/100)
	if overall > 100 {
		overall = 100
	}

	err := o.store.Update(jobID, func(j *models.Job) {
		if j.Progress != nil && overall < j.Progress.Percentage {
			overall = j.Progress.Percentage
		}
		j.Progress = &models.Progress{
			Stage:        stage,
			Percentage:   overall,
			CurrentFrame: current,
			TotalFrames:  total,
		}
	})
	if err != nil {
		o.log.Warn("job %s: progress update failed: %v", jobID, err)
		return
	}
	if o.logLimit.Allow() {
		o.log.Debug("job %s: %s %d%%", jobID, stage, overall)
	}
}

func (o *Orchestrator) transition(jobID string, to models.JobStatus) {
	err := o.store.Update(jobID, func(j *models.Job) {
		if err := models.ValidateTransition(j.Status, to); err != nil {
			o.log.Warn("job %s: %v", jobID, err)
			return
		}
		j.Status = to
	})
	if err != nil {
		o.log.Warn("job %s: status update failed: %v", jobID, err)
	}
}

func (o *Orchestrator) completeJob(jobID string, req SubmitRequest, outputPath string) {
	now := o.now()
	err := o.store.Update(jobID, func(j *models.Job) {
		j.Status = models.JobStatusCompleted
		j.OutputPath = outputPath
		j.CompletedAt = &now
		j.Progress = &models.Progress{Stage: models.StageMuxing, Percentage: 100}
	})
	if err != nil {
		o.log.Warn("job %s: completion update failed: %v", jobID, err)
	}

	// The quota is consumed only by a completed generation.
	if err := o.quota.Record(req.CallerKey); err != nil {
		o.log.Warn("job %s: quota record failed: %v", jobID, err)
	}

	if !o.opts.KeepUploads {
		if err := os.Remove(req.FacePath); err != nil && !os.IsNotExist(err) {
			o.log.Warn("job %s: removing uploaded face image failed: %v", jobID, err)
		}
	}

	o.metrics.JobFinished(string(models.JobStatusCompleted))
	o.log.Info("job %s completed: %s", jobID, outputPath)
}

func (o *Orchestrator) failJob(jobID string, cause error) {
	now := o.now()
	err := o.store.Update(jobID, func(j *models.Job) {
		j.Status = models.JobStatusFailed
		j.Error = cause.Error()
		j.CompletedAt = &now
	})
	if err != nil {
		o.log.Warn("job %s: failure update failed: %v", jobID, err)
	}
	o.metrics.JobFinished(string(models.JobStatusFailed))
	o.log.Error("job %s failed: %v", jobID, cause)
}
