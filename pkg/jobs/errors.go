package jobs

import (
	"errors"
	"fmt"

	"github.com/huynhanhkhoa2895/face-swap/pkg/models"
)

var (
	// ErrOutputNotAvailable is returned when a job's output location is
	// requested before the job has completed.
	ErrOutputNotAvailable = errors.New("job output not available")

	// ErrJobNotRunning is returned when cancellation is requested for a
	// job that is not currently processing.
	ErrJobNotRunning = errors.New("job is not running")

	// ErrShuttingDown rejects new submissions once shutdown has begun
	ErrShuttingDown = errors.New("orchestrator is shutting down")
)

// PipelineError records which stage a job failed in. The stage name
// is what ends up in the job record's error text, so operators can
// tell an extraction failure from a muxing one without log diving.
type PipelineError struct {
	Stage models.ProgressStage
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }
