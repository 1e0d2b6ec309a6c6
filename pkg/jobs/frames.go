package jobs

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/huynhanhkhoa2895/face-swap/pkg/models"
	"github.com/huynhanhkhoa2895/face-swap/pkg/video"
)

type frameTask struct {
	index int
	path  string
}

// compositeFrames runs the face blend over the extracted frame
// sequence with a bounded worker pool. Output frames keep their input
// index, so assembly order is unaffected by completion order.
//
// Per-frame blend failures are soft (the compositor passes the frame
// through); only a frame that cannot be written at all fails the job.
func (o *Orchestrator) compositeFrames(ctx context.Context, jobID string, ws *workspace, frames []string, facePath string, tmpl *models.Template, roll float64) error {
	total := len(frames)
	tasks := make(chan frameTask)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		done        atomic.Int64
		passthrough atomic.Int64
		errOnce     sync.Once
		firstErr    error
		wg          sync.WaitGroup
	)

	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for w := 0; w < o.opts.FrameWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range tasks {
				if ctx.Err() != nil {
					return
				}
				placement := o.framePlacement(tmpl, task.index, roll)
				outPath := ws.compositedFramePath(task.index)

				passed, err := o.compositor.ProcessFrame(task.path, facePath, outPath, placement)
				if err != nil {
					fail(err)
					return
				}
				o.metrics.FrameProcessed(passed)
				if passed {
					passthrough.Add(1)
				}

				n := int(done.Add(1))
				o.updateProgress(jobID, models.StageCompositing, float64(n)/float64(total)*100, n, total)
			}
		}()
	}

feed:
	for i, path := range frames {
		select {
		case tasks <- frameTask{index: i, path: path}:
		case <-ctx.Done():
			break feed
		}
	}
	close(tasks)
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if n := passthrough.Load(); n > 0 {
		o.log.Warn("job %s: %d of %d frames passed through without a blend", jobID, n, total)
	}
	return nil
}

// framePlacement resolves the placement for a 0-based frame index and
// folds the user's eye-line roll into the placement rotation, so the
// blended face comes out level with the template's pose.
func (o *Orchestrator) framePlacement(tmpl *models.Template, index int, roll float64) *models.FacePlacement {
	placement := tmpl.PlacementForFrame(index)
	if placement == nil || roll == 0 {
		return placement
	}
	adjusted := *placement
	adjusted.Rotation += roll
	return &adjusted
}

// compositedFramePath names output frames identically to their inputs
func (w *workspace) compositedFramePath(index int) string {
	return filepath.Join(w.composited, video.FrameFileName(index+1))
}
