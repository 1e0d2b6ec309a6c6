package jobs

import (
	"fmt"
	"os"
	"path/filepath"
)

// workspace is the scratch directory tree for one job. Everything a
// job writes before its final output lives under root, so cleanup is
// a single recursive remove and can never touch another job's files.
type workspace struct {
	root       string
	frames     string
	composited string
}

func newWorkspace(workRoot, jobID string) (*workspace, error) {
	root := filepath.Join(workRoot, "job-"+jobID)
	ws := &workspace{
		root:       root,
		frames:     filepath.Join(root, "frames"),
		composited: filepath.Join(root, "composited"),
	}
	for _, dir := range []string{ws.frames, ws.composited} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create workspace %s: %w", dir, err)
		}
	}
	return ws, nil
}

// assembledPath is where the silent assembled video lands before muxing
func (w *workspace) assembledPath() string {
	return filepath.Join(w.root, "assembled.mp4")
}

// cleanup removes the whole workspace tree. It is called
// unconditionally when the job goroutine exits, success or failure.
func (w *workspace) cleanup() error {
	return os.RemoveAll(w.root)
}
