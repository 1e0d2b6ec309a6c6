// Package detect defines the face/landmark detection capability the
// pipeline consumes. Detection itself is an external collaborator; the
// pipeline only needs a resolved Detector instance, which is either
// backed by a real tool or explicitly unavailable at process start.
package detect

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/huynhanhkhoa2895/face-swap/pkg/models"
)

var (
	// ErrNoFaceDetected is reported when the detector finds no face in
	// an image.
	ErrNoFaceDetected = errors.New("no face detected")

	// ErrUnavailable is reported by a detector whose backing tool was
	// missing at process start.
	ErrUnavailable = errors.New("face detector unavailable")
)

// Detector finds a single face with landmarks in an image file
type Detector interface {
	DetectFace(ctx context.Context, imagePath string) (models.Detection, error)
}

// Available reports whether the detector is backed by a real tool
func Available(d Detector) bool {
	_, unavailable := d.(*unavailableDetector)
	return d != nil && !unavailable
}

type unavailableDetector struct {
	reason string
}

func (d *unavailableDetector) DetectFace(ctx context.Context, imagePath string) (models.Detection, error) {
	return models.Detection{}, fmt.Errorf("%w: %s", ErrUnavailable, d.reason)
}

// Unavailable returns a detector variant that always reports
// ErrUnavailable with the given reason. Injecting this instead of nil
// keeps capability checks out of the orchestrator's hot path.
func Unavailable(reason string) Detector {
	return &unavailableDetector{reason: reason}
}

// Resolve resolves the detection capability once at startup. With an
// empty binary path, or a path that cannot be found, the capability is
// unavailable; jobs still run, but upload validation and face
// alignment are skipped.
func Resolve(binPath string) Detector {
	if binPath == "" {
		return Unavailable("no detector binary configured")
	}
	if _, err := exec.LookPath(binPath); err != nil {
		return Unavailable(fmt.Sprintf("detector binary not found: %s", binPath))
	}
	return NewCommandDetector(binPath)
}

// Validate applies the upload acceptance rules to a detection result:
// minimum confidence, minimum face size, and a non-negative origin.
func Validate(det models.Detection) error {
	var problems []string
	if det.Score < 0.5 {
		problems = append(problems, "face detection confidence too low")
	}
	const minSize = 50
	if det.Box.Width < minSize || det.Box.Height < minSize {
		problems = append(problems, "face too small in image")
	}
	if det.Box.X < 0 || det.Box.Y < 0 {
		problems = append(problems, "face position invalid")
	}
	if len(problems) > 0 {
		return fmt.Errorf("face validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}
