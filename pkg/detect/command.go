package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/huynhanhkhoa2895/face-swap/pkg/models"
)

// commandRunner abstracts process execution for testability
type commandRunner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execOutputRunner struct{}

func (execOutputRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, bytes.TrimSpace(stderr.Bytes()))
	}
	return stdout.Bytes(), nil
}

// detectorOutput is the JSON shape the landmarker tool emits on stdout
type detectorOutput struct {
	Found     bool             `json:"found"`
	Score     float64          `json:"score"`
	Box       models.Box       `json:"box"`
	Landmarks models.Landmarks `json:"landmarks"`
}

// CommandDetector shells out to an external landmarker binary that
// reads an image and prints one JSON detection on stdout.
type CommandDetector struct {
	bin    string
	runner commandRunner
}

// NewCommandDetector creates a detector backed by the given binary
func NewCommandDetector(bin string) *CommandDetector {
	return &CommandDetector{bin: bin, runner: execOutputRunner{}}
}

// DetectFace invokes the landmarker and maps its output into a
// Detection. A run that reports found=false yields ErrNoFaceDetected.
func (d *CommandDetector) DetectFace(ctx context.Context, imagePath string) (models.Detection, error) {
	out, err := d.runner.Output(ctx, d.bin, "--image", imagePath, "--format", "json")
	if err != nil {
		return models.Detection{}, fmt.Errorf("detector invocation: %w", err)
	}

	var parsed detectorOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return models.Detection{}, fmt.Errorf("parse detector output: %w", err)
	}
	if !parsed.Found {
		return models.Detection{}, ErrNoFaceDetected
	}

	return models.Detection{
		Score:     parsed.Score,
		Box:       parsed.Box,
		Landmarks: parsed.Landmarks,
	}, nil
}
