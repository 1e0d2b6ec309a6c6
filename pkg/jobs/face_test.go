package jobs

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/huynhanhkhoa2895/face-swap/pkg/detect"
	"github.com/huynhanhkhoa2895/face-swap/pkg/models"
)

type fakeDetector struct {
	det models.Detection
	err error
}

func (f *fakeDetector) DetectFace(ctx context.Context, imagePath string) (models.Detection, error) {
	return f.det, f.err
}

func writeUpload(t *testing.T, dir string, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x % 256), G: uint8(y % 256), A: 255})
		}
	}
	path := filepath.Join(dir, "upload.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestEyeRoll(t *testing.T) {
	level := models.Landmarks{
		LeftEye:  models.Point{X: 10, Y: 50},
		RightEye: models.Point{X: 90, Y: 50},
	}
	if got := eyeRoll(level); math.Abs(got) > 1e-9 {
		t.Errorf("level eyes should have zero roll, got %g", got)
	}

	// Right eye lower than left by 45 degrees.
	tilted := models.Landmarks{
		LeftEye:  models.Point{X: 0, Y: 0},
		RightEye: models.Point{X: 10, Y: 10},
	}
	if got := eyeRoll(tilted); math.Abs(got+45) > 1e-6 {
		t.Errorf("tilted eyes should roll -45 degrees to level, got %g", got)
	}

	// Coincident eyes cannot define a roll; fall back to zero.
	point := models.Point{X: 5, Y: 5}
	degenerate := models.Landmarks{LeftEye: point, RightEye: point}
	if got := eyeRoll(degenerate); got != 0 {
		t.Errorf("degenerate landmarks should yield zero roll, got %g", got)
	}
}

func TestCropFace(t *testing.T) {
	dir := t.TempDir()
	path := writeUpload(t, dir, 200, 200)

	box := models.Box{X: 50, Y: 50, Width: 100, Height: 100}
	img, err := cropFace(path, box)
	if err != nil {
		t.Fatalf("cropFace: %v", err)
	}

	// 25% margin on each side of a 100px box is 25px, so 150x150.
	b := img.Bounds()
	if b.Dx() != 150 || b.Dy() != 150 {
		t.Errorf("crop size: got %dx%d, want 150x150", b.Dx(), b.Dy())
	}
}

func TestCropFaceClampsToImage(t *testing.T) {
	dir := t.TempDir()
	path := writeUpload(t, dir, 100, 100)

	// Box hugging the top-left corner: margin would go negative.
	box := models.Box{X: 0, Y: 0, Width: 60, Height: 60}
	img, err := cropFace(path, box)
	if err != nil {
		t.Fatalf("cropFace: %v", err)
	}
	b := img.Bounds()
	if b.Dx() > 100 || b.Dy() > 100 {
		t.Errorf("crop must stay inside the image, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestCropFaceOutsideImage(t *testing.T) {
	dir := t.TempDir()
	path := writeUpload(t, dir, 50, 50)
	box := models.Box{X: 500, Y: 500, Width: 100, Height: 100}
	if _, err := cropFace(path, box); err == nil {
		t.Error("a box fully outside the image must error")
	}
}

func TestPrepareFaceUnavailableDetector(t *testing.T) {
	env := newTestEnv(t)
	env.orch.detector = detect.Unavailable("not installed")

	ws, err := newWorkspace(env.workRoot, "prep-test")
	if err != nil {
		t.Fatal(err)
	}
	defer ws.cleanup()

	facePath, roll, err := env.orch.prepareFace(context.Background(), ws, env.facePath)
	if err != nil {
		t.Fatalf("unavailable detector must not fail preparation: %v", err)
	}
	if facePath != env.facePath || roll != 0 {
		t.Errorf("upload should be used unmodified, got (%s, %g)", facePath, roll)
	}
}

func TestPrepareFaceNoFaceFailsJob(t *testing.T) {
	env := newTestEnv(t)
	env.orch.detector = &fakeDetector{err: detect.ErrNoFaceDetected}
	snap := env.submit(t)

	final := waitTerminal(t, env.orch, snap.ID)
	if final.Status != models.JobStatusFailed {
		t.Fatalf("no face in the upload must fail the job, got %s", final.Status)
	}
	if !strings.Contains(final.Error, "no face detected") {
		t.Errorf("error should carry the detection failure: %s", final.Error)
	}
}

func TestPrepareFaceValidationRejectsWeakDetection(t *testing.T) {
	env := newTestEnv(t)
	env.orch.detector = &fakeDetector{det: models.Detection{
		Score: 0.2,
		Box:   models.Box{X: 0, Y: 0, Width: 100, Height: 100},
	}}
	snap := env.submit(t)

	final := waitTerminal(t, env.orch, snap.ID)
	if final.Status != models.JobStatusFailed {
		t.Fatalf("low-confidence detection must fail the job, got %s", final.Status)
	}
}

func TestPrepareFaceCropsAndReportsRoll(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	upload := writeUpload(t, dir, 400, 400)
	env.orch.detector = &fakeDetector{det: models.Detection{
		Score: 0.95,
		Box:   models.Box{X: 100, Y: 100, Width: 200, Height: 200},
		Landmarks: models.Landmarks{
			LeftEye:  models.Point{X: 150, Y: 160},
			RightEye: models.Point{X: 250, Y: 160},
		},
	}}

	ws, err := newWorkspace(env.workRoot, "prep-crop")
	if err != nil {
		t.Fatal(err)
	}
	defer ws.cleanup()

	facePath, roll, err := env.orch.prepareFace(context.Background(), ws, upload)
	if err != nil {
		t.Fatalf("prepareFace: %v", err)
	}
	if facePath == upload {
		t.Error("a successful detection should produce a cropped face file")
	}
	if _, err := os.Stat(facePath); err != nil {
		t.Errorf("cropped face file missing: %v", err)
	}
	if roll != 0 {
		t.Errorf("level eyes should report zero roll, got %g", roll)
	}
}
