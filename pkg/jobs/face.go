package jobs

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"

	_ "image/jpeg"

	"github.com/huynhanhkhoa2895/face-swap/pkg/detect"
	"github.com/huynhanhkhoa2895/face-swap/pkg/geometry"
	"github.com/huynhanhkhoa2895/face-swap/pkg/models"
)

// cropMargin widens the detected face box on every side so the crop
// keeps some forehead, chin, and ears for the blend to feather into.
const cropMargin = 0.25

// prepareFace validates the uploaded image and produces the face crop
// used for every frame, plus the eye-line roll in degrees.
//
// Detection is a capability, not a requirement: when the detector is
// unavailable the original upload is used as-is with zero roll. A
// detector that runs but finds no acceptable face fails the job.
func (o *Orchestrator) prepareFace(ctx context.Context, ws *workspace, uploadPath string) (string, float64, error) {
	if o.detector == nil {
		return uploadPath, 0, nil
	}
	det, err := o.detector.DetectFace(ctx, uploadPath)
	if err != nil {
		if errors.Is(err, detect.ErrUnavailable) {
			o.log.Warn("face detection unavailable, using upload unmodified: %v", err)
			return uploadPath, 0, nil
		}
		return "", 0, err
	}
	if err := detect.Validate(det); err != nil {
		return "", 0, err
	}

	cropped, err := cropFace(uploadPath, det.Box)
	if err != nil {
		return "", 0, fmt.Errorf("crop face: %w", err)
	}

	facePath := filepath.Join(ws.root, "face.png")
	if err := writeFacePNG(facePath, cropped); err != nil {
		return "", 0, fmt.Errorf("write face crop: %w", err)
	}
	return facePath, eyeRoll(det.Landmarks), nil
}

// eyeRoll returns the degrees to rotate the face so its eye line
// becomes horizontal. Degenerate landmarks yield zero roll rather than
// an error, since alignment is an enhancement, not a requirement.
func eyeRoll(lm models.Landmarks) float64 {
	source := models.Landmarks{
		Points:   []models.Point{lm.LeftEye, lm.RightEye},
		LeftEye:  lm.LeftEye,
		RightEye: lm.RightEye,
	}
	target := models.Landmarks{
		Points:   []models.Point{{X: 0, Y: 0}, {X: 1, Y: 0}},
		LeftEye:  models.Point{X: 0, Y: 0},
		RightEye: models.Point{X: 1, Y: 0},
	}
	tr, err := geometry.ComputeTransform(source, target)
	if err != nil {
		return 0
	}
	return tr.Rotation * 180 / math.Pi
}

// cropFace cuts the detected box out of the upload, widened by
// cropMargin and clamped to the image bounds.
func cropFace(path string, box models.Box) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}

	marginX := box.Width * cropMargin
	marginY := box.Height * cropMargin
	rect := image.Rect(
		int(box.X-marginX),
		int(box.Y-marginY),
		int(box.X+box.Width+marginX),
		int(box.Y+box.Height+marginY),
	).Intersect(img.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("face box %v lies outside the image", box)
	}

	type subImager interface {
		SubImage(r image.Rectangle) image.Image
	}
	if s, ok := img.(subImager); ok {
		return s.SubImage(rect), nil
	}

	out := image.NewNRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	for y := 0; y < rect.Dy(); y++ {
		for x := 0; x < rect.Dx(); x++ {
			out.Set(x, y, img.At(rect.Min.X+x, rect.Min.Y+y))
		}
	}
	return out, nil
}

func writeFacePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
