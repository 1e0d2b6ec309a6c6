// Package geometry computes face placement transforms from landmark
// sets. Everything here is pure math with no I/O.
package geometry

import (
	"errors"
	"math"

	"github.com/huynhanhkhoa2895/face-swap/pkg/models"
)

var (
	// ErrDegenerateGeometry is returned when the source eye distance is
	// zero, which would make the scale factor undefined.
	ErrDegenerateGeometry = errors.New("degenerate geometry: source eye distance is zero")

	// ErrEmptyPointSet is returned when a centroid is requested for an
	// empty point set.
	ErrEmptyPointSet = errors.New("empty point set")
)

// Transform places a source face onto a target face: rotate by
// Rotation radians, scale per axis, then translate.
type Transform struct {
	Rotation   float64
	ScaleX     float64
	ScaleY     float64
	TranslateX float64
	TranslateY float64
}

// Centroid returns the arithmetic mean of a non-empty point set.
func Centroid(points []models.Point) (models.Point, error) {
	if len(points) == 0 {
		return models.Point{}, ErrEmptyPointSet
	}
	var sum models.Point
	for _, p := range points {
		sum.X += p.X
		sum.Y += p.Y
	}
	n := float64(len(points))
	return models.Point{X: sum.X / n, Y: sum.Y / n}, nil
}

// ComputeTransform derives the rotation, scale, and translation that
// map the source landmark set onto the target. The outer-eye line is
// the reference axis: rotation is the difference between the target
// and source eye-line angles, scale is the ratio of eye distances
// (uniform on both axes), and translation maps the scaled source
// centroid onto the target centroid.
func ComputeTransform(source, target models.Landmarks) (Transform, error) {
	sourceDX := source.RightEye.X - source.LeftEye.X
	sourceDY := source.RightEye.Y - source.LeftEye.Y
	targetDX := target.RightEye.X - target.LeftEye.X
	targetDY := target.RightEye.Y - target.LeftEye.Y

	sourceDist := math.Hypot(sourceDX, sourceDY)
	if sourceDist == 0 {
		return Transform{}, ErrDegenerateGeometry
	}
	targetDist := math.Hypot(targetDX, targetDY)

	rotation := math.Atan2(targetDY, targetDX) - math.Atan2(sourceDY, sourceDX)
	scale := targetDist / sourceDist

	sourceCenter, err := Centroid(source.Points)
	if err != nil {
		return Transform{}, err
	}
	targetCenter, err := Centroid(target.Points)
	if err != nil {
		return Transform{}, err
	}

	return Transform{
		Rotation:   rotation,
		ScaleX:     scale,
		ScaleY:     scale,
		TranslateX: targetCenter.X - sourceCenter.X*scale,
		TranslateY: targetCenter.Y - sourceCenter.Y*scale,
	}, nil
}

// Apply maps a source point through the transform.
func (t Transform) Apply(p models.Point) models.Point {
	cos := math.Cos(t.Rotation)
	sin := math.Sin(t.Rotation)
	x := p.X * t.ScaleX
	y := p.Y * t.ScaleY
	return models.Point{
		X: x*cos - y*sin + t.TranslateX,
		Y: x*sin + y*cos + t.TranslateY,
	}
}
