// Package compositor produces output frames by blending the user's
// face into a template frame at a placement rectangle. Blending is
// geometric: cover-fit resize, optional rotation, first-moment color
// matching, radial alpha feathering, and an "over" composite. There is
// no generative synthesis here.
package compositor

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"os"

	_ "image/jpeg"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/huynhanhkhoa2895/face-swap/pkg/logging"
	"github.com/huynhanhkhoa2895/face-swap/pkg/models"
)

// Options controls blending behavior
type Options struct {
	FeatherRadius int
	BlendAlpha    float64
	ColorMatch    bool
}

// DefaultOptions returns the production blending defaults
func DefaultOptions() Options {
	return Options{
		FeatherRadius: 15,
		BlendAlpha:    0.95,
		ColorMatch:    true,
	}
}

// Compositor applies the face blend to individual frames
type Compositor struct {
	opts Options
	log  *logging.Logger
}

// New creates a compositor with the given options
func New(opts Options, log *logging.Logger) *Compositor {
	if log == nil {
		log = logging.New(logging.INFO, false)
	}
	return &Compositor{opts: opts, log: log.WithComponent("compositor")}
}

// ProcessFrame composites the user face onto one frame file and writes
// the result to outPath as PNG. Failures are soft: the original frame
// is copied through unchanged and passedThrough is reported true. An
// error is returned only when even the pass-through copy fails.
func (c *Compositor) ProcessFrame(framePath, facePath, outPath string, placement *models.FacePlacement) (passedThrough bool, err error) {
	if placement == nil {
		return true, copyFile(framePath, outPath)
	}

	out, compErr := c.compositeFiles(framePath, facePath, placement)
	if compErr != nil {
		c.log.Warn("frame composite failed, passing frame through: %v", compErr)
		return true, copyFile(framePath, outPath)
	}

	if err := writePNG(outPath, out); err != nil {
		c.log.Warn("writing composited frame failed, passing frame through: %v", err)
		return true, copyFile(framePath, outPath)
	}
	return false, nil
}

func (c *Compositor) compositeFiles(framePath, facePath string, placement *models.FacePlacement) (*image.NRGBA, error) {
	frame, err := loadImage(framePath)
	if err != nil {
		return nil, fmt.Errorf("load frame: %w", err)
	}
	face, err := loadImage(facePath)
	if err != nil {
		return nil, fmt.Errorf("load face: %w", err)
	}
	return Composite(frame, face, *placement, c.opts)
}

// Composite blends the face image into the frame at the placement
// rectangle and returns a new frame image. The input frame is not
// modified.
func Composite(frame image.Image, face image.Image, placement models.FacePlacement, opts Options) (*image.NRGBA, error) {
	if placement.Width <= 0 || placement.Height <= 0 {
		return nil, fmt.Errorf("placement region has zero size: %dx%d", placement.Width, placement.Height)
	}
	fb := face.Bounds()
	if fb.Dx() == 0 || fb.Dy() == 0 {
		return nil, fmt.Errorf("face image is empty")
	}

	out := cloneNRGBA(frame)

	prepared := coverResize(face, placement.Width, placement.Height)
	if placement.Rotation != 0 {
		prepared = rotateAboutCenter(prepared, placement.Rotation*math.Pi/180)
	}
	if opts.ColorMatch {
		fr, fg, fbMean := channelMeans(frame)
		sr, sg, sb := channelMeans(prepared)
		shiftChannels(prepared, fr-sr, fg-sg, fbMean-sb)
	}
	if opts.FeatherRadius > 0 {
		applyRadialFeather(prepared)
	}

	blendOver(out, prepared, placement.X, placement.Y, opts.BlendAlpha)
	return out, nil
}

// coverResize scales the source to fully cover a w x h rectangle,
// preserving aspect ratio and cropping the overflow, centered.
func coverResize(src image.Image, w, h int) *image.NRGBA {
	sb := src.Bounds()
	srcW, srcH := sb.Dx(), sb.Dy()

	scale := math.Max(float64(w)/float64(srcW), float64(h)/float64(srcH))
	cropW := int(math.Round(float64(w) / scale))
	cropH := int(math.Round(float64(h) / scale))
	if cropW > srcW {
		cropW = srcW
	}
	if cropH > srcH {
		cropH = srcH
	}
	x0 := sb.Min.X + (srcW-cropW)/2
	y0 := sb.Min.Y + (srcH-cropH)/2
	sr := image.Rect(x0, y0, x0+cropW, y0+cropH)

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, sr, draw.Src, nil)
	return dst
}

// rotateAboutCenter rotates the image by the given angle (radians)
// about its own center into a same-sized canvas. Uncovered corners are
// left fully transparent.
func rotateAboutCenter(src *image.NRGBA, angle float64) *image.NRGBA {
	b := src.Bounds()
	cx := float64(b.Dx()) / 2
	cy := float64(b.Dy()) / 2
	cos := math.Cos(angle)
	sin := math.Sin(angle)

	// src -> dst affine: translate center to origin, rotate, translate back
	m := f64.Aff3{
		cos, -sin, cx - cos*cx + sin*cy,
		sin, cos, cy - sin*cx - cos*cy,
	}

	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.BiLinear.Transform(dst, m, src, b, draw.Src, nil)
	return dst
}

// channelMeans returns the mean R, G, B intensity of the image in the
// 0-255 range, ignoring fully transparent pixels.
func channelMeans(img image.Image) (float64, float64, float64) {
	b := img.Bounds()
	var r, g, bl float64
	var n float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			pr, pg, pb, pa := img.At(x, y).RGBA()
			if pa == 0 {
				continue
			}
			r += float64(pr >> 8)
			g += float64(pg >> 8)
			bl += float64(pb >> 8)
			n++
		}
	}
	if n == 0 {
		return 0, 0, 0
	}
	return r / n, g / n, bl / n
}

// shiftChannels adds a constant per-channel offset, clamped to 0-255.
// This is a first-moment correction, not histogram matching.
func shiftChannels(img *image.NRGBA, dr, dg, db float64) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i := img.PixOffset(x, y)
			if img.Pix[i+3] == 0 {
				continue
			}
			img.Pix[i] = clampByte(float64(img.Pix[i]) + dr)
			img.Pix[i+1] = clampByte(float64(img.Pix[i+1]) + dg)
			img.Pix[i+2] = clampByte(float64(img.Pix[i+2]) + db)
		}
	}
}

// applyRadialFeather multiplies a radial gradient into the alpha
// channel: opaque at the center, fully transparent at radius
// min(w,h)/2, so the composited edge fades out softly.
func applyRadialFeather(img *image.NRGBA) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	cx := float64(w) / 2
	cy := float64(h) / 2
	radius := math.Min(cx, cy)
	if radius <= 0 {
		return
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			d := math.Hypot(float64(x)+0.5-cx, float64(y)+0.5-cy)
			factor := 1 - d/radius
			if factor >= 1 {
				continue
			}
			if factor < 0 {
				factor = 0
			}
			i := img.PixOffset(x, y)
			img.Pix[i+3] = uint8(float64(img.Pix[i+3]) * factor)
		}
	}
}

// blendOver alpha-composites the face onto dst at (ox, oy) using the
// standard "over" operator with the face alpha scaled by blendAlpha.
func blendOver(dst *image.NRGBA, face *image.NRGBA, ox, oy int, blendAlpha float64) {
	if blendAlpha < 0 {
		blendAlpha = 0
	}
	if blendAlpha > 1 {
		blendAlpha = 1
	}
	fb := face.Bounds()
	db := dst.Bounds()
	for y := 0; y < fb.Dy(); y++ {
		dy := oy + y
		if dy < db.Min.Y || dy >= db.Max.Y {
			continue
		}
		for x := 0; x < fb.Dx(); x++ {
			dx := ox + x
			if dx < db.Min.X || dx >= db.Max.X {
				continue
			}
			fi := face.PixOffset(x, y)
			fa := float64(face.Pix[fi+3]) / 255 * blendAlpha
			if fa == 0 {
				continue
			}
			di := dst.PixOffset(dx, dy)
			da := float64(dst.Pix[di+3]) / 255
			outA := fa + da*(1-fa)
			if outA == 0 {
				continue
			}
			for c := 0; c < 3; c++ {
				fc := float64(face.Pix[fi+c])
				dc := float64(dst.Pix[di+c])
				dst.Pix[di+c] = clampByte((fc*fa + dc*da*(1-fa)) / outA)
			}
			dst.Pix[di+3] = clampByte(outA * 255)
		}
	}
}

func cloneNRGBA(src image.Image) *image.NRGBA {
	if n, ok := src.(*image.NRGBA); ok {
		out := image.NewNRGBA(n.Bounds())
		copy(out.Pix, n.Pix)
		return out
	}
	b := src.Bounds()
	out := image.NewNRGBA(b)
	draw.Draw(out, b, src, b.Min, draw.Src)
	return out
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source frame: %w", err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create output frame: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy frame: %w", err)
	}
	return nil
}
