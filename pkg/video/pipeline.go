// Package video drives codec-level work through ffmpeg: frame
// extraction, frame-to-video assembly, and audio muxing, with
// frame-level progress reporting parsed from ffmpeg's machine-readable
// progress stream.
package video

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/huynhanhkhoa2895/face-swap/pkg/logging"
)

// framePattern gives frames a fixed-width monotonically increasing
// index so lexical sort order equals temporal order.
const framePattern = "frame_%04d.png"

// FrameFileName returns the file name for the 1-based frame index,
// matching the names ExtractFrames produces and AssembleVideo expects.
func FrameFileName(index int) string {
	return fmt.Sprintf(framePattern, index)
}

// Progress reports operation progress. Percentage is 0-100 within the
// running operation; values are monotonically non-decreasing.
type Progress struct {
	Percentage   float64
	CurrentFrame int
	TotalFrames  int
}

// ProgressFunc receives progress updates during long operations
type ProgressFunc func(Progress)

// FFmpeg runs the frame pipeline against external ffmpeg/ffprobe binaries
type FFmpeg struct {
	ffmpegBin  string
	ffprobeBin string
	runner     commandRunner
	log        *logging.Logger
}

// NewFFmpeg creates a pipeline using the given binaries. Empty paths
// fall back to "ffmpeg"/"ffprobe" resolved via PATH.
func NewFFmpeg(ffmpegBin, ffprobeBin string, log *logging.Logger) *FFmpeg {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	if ffprobeBin == "" {
		ffprobeBin = "ffprobe"
	}
	if log == nil {
		log = logging.New(logging.INFO, false)
	}
	return &FFmpeg{
		ffmpegBin:  ffmpegBin,
		ffprobeBin: ffprobeBin,
		runner:     execRunner{},
		log:        log.WithComponent("video"),
	}
}

// ExtractFrames decodes the source video into one PNG per output tick
// of targetFps, resampling when the native rate differs. It returns
// the extracted frame paths in strict ascending index order.
func (f *FFmpeg) ExtractFrames(ctx context.Context, videoPath, outDir string, targetFps float64, onProgress ProgressFunc) ([]string, error) {
	meta, err := f.Probe(ctx, videoPath)
	if err != nil {
		return nil, &ExtractionError{Err: err}
	}

	totalFrames := 0
	if meta.Duration > 0 {
		totalFrames = int(math.Ceil(meta.Duration * targetFps))
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, &ExtractionError{Err: err}
	}

	args := buildExtractArgs(videoPath, outDir, targetFps)
	f.log.Debug("extracting frames: %s %s", f.ffmpegBin, strings.Join(args, " "))

	tracker := newProgressTracker(totalFrames, onProgress)
	if err := f.runner.Run(ctx, f.ffmpegBin, args, tracker.consumeLine); err != nil {
		return nil, &ExtractionError{Err: err}
	}

	frames, err := listFrames(outDir)
	if err != nil {
		return nil, &ExtractionError{Err: err}
	}
	if len(frames) == 0 {
		return nil, &ExtractionError{Err: fmt.Errorf("ffmpeg produced no frames from %s", videoPath)}
	}

	tracker.finish(len(frames))
	f.log.Info("extracted %d frames from %s", len(frames), filepath.Base(videoPath))
	return frames, nil
}

// AssembleVideo encodes the frame sequence in framesDir at a constant
// targetFps into a seekable constant-quality H.264 file. Odd pixel
// dimensions are padded to even, which libx264 yuv420p requires.
func (f *FFmpeg) AssembleVideo(ctx context.Context, framesDir, outPath string, targetFps float64, onProgress ProgressFunc) error {
	frames, err := listFrames(framesDir)
	if err != nil {
		return &AssemblyError{Err: err}
	}
	if len(frames) == 0 {
		return &AssemblyError{Err: fmt.Errorf("frame sequence is empty: %s", framesDir)}
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return &AssemblyError{Err: err}
	}

	args := buildAssembleArgs(framesDir, outPath, targetFps)
	f.log.Debug("assembling video: %s %s", f.ffmpegBin, strings.Join(args, " "))

	tracker := newProgressTracker(len(frames), onProgress)
	if err := f.runner.Run(ctx, f.ffmpegBin, args, tracker.consumeLine); err != nil {
		return &AssemblyError{Err: err}
	}
	tracker.finish(len(frames))

	f.log.Info("assembled %d frames into %s", len(frames), filepath.Base(outPath))
	return nil
}

// MuxAudio copies the video stream verbatim and attaches a re-encoded
// audio track from audioSourcePath. Durations are deliberately not
// reconciled: the container's longer stream determines output length.
func (f *FFmpeg) MuxAudio(ctx context.Context, videoPath, audioSourcePath, outPath string) error {
	if _, err := os.Stat(videoPath); err != nil {
		return &MuxError{Err: fmt.Errorf("video input: %w", err)}
	}
	if _, err := os.Stat(audioSourcePath); err != nil {
		return &MuxError{Err: fmt.Errorf("audio input: %w", err)}
	}

	args := buildMuxArgs(videoPath, audioSourcePath, outPath)
	f.log.Debug("muxing audio: %s %s", f.ffmpegBin, strings.Join(args, " "))

	if err := f.runner.Run(ctx, f.ffmpegBin, args, nil); err != nil {
		return &MuxError{Err: err}
	}
	f.log.Info("attached audio track to %s", filepath.Base(outPath))
	return nil
}

func buildExtractArgs(videoPath, outDir string, fps float64) []string {
	return []string{
		"-hide_banner",
		"-i", videoPath,
		"-vf", fmt.Sprintf("fps=%g", fps),
		"-qscale:v", "2",
		"-progress", "pipe:1",
		"-nostats",
		"-y",
		filepath.Join(outDir, framePattern),
	}
}

func buildAssembleArgs(framesDir, outPath string, fps float64) []string {
	return []string{
		"-hide_banner",
		"-framerate", fmt.Sprintf("%g", fps),
		"-i", filepath.Join(framesDir, framePattern),
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "23",
		"-pix_fmt", "yuv420p",
		"-vf", "pad=ceil(iw/2)*2:ceil(ih/2)*2",
		"-progress", "pipe:1",
		"-nostats",
		"-y",
		outPath,
	}
}

func buildMuxArgs(videoPath, audioPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-i", videoPath,
		"-i", audioPath,
		"-c:v", "copy",
		"-c:a", "aac",
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-y",
		outPath,
	}
}

// listFrames returns frame files in lexical (= temporal) order as full paths
func listFrames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	frames := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "frame_") {
			continue
		}
		frames = append(frames, filepath.Join(dir, e.Name()))
	}
	sort.Strings(frames)
	return frames, nil
}

// progressTracker turns ffmpeg -progress output into monotonically
// non-decreasing percentage callbacks. When the total is unknown the
// percentage stays at 0 until it becomes known.
type progressTracker struct {
	total      int
	onProgress ProgressFunc
	lastPct    float64
}

func newProgressTracker(total int, onProgress ProgressFunc) *progressTracker {
	return &progressTracker{total: total, onProgress: onProgress}
}

func (t *progressTracker) consumeLine(line string) {
	frame, ok := parseProgressFrame(line)
	if !ok {
		return
	}
	t.report(frame)
}

func (t *progressTracker) report(frame int) {
	if t.onProgress == nil {
		return
	}
	pct := 0.0
	if t.total > 0 {
		pct = float64(frame) / float64(t.total) * 100
		if pct > 100 {
			pct = 100
		}
	}
	if pct < t.lastPct {
		pct = t.lastPct
	}
	t.lastPct = pct
	t.onProgress(Progress{
		Percentage:   pct,
		CurrentFrame: frame,
		TotalFrames:  t.total,
	})
}

func (t *progressTracker) finish(frames int) {
	if t.onProgress == nil {
		return
	}
	t.lastPct = 100
	t.onProgress(Progress{Percentage: 100, CurrentFrame: frames, TotalFrames: frames})
}

// parseProgressFrame extracts the frame counter from an ffmpeg
// -progress key=value line.
func parseProgressFrame(line string) (int, bool) {
	const key = "frame="
	if !strings.HasPrefix(line, key) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(line[len(key):]))
	if err != nil {
		return 0, false
	}
	return n, true
}
