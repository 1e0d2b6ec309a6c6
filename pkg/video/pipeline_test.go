package video

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeRunner scripts command executions per binary name
type fakeRunner struct {
	// onRun is invoked for every command; it may emit stdout lines via
	// onLine and return the command's error.
	onRun func(name string, args []string, onLine func(string)) error
	calls [][]string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args []string, onLine func(string)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.calls = append(f.calls, append([]string{name}, args...))
	return f.onRun(name, args, onLine)
}

const probeJSON = `{
	"format": {"duration": "2.0"},
	"streams": [
		{"codec_type": "video", "codec_name": "h264", "width": 640, "height": 360, "r_frame_rate": "30/1"},
		{"codec_type": "audio", "codec_name": "aac"}
	]
}`

func emitJSON(onLine func(string), raw string) {
	for _, line := range strings.Split(raw, "\n") {
		onLine(line)
	}
}

func newTestFFmpeg(runner *fakeRunner) *FFmpeg {
	f := NewFFmpeg("ffmpeg", "ffprobe", nil)
	f.runner = runner
	return f
}

func TestExtractFrames(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "frames")

	runner := &fakeRunner{onRun: func(name string, args []string, onLine func(string)) error {
		if name == "ffprobe" {
			emitJSON(onLine, probeJSON)
			return nil
		}
		// 2s at 10fps: pretend ffmpeg wrote 20 frames with progress.
		for i := 1; i <= 20; i++ {
			if err := os.WriteFile(filepath.Join(outDir, FrameFileName(i)), []byte("png"), 0o644); err != nil {
				return err
			}
		}
		onLine("frame=10")
		onLine("frame=20")
		return nil
	}}

	var updates []Progress
	frames, err := newTestFFmpeg(runner).ExtractFrames(context.Background(), "in.mp4", outDir, 10, func(p Progress) {
		updates = append(updates, p)
	})
	if err != nil {
		t.Fatalf("ExtractFrames: %v", err)
	}
	if len(frames) != 20 {
		t.Fatalf("expected 20 frames, got %d", len(frames))
	}
	if filepath.Base(frames[0]) != "frame_0001.png" || filepath.Base(frames[19]) != "frame_0020.png" {
		t.Errorf("frames out of order: %s ... %s", frames[0], frames[19])
	}
	if len(updates) == 0 || updates[len(updates)-1].Percentage != 100 {
		t.Errorf("final progress should be 100, got %+v", updates)
	}
	for i := 1; i < len(updates); i++ {
		if updates[i].Percentage < updates[i-1].Percentage {
			t.Errorf("progress went backwards: %v -> %v", updates[i-1], updates[i])
		}
	}
}

func TestExtractFramesNoOutput(t *testing.T) {
	outDir := t.TempDir()
	runner := &fakeRunner{onRun: func(name string, args []string, onLine func(string)) error {
		if name == "ffprobe" {
			emitJSON(onLine, probeJSON)
		}
		return nil
	}}

	_, err := newTestFFmpeg(runner).ExtractFrames(context.Background(), "in.mp4", outDir, 10, nil)
	var extractErr *ExtractionError
	if !errors.As(err, &extractErr) {
		t.Fatalf("empty output must be an ExtractionError, got %v", err)
	}
}

func TestExtractFramesProbeFailure(t *testing.T) {
	runner := &fakeRunner{onRun: func(name string, args []string, onLine func(string)) error {
		return fmt.Errorf("boom")
	}}
	_, err := newTestFFmpeg(runner).ExtractFrames(context.Background(), "in.mp4", t.TempDir(), 10, nil)
	var extractErr *ExtractionError
	if !errors.As(err, &extractErr) {
		t.Fatalf("probe failure must be an ExtractionError, got %v", err)
	}
}

func TestAssembleVideoEmptyDir(t *testing.T) {
	runner := &fakeRunner{onRun: func(name string, args []string, onLine func(string)) error { return nil }}
	err := newTestFFmpeg(runner).AssembleVideo(context.Background(), t.TempDir(), filepath.Join(t.TempDir(), "out.mp4"), 30, nil)
	var assemblyErr *AssemblyError
	if !errors.As(err, &assemblyErr) {
		t.Fatalf("empty frame dir must be an AssemblyError, got %v", err)
	}
	if len(runner.calls) != 0 {
		t.Error("ffmpeg must not run when there are no frames")
	}
}

func TestMuxAudioMissingInput(t *testing.T) {
	runner := &fakeRunner{onRun: func(name string, args []string, onLine func(string)) error { return nil }}
	err := newTestFFmpeg(runner).MuxAudio(context.Background(), "/does/not/exist.mp4", "/neither.mp3", "out.mp4")
	var muxErr *MuxError
	if !errors.As(err, &muxErr) {
		t.Fatalf("missing input must be a MuxError, got %v", err)
	}
}

func TestBuildExtractArgs(t *testing.T) {
	args := strings.Join(buildExtractArgs("in.mp4", "/tmp/frames", 30), " ")
	for _, want := range []string{"-vf fps=30", "-qscale:v 2", "-progress pipe:1", "-nostats", "frame_%04d.png"} {
		if !strings.Contains(args, want) {
			t.Errorf("extract args missing %q: %s", want, args)
		}
	}
}

func TestBuildAssembleArgs(t *testing.T) {
	args := strings.Join(buildAssembleArgs("/tmp/frames", "out.mp4", 25), " ")
	for _, want := range []string{
		"-framerate 25",
		"-c:v libx264",
		"-preset medium",
		"-crf 23",
		"-pix_fmt yuv420p",
		"pad=ceil(iw/2)*2:ceil(ih/2)*2",
	} {
		if !strings.Contains(args, want) {
			t.Errorf("assemble args missing %q: %s", want, args)
		}
	}
}

func TestBuildMuxArgs(t *testing.T) {
	args := strings.Join(buildMuxArgs("silent.mp4", "audio.mp3", "out.mp4"), " ")
	for _, want := range []string{"-c:v copy", "-c:a aac", "-map 0:v:0", "-map 1:a:0"} {
		if !strings.Contains(args, want) {
			t.Errorf("mux args missing %q: %s", want, args)
		}
	}
	// Stream durations are not reconciled, so -shortest must be absent.
	if strings.Contains(args, "-shortest") {
		t.Errorf("mux args must not trim to the shortest stream: %s", args)
	}
}

func TestParseProgressFrame(t *testing.T) {
	cases := []struct {
		line  string
		frame int
		ok    bool
	}{
		{"frame=42", 42, true},
		{"frame= 42", 42, true},
		{"fps=30.0", 0, false},
		{"frame=abc", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		frame, ok := parseProgressFrame(tc.line)
		if frame != tc.frame || ok != tc.ok {
			t.Errorf("parseProgressFrame(%q) = (%d, %v), want (%d, %v)", tc.line, frame, ok, tc.frame, tc.ok)
		}
	}
}

func TestProgressTrackerMonotonic(t *testing.T) {
	var got []float64
	tr := newProgressTracker(100, func(p Progress) { got = append(got, p.Percentage) })

	tr.report(50)
	tr.report(30) // out-of-order update must not regress
	tr.report(80)
	tr.report(200) // beyond total clamps to 100

	want := []float64{50, 50, 80, 100}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestProgressTrackerUnknownTotal(t *testing.T) {
	var got []float64
	tr := newProgressTracker(0, func(p Progress) { got = append(got, p.Percentage) })
	tr.report(10)
	tr.report(50)
	for _, pct := range got {
		if pct != 0 {
			t.Errorf("unknown total should hold percentage at 0, got %v", got)
		}
	}
	tr.finish(50)
	if got[len(got)-1] != 100 {
		t.Error("finish should report 100")
	}
}

func TestListFramesIgnoresStrays(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"frame_0002.png", "frame_0001.png", "notes.txt", ".hidden"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	frames, err := listFrames(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 2 || filepath.Base(frames[0]) != "frame_0001.png" {
		t.Errorf("expected sorted frame files only, got %v", frames)
	}
}
