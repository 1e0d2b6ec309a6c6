package video

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestProbe(t *testing.T) {
	runner := &fakeRunner{onRun: func(name string, args []string, onLine func(string)) error {
		if name != "ffprobe" {
			t.Errorf("expected ffprobe, got %s", name)
		}
		emitJSON(onLine, probeJSON)
		return nil
	}}

	meta, err := newTestFFmpeg(runner).Probe(context.Background(), "in.mp4")
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if meta.Duration != 2.0 || meta.FPS != 30 || meta.Width != 640 || meta.Height != 360 {
		t.Errorf("metadata wrong: %+v", meta)
	}
	if meta.Codec != "h264" || !meta.HasAudio {
		t.Errorf("stream info wrong: %+v", meta)
	}
}

func TestParseProbeOutputNoVideoStream(t *testing.T) {
	raw := `{"format": {"duration": "3.0"}, "streams": [{"codec_type": "audio"}]}`
	_, err := parseProbeOutput(raw)
	if !errors.Is(err, ErrNoVideoStream) {
		t.Errorf("audio-only file must yield ErrNoVideoStream, got %v", err)
	}
}

func TestParseProbeOutputInvalidJSON(t *testing.T) {
	if _, err := parseProbeOutput("not json"); err == nil {
		t.Error("invalid JSON must error")
	}
}

func TestParseProbeOutputPicksFirstVideoStream(t *testing.T) {
	raw := `{"streams": [
		{"codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080, "r_frame_rate": "25/1"},
		{"codec_type": "video", "codec_name": "mjpeg", "width": 320, "height": 240, "r_frame_rate": "1/1"}
	]}`
	meta, err := parseProbeOutput(raw)
	if err != nil {
		t.Fatal(err)
	}
	if meta.Codec != "h264" || meta.Width != 1920 {
		t.Errorf("first video stream should win, got %+v", meta)
	}
}

func TestParseFrameRate(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"30/1", 30},
		{"30000/1001", 30000.0 / 1001.0},
		{"25", 25},
		{"", 30},
		{"0/0", 30},
		{"garbage", 30},
	}
	for _, tc := range cases {
		if got := parseFrameRate(tc.in); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("parseFrameRate(%q) = %g, want %g", tc.in, got, tc.want)
		}
	}
}
