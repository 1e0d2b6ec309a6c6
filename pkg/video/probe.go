package video

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Metadata describes a media file as reported by ffprobe
type Metadata struct {
	Duration float64
	FPS      float64
	Width    int
	Height   int
	Codec    string
	HasAudio bool
}

type probeFormat struct {
	Duration string `json:"duration"`
}

type probeStream struct {
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	RFrameRate string `json:"r_frame_rate"`
}

type probeOutput struct {
	Format  probeFormat   `json:"format"`
	Streams []probeStream `json:"streams"`
}

// Probe inspects a media file with ffprobe. It fails with
// ErrNoVideoStream when the file carries no video stream.
func (f *FFmpeg) Probe(ctx context.Context, path string) (Metadata, error) {
	args := []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}

	var out strings.Builder
	err := f.runner.Run(ctx, f.ffprobeBin, args, func(line string) {
		out.WriteString(line)
		out.WriteString("\n")
	})
	if err != nil {
		return Metadata{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	return parseProbeOutput(out.String())
}

func parseProbeOutput(raw string) (Metadata, error) {
	var parsed probeOutput
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return Metadata{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	meta := Metadata{}
	var video *probeStream
	for i := range parsed.Streams {
		switch parsed.Streams[i].CodecType {
		case "video":
			if video == nil {
				video = &parsed.Streams[i]
			}
		case "audio":
			meta.HasAudio = true
		}
	}
	if video == nil {
		return Metadata{}, ErrNoVideoStream
	}

	meta.Width = video.Width
	meta.Height = video.Height
	meta.Codec = video.CodecName
	meta.FPS = parseFrameRate(video.RFrameRate)
	if d, err := strconv.ParseFloat(parsed.Format.Duration, 64); err == nil {
		meta.Duration = d
	}
	return meta, nil
}

// parseFrameRate parses ffprobe's rational frame rate ("30000/1001"),
// defaulting to 30 when malformed.
func parseFrameRate(rate string) float64 {
	if rate == "" {
		return 30
	}
	parts := strings.SplitN(rate, "/", 2)
	if len(parts) == 2 {
		num, err1 := strconv.ParseFloat(parts[0], 64)
		den, err2 := strconv.ParseFloat(parts[1], 64)
		if err1 == nil && err2 == nil && den > 0 {
			return num / den
		}
		return 30
	}
	if v, err := strconv.ParseFloat(rate, 64); err == nil && v > 0 {
		return v
	}
	return 30
}
