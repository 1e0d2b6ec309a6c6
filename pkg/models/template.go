package models

import "fmt"

// Resolution holds template video pixel dimensions
type Resolution struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// FacePlacement is a rectangular destination for the user's face plus
// the frame range during which it applies. FrameStart/FrameEnd are
// optional; an unset start means frame 0 and an unset end means the
// last frame of the template. The end bound is inclusive.
type FacePlacement struct {
	X          int     `json:"x" yaml:"x"`
	Y          int     `json:"y" yaml:"y"`
	Width      int     `json:"width" yaml:"width"`
	Height     int     `json:"height" yaml:"height"`
	Rotation   float64 `json:"rotation,omitempty" yaml:"rotation,omitempty"`
	FrameStart *int    `json:"frame_start,omitempty" yaml:"frame_start,omitempty"`
	FrameEnd   *int    `json:"frame_end,omitempty" yaml:"frame_end,omitempty"`
}

// Template describes one pre-recorded swap video. Templates are
// immutable; the pipeline only borrows them during job execution.
type Template struct {
	ID            string          `json:"id" yaml:"id"`
	Name          string          `json:"name" yaml:"name"`
	Character     string          `json:"character,omitempty" yaml:"character,omitempty"`
	Gender        string          `json:"gender,omitempty" yaml:"gender,omitempty"`
	VideoPath     string          `json:"video_path" yaml:"video_path"`
	AudioPath     string          `json:"audio_path,omitempty" yaml:"audio_path,omitempty"`
	ThumbnailPath string          `json:"thumbnail_path,omitempty" yaml:"thumbnail_path,omitempty"`
	FPS           float64         `json:"fps" yaml:"fps"`
	TotalFrames   int             `json:"total_frames" yaml:"total_frames"`
	Resolution    Resolution      `json:"resolution,omitempty" yaml:"resolution,omitempty"`
	Placements    []FacePlacement `json:"placements" yaml:"placements"`
}

// PlacementForFrame returns the face placement active at the given
// frame index. Ranges may overlap; the first match wins. When no range
// matches, the first placement is the default. A template with zero
// placements returns nil, which callers treat as pass-through.
func (t *Template) PlacementForFrame(frame int) *FacePlacement {
	for i := range t.Placements {
		p := &t.Placements[i]
		start := 0
		end := t.TotalFrames
		if p.FrameStart != nil {
			start = *p.FrameStart
		}
		if p.FrameEnd != nil {
			end = *p.FrameEnd
		}
		if frame >= start && frame <= end {
			return p
		}
	}
	if len(t.Placements) > 0 {
		return &t.Placements[0]
	}
	return nil
}

// AudioSource returns the path the audio track should come from: the
// dedicated audio file when present, otherwise the template video.
func (t *Template) AudioSource() string {
	if t.AudioPath != "" {
		return t.AudioPath
	}
	return t.VideoPath
}

// Validate reports structural problems in a template descriptor.
func (t *Template) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("template missing id")
	}
	if t.VideoPath == "" {
		return fmt.Errorf("template %s: missing video_path", t.ID)
	}
	if t.FPS <= 0 {
		return fmt.Errorf("template %s: fps must be positive, got %g", t.ID, t.FPS)
	}
	if t.TotalFrames < 1 {
		return fmt.Errorf("template %s: total_frames must be >= 1, got %d", t.ID, t.TotalFrames)
	}
	for i, p := range t.Placements {
		if p.Width <= 0 || p.Height <= 0 {
			return fmt.Errorf("template %s: placement %d has non-positive dimensions %dx%d", t.ID, i, p.Width, p.Height)
		}
		if p.X < 0 || p.Y < 0 {
			return fmt.Errorf("template %s: placement %d has negative origin (%d,%d)", t.ID, i, p.X, p.Y)
		}
	}
	return nil
}
