package models

import "testing"

func intPtr(v int) *int { return &v }

func TestPlacementForFrame(t *testing.T) {
	tmpl := &Template{
		ID:          "t1",
		TotalFrames: 100,
		Placements: []FacePlacement{
			{X: 10, Y: 10, Width: 50, Height: 50, FrameStart: intPtr(0), FrameEnd: intPtr(30)},
			{X: 20, Y: 20, Width: 60, Height: 60, FrameStart: intPtr(31), FrameEnd: intPtr(80)},
		},
	}

	if p := tmpl.PlacementForFrame(15); p == nil || p.X != 10 {
		t.Errorf("frame 15 should use the first placement, got %+v", p)
	}
	if p := tmpl.PlacementForFrame(30); p == nil || p.X != 10 {
		t.Error("range end is inclusive")
	}
	if p := tmpl.PlacementForFrame(31); p == nil || p.X != 20 {
		t.Errorf("frame 31 should use the second placement, got %+v", p)
	}
	// No range matches frame 90; the first placement is the default.
	if p := tmpl.PlacementForFrame(90); p == nil || p.X != 10 {
		t.Errorf("unmatched frame should fall back to the first placement, got %+v", p)
	}
}

func TestPlacementForFrameOverlapFirstWins(t *testing.T) {
	tmpl := &Template{
		ID:          "t1",
		TotalFrames: 50,
		Placements: []FacePlacement{
			{X: 1, Width: 10, Height: 10, FrameStart: intPtr(0), FrameEnd: intPtr(40)},
			{X: 2, Width: 10, Height: 10, FrameStart: intPtr(20), FrameEnd: intPtr(50)},
		},
	}
	if p := tmpl.PlacementForFrame(25); p.X != 1 {
		t.Errorf("overlapping ranges: first match should win, got X=%d", p.X)
	}
}

func TestPlacementForFrameUnboundedRange(t *testing.T) {
	tmpl := &Template{
		ID:          "t1",
		TotalFrames: 10,
		Placements:  []FacePlacement{{X: 5, Width: 10, Height: 10}},
	}
	for _, frame := range []int{0, 5, 10} {
		if p := tmpl.PlacementForFrame(frame); p == nil || p.X != 5 {
			t.Errorf("unbounded placement should match frame %d", frame)
		}
	}
}

func TestPlacementForFrameNoPlacements(t *testing.T) {
	tmpl := &Template{ID: "t1", TotalFrames: 10}
	if p := tmpl.PlacementForFrame(0); p != nil {
		t.Errorf("template without placements should return nil, got %+v", p)
	}
}

func TestAudioSource(t *testing.T) {
	tmpl := &Template{VideoPath: "video.mp4"}
	if got := tmpl.AudioSource(); got != "video.mp4" {
		t.Errorf("without a dedicated audio file the video is the source, got %s", got)
	}
	tmpl.AudioPath = "audio.mp3"
	if got := tmpl.AudioSource(); got != "audio.mp3" {
		t.Errorf("dedicated audio file should win, got %s", got)
	}
}

func TestTemplateValidate(t *testing.T) {
	good := Template{ID: "t1", VideoPath: "v.mp4", FPS: 30, TotalFrames: 100}
	if err := good.Validate(); err != nil {
		t.Fatalf("valid template rejected: %v", err)
	}

	cases := []struct {
		name string
		tmpl Template
	}{
		{"missing id", Template{VideoPath: "v.mp4", FPS: 30, TotalFrames: 1}},
		{"missing video", Template{ID: "t", FPS: 30, TotalFrames: 1}},
		{"zero fps", Template{ID: "t", VideoPath: "v.mp4", TotalFrames: 1}},
		{"zero frames", Template{ID: "t", VideoPath: "v.mp4", FPS: 30}},
		{"bad placement size", Template{ID: "t", VideoPath: "v.mp4", FPS: 30, TotalFrames: 1,
			Placements: []FacePlacement{{Width: 0, Height: 10}}}},
		{"negative placement origin", Template{ID: "t", VideoPath: "v.mp4", FPS: 30, TotalFrames: 1,
			Placements: []FacePlacement{{X: -1, Width: 10, Height: 10}}}},
	}
	for _, tc := range cases {
		if err := tc.tmpl.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}
