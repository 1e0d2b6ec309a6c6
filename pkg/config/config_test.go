package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(writeConfig(t, ""), "faceswap.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.FFmpeg.FFmpegBin != "ffmpeg" || cfg.FFmpeg.FFprobeBin != "ffprobe" {
		t.Errorf("ffmpeg defaults wrong: %+v", cfg.FFmpeg)
	}
	if cfg.Quota.Window != 24*time.Hour || cfg.Quota.SweepInterval != time.Hour {
		t.Errorf("quota defaults wrong: %+v", cfg.Quota)
	}
	if cfg.Compositor.FeatherRadius != 15 || cfg.Compositor.BlendAlpha != 0.95 || !cfg.Compositor.ColorMatch {
		t.Errorf("compositor defaults wrong: %+v", cfg.Compositor)
	}
	if cfg.Jobs.FrameWorkers != 4 {
		t.Errorf("frame workers default wrong: %d", cfg.Jobs.FrameWorkers)
	}
	if cfg.Log.Level != "info" || cfg.Log.JSON {
		t.Errorf("log defaults wrong: %+v", cfg.Log)
	}
}

func TestLoadFile(t *testing.T) {
	dir := writeConfig(t, `
paths:
  templates: /srv/templates
  outputs: /srv/outputs
ffmpeg:
  ffmpeg_bin: /opt/ffmpeg/bin/ffmpeg
quota:
  window: 1h
jobs:
  frame_workers: 8
log:
  level: debug
  json: true
`)

	cfg, err := Load(filepath.Join(dir, "faceswap.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Paths.Templates != "/srv/templates" || cfg.Paths.Outputs != "/srv/outputs" {
		t.Errorf("paths not loaded: %+v", cfg.Paths)
	}
	if cfg.FFmpeg.FFmpegBin != "/opt/ffmpeg/bin/ffmpeg" {
		t.Errorf("ffmpeg bin not loaded: %s", cfg.FFmpeg.FFmpegBin)
	}
	if cfg.FFmpeg.FFprobeBin != "ffprobe" {
		t.Errorf("unset keys should keep defaults, got %s", cfg.FFmpeg.FFprobeBin)
	}
	if cfg.Quota.Window != time.Hour {
		t.Errorf("quota window not loaded: %v", cfg.Quota.Window)
	}
	if cfg.Jobs.FrameWorkers != 8 || cfg.Log.Level != "debug" || !cfg.Log.JSON {
		t.Errorf("overrides not applied: %+v %+v", cfg.Jobs, cfg.Log)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load("/no/such/faceswap.yaml"); err == nil {
		t.Error("an explicitly named missing config file must error")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "faceswap.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}
