// Package config loads the pipeline configuration from a YAML file
// and FACESWAP_* environment variables via viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full pipeline configuration
type Config struct {
	Paths      PathsConfig      `mapstructure:"paths"`
	FFmpeg     FFmpegConfig     `mapstructure:"ffmpeg"`
	Compositor CompositorConfig `mapstructure:"compositor"`
	Detector   DetectorConfig   `mapstructure:"detector"`
	Quota      QuotaConfig      `mapstructure:"quota"`
	Jobs       JobsConfig       `mapstructure:"jobs"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Log        LogConfig        `mapstructure:"log"`
}

// PathsConfig locates the on-disk directories the pipeline uses
type PathsConfig struct {
	Templates string `mapstructure:"templates"`
	Uploads   string `mapstructure:"uploads"`
	Outputs   string `mapstructure:"outputs"`
	Work      string `mapstructure:"work"`
}

// FFmpegConfig points at the external binaries
type FFmpegConfig struct {
	FFmpegBin  string `mapstructure:"ffmpeg_bin"`
	FFprobeBin string `mapstructure:"ffprobe_bin"`
}

// CompositorConfig tunes the face blend
type CompositorConfig struct {
	FeatherRadius int     `mapstructure:"feather_radius"`
	BlendAlpha    float64 `mapstructure:"blend_alpha"`
	ColorMatch    bool    `mapstructure:"color_match"`
}

// DetectorConfig points at the optional face detector tool
type DetectorConfig struct {
	Bin string `mapstructure:"bin"`
}

// QuotaConfig tunes the per-caller generation quota
type QuotaConfig struct {
	Window        time.Duration `mapstructure:"window"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	// DBPath enables durable quota records; empty keeps them in memory
	DBPath string `mapstructure:"db_path"`
}

// JobsConfig tunes the orchestrator
type JobsConfig struct {
	FrameWorkers int  `mapstructure:"frame_workers"`
	KeepUploads  bool `mapstructure:"keep_uploads"`
}

// MetricsConfig controls the Prometheus listener
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// TracingConfig controls OpenTelemetry export
type TracingConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Environment  string `mapstructure:"environment"`
}

// LogConfig controls log output
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// Load reads the configuration. With an empty path it searches the
// working directory and /etc/faceswap for faceswap.yaml; a missing
// file is not an error, defaults and environment variables apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("FACESWAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("faceswap")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/faceswap")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("paths.templates", "templates")
	v.SetDefault("paths.uploads", "uploads")
	v.SetDefault("paths.outputs", "outputs")
	v.SetDefault("paths.work", "work")

	v.SetDefault("ffmpeg.ffmpeg_bin", "ffmpeg")
	v.SetDefault("ffmpeg.ffprobe_bin", "ffprobe")

	v.SetDefault("compositor.feather_radius", 15)
	v.SetDefault("compositor.blend_alpha", 0.95)
	v.SetDefault("compositor.color_match", true)

	v.SetDefault("detector.bin", "")

	v.SetDefault("quota.window", 24*time.Hour)
	v.SetDefault("quota.sweep_interval", time.Hour)
	v.SetDefault("quota.db_path", "")

	v.SetDefault("jobs.frame_workers", 4)
	v.SetDefault("jobs.keep_uploads", false)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.otlp_endpoint", "localhost:4318")
	v.SetDefault("tracing.environment", "development")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
}
