package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/huynhanhkhoa2895/face-swap/pkg/config"
	"github.com/huynhanhkhoa2895/face-swap/pkg/logging"
)

// version is stamped at release time via -ldflags
var version = "0.1.0"

var (
	cfgFile      string
	outputFormat string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "faceswap",
	Short: "Template-driven face swap video pipeline",
	Long: `faceswap composites an uploaded face onto a template video through
an ffmpeg frame pipeline: extract frames, blend the face onto each one,
re-assemble the video, and attach the template's audio track.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default faceswap.yaml in . or /etc/faceswap)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "table", "output format: table or json")
}

// loadConfig reads the configuration honoring the --config flag
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the process logger from config
func newLogger(cfg *config.Config) *logging.Logger {
	return logging.New(logging.ParseLevel(cfg.Log.Level), cfg.Log.JSON)
}

// IsJSONOutput returns true if JSON output is requested
func IsJSONOutput() bool {
	return outputFormat == "json"
}
