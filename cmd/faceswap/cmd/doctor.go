package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/olekukonko/tablewriter"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/spf13/cobra"

	"github.com/huynhanhkhoa2895/face-swap/pkg/detect"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check external tools and host resources",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Check", "Status", "Detail")

		check := func(name, bin string) {
			path, err := exec.LookPath(bin)
			if err != nil {
				table.Append(name, "MISSING", bin)
				return
			}
			table.Append(name, "OK", path)
		}
		check("ffmpeg", cfg.FFmpeg.FFmpegBin)
		check("ffprobe", cfg.FFmpeg.FFprobeBin)

		detector := detect.Resolve(cfg.Detector.Bin)
		if detect.Available(detector) {
			table.Append("face detector", "OK", cfg.Detector.Bin)
		} else {
			table.Append("face detector", "UNAVAILABLE", "jobs run without upload validation")
		}

		table.Append("cpu", "OK", cpuDetail())
		memState, memDetail := memStatus()
		table.Append("memory", memState, memDetail)

		table.Render()
		return nil
	},
}

func cpuDetail() string {
	detail := fmt.Sprintf("%d logical cores", runtime.NumCPU())
	if info, err := cpu.Info(); err == nil && len(info) > 0 {
		detail = fmt.Sprintf("%s (%d logical cores)", info[0].ModelName, runtime.NumCPU())
	}
	return detail
}

func memStatus() (string, string) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return "UNKNOWN", err.Error()
	}
	status := "OK"
	// Frame compositing holds several decoded frames in memory at once.
	if vm.Available < 512<<20 {
		status = "LOW"
	}
	return status, fmt.Sprintf("%.1f GiB available of %.1f GiB", float64(vm.Available)/(1<<30), float64(vm.Total)/(1<<30))
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
