package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/huynhanhkhoa2895/face-swap/pkg/catalog"
	"github.com/huynhanhkhoa2895/face-swap/pkg/compositor"
	"github.com/huynhanhkhoa2895/face-swap/pkg/config"
	"github.com/huynhanhkhoa2895/face-swap/pkg/detect"
	"github.com/huynhanhkhoa2895/face-swap/pkg/jobs"
	"github.com/huynhanhkhoa2895/face-swap/pkg/logging"
	"github.com/huynhanhkhoa2895/face-swap/pkg/metrics"
	"github.com/huynhanhkhoa2895/face-swap/pkg/models"
	"github.com/huynhanhkhoa2895/face-swap/pkg/quota"
	"github.com/huynhanhkhoa2895/face-swap/pkg/shutdown"
	"github.com/huynhanhkhoa2895/face-swap/pkg/store"
	"github.com/huynhanhkhoa2895/face-swap/pkg/tracing"
	"github.com/huynhanhkhoa2895/face-swap/pkg/video"
)

var (
	runTemplateID  string
	runFacePath    string
	runCallerIP    string
	runCallerUA    string
	runFingerprint string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one face swap job and wait for the result",
	RunE:  runJob,
}

func init() {
	runCmd.Flags().StringVar(&runTemplateID, "template", "", "template id (required)")
	runCmd.Flags().StringVar(&runFacePath, "face", "", "path to the face image (required)")
	runCmd.Flags().StringVar(&runCallerIP, "caller-ip", "local", "caller IP for quota accounting")
	runCmd.Flags().StringVar(&runCallerUA, "caller-agent", "faceswap-cli", "caller user agent for quota accounting")
	runCmd.Flags().StringVar(&runFingerprint, "fingerprint", "", "optional caller fingerprint for quota accounting")
	runCmd.MarkFlagRequired("template")
	runCmd.MarkFlagRequired("face")
	rootCmd.AddCommand(runCmd)
}

func runJob(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	mgr := shutdown.New(30 * time.Second)
	orch, rec, err := buildOrchestrator(cfg, log, mgr)
	if err != nil {
		return err
	}
	defer mgr.Shutdown()

	if cfg.Metrics.Enabled && rec != nil {
		mgr.Register(rec.Serve(cfg.Metrics.Addr))
	}

	callerKey := quota.CallerKey(runCallerIP, runCallerUA, runFingerprint)
	snap, err := orch.SubmitJob(context.Background(), jobs.SubmitRequest{
		TemplateID: runTemplateID,
		FacePath:   runFacePath,
		CallerKey:  callerKey,
	})
	if err != nil {
		return fmt.Errorf("submit job: %w", err)
	}
	fmt.Printf("Job %s submitted\n", snap.ID)

	go mgr.Wait()
	go func() {
		<-mgr.Done()
		orch.Cancel(snap.ID)
	}()

	final, err := pollJob(orch, snap.ID)
	if err != nil {
		return err
	}
	printJob(final)

	if final.Status != models.JobStatusCompleted {
		return fmt.Errorf("job %s %s: %s", final.ID, final.Status, final.Error)
	}
	return nil
}

// buildOrchestrator wires the full pipeline stack from config and
// registers teardown with the shutdown manager in dependency order.
func buildOrchestrator(cfg *config.Config, log *logging.Logger, mgr *shutdown.Manager) (*jobs.Orchestrator, *metrics.Recorder, error) {
	cat, err := catalog.NewFileCatalog(cfg.Paths.Templates, log)
	if err != nil {
		return nil, nil, err
	}

	var backend quota.Backend
	if cfg.Quota.DBPath != "" {
		backend, err = quota.NewSQLiteBackend(cfg.Quota.DBPath)
		if err != nil {
			return nil, nil, err
		}
	} else {
		backend = quota.NewMemoryBackend()
	}
	tracker := quota.NewTracker(log,
		quota.WithBackend(backend),
		quota.WithWindow(cfg.Quota.Window),
		quota.WithSweepInterval(cfg.Quota.SweepInterval),
	)
	tracker.Start()
	mgr.Register(func(ctx context.Context) error { return tracker.Close() })

	tracer, err := tracing.Init(tracing.Config{
		ServiceName:    "faceswap",
		ServiceVersion: version,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		Enabled:        cfg.Tracing.Enabled,
	})
	if err != nil {
		return nil, nil, err
	}
	mgr.Register(tracer.Shutdown)

	var rec *metrics.Recorder
	if cfg.Metrics.Enabled {
		rec = metrics.NewRecorder()
	}

	pipeline := video.NewFFmpeg(cfg.FFmpeg.FFmpegBin, cfg.FFmpeg.FFprobeBin, log)
	comp := compositor.New(compositor.Options{
		FeatherRadius: cfg.Compositor.FeatherRadius,
		BlendAlpha:    cfg.Compositor.BlendAlpha,
		ColorMatch:    cfg.Compositor.ColorMatch,
	}, log)
	detector := detect.Resolve(cfg.Detector.Bin)

	orch := jobs.New(
		store.NewMemoryStore(),
		cat,
		pipeline,
		comp,
		detector,
		tracker,
		rec,
		tracer,
		log,
		jobs.Options{
			WorkRoot:     cfg.Paths.Work,
			OutputDir:    cfg.Paths.Outputs,
			FrameWorkers: cfg.Jobs.FrameWorkers,
			KeepUploads:  cfg.Jobs.KeepUploads,
		},
	)
	mgr.Register(orch.Shutdown)
	return orch, rec, nil
}

// pollJob watches the job until it reaches a terminal state, printing
// progress transitions along the way.
func pollJob(orch *jobs.Orchestrator, id string) (models.JobSnapshot, error) {
	var lastLine string
	for {
		snap, err := orch.GetJobStatus(id)
		if err != nil {
			return models.JobSnapshot{}, err
		}

		if snap.Progress != nil && !IsJSONOutput() {
			line := fmt.Sprintf("%s %d%%", snap.Progress.Stage, snap.Progress.Percentage)
			if line != lastLine {
				fmt.Printf("  %s\n", line)
				lastLine = line
			}
		}

		if snap.Status == models.JobStatusCompleted || snap.Status == models.JobStatusFailed {
			return snap, nil
		}
		time.Sleep(500 * time.Millisecond)
	}
}

func printJob(snap models.JobSnapshot) {
	if IsJSONOutput() {
		output, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to marshal JSON: %v\n", err)
			return
		}
		fmt.Println(string(output))
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Job", "Template", "Status", "Output", "Error")
	table.Append(snap.ID, snap.TemplateID, string(snap.Status), snap.OutputPath, snap.Error)
	table.Render()
}
