package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/geodesymiami/rsmas-insar-sub000/internal/config"
	"github.com/geodesymiami/rsmas-insar-sub000/internal/scheduler"
	"github.com/geodesymiami/rsmas-insar-sub000/internal/utils"
)

var (
	debugMode  bool
	quietMode  bool
	configFile string
)

var rootCmd = &cobra.Command{
	Use:           "minsar_jobs",
	Short:         "Submit InSAR processing steps as LSF, PBS or SLURM batch jobs.",
	Version:       config.VERSION,
	SilenceErrors: true,
	SilenceUsage:  true,

	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Flags first so config loading can already log
		utils.DebugMode = debugMode
		utils.QuietMode = quietMode && !debugMode

		if err := config.InitViper(configFile); err != nil {
			utils.PrintError("%v", err)
			os.Exit(1)
		}
		utils.PrintDebug("minsar_jobs version %s", utils.StyleInfo(config.VERSION))
	},
}

// loadCluster builds the ClusterConfig for commands that talk to a scheduler.
func loadCluster() (config.ClusterConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	utils.PrintDebug("Scheduler %s, queue %q, %d core(s) per node, scheme %s",
		cfg.Scheduler, cfg.Queue, cfg.CoresPerNode, cfg.SubmissionScheme)
	if cfg.UseSrun {
		utils.PrintDebug("Inside a SLURM allocation, jobs run through srun")
	}
	return cfg, nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// For submission errors print the scheduler's captured output as is,
		// then the short reason.
		var se *scheduler.SubmissionError
		if errors.As(err, &se) && se.Output != "" {
			fmt.Fprintln(os.Stderr, strings.TrimSpace(se.Output))
			utils.PrintError("%s submission failed for job %s: %v", se.Scheduler, se.JobName, se.Err)
			os.Exit(1)
		}
		utils.PrintError("%v", err)
		if scheduler.IsConfigError(err) {
			utils.PrintHint("Check %s or the JOBSCHEDULER/QUEUENAME environment", utils.StyleCommand("minsar_jobs config show"))
		}
		os.Exit(1)
	}
}

func init() {
	// Subcommands are attached to rootCmd in their respective init() functions
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug mode with verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quietMode, "quiet", "q", false, "Only print warnings and errors")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: first config.yaml in ~/.config/minsar, ~/.minsar, /etc/minsar, .)")
}
