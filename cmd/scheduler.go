package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"github.com/geodesymiami/rsmas-insar-sub000/internal/scheduler"
	"github.com/geodesymiami/rsmas-insar-sub000/internal/utils"
)

var schedulerCmd = &cobra.Command{
	Use:     "scheduler",
	Aliases: []string{"sched"},
	Short:   "Display scheduler information",
	Long: `Display the configured (or detected) batch scheduler and how job files are written for it.

Shows the scheduler type, submit binary, directive syntax and the job
partitioning settings of this cluster.`,
	Example: `  minsar_jobs scheduler           # Show scheduler information
  minsar_jobs sched               # Short alias`,
	RunE: runScheduler,
}

func init() {
	rootCmd.AddCommand(schedulerCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	cfg, err := loadCluster()
	if err != nil {
		if scheduler.IsConfigError(err) && cfg.Scheduler == scheduler.KindUnknown {
			utils.PrintMessage("Scheduler Status: %s", utils.StyleError("Not Found"))
			utils.PrintMessage("")
			utils.PrintMessage("No job scheduler configured or detected on this system.")
			utils.PrintMessage("Supported schedulers: LSF, PBS, SLURM (set JOBSCHEDULER)")
			return nil
		}
		return err
	}
	p, err := scheduler.ProfileFor(cfg.Scheduler)
	if err != nil {
		return err
	}

	bin := cfg.SchedulerBin
	if bin == "" {
		bin = p.SubmitBin
	}
	binPath, lookErr := exec.LookPath(bin)

	fmt.Println("Scheduler Information:")
	fmt.Printf("  Type:      %s\n", utils.StyleInfo(string(cfg.Scheduler)))
	if lookErr == nil {
		fmt.Printf("  Binary:    %s\n", utils.StylePath(binPath))
	} else {
		fmt.Printf("  Binary:    %s (%s)\n", bin, utils.StyleError("not found"))
	}
	if cfg.PlatformName != "" {
		fmt.Printf("  Platform:  %s\n", utils.StyleName(cfg.PlatformName))
	}

	switch {
	case cfg.UseSrun:
		fmt.Printf("  Status:    %s (inside job %s)\n", utils.StyleWarning("srun"), os.Getenv("SLURM_JOB_ID"))
		fmt.Println()
		fmt.Println("Jobs run through srun on the nodes of the current allocation.")
	case lookErr == nil:
		fmt.Printf("  Status:    %s\n", utils.StyleSuccess("Available"))
	default:
		fmt.Printf("  Status:    %s\n", utils.StyleError("Unavailable"))
	}

	fmt.Println()
	fmt.Println("Job Files:")
	fmt.Printf("  Directive: %s\n", p.Prefix)
	fmt.Printf("  Walltime:  %s\n", p.Directive(p.WalltimeFmt, p.FormatWalltime(2*time.Hour)))
	if p.SupportsMemory() {
		fmt.Printf("  Memory:    %s\n", p.Directive(p.MemoryFmt, 4000))
	} else {
		fmt.Printf("  Memory:    %s\n", utils.StyleHint("not requested"))
	}
	if p.PollSacct && !cfg.UseSrun {
		fmt.Printf("  Status:    %s\n", "sacct")
	} else {
		fmt.Printf("  Status:    %s\n", "stdout files")
	}

	fmt.Println()
	fmt.Println("Partitioning:")
	fmt.Printf("  Scheme:          %s\n", utils.StyleName(cfg.SubmissionScheme))
	fmt.Printf("  Queue:           %s\n", valueOr(cfg.Queue, "(scheduler default)"))
	fmt.Printf("  Cores per node:  %s\n", utils.StyleNumber(cfg.CoresPerNode))
	fmt.Printf("  Threads/core:    %s\n", utils.StyleNumber(cfg.ThreadsPerCore))
	if cfg.MaxJobsPerQueue > 0 {
		fmt.Printf("  Max jobs:        %s\n", utils.StyleNumber(cfg.MaxJobsPerQueue))
	} else {
		fmt.Printf("  Max jobs:        %s\n", "unlimited")
	}
	if cfg.MaxMemoryPerNode > 0 {
		fmt.Printf("  Memory per node: %s\n", utils.StyleNumber(fmt.Sprintf("%d MB", cfg.MaxMemoryPerNode)))
	}
	fmt.Printf("  Job defaults:    %s\n", valueOr(cfg.JobDefaultsFile, utils.StyleWarning("not set")))

	if lookErr != nil && !cfg.UseSrun {
		fmt.Println()
		utils.PrintHint("Set scheduler_bin with %s if %s is not on PATH", utils.StyleCommand("minsar_jobs config set scheduler_bin <path>"), bin)
	}
	return nil
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
