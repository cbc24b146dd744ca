package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/geodesymiami/rsmas-insar-sub000/internal/jobs"
	"github.com/geodesymiami/rsmas-insar-sub000/internal/resources"
	"github.com/geodesymiami/rsmas-insar-sub000/internal/utils"
)

var submitCmd = &cobra.Command{
	Use:   "submit <batch_file>...",
	Short: "Run every task of a batch file as cluster jobs",
	Long: `Pack the command lines of a batch file (e.g. run_files/run_03_generate_burst_igram)
into jobs, submit them and wait until all of them finish.

The step name is taken from the batch file name and selects the walltime,
memory and thread count in job_defaults.cfg. Jobs that hit their walltime
are rerun once with a longer walltime. On success job files and stdout move
into stdout_<batch>/ next to the batch file.

Several batch files are processed one after the other; the first failure stops.`,
	Example: `  minsar_jobs submit run_files/run_01_unpack_topo_reference
  minsar_jobs submit run_files/run_03_* --num-bursts 9
  minsar_jobs submit run_files/run_07_merge_burst_igram --walltime 4:00 --write-only`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSubmit,
}

func init() {
	addResourceFlags(submitCmd.Flags())
	submitCmd.Flags().Float64("retry-factor", jobs.DefaultRetryFactor, "Walltime multiplier for the rerun of timed-out jobs")
	rootCmd.AddCommand(submitCmd)
}

// addResourceFlags registers the per-run overrides shared by submit and submit-script.
func addResourceFlags(fs *pflag.FlagSet) {
	fs.String("queue", "", "Queue/partition (default: QUEUENAME)")
	fs.String("memory", "", "Memory per task, in MB or with unit (4000, 4G)")
	fs.String("walltime", "", "Walltime per job (2:00, 02:00:00, 90m)")
	fs.Int("num-threads", 0, "Threads per task (sets OMP_NUM_THREADS)")
	fs.Int("num-bursts", 0, "Workload size used to scale adjustable steps")
	fs.Float64("walltime-factor", 1, "Extra factor for adjusted walltimes")
	fs.Int("gpus", 0, "GPUs per job")
	fs.Bool("write-only", false, "Write job files without submitting them")
}

// jobOptions turns the flags the user actually set into Options overrides.
// Flags left alone stay nil so job_defaults.cfg decides.
func jobOptions(fs *pflag.FlagSet) (jobs.Options, error) {
	var opts jobs.Options

	if fs.Changed("queue") {
		q, _ := fs.GetString("queue")
		opts.Queue = &q
	}
	if fs.Changed("memory") {
		s, _ := fs.GetString("memory")
		mb, err := utils.ParseSizeToMB(s)
		if err != nil {
			return opts, fmt.Errorf("--memory: %w", err)
		}
		opts.Memory = &mb
	}
	if fs.Changed("walltime") {
		s, _ := fs.GetString("walltime")
		d, err := utils.ParseDuration(s)
		if err != nil {
			return opts, fmt.Errorf("--walltime: %w", err)
		}
		if d <= 0 {
			return opts, fmt.Errorf("--walltime: must be positive, got %q", s)
		}
		opts.Walltime = &d
	}
	if fs.Changed("num-threads") {
		n, _ := fs.GetInt("num-threads")
		if n < 1 {
			return opts, fmt.Errorf("--num-threads: must be at least 1, got %d", n)
		}
		opts.NumThreads = &n
	}
	if fs.Changed("num-bursts") {
		n, _ := fs.GetInt("num-bursts")
		if n < 0 {
			return opts, fmt.Errorf("--num-bursts: must not be negative, got %d", n)
		}
		opts.NumBursts = &n
	}

	opts.WalltimeFactor, _ = fs.GetFloat64("walltime-factor")
	opts.GPUs, _ = fs.GetInt("gpus")
	opts.WriteOnly, _ = fs.GetBool("write-only")
	if fs.Lookup("retry-factor") != nil {
		opts.RetryFactor, _ = fs.GetFloat64("retry-factor")
	}
	if fs.Lookup("wait") != nil {
		opts.Wait, _ = fs.GetBool("wait")
	}
	if fs.Lookup("work-dir") != nil {
		opts.WorkDir, _ = fs.GetString("work-dir")
	}
	return opts, nil
}

// newJobSubmit loads the cluster config and job defaults and wires a JobSubmit.
func newJobSubmit(fs *pflag.FlagSet) (*jobs.JobSubmit, error) {
	opts, err := jobOptions(fs)
	if err != nil {
		return nil, err
	}
	cfg, err := loadCluster()
	if err != nil {
		return nil, err
	}
	defaults, err := resources.Load(cfg.JobDefaultsFile)
	if err != nil {
		return nil, err
	}
	utils.PrintDebug("Job defaults from %s", utils.StylePath(defaults.Path))
	return jobs.NewJobSubmit(cfg, defaults, opts)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	js, err := newJobSubmit(cmd.Flags())
	if err != nil {
		return err
	}

	for _, batch := range args {
		if !utils.FileExists(batch) {
			return fmt.Errorf("batch file not found: %s", batch)
		}
		results, err := js.SubmitBatchJobs(batch)
		if err != nil {
			return err
		}
		if js.Opts.WriteOnly {
			utils.PrintNote("Job files for %s written, not submitted", utils.StylePath(batch))
			continue
		}
		utils.PrintDebug("%s: %d job(s) finished", jobs.BatchBase(batch), len(results))
	}
	return nil
}
