package jobs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/geodesymiami/rsmas-insar-sub000/internal/config"
	"github.com/geodesymiami/rsmas-insar-sub000/internal/resources"
	"github.com/geodesymiami/rsmas-insar-sub000/internal/scheduler"
	"github.com/geodesymiami/rsmas-insar-sub000/internal/utils"
)

// Options are per-invocation overrides. Nil pointers fall back to
// job_defaults.cfg and the cluster config.
type Options struct {
	Queue          *string
	Memory         *int // MB per task
	Walltime       *time.Duration
	NumThreads     *int
	NumBursts      *int    // Workload size for adjustable steps
	WalltimeFactor float64 // Applied to adjusted walltimes; <= 0 means 1
	WorkDir        string  // Output directory for SubmitScript (default ".")
	WriteOnly      bool    // Write job files without submitting
	Wait           bool    // SubmitScript waits for completion
	RetryFactor    float64 // Walltime multiplier for the rerun; <= 0 means 2
	GPUs           int
}

// JobSubmit submits batches and single scripts on one cluster.
type JobSubmit struct {
	Config    config.ClusterConfig
	Defaults  *resources.Table
	Opts      Options
	Profile   scheduler.Profile
	Strategy  Strategy
	Submitter *scheduler.Submitter
	Monitor   Monitor
	Retry     RetryPolicy
}

// NewJobSubmit wires a JobSubmit from the cluster config.
func NewJobSubmit(cfg config.ClusterConfig, defaults *resources.Table, opts Options) (*JobSubmit, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if defaults == nil {
		return nil, scheduler.NewConfigError("JOB_DEFAULTS_CFG", cfg.JobDefaultsFile, "no job defaults loaded", nil)
	}
	profile, err := scheduler.ProfileFor(cfg.Scheduler)
	if err != nil {
		return nil, err
	}
	strategy, err := ParseStrategy(cfg.SubmissionScheme)
	if err != nil {
		return nil, err
	}

	return &JobSubmit{
		Config:   cfg,
		Defaults: defaults,
		Opts:     opts,
		Profile:  profile,
		Strategy: strategy,
		Submitter: &scheduler.Submitter{
			Profile: profile,
			Bin:     cfg.SchedulerBin,
			SrunBin: cfg.SrunBin,
			UseSrun: cfg.UseSrun,
		},
		Monitor: NewPollingMonitor(scheduler.SacctQuerier{Bin: cfg.SacctBin}),
		Retry:   RetryPolicy{Profile: profile, Factor: opts.RetryFactor},
	}, nil
}

func (js *JobSubmit) request() resources.Request {
	return resources.Request{
		Memory:         js.Opts.Memory,
		Walltime:       js.Opts.Walltime,
		NumThreads:     js.Opts.NumThreads,
		WorkloadSize:   js.Opts.NumBursts,
		WalltimeFactor: js.Opts.WalltimeFactor,
	}
}

func (js *JobSubmit) queue() string {
	if js.Opts.Queue != nil {
		return *js.Opts.Queue
	}
	return js.Config.Queue
}

// jobMemory scales per-task memory to the job, capped by node memory.
func (js *JobSubmit) jobMemory(perTask int, tasks, nodes int) int {
	mem := perTask * max(tasks, 1)
	if js.Config.MaxMemoryPerNode > 0 {
		mem = min(mem, js.Config.MaxMemoryPerNode*max(nodes, 1))
	}
	return mem
}

func (js *JobSubmit) spec(name, outDir string, res resources.Resources, tasks []string, nodes int) scheduler.JobSpec {
	return scheduler.JobSpec{
		Name:         name,
		OutDir:       outDir,
		Queue:        js.queue(),
		Project:      js.Config.Project,
		Email:        js.Config.NotificationEmail,
		Walltime:     res.Walltime,
		MemoryMB:     js.jobMemory(res.MemoryMB, len(tasks), nodes),
		NumThreads:   res.NumThreads,
		Nodes:        nodes,
		CoresPerNode: js.Config.CoresPerNode,
		GPUs:         js.Opts.GPUs,
		Launcher:     js.Strategy.Launcher(),
		Tasks:        tasks,
	}
}

// WriteBatchJobs partitions the tasks of batchFile and writes one job file
// per partition next to the batch file.
func (js *JobSubmit) WriteBatchJobs(batchFile string) ([]*scheduler.JobFile, error) {
	tasks, err := ReadBatch(batchFile)
	if err != nil {
		return nil, err
	}
	step := StepName(batchFile)
	res, err := js.Defaults.Resolve(step, js.request())
	if err != nil {
		return nil, err
	}
	utils.PrintDebug("Step %s: walltime %s, memory %d MB, %d thread(s)",
		step, res.WalltimeString(js.Profile), res.MemoryMB, res.NumThreads)
	return js.writeJobs(BatchBase(batchFile), filepath.Dir(batchFile), tasks, res)
}

func (js *JobSubmit) writeJobs(base, outDir string, tasks []string, res resources.Resources) ([]*scheduler.JobFile, error) {
	capacity := Capacity{
		CoresPerNode:   js.Config.CoresPerNode,
		ThreadsPerCore: js.Config.ThreadsPerCore,
		ThreadsPerTask: res.NumThreads,
	}
	slices, err := Partition(tasks, capacity, js.Config.MaxJobsPerQueue, js.Strategy)
	if err != nil {
		return nil, err
	}

	files := make([]*scheduler.JobFile, 0, len(slices))
	for i, s := range slices {
		jf, err := scheduler.BuildScript(js.spec(jobName(base, i, len(slices)), outDir, res, s.Tasks, s.Nodes), js.Profile)
		if err != nil {
			return nil, err
		}
		if err := scheduler.WriteJobFile(jf); err != nil {
			return nil, err
		}
		files = append(files, jf)
	}
	utils.PrintNote("%s: %d task(s) in %d job(s) (%s)", base, len(tasks), len(files), js.Strategy)
	return files, nil
}

func (js *JobSubmit) submitJobs(files []*scheduler.JobFile) ([]scheduler.SubmittedJob, error) {
	submitted := make([]scheduler.SubmittedJob, 0, len(files))
	for _, jf := range files {
		sj, err := js.Submitter.Submit(jf.Path)
		if err != nil {
			return submitted, err
		}
		sj.TaskStderr = jf.TaskStderr
		utils.PrintMessage("%s submitted as job %s", utils.StyleName(sj.Name), utils.StyleNumber(sj.JobID))
		submitted = append(submitted, sj)
	}
	return submitted, nil
}

// SubmitBatchJobs runs every task of batchFile to completion. Jobs that hit
// their walltime are rerun once with a longer walltime; a failure of the
// rerun is fatal. On success job files and stdout are archived into
// stdout_<batch>/. The returned results cover the first run and the rerun.
func (js *JobSubmit) SubmitBatchJobs(batchFile string) ([]JobResult, error) {
	files, err := js.WriteBatchJobs(batchFile)
	if err != nil {
		return nil, err
	}
	if js.Opts.WriteOnly {
		return nil, nil
	}

	submitted, err := js.submitJobs(files)
	if err != nil {
		return nil, err
	}
	results := js.Monitor.Wait(submitted)

	if failed := Failed(results); len(failed) > 0 {
		return results, Errors(failed)
	}

	dir, base := filepath.Dir(batchFile), BatchBase(batchFile)
	if timedOut := TimedOut(results); len(timedOut) > 0 {
		rerunResults, err := js.rerun(batchFile, timedOut)
		results = append(results, rerunResults...)
		if err != nil {
			return results, err
		}
	}

	if err := archive(dir, base, results); err != nil {
		return results, err
	}
	utils.PrintSuccess("%s finished", utils.StyleName(base))
	return results, nil
}

// rerun resubmits timed-out jobs once.
func (js *JobSubmit) rerun(batchFile string, timedOut []string) ([]JobResult, error) {
	dir, base := filepath.Dir(batchFile), BatchBase(batchFile)
	rr, err := js.Retry.Prepare(filepath.Join(dir, base), timedOut)
	if err != nil {
		return nil, err
	}
	if rr == nil {
		return nil, fmt.Errorf("%s: jobs timed out but no rerun could be prepared", base)
	}

	res, err := js.Defaults.Resolve(StepName(batchFile), js.request())
	if err != nil {
		return nil, err
	}
	res.Walltime = rr.Walltime
	res.MemoryMB = max(res.MemoryMB, rr.TaskMemMB)

	files, err := js.writeJobs(base+"_rerun", dir, rr.Tasks, res)
	if err != nil {
		return nil, err
	}
	submitted, err := js.submitJobs(files)
	if err != nil {
		return nil, err
	}

	results := js.Monitor.Wait(submitted)
	for i := range results {
		if te, ok := results[i].Err.(*scheduler.JobTimeoutError); ok {
			te.Retried = true
		}
	}
	return results, Errors(results)
}

// SubmitScript runs one command as one job named jobName. jobName is also
// the job_defaults.cfg step. It waits for the job only when Opts.Wait is set.
func (js *JobSubmit) SubmitScript(jobName, command, workDir string) (scheduler.SubmittedJob, error) {
	if workDir == "" {
		workDir = js.Opts.WorkDir
	}
	if workDir == "" {
		workDir = "."
	}

	res, err := js.Defaults.Resolve(jobName, js.request())
	if err != nil {
		return scheduler.SubmittedJob{}, err
	}
	jf, err := scheduler.BuildSingleCommandScript(js.spec(jobName, workDir, res, []string{command}, 1), command, js.Profile)
	if err != nil {
		return scheduler.SubmittedJob{}, err
	}
	if err := scheduler.WriteJobFile(jf); err != nil {
		return scheduler.SubmittedJob{}, err
	}
	if js.Opts.WriteOnly {
		utils.PrintNote("Wrote %s", utils.StylePath(jf.Path))
		return scheduler.SubmittedJob{Name: jf.Name, JobFile: jf.Path}, nil
	}

	sj, err := js.Submitter.Submit(jf.Path)
	if err != nil {
		return sj, err
	}
	utils.PrintMessage("%s submitted as job %s", utils.StyleName(sj.Name), utils.StyleNumber(sj.JobID))
	if !js.Opts.Wait {
		return sj, nil
	}
	return sj, Errors(js.Monitor.Wait([]scheduler.SubmittedJob{sj}))
}

// archive moves the job files, launcher files and stdout of the jobs in
// results into stdout_<base>/ and removes their empty stderr files.
// Non-empty stderr stays. Files of other batches are left alone even when
// their names start with base.
func archive(dir, base string, results []JobResult) error {
	dest := filepath.Join(dir, "stdout_"+base)
	names := make(map[string]bool, len(results))
	for _, r := range results {
		names[r.Job.Name] = true
	}
	owned := func(file string) bool {
		switch ext := filepath.Ext(file); ext {
		case scheduler.JobFileExt, scheduler.LauncherFileExt:
			return names[strings.TrimSuffix(file, ext)]
		}
		for name := range names {
			if isJobOutput(file, name) {
				return true
			}
		}
		return false
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !owned(name) {
			continue
		}
		path := filepath.Join(dir, name)
		switch filepath.Ext(name) {
		case scheduler.StderrExt:
			if utils.IsEmptyFile(path) {
				if err := os.Remove(path); err != nil {
					return err
				}
			}
		default:
			if err := utils.MoveInto(path, dest); err != nil {
				return err
			}
		}
	}
	return nil
}
