package jobs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/geodesymiami/rsmas-insar-sub000/internal/scheduler"
	"github.com/geodesymiami/rsmas-insar-sub000/internal/utils"
)

// RerunExt is appended to the batch name for the rerun batch file.
const RerunExt = ".job_rerun"

// DefaultRetryFactor multiplies the walltime of timed-out jobs.
const DefaultRetryFactor = 2.0

// RetryPolicy prepares the single rerun of timed-out jobs.
type RetryPolicy struct {
	Profile scheduler.Profile
	Factor  float64 // <= 0 means DefaultRetryFactor
}

// Rerun is a batch of timed-out tasks ready to resubmit.
type Rerun struct {
	BatchFile string        // <dir>/<batch>.job_rerun
	Tasks     []string      // Task lines of the matched jobs, in job order
	Walltime  time.Duration // Largest scaled walltime of the matched jobs
	TaskMemMB int           // Largest per-task memory of the matched jobs (0 if none written)
	JobFiles  []string      // Matched job files
}

// Prepare finds the jobs of the batch at runFilePrefix that hit their
// walltime, either by the timeout signature in their .o/.e files or because
// they are listed in timedOut. It writes the rerun batch and clears the
// matched jobs' output. It returns nil when nothing timed out.
func (r RetryPolicy) Prepare(runFilePrefix string, timedOut []string) (*Rerun, error) {
	dir := filepath.Dir(runFilePrefix)
	batch := filepath.Base(runFilePrefix)

	matched := make(map[string]bool)
	for _, jf := range timedOut {
		matched[jf] = true
	}

	outputs, err := filepath.Glob(runFilePrefix + "*")
	if err != nil {
		return nil, err
	}
	for _, f := range outputs {
		ext := filepath.Ext(f)
		if !strings.HasPrefix(ext, scheduler.StdoutExt) && !strings.HasPrefix(ext, scheduler.StderrExt) {
			continue
		}
		if !scheduler.HasTimeoutSignature(f) {
			continue
		}
		jf, ok := jobFileFor(f, batch)
		if !ok {
			utils.PrintWarning("No job file found for %s", utils.StylePath(f))
			continue
		}
		matched[jf] = true
	}
	if len(matched) == 0 {
		return nil, nil
	}

	jobFiles := make([]string, 0, len(matched))
	for jf := range matched {
		jobFiles = append(jobFiles, jf)
	}
	sortJobFiles(jobFiles, batch)

	factor := r.Factor
	if factor <= 0 {
		factor = DefaultRetryFactor
	}

	rerun := &Rerun{
		BatchFile: filepath.Join(dir, batch+RerunExt),
		JobFiles:  jobFiles,
	}
	for _, jf := range jobFiles {
		wt, mem, err := r.Profile.ReadJobFileResources(jf)
		if err != nil {
			return nil, fmt.Errorf("reading resources of %s: %w", jf, err)
		}
		scaled := time.Duration(float64(wt) * factor)
		utils.PrintNote("%s timed out with walltime %s, rerun gets %s", utils.StyleName(scheduler.JobNameFromFile(jf)),
			r.Profile.FormatWalltime(wt), r.Profile.FormatWalltime(scaled))
		rerun.Walltime = max(rerun.Walltime, scaled)

		tasks, err := jobTasks(jf)
		if err != nil {
			return nil, err
		}
		if len(tasks) > 0 {
			rerun.TaskMemMB = max(rerun.TaskMemMB, ceilDiv(mem, len(tasks)))
		}
		rerun.Tasks = append(rerun.Tasks, tasks...)
	}

	if err := os.WriteFile(rerun.BatchFile, []byte(strings.Join(rerun.Tasks, "\n")+"\n"), utils.PermFile); err != nil {
		return nil, fmt.Errorf("writing %s: %w", rerun.BatchFile, err)
	}

	preRerun := filepath.Join(dir, "stdout_"+batch+"_pre_rerun")
	for _, jf := range jobFiles {
		if err := clearJobOutput(jf, preRerun); err != nil {
			return nil, err
		}
	}
	utils.PrintNote("Wrote %s with %d task(s)", utils.StylePath(rerun.BatchFile), len(rerun.Tasks))
	return rerun, nil
}

// jobFileFor maps an output file to its job file: the extension-less name
// itself, or that name with trailing task index or job id tokens removed.
// Only jobs of batch match, so output of a batch whose name extends this one
// is never claimed.
func jobFileFor(outputFile, batch string) (string, bool) {
	dir := filepath.Dir(outputFile)
	name := strings.TrimSuffix(filepath.Base(outputFile), filepath.Ext(outputFile))
	for {
		if isBatchJob(name, batch) {
			candidate := filepath.Join(dir, name+scheduler.JobFileExt)
			if utils.FileExists(candidate) {
				return candidate, true
			}
		}
		idx := strings.LastIndex(name, "_")
		if idx < len(batch) || !isOutputToken(name[idx+1:]) {
			return "", false
		}
		name = name[:idx]
	}
}

// jobTasks reads task commands from the launcher file when present, else
// from the job script.
func jobTasks(jobFile string) ([]string, error) {
	src := strings.TrimSuffix(jobFile, scheduler.JobFileExt) + scheduler.LauncherFileExt
	if !utils.FileExists(src) {
		src = jobFile
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, err
	}
	tasks := scheduler.TaskCommands(string(data))
	if len(tasks) == 0 {
		return nil, fmt.Errorf("no task lines in %s", src)
	}
	return tasks, nil
}

// clearJobOutput deletes a job's .e files and moves its .o files, job file
// and launcher file into dest.
func clearJobOutput(jobFile, dest string) error {
	dir := filepath.Dir(jobFile)
	name := scheduler.JobNameFromFile(jobFile)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !isJobOutput(e.Name(), name) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if filepath.Ext(path) == scheduler.StderrExt {
			if err := os.Remove(path); err != nil {
				return err
			}
			continue
		}
		if err := utils.MoveInto(path, dest); err != nil {
			return err
		}
	}

	for _, f := range []string{jobFile, strings.TrimSuffix(jobFile, scheduler.JobFileExt) + scheduler.LauncherFileExt} {
		if utils.FileExists(f) {
			if err := utils.MoveInto(f, dest); err != nil {
				return err
			}
		}
	}
	return nil
}

// sortJobFiles orders job files by their index within the batch.
func sortJobFiles(files []string, batch string) {
	index := func(f string) int {
		suffix := strings.TrimPrefix(scheduler.JobNameFromFile(f), batch)
		n, err := strconv.Atoi(strings.TrimPrefix(suffix, "_"))
		if err != nil {
			return -1
		}
		return n
	}
	sort.SliceStable(files, func(i, j int) bool {
		a, b := index(files[i]), index(files[j])
		if a != b {
			return a < b
		}
		return files[i] < files[j]
	})
}
