package jobs

import (
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/geodesymiami/rsmas-insar-sub000/internal/scheduler"
	"github.com/geodesymiami/rsmas-insar-sub000/internal/utils"
)

// JobResult is the terminal outcome of one submitted job.
type JobResult struct {
	Job   scheduler.SubmittedJob
	State scheduler.JobState
	Raw   string // Scheduler state or matched signature
	Err   error  // JobFailedError or JobTimeoutError; nil when COMPLETED
}

// Monitor waits for submitted jobs to reach a terminal state.
type Monitor interface {
	Wait(jobs []scheduler.SubmittedJob) []JobResult
}

// PollingMonitor watches output files (LSF, PBS, srun) or queries sacct
// (SLURM batch jobs).
type PollingMonitor struct {
	Status        scheduler.StatusQuerier
	FileInterval  time.Duration // between file checks
	QueryInterval time.Duration // between two sacct queries
	CyclePause    time.Duration // after a full round of sacct queries
	Sleep         func(time.Duration)
}

// NewPollingMonitor returns a monitor with the production intervals.
func NewPollingMonitor(status scheduler.StatusQuerier) *PollingMonitor {
	return &PollingMonitor{
		Status:        status,
		FileInterval:  60 * time.Second,
		QueryInterval: 2 * time.Second,
		CyclePause:    58 * time.Second,
		Sleep:         time.Sleep,
	}
}

func (m *PollingMonitor) sleep(d time.Duration) {
	if m.Sleep != nil {
		m.Sleep(d)
		return
	}
	time.Sleep(d)
}

// Wait blocks until every job is COMPLETED, TIMED_OUT or FAILED. Results
// are returned in submission order.
func (m *PollingMonitor) Wait(jobs []scheduler.SubmittedJob) []JobResult {
	results := make([]JobResult, len(jobs))
	pending := make([]int, 0, len(jobs))
	for i, job := range jobs {
		results[i] = JobResult{Job: job, State: scheduler.StateSubmitted}
		pending = append(pending, i)
	}

	var waited time.Duration
	for len(pending) > 0 {
		var still []int
		queried := false

		for _, i := range pending {
			job := jobs[i]
			var state scheduler.JobState
			var raw, file string
			if job.Polled {
				state, raw = m.queryState(job)
				queried = true
			} else {
				state, raw = fileState(job)
			}

			if state == scheduler.StateCompleted {
				state, raw, file = scanStderr(job, raw)
			}
			if !state.Terminal() {
				results[i].State = state
				still = append(still, i)
				continue
			}
			results[i] = finish(job, state, raw, file)
		}

		pending = still
		if len(pending) == 0 {
			break
		}

		pause := m.FileInterval
		if queried {
			pause = m.CyclePause
		}
		m.sleep(pause)
		waited += pause
		utils.PrintDebug("Waiting for %d job(s), %d min elapsed", len(pending), int(waited.Minutes()))
	}
	return results
}

func (m *PollingMonitor) queryState(job scheduler.SubmittedJob) (scheduler.JobState, string) {
	state, raw, err := m.Status.State(job.JobID)
	m.sleep(m.QueryInterval)
	if err != nil {
		utils.PrintDebug("sacct for job %s failed, still waiting: %v", job.JobID, err)
		return scheduler.StatePending, ""
	}
	return state, raw
}

// fileState treats an existing stdout file as COMPLETED, unless LSF wrote
// its walltime message into it.
func fileState(job scheduler.SubmittedJob) (scheduler.JobState, string) {
	if !utils.FileExists(job.Stdout) {
		return scheduler.StatePending, ""
	}
	if scheduler.HasTimeoutSignature(job.Stdout) {
		return scheduler.StateTimedOut, scheduler.TimeoutSignature
	}
	return scheduler.StateCompleted, "COMPLETED"
}

// scanStderr checks job-level and per-task stderr against the signature table.
func scanStderr(job scheduler.SubmittedJob, raw string) (scheduler.JobState, string, string) {
	files := append([]string{job.Stderr}, job.TaskStderr...)
	for _, f := range files {
		sig, ok, err := scheduler.ScanFile(f)
		if err != nil {
			utils.PrintWarning("Cannot read %s: %v", utils.StylePath(f), err)
			continue
		}
		if ok {
			utils.PrintDebug("%q found in %s", sig.Pattern, utils.StylePath(f))
			return sig.State, sig.Pattern, f
		}
	}
	return scheduler.StateCompleted, raw, ""
}

func finish(job scheduler.SubmittedJob, state scheduler.JobState, raw, file string) JobResult {
	res := JobResult{Job: job, State: state, Raw: raw}

	switch state {
	case scheduler.StateCompleted:
		utils.PrintSuccess("Job %s (%s) completed", utils.StyleName(job.Name), job.JobID)
	case scheduler.StateTimedOut:
		res.Err = &scheduler.JobTimeoutError{JobName: job.Name, JobID: job.JobID}
		utils.PrintWarning("Job %s (%s) timed out", utils.StyleName(job.Name), job.JobID)
	default:
		res.Err = &scheduler.JobFailedError{JobName: job.Name, JobID: job.JobID, State: res.Raw, File: file}
		utils.PrintError("%v", res.Err)
	}
	return res
}

// Errors aggregates the failures in results, or returns nil.
func Errors(results []JobResult) error {
	var merr *multierror.Error
	for _, r := range results {
		if r.Err != nil {
			merr = multierror.Append(merr, r.Err)
		}
	}
	return merr.ErrorOrNil()
}

// TimedOut returns the job files of TIMED_OUT results.
func TimedOut(results []JobResult) []string {
	var files []string
	for _, r := range results {
		if r.State == scheduler.StateTimedOut {
			files = append(files, r.Job.JobFile)
		}
	}
	return files
}

// Failed returns the FAILED results.
func Failed(results []JobResult) []JobResult {
	var failed []JobResult
	for _, r := range results {
		if r.State == scheduler.StateFailed {
			failed = append(failed, r)
		}
	}
	return failed
}
