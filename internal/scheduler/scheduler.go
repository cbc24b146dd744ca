// Package scheduler hides LSF, PBS and SLURM behind one Profile: directive
// syntax, job-script rendering, submission, job-id parsing and status queries.
package scheduler

import (
	"os/exec"
	"path/filepath"
	"strings"
)

// Kind represents the type of job scheduler
type Kind string

const (
	KindUnknown Kind = ""
	KindLSF     Kind = "LSF"
	KindPBS     Kind = "PBS"
	KindSLURM   Kind = "SLURM"
)

// Kinds lists the supported schedulers in detection order.
var Kinds = []Kind{KindSLURM, KindPBS, KindLSF}

// ParseKind converts a scheduler name (case-insensitive) into a Kind.
func ParseKind(name string) (Kind, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "LSF":
		return KindLSF, nil
	case "PBS", "TORQUE":
		return KindPBS, nil
	case "SLURM":
		return KindSLURM, nil
	default:
		return KindUnknown, NewConfigError("JOBSCHEDULER", name, "expected LSF, PBS or SLURM", ErrUnsupportedScheduler)
	}
}

// DetectType returns the type of scheduler available on the system.
// This is only used when no scheduler is configured explicitly.
func DetectType() Kind {
	// Check for SLURM (sbatch)
	if _, err := exec.LookPath("sbatch"); err == nil {
		return KindSLURM
	}

	// Check for PBS (qsub)
	if _, err := exec.LookPath("qsub"); err == nil {
		return KindPBS
	}

	// Check for LSF (bsub)
	if _, err := exec.LookPath("bsub"); err == nil {
		return KindLSF
	}

	return KindUnknown
}

// SubmittedJob is a job accepted by the scheduler, together with the files
// its completion is judged by.
type SubmittedJob struct {
	Name       string   // Job name (job file basename without .job)
	JobID      string   // Scheduler-assigned identifier
	JobFile    string   // Path to the .job file
	Stdout     string   // Expected job-level stdout file
	Stderr     string   // Expected job-level stderr file
	TaskStderr []string // Per-task stderr files scanned after completion
	Polled     bool     // True when status comes from sacct instead of file existence
}

// JobNameFromFile returns the job name encoded in a job file path.
func JobNameFromFile(jobFile string) string {
	return strings.TrimSuffix(filepath.Base(jobFile), JobFileExt)
}

// JobState is the monitor's view of a submitted job.
type JobState int

const (
	StateSubmitted JobState = iota
	StatePending
	StateRunning
	StateCompleted
	StateTimedOut
	StateFailed
)

func (s JobState) String() string {
	switch s {
	case StateSubmitted:
		return "SUBMITTED"
	case StatePending:
		return "PENDING"
	case StateRunning:
		return "RUNNING"
	case StateCompleted:
		return "COMPLETED"
	case StateTimedOut:
		return "TIMED_OUT"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transitions are possible.
func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateTimedOut || s == StateFailed
}
