package scheduler

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors
var (
	// ErrSchedulerNotFound indicates the scheduler binary was not found
	ErrSchedulerNotFound = errors.New("scheduler binary not found in PATH")

	// ErrUnsupportedScheduler indicates a scheduler name other than LSF, PBS or SLURM
	ErrUnsupportedScheduler = errors.New("unsupported job scheduler")

	// ErrScriptNotFound indicates the script file was not found
	ErrScriptNotFound = errors.New("script file not found")

	// ErrJobIDParseFailed indicates parsing job ID from output failed
	ErrJobIDParseFailed = errors.New("failed to parse job ID from scheduler output")

	// ErrDirectiveNotFound indicates a job file lacks the requested directive
	ErrDirectiveNotFound = errors.New("directive not found in job file")

	// ErrInvalidTimeFormat indicates time format is invalid
	ErrInvalidTimeFormat = errors.New("invalid time format")
)

// ConfigError represents a fatal configuration problem (missing DEFAULT entry,
// unknown scheduler, unknown submission scheme, malformed defaults file).
type ConfigError struct {
	Key    string // Offending key or section
	Value  string // Offending value (may be empty)
	Reason string
	Err    error // Underlying error (may be nil)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config error: %s", e.Key)
	if e.Value != "" {
		msg += fmt.Sprintf("=%q", e.Value)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// SubmissionError represents an error during job submission
type SubmissionError struct {
	Scheduler string // Scheduler name
	JobName   string // Job name
	Output    string // Scheduler output
	Err       error  // Underlying error
}

func (e *SubmissionError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("%s submission failed for job %s: %v\nOutput: %s",
			e.Scheduler, e.JobName, e.Err, e.Output)
	}
	return fmt.Sprintf("%s submission failed for job %s: %v",
		e.Scheduler, e.JobName, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// JobFailedError represents a job that reached FAILED, either by scheduler state
// or because a fatal signature showed up in its stderr.
type JobFailedError struct {
	JobName string
	JobID   string
	State   string // Terminal scheduler state or matched signature
	File    string // File the signature was found in (empty for scheduler states)
}

func (e *JobFailedError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("job %s (%s) failed: %q found in %s", e.JobName, e.JobID, e.State, e.File)
	}
	return fmt.Sprintf("job %s (%s) failed with state %s", e.JobName, e.JobID, e.State)
}

// JobTimeoutError represents a job that hit its walltime.
type JobTimeoutError struct {
	JobName string
	JobID   string
	Retried bool // Whether the job already went through the rerun
}

func (e *JobTimeoutError) Error() string {
	if e.Retried {
		return fmt.Sprintf("job %s (%s) timed out again after rerun with increased walltime", e.JobName, e.JobID)
	}
	return fmt.Sprintf("job %s (%s) exceeded its walltime", e.JobName, e.JobID)
}

// ScriptCreationError represents an error creating a batch script
type ScriptCreationError struct {
	JobName string // Job name
	Path    string // Script path
	Err     error  // Underlying error
}

func (e *ScriptCreationError) Error() string {
	return fmt.Sprintf("failed to create script for job %s at %s: %v",
		e.JobName, e.Path, e.Err)
}

func (e *ScriptCreationError) Unwrap() error {
	return e.Err
}

// Helper functions for creating errors

// NewConfigError creates a new ConfigError
func NewConfigError(key, value, reason string, err error) *ConfigError {
	return &ConfigError{Key: key, Value: value, Reason: reason, Err: err}
}

// NewSubmissionError creates a new SubmissionError
func NewSubmissionError(scheduler string, jobName string, output string, err error) *SubmissionError {
	return &SubmissionError{
		Scheduler: scheduler,
		JobName:   jobName,
		Output:    strings.TrimSpace(output),
		Err:       err,
	}
}

// NewScriptCreationError creates a new ScriptCreationError
func NewScriptCreationError(jobName string, path string, err error) *ScriptCreationError {
	return &ScriptCreationError{
		JobName: jobName,
		Path:    path,
		Err:     err,
	}
}

// IsConfigError checks if an error is a ConfigError
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsSubmissionError checks if an error is a SubmissionError
func IsSubmissionError(err error) bool {
	var se *SubmissionError
	return errors.As(err, &se)
}

// IsJobFailedError checks if an error is a JobFailedError
func IsJobFailedError(err error) bool {
	var fe *JobFailedError
	return errors.As(err, &fe)
}

// IsJobTimeoutError checks if an error is a JobTimeoutError
func IsJobTimeoutError(err error) bool {
	var te *JobTimeoutError
	return errors.As(err, &te)
}
