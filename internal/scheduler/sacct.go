package scheduler

import (
	"fmt"
	"os/exec"
	"strings"
)

// StatusQuerier reports the scheduler's view of a job.
type StatusQuerier interface {
	// State returns the mapped state and the raw scheduler state string.
	State(jobID string) (JobState, string, error)
}

// SacctQuerier queries SLURM accounting for job state.
type SacctQuerier struct {
	Bin string // empty means "sacct" from $PATH
}

// State runs sacct --format=State -j <id>.
func (q SacctQuerier) State(jobID string) (JobState, string, error) {
	bin := q.Bin
	if bin == "" {
		bin = "sacct"
	}
	output, err := exec.Command(bin, "--format=State", "-j", jobID).CombinedOutput()
	if err != nil {
		return StatePending, "", fmt.Errorf("sacct -j %s: %w: %s", jobID, err, strings.TrimSpace(string(output)))
	}
	raw := ParseSacctState(string(output))
	return MapSacctState(raw), raw, nil
}

// ParseSacctState returns the first state in sacct output, skipping the
// header and separator lines. "CANCELLED by 123" and "CANCELLED+" both
// yield "CANCELLED". Empty output (job not yet in accounting) yields "".
func ParseSacctState(output string) string {
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		field := fields[0]
		if field == "State" || strings.Trim(field, "-") == "" {
			continue
		}
		return strings.TrimRight(strings.ToUpper(field), "+")
	}
	return ""
}

// MapSacctState maps a raw sacct state onto JobState.
func MapSacctState(raw string) JobState {
	switch raw {
	case "", "PENDING", "REQUEUED", "CONFIGURING", "SUSPENDED":
		return StatePending
	case "RUNNING", "COMPLETING":
		return StateRunning
	case "COMPLETED":
		return StateCompleted
	case "TIMEOUT":
		return StateTimedOut
	default:
		return StateFailed
	}
}
