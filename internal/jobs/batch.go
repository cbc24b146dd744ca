// Package jobs turns batch files of task lines into scheduler jobs: it
// partitions tasks, renders and submits job files, waits for them and
// reruns timed-out work once with a longer walltime.
package jobs

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/geodesymiami/rsmas-insar-sub000/internal/scheduler"
	"github.com/geodesymiami/rsmas-insar-sub000/internal/utils"
)

// ReadBatch returns the task lines of a batch file. Blank lines are ignored.
func ReadBatch(path string) ([]string, error) {
	lines, err := utils.ReadLines(path)
	if err != nil {
		return nil, fmt.Errorf("reading batch file %s: %w", path, err)
	}
	tasks := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			tasks = append(tasks, line)
		}
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("batch file %s has no tasks", path)
	}
	return tasks, nil
}

// BatchBase returns the batch file name without extensions
// ("run_03_geocode.job_rerun" -> "run_03_geocode").
func BatchBase(batchFile string) string {
	base := filepath.Base(batchFile)
	if idx := strings.Index(base, "."); idx > 0 {
		base = base[:idx]
	}
	return base
}

// StepName returns the processing step encoded in a batch file name:
// "run_03_generate_burst_igram" -> "generate_burst_igram". Names without a
// numeric index are returned whole.
func StepName(batchFile string) string {
	base := BatchBase(batchFile)
	tokens := strings.Split(base, "_")
	if len(tokens) < 3 {
		return base
	}
	if _, err := strconv.Atoi(tokens[1]); err != nil {
		return base
	}
	return strings.Join(tokens[2:], "_")
}

// jobName names job i of n built from one batch.
func jobName(batchBase string, i, n int) string {
	if n == 1 {
		return batchBase
	}
	return fmt.Sprintf("%s_%d", batchBase, i)
}

// isBatchJob reports whether name is a job jobName built from batch.
func isBatchJob(name, batch string) bool {
	if name == batch {
		return true
	}
	rest, ok := strings.CutPrefix(name, batch+"_")
	return ok && isDigits(rest)
}

// isOutputToken reports whether tok can follow a job name in an output file
// name: a task index, a scheduler job id or a generated srun id.
func isOutputToken(tok string) bool {
	if isDigits(tok) {
		return true
	}
	if len(tok) != 8 {
		return false
	}
	for _, r := range tok {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// isJobOutput reports whether file is the stdout or stderr of job, of one of
// its tasks, or of one run of it with a scheduler id.
func isJobOutput(file, job string) bool {
	ext := filepath.Ext(file)
	if ext != scheduler.StdoutExt && ext != scheduler.StderrExt {
		return false
	}
	stem := strings.TrimSuffix(file, ext)
	if stem == job {
		return true
	}
	tok, ok := strings.CutPrefix(stem, job+"_")
	return ok && isOutputToken(tok)
}
