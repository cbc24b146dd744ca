package scheduler

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const (
	// JobFileExt is the extension of rendered job scripts.
	JobFileExt = ".job"

	// LauncherFileExt is the extension of launcher task lists.
	LauncherFileExt = ".tasks"

	// StdoutExt and StderrExt name job and task output files.
	StdoutExt = ".o"
	StderrExt = ".e"
)

// Profile is the static directive table of one scheduler. Every component
// consults the same Profile instead of re-deriving scheduler strings inline.
type Profile struct {
	Kind    Kind
	Prefix  string // Directive prefix, e.g. "#BSUB"
	Shebang string

	// Directive formats (written after Prefix). A verb-less format is emitted literally.
	JobNameFmt  string
	ProjectFmt  string
	QueueFmt    string
	WalltimeFmt string
	MemoryFmt   string // Empty when the scheduler gets whole nodes and takes no memory request
	StdoutFmt   string
	StderrFmt   string
	EmailFmts   []string
	Extras      []string
	GpuFmt      string // Empty when GPUs cannot be requested by directive

	// JobIDToken is substituted by the scheduler with the job id in output paths.
	// Empty means output paths carry no job id.
	JobIDToken string

	SubmitBin   string
	SubmitStdin bool // "bsub < job" style submission
	PollSacct   bool // Status is queried through sacct instead of file existence

	countDirectives func(nodes, tasks, coresPerNode int) []string
	formatWalltime  func(time.Duration) string
	parseWalltime   func(string) (time.Duration, error)
	parseJobID      func(output string) (string, bool)
	walltimeRe      *regexp.Regexp
	memoryRe        *regexp.Regexp
}

// ProfileFor returns the profile for a scheduler kind.
func ProfileFor(kind Kind) (Profile, error) {
	switch kind {
	case KindLSF:
		return lsfProfile(), nil
	case KindPBS:
		return pbsProfile(), nil
	case KindSLURM:
		return slurmProfile(), nil
	default:
		return Profile{}, NewConfigError("JOBSCHEDULER", string(kind), "no profile for scheduler", ErrUnsupportedScheduler)
	}
}

// Directive renders one directive line.
func (p Profile) Directive(format string, a ...interface{}) string {
	body := format
	if strings.Contains(format, "%") {
		body = fmt.Sprintf(format, a...)
	}
	return p.Prefix + " " + body
}

// SupportsMemory reports whether the profile writes a memory directive.
func (p Profile) SupportsMemory() bool {
	return p.MemoryFmt != ""
}

// CountDirectives returns the node/process-count directive bodies.
func (p Profile) CountDirectives(nodes, tasks, coresPerNode int) []string {
	if nodes < 1 {
		nodes = 1
	}
	if tasks < 1 {
		tasks = 1
	}
	return p.countDirectives(nodes, tasks, coresPerNode)
}

// FormatWalltime formats a walltime the way the scheduler expects it.
func (p Profile) FormatWalltime(d time.Duration) string {
	return p.formatWalltime(d)
}

// ParseWalltime parses a walltime written by FormatWalltime (or by hand).
func (p Profile) ParseWalltime(s string) (time.Duration, error) {
	return p.parseWalltime(s)
}

// ExtractJobID pulls the job identifier out of the submit command output.
func (p Profile) ExtractJobID(output string) (string, error) {
	id, ok := p.parseJobID(output)
	if !ok || id == "" {
		return "", fmt.Errorf("%w: %s", ErrJobIDParseFailed, strings.TrimSpace(output))
	}
	return id, nil
}

// OutputDirectivePaths returns the stdout/stderr paths written into the job
// script, containing the scheduler's job-id token where it has one.
func (p Profile) OutputDirectivePaths(outDir, jobName string) (string, string) {
	return p.outputPaths(outDir, jobName, p.JobIDToken)
}

// OutputPaths returns the stdout/stderr files a job with the given id produces.
func (p Profile) OutputPaths(outDir, jobName, jobID string) (string, string) {
	if p.JobIDToken == "" {
		return p.outputPaths(outDir, jobName, "")
	}
	return p.outputPaths(outDir, jobName, jobID)
}

func (p Profile) outputPaths(outDir, jobName, id string) (string, string) {
	base := jobName
	if id != "" {
		base = jobName + "_" + id
	}
	return filepath.Join(outDir, base+StdoutExt), filepath.Join(outDir, base+StderrExt)
}
