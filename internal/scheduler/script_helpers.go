package scheduler

import (
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// launcherJIDVar is expanded by the launcher to the 1-based task number.
const launcherJIDVar = "$LAUNCHER_JID"

// taskLineRe matches a task line rendered by formatTaskLine, with or without
// the trailing "&" (launcher task files omit it).
var taskLineRe = regexp.MustCompile(`^(.+) > (\S+)\.o 2> (\S+)\.e(?: &)?$`)

// safeJobName converts a job name to a filesystem-safe string by replacing "/" with "--".
func safeJobName(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), "/", "--")
}

// formatTaskLine redirects one task to its own output pair.
func formatTaskLine(command, outBase string, background bool) string {
	line := fmt.Sprintf("%s > %s%s 2> %s%s", command, outBase, StdoutExt, outBase, StderrExt)
	if background {
		line += " &"
	}
	return line
}

// writeDirectives writes the shebang and every directive line for spec.
//
// Order: name, project, node/process counts, stdout, stderr, queue,
// walltime, memory, email-on-failure, scheduler extras, GPU.
func writeDirectives(w io.Writer, spec *JobSpec, p Profile, name string) {
	fmt.Fprintln(w, p.Shebang)
	fmt.Fprintln(w, p.Directive(p.JobNameFmt, name))
	if spec.Project != "" {
		fmt.Fprintln(w, p.Directive(p.ProjectFmt, spec.Project))
	}
	for _, line := range p.CountDirectives(spec.Nodes, len(spec.Tasks), spec.CoresPerNode) {
		fmt.Fprintln(w, p.Directive(line))
	}

	stdout, stderr := p.OutputDirectivePaths(spec.OutDir, name)
	fmt.Fprintln(w, p.Directive(p.StdoutFmt, stdout))
	fmt.Fprintln(w, p.Directive(p.StderrFmt, stderr))

	if spec.Queue != "" {
		fmt.Fprintln(w, p.Directive(p.QueueFmt, spec.Queue))
	}
	fmt.Fprintln(w, p.Directive(p.WalltimeFmt, p.FormatWalltime(spec.Walltime)))
	if p.SupportsMemory() && spec.MemoryMB > 0 {
		fmt.Fprintln(w, p.Directive(p.MemoryFmt, spec.MemoryMB))
	}
	if spec.Email != "" {
		for _, f := range p.EmailFmts {
			fmt.Fprintln(w, p.Directive(f, spec.Email))
		}
	}
	for _, extra := range p.Extras {
		fmt.Fprintln(w, p.Directive(extra))
	}
	if spec.GPUs > 0 && p.GpuFmt != "" {
		fmt.Fprintln(w, p.Directive(p.GpuFmt, spec.GPUs))
	}
}

// writeEnvVars writes the thread-count export every task inherits.
func writeEnvVars(w io.Writer, spec *JobSpec) {
	threads := spec.NumThreads
	if threads < 1 {
		threads = 1
	}
	fmt.Fprintf(w, "export OMP_NUM_THREADS=%d\n", threads)
}

// taskOutputBase returns the extension-less output path of task i.
func taskOutputBase(outDir, name string, i int) string {
	return filepath.Join(outDir, name+"_"+strconv.Itoa(i))
}
