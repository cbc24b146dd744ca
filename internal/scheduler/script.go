package scheduler

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/geodesymiami/rsmas-insar-sub000/internal/utils"
)

// JobSpec describes one job to render.
type JobSpec struct {
	Name         string // Job name; the job file is <OutDir>/<Name>.job
	OutDir       string
	Queue        string
	Project      string
	Email        string // Failure notification address (empty = none)
	Walltime     time.Duration
	MemoryMB     int
	NumThreads   int
	Nodes        int
	CoresPerNode int
	GPUs         int
	Launcher     bool     // Run tasks through the launcher utility instead of "&"/wait
	Tasks        []string // Task command lines, in order
}

// JobFile is the rendered form of a JobSpec.
type JobFile struct {
	Name         string
	Path         string
	Text         string
	LauncherPath string // Empty unless the job uses the launcher
	LauncherText string
	TaskStdout   []string
	TaskStderr   []string
}

// TaskLine is one task recovered from a rendered job or launcher file.
type TaskLine struct {
	Command string
	Stdout  string
	Stderr  string
}

// BuildScript renders spec for profile p. It reads nothing from the
// environment and does not touch the filesystem.
func BuildScript(spec JobSpec, p Profile) (*JobFile, error) {
	name := safeJobName(spec.Name)
	if name == "" {
		return nil, NewScriptCreationError(spec.Name, spec.OutDir, errors.New("job name is empty"))
	}
	if len(spec.Tasks) == 0 {
		return nil, NewScriptCreationError(name, spec.OutDir, errors.New("job has no tasks"))
	}

	jf := &JobFile{
		Name: name,
		Path: filepath.Join(spec.OutDir, name+JobFileExt),
	}

	var b strings.Builder
	writeDirectives(&b, &spec, p, name)
	b.WriteString("\n")
	writeEnvVars(&b, &spec)

	if spec.Launcher {
		jf.LauncherPath = filepath.Join(spec.OutDir, name+LauncherFileExt)
		var tasks strings.Builder
		base := filepath.Join(spec.OutDir, name+"_"+launcherJIDVar)
		for _, task := range spec.Tasks {
			tasks.WriteString(formatTaskLine(task, base, false))
			tasks.WriteString("\n")
		}
		// $LAUNCHER_JID counts from 1
		for i := range spec.Tasks {
			out := taskOutputBase(spec.OutDir, name, i+1)
			jf.TaskStdout = append(jf.TaskStdout, out+StdoutExt)
			jf.TaskStderr = append(jf.TaskStderr, out+StderrExt)
		}
		jf.LauncherText = tasks.String()

		b.WriteString("module load launcher\n")
		fmt.Fprintf(&b, "export LAUNCHER_WORKDIR=%s\n", spec.OutDir)
		fmt.Fprintf(&b, "export LAUNCHER_JOB_FILE=%s\n", jf.LauncherPath)
		b.WriteString("$LAUNCHER_DIR/paramrun\n")
	} else {
		for i, task := range spec.Tasks {
			out := taskOutputBase(spec.OutDir, name, i)
			b.WriteString(formatTaskLine(task, out, true))
			b.WriteString("\n")
			jf.TaskStdout = append(jf.TaskStdout, out+StdoutExt)
			jf.TaskStderr = append(jf.TaskStderr, out+StderrExt)
		}
		b.WriteString("wait\n")
	}

	jf.Text = b.String()
	return jf, nil
}

// BuildSingleCommandScript renders a job that runs one command inline,
// without per-task redirection or backgrounding.
func BuildSingleCommandScript(spec JobSpec, command string, p Profile) (*JobFile, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil, NewScriptCreationError(spec.Name, spec.OutDir, errors.New("command is empty"))
	}
	spec.Tasks = []string{command}
	spec.Launcher = false
	name := safeJobName(spec.Name)
	if name == "" {
		return nil, NewScriptCreationError(spec.Name, spec.OutDir, errors.New("job name is empty"))
	}

	var b strings.Builder
	writeDirectives(&b, &spec, p, name)
	b.WriteString("\n")
	writeEnvVars(&b, &spec)
	b.WriteString(command)
	b.WriteString("\n")

	return &JobFile{
		Name: name,
		Path: filepath.Join(spec.OutDir, name+JobFileExt),
		Text: b.String(),
	}, nil
}

// WriteJobFile writes the job script (executable) and, for launcher jobs,
// the task file.
func WriteJobFile(jf *JobFile) error {
	if err := utils.EnsureDir(filepath.Dir(jf.Path)); err != nil {
		return NewScriptCreationError(jf.Name, jf.Path, err)
	}
	if err := writeText(jf.Path, jf.Text, utils.PermExec); err != nil {
		return NewScriptCreationError(jf.Name, jf.Path, err)
	}
	if jf.LauncherPath != "" {
		if err := writeText(jf.LauncherPath, jf.LauncherText, utils.PermFile); err != nil {
			return NewScriptCreationError(jf.Name, jf.LauncherPath, err)
		}
	}
	utils.PrintDebug("Wrote job file %s", utils.StylePath(jf.Path))
	return nil
}

func writeText(path, text string, perm os.FileMode) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if _, err := writer.WriteString(text); err != nil {
		return err
	}
	if err := writer.Flush(); err != nil {
		return err
	}
	// OpenFile leaves the mode of an existing file alone
	return os.Chmod(path, perm)
}

// TaskLines recovers the task lines from rendered job or launcher text.
// Lines that are not task lines (directives, exports, wait) are skipped.
func TaskLines(text string) []TaskLine {
	var tasks []TaskLine
	for _, line := range strings.Split(text, "\n") {
		m := taskLineRe.FindStringSubmatch(strings.TrimRight(line, " \t\r"))
		if m == nil {
			continue
		}
		tasks = append(tasks, TaskLine{
			Command: m[1],
			Stdout:  m[2] + StdoutExt,
			Stderr:  m[3] + StderrExt,
		})
	}
	return tasks
}

// TaskCommands returns only the commands of TaskLines.
func TaskCommands(text string) []string {
	lines := TaskLines(text)
	cmds := make([]string, 0, len(lines))
	for _, l := range lines {
		cmds = append(cmds, l.Command)
	}
	return cmds
}
