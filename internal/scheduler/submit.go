package scheduler

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/gvallee/go_exec/pkg/advexec"
	"github.com/gvallee/go_util/pkg/util"

	"github.com/geodesymiami/rsmas-insar-sub000/internal/utils"
)

// Submitter hands job files to the scheduler.
type Submitter struct {
	Profile Profile
	Bin     string // Submit binary; empty means Profile.SubmitBin from $PATH
	SrunBin string // Used when UseSrun is set; empty means "srun"
	UseSrun bool   // SLURM only: run each job with srun inside the current allocation
}

// NewSubmitter creates a Submitter for profile p.
func NewSubmitter(p Profile) *Submitter {
	return &Submitter{Profile: p}
}

func (s *Submitter) bin() string {
	if s.Bin != "" {
		return s.Bin
	}
	return s.Profile.SubmitBin
}

// resolveBin returns the absolute path of the submit binary.
func (s *Submitter) resolveBin() (string, error) {
	bin := s.bin()
	if filepath.IsAbs(bin) {
		if !util.FileExists(bin) {
			return "", fmt.Errorf("%s: %w", bin, ErrSchedulerNotFound)
		}
		return bin, nil
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return "", fmt.Errorf("%s: %w", bin, ErrSchedulerNotFound)
	}
	return path, nil
}

// Submit hands jobFile to the scheduler and returns the submitted job with
// its id and output file paths.
func (s *Submitter) Submit(jobFile string) (SubmittedJob, error) {
	name := JobNameFromFile(jobFile)
	if s.UseSrun {
		return s.submitSrun(jobFile)
	}

	bin, err := s.resolveBin()
	if err != nil {
		subErr := NewSubmissionError(string(s.Profile.Kind), name, "", err)
		utils.PrintError("%v", subErr)
		return SubmittedJob{}, subErr
	}

	cmd := advexec.Advcmd{BinPath: bin, CmdArgs: []string{jobFile}}
	if s.Profile.SubmitStdin {
		// bsub and qsub read the script from stdin: bsub < job
		shell, err := exec.LookPath("bash")
		if err != nil {
			return SubmittedJob{}, NewSubmissionError(string(s.Profile.Kind), name, "", err)
		}
		cmd.BinPath = shell
		cmd.CmdArgs = []string{"-c", fmt.Sprintf("%s < %s", shellQuote(bin), shellQuote(jobFile))}
	}
	utils.PrintDebug("Running %s %s", cmd.BinPath, strings.Join(cmd.CmdArgs, " "))

	res := cmd.Run()
	output := res.Stdout + res.Stderr
	if res.Err != nil {
		subErr := NewSubmissionError(string(s.Profile.Kind), name, output, res.Err)
		utils.PrintError("%v", subErr)
		return SubmittedJob{}, subErr
	}

	jobID, err := s.Profile.ExtractJobID(output)
	if err != nil {
		utils.PrintError("Could not read job id for %s: %v", name, err)
		return SubmittedJob{}, err
	}

	outDir := filepath.Dir(jobFile)
	stdout, stderr := s.Profile.OutputPaths(outDir, name, jobID)
	utils.PrintDebug("%s %s submitted as job %s", s.Profile.SubmitBin, utils.StylePath(jobFile), jobID)

	return SubmittedJob{
		Name:    name,
		JobID:   jobID,
		JobFile: jobFile,
		Stdout:  stdout,
		Stderr:  stderr,
		Polled:  s.Profile.PollSacct,
	}, nil
}

// submitSrun runs the job synchronously on one node of the current
// allocation. srun has no job id of its own here, so one is generated.
func (s *Submitter) submitSrun(jobFile string) (SubmittedJob, error) {
	name := JobNameFromFile(jobFile)
	jobID := uuid.New().String()[:8]
	stdout, stderr := s.Profile.OutputPaths(filepath.Dir(jobFile), name, jobID)

	srun := s.SrunBin
	if srun == "" {
		srun = "srun"
	}
	shellCmd := fmt.Sprintf("%s -N 1 -n 1 bash %s > %s 2> %s",
		srun, shellQuote(jobFile), shellQuote(stdout), shellQuote(stderr))
	utils.PrintDebug("Running %s", shellCmd)

	output, err := exec.Command("bash", "-c", shellCmd).CombinedOutput()
	if err != nil {
		subErr := NewSubmissionError("srun", name, string(output), err)
		utils.PrintError("%v", subErr)
		return SubmittedJob{}, subErr
	}

	return SubmittedJob{
		Name:    name,
		JobID:   jobID,
		JobFile: jobFile,
		Stdout:  stdout,
		Stderr:  stderr,
		Polled:  false,
	}, nil
}

func shellQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n'\"$`\\*?[]#~=%;&|<>(){}!") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
