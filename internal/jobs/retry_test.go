package jobs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/geodesymiami/rsmas-insar-sub000/internal/scheduler"
	"github.com/geodesymiami/rsmas-insar-sub000/internal/utils"
)

func mustProfile(t *testing.T, kind scheduler.Kind) scheduler.Profile {
	t.Helper()
	p, err := scheduler.ProfileFor(kind)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func writeTestJob(t *testing.T, p scheduler.Profile, dir, name string, walltime time.Duration, launcher bool, tasks ...string) *scheduler.JobFile {
	t.Helper()
	jf, err := scheduler.BuildScript(scheduler.JobSpec{
		Name:     name,
		OutDir:   dir,
		Walltime: walltime,
		MemoryMB: 2000,
		Nodes:    1,
		Launcher: launcher,
		Tasks:    tasks,
	}, p)
	if err != nil {
		t.Fatal(err)
	}
	if err := scheduler.WriteJobFile(jf); err != nil {
		t.Fatal(err)
	}
	return jf
}

func TestRetryDoublesWalltime(t *testing.T) {
	dir := t.TempDir()
	p := mustProfile(t, scheduler.KindLSF)
	prefix := filepath.Join(dir, "run_03_geocode")

	timedOut := writeTestJob(t, p, dir, "run_03_geocode_0", 2*time.Hour, false, "geocode.py a", "geocode.py b")
	fine := writeTestJob(t, p, dir, "run_03_geocode_1", 2*time.Hour, false, "geocode.py c", "geocode.py d")

	writeFile(t, filepath.Join(dir, "run_03_geocode_0_0.e"), "Exited with exit code 140.\n")
	writeFile(t, filepath.Join(dir, "run_03_geocode_0_1.e"), "")
	writeFile(t, filepath.Join(dir, "run_03_geocode_0_555.o"), "job output\n")
	writeFile(t, filepath.Join(dir, "run_03_geocode_1_1.e"), "warning: fine\n")
	writeFile(t, filepath.Join(dir, "run_03_geocode_1_556.o"), "job output\n")

	rerun, err := RetryPolicy{Profile: p}.Prepare(prefix, nil)
	if err != nil {
		t.Fatalf("Prepare() error: %v", err)
	}
	if rerun == nil {
		t.Fatal("Prepare() = nil; want a rerun")
	}

	if got := p.FormatWalltime(rerun.Walltime); got != "4:00" {
		t.Errorf("rerun walltime = %q; want 4:00", got)
	}
	if strings.Join(rerun.Tasks, "|") != "geocode.py a|geocode.py b" {
		t.Errorf("rerun tasks = %q", rerun.Tasks)
	}
	if rerun.TaskMemMB != 1000 {
		t.Errorf("rerun task memory = %d; want 2000 MB over 2 tasks", rerun.TaskMemMB)
	}
	if len(rerun.JobFiles) != 1 || rerun.JobFiles[0] != timedOut.Path {
		t.Errorf("JobFiles = %v", rerun.JobFiles)
	}

	data, err := os.ReadFile(filepath.Join(dir, "run_03_geocode.job_rerun"))
	if err != nil {
		t.Fatalf("rerun batch not written: %v", err)
	}
	if string(data) != "geocode.py a\ngeocode.py b\n" {
		t.Errorf("rerun batch = %q", data)
	}

	preRerun := filepath.Join(dir, "stdout_run_03_geocode_pre_rerun")
	if utils.FileExists(filepath.Join(dir, "run_03_geocode_0_0.e")) {
		t.Error("stderr of timed-out job should be deleted")
	}
	if !utils.FileExists(filepath.Join(preRerun, "run_03_geocode_0_555.o")) {
		t.Error("stdout of timed-out job should move to the pre_rerun directory")
	}
	if !utils.FileExists(filepath.Join(preRerun, "run_03_geocode_0.job")) {
		t.Error("job file of timed-out job should move to the pre_rerun directory")
	}

	// The other job is left alone
	for _, f := range []string{fine.Path, filepath.Join(dir, "run_03_geocode_1_1.e"), filepath.Join(dir, "run_03_geocode_1_556.o")} {
		if !utils.FileExists(f) {
			t.Errorf("%s should be untouched", filepath.Base(f))
		}
	}
}

func TestRetryNothingTimedOut(t *testing.T) {
	dir := t.TempDir()
	p := mustProfile(t, scheduler.KindLSF)
	writeTestJob(t, p, dir, "run_04_x", time.Hour, false, "x")
	writeFile(t, filepath.Join(dir, "run_04_x_0.e"), "")

	rerun, err := RetryPolicy{Profile: p}.Prepare(filepath.Join(dir, "run_04_x"), nil)
	if err != nil || rerun != nil {
		t.Errorf("Prepare() = %+v, %v; want nil, nil", rerun, err)
	}
	if utils.FileExists(filepath.Join(dir, "run_04_x.job_rerun")) {
		t.Error("no rerun batch expected")
	}
}

func TestRetryFromMonitorTimeouts(t *testing.T) {
	dir := t.TempDir()
	p := mustProfile(t, scheduler.KindSLURM)
	jf := writeTestJob(t, p, dir, "run_05_ifgram_2", 2*time.Hour, true, "ifgram.sh 1", "ifgram.sh 2")
	writeTestJob(t, p, dir, "run_05_ifgram_10", 3*time.Hour, false, "ifgram.sh 3")
	jf10 := filepath.Join(dir, "run_05_ifgram_10.job")

	rerun, err := RetryPolicy{Profile: p, Factor: 1.5}.Prepare(filepath.Join(dir, "run_05_ifgram"), []string{jf10, jf.Path})
	if err != nil {
		t.Fatalf("Prepare() error: %v", err)
	}
	// Job order: _2 before _10; tasks of the launcher job come from its task file
	if strings.Join(rerun.Tasks, "|") != "ifgram.sh 1|ifgram.sh 2|ifgram.sh 3" {
		t.Errorf("rerun tasks = %q", rerun.Tasks)
	}
	if rerun.Walltime != 4*time.Hour+30*time.Minute {
		t.Errorf("rerun walltime = %v; want max(2h, 3h) * 1.5", rerun.Walltime)
	}
	if utils.FileExists(jf.LauncherPath) {
		t.Error("launcher file should move out of the run directory")
	}
}

func TestJobFileFor(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "run_01_a.job"), "")
	writeFile(t, filepath.Join(dir, "run_02_b_3.job"), "")
	writeFile(t, filepath.Join(dir, "run_01_a_fix.job"), "")

	tests := []struct {
		output, batch, want string
		ok                  bool
	}{
		{"run_01_a_0.e", "run_01_a", "run_01_a.job", true},
		{"run_01_a_12345.o", "run_01_a", "run_01_a.job", true},
		{"run_01_a.o", "run_01_a", "run_01_a.job", true},
		{"run_02_b_3_7.e", "run_02_b", "run_02_b_3.job", true},
		{"run_02_b_4_7.e", "run_02_b", "", false},
		{"run_01_a_fix_0.e", "run_01_a", "", false},
		{"run_01_a_fix.o", "run_01_a", "", false},
	}
	for _, tt := range tests {
		got, ok := jobFileFor(filepath.Join(dir, tt.output), tt.batch)
		if ok != tt.ok || (ok && got != filepath.Join(dir, tt.want)) {
			t.Errorf("jobFileFor(%q) = %q, %v; want %q, %v", tt.output, got, ok, tt.want, tt.ok)
		}
	}
}
