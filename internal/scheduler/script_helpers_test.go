package scheduler

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testSpec(tasks ...string) JobSpec {
	return JobSpec{
		Name:       "run_05_ifgram_0",
		OutDir:     "/w/run_files",
		Walltime:   time.Hour,
		NumThreads: 4,
		Nodes:      1,
		Tasks:      tasks,
	}
}

func TestBuildScriptTaskLines(t *testing.T) {
	jf, err := BuildScript(testSpec("ifgram.py a", "ifgram.py b"), lsfProfile())
	if err != nil {
		t.Fatalf("BuildScript() error: %v", err)
	}

	want := strings.Join([]string{
		"",
		"export OMP_NUM_THREADS=4",
		"ifgram.py a > /w/run_files/run_05_ifgram_0_0.o 2> /w/run_files/run_05_ifgram_0_0.e &",
		"ifgram.py b > /w/run_files/run_05_ifgram_0_1.o 2> /w/run_files/run_05_ifgram_0_1.e &",
		"wait",
		"",
	}, "\n")
	if !strings.HasSuffix(jf.Text, want) {
		t.Errorf("job text tail mismatch:\n%s", jf.Text)
	}
	if jf.Path != "/w/run_files/run_05_ifgram_0.job" {
		t.Errorf("Path = %q", jf.Path)
	}
	if jf.LauncherPath != "" {
		t.Errorf("LauncherPath = %q; want empty", jf.LauncherPath)
	}
	if len(jf.TaskStderr) != 2 || jf.TaskStderr[1] != "/w/run_files/run_05_ifgram_0_1.e" {
		t.Errorf("TaskStderr = %v", jf.TaskStderr)
	}
}

func TestBuildScriptLauncher(t *testing.T) {
	spec := testSpec("a.sh", "b.sh", "c.sh")
	spec.Launcher = true
	jf, err := BuildScript(spec, slurmProfile())
	if err != nil {
		t.Fatalf("BuildScript() error: %v", err)
	}

	if jf.LauncherPath != "/w/run_files/run_05_ifgram_0.tasks" {
		t.Errorf("LauncherPath = %q", jf.LauncherPath)
	}
	wantTask := "a.sh > /w/run_files/run_05_ifgram_0_$LAUNCHER_JID.o 2> /w/run_files/run_05_ifgram_0_$LAUNCHER_JID.e\n"
	if !strings.HasPrefix(jf.LauncherText, wantTask) {
		t.Errorf("launcher text = %q", jf.LauncherText)
	}
	for _, want := range []string{
		"module load launcher\n",
		"export LAUNCHER_WORKDIR=/w/run_files\n",
		"export LAUNCHER_JOB_FILE=/w/run_files/run_05_ifgram_0.tasks\n",
		"$LAUNCHER_DIR/paramrun\n",
	} {
		if !strings.Contains(jf.Text, want) {
			t.Errorf("job text missing %q", want)
		}
	}
	if strings.Contains(jf.Text, "wait\n") {
		t.Error("launcher job should not background tasks")
	}
	if jf.TaskStdout[0] != "/w/run_files/run_05_ifgram_0_1.o" {
		t.Errorf("first launcher task stdout = %q; want _1.o", jf.TaskStdout[0])
	}
}

func TestBuildScriptDoesNotMutateTasks(t *testing.T) {
	tasks := []string{"x", "y"}
	spec := testSpec(tasks...)
	spec.Tasks = tasks
	if _, err := BuildScript(spec, pbsProfile()); err != nil {
		t.Fatal(err)
	}
	if tasks[0] != "x" || tasks[1] != "y" {
		t.Errorf("tasks mutated: %v", tasks)
	}
}

func TestBuildScriptErrors(t *testing.T) {
	if _, err := BuildScript(testSpec(), lsfProfile()); err == nil {
		t.Error("expected error for job without tasks")
	}
	spec := testSpec("a")
	spec.Name = " "
	if _, err := BuildScript(spec, lsfProfile()); err == nil {
		t.Error("expected error for empty job name")
	}
}

func TestTaskLinesInvertsRendering(t *testing.T) {
	tasks := []string{
		"ifgram.py --ref 20200101 --sec 20200113",
		"echo 'a > b'",
		"run.sh x y z",
	}
	for _, p := range []Profile{lsfProfile(), pbsProfile(), slurmProfile()} {
		for _, launcher := range []bool{false, true} {
			spec := testSpec(tasks...)
			spec.Launcher = launcher
			jf, err := BuildScript(spec, p)
			if err != nil {
				t.Fatal(err)
			}
			text := jf.Text
			if launcher {
				text = jf.LauncherText
			}
			got := TaskCommands(text)
			if strings.Join(got, "\n") != strings.Join(tasks, "\n") {
				t.Errorf("%s launcher=%v: TaskCommands() = %q", p.Kind, launcher, got)
			}
		}
	}
}

func TestBuildSingleCommandScript(t *testing.T) {
	jf, err := BuildSingleCommandScript(testSpec(), "smallbaselineApp.py smallbaselineApp.cfg", lsfProfile())
	if err != nil {
		t.Fatalf("BuildSingleCommandScript() error: %v", err)
	}
	if !strings.HasSuffix(jf.Text, "export OMP_NUM_THREADS=4\nsmallbaselineApp.py smallbaselineApp.cfg\n") {
		t.Errorf("unexpected text:\n%s", jf.Text)
	}
	if strings.Contains(jf.Text, "&") {
		t.Error("single command should not be backgrounded")
	}
	if _, err := BuildSingleCommandScript(testSpec(), "  ", lsfProfile()); err == nil {
		t.Error("expected error for empty command")
	}
}

func TestWriteJobFile(t *testing.T) {
	dir := t.TempDir()
	spec := testSpec("a", "b")
	spec.OutDir = filepath.Join(dir, "run_files")
	spec.Launcher = true

	jf, err := BuildScript(spec, slurmProfile())
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteJobFile(jf); err != nil {
		t.Fatalf("WriteJobFile() error: %v", err)
	}

	info, err := os.Stat(jf.Path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0100 == 0 {
		t.Errorf("job file mode = %v; want executable", info.Mode().Perm())
	}
	data, err := os.ReadFile(jf.LauncherPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != jf.LauncherText {
		t.Errorf("launcher file content = %q", data)
	}
}

func TestSafeJobName(t *testing.T) {
	if got := safeJobName(" a/b "); got != "a--b" {
		t.Errorf("safeJobName() = %q", got)
	}
}
