package jobs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStepName(t *testing.T) {
	tests := map[string]string{
		"/w/run_files/run_03_generate_burst_igram":  "generate_burst_igram",
		"run_01_unpack_topo_reference":              "unpack_topo_reference",
		"run_11_geocode.job_rerun":                  "geocode",
		"smallbaseline_wrapper":                     "smallbaseline_wrapper",
		"run_x_step":                                "run_x_step",
		"/w/run_files/run_07_merge_burst_igram.job": "merge_burst_igram",
	}
	for input, want := range tests {
		if got := StepName(input); got != want {
			t.Errorf("StepName(%q) = %q; want %q", input, got, want)
		}
	}
}

func TestBatchBase(t *testing.T) {
	if got := BatchBase("/w/run_files/run_02_x.job_rerun"); got != "run_02_x" {
		t.Errorf("BatchBase() = %q", got)
	}
}

func TestJobName(t *testing.T) {
	if got := jobName("run_02_x", 0, 1); got != "run_02_x" {
		t.Errorf("single job name = %q", got)
	}
	if got := jobName("run_02_x", 3, 5); got != "run_02_x_3" {
		t.Errorf("job name = %q", got)
	}
}

func TestIsJobOutput(t *testing.T) {
	tests := []struct {
		file string
		want bool
	}{
		{"run_02_x.o", true},
		{"run_02_x_3.e", true},
		{"run_02_x_4242.o", true},
		{"run_02_x_0a1b2c3d.o", true},
		{"run_02_x.job", false},
		{"run_02_x_fix.o", false},
		{"run_02_x_fix_0.e", false},
		{"run_02_x_3_7.o", false},
	}
	for _, tt := range tests {
		if got := isJobOutput(tt.file, "run_02_x"); got != tt.want {
			t.Errorf("isJobOutput(%q) = %v; want %v", tt.file, got, tt.want)
		}
	}
}

func TestReadBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run_01_unpack")
	data := "unpack.py a\n\n  \nunpack.py b  \n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	tasks, err := ReadBatch(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 2 || tasks[0] != "unpack.py a" || tasks[1] != "unpack.py b" {
		t.Errorf("ReadBatch() = %q", tasks)
	}

	empty := filepath.Join(t.TempDir(), "run_02_empty")
	if err := os.WriteFile(empty, []byte("\n\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadBatch(empty); err == nil {
		t.Error("ReadBatch(empty) expected error")
	}
}
