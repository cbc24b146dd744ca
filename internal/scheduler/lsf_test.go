package scheduler

import (
	"strings"
	"testing"
	"time"
)

func TestLsfResourcesRoundTrip(t *testing.T) {
	p := lsfProfile()

	tests := []struct {
		name     string
		walltime time.Duration
		memoryMB int
	}{
		{"two hours", 2 * time.Hour, 3000},
		{"minutes", 45 * time.Minute, 500},
		{"long", 30*time.Hour + 15*time.Minute, 64000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jf, err := BuildScript(JobSpec{
				Name:     "run_01_unpack",
				OutDir:   "/scratch/run_files",
				Walltime: tt.walltime,
				MemoryMB: tt.memoryMB,
				Nodes:    1,
				Tasks:    []string{"echo a"},
			}, p)
			if err != nil {
				t.Fatalf("BuildScript() error: %v", err)
			}

			wt, mem, err := p.ReadResources(jf.Text)
			if err != nil {
				t.Fatalf("ReadResources() error: %v", err)
			}
			if wt != tt.walltime {
				t.Errorf("walltime = %v; want %v", wt, tt.walltime)
			}
			if mem != tt.memoryMB {
				t.Errorf("memory = %d; want %d", mem, tt.memoryMB)
			}
		})
	}
}

func TestLsfDirectives(t *testing.T) {
	p := lsfProfile()
	jf, err := BuildScript(JobSpec{
		Name:     "run_02_ifgram",
		OutDir:   "/scratch/run_files",
		Queue:    "general",
		Project:  "insarlab",
		Email:    "me@example.com",
		Walltime: 2 * time.Hour,
		MemoryMB: 2000,
		Nodes:    1,
		Tasks:    []string{"a", "b", "c"},
	}, p)
	if err != nil {
		t.Fatalf("BuildScript() error: %v", err)
	}

	want := []string{
		"#!/bin/bash",
		"#BSUB -J run_02_ifgram",
		"#BSUB -P insarlab",
		"#BSUB -n 3",
		"#BSUB -R span[hosts=1]",
		"#BSUB -o /scratch/run_files/run_02_ifgram_%J.o",
		"#BSUB -e /scratch/run_files/run_02_ifgram_%J.e",
		"#BSUB -q general",
		"#BSUB -W 2:00",
		"#BSUB -R rusage[mem=2000]",
		"#BSUB -u me@example.com",
		"",
		"export OMP_NUM_THREADS=1",
	}
	lines := strings.Split(jf.Text, "\n")
	for i, w := range want {
		if lines[i] != w {
			t.Errorf("line %d = %q; want %q", i, lines[i], w)
		}
	}
}

func TestLsfMultiNodeSpan(t *testing.T) {
	got := lsfProfile().CountDirectives(2, 96, 48)
	want := []string{"-n 96", "-R span[ptile=48]"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("CountDirectives() = %v; want %v", got, want)
	}
}

func TestLsfExtractJobID(t *testing.T) {
	p := lsfProfile()

	id, err := p.ExtractJobID("Job <12345> is submitted to queue <general>.\n")
	if err != nil {
		t.Fatalf("ExtractJobID() error: %v", err)
	}
	if id != "12345" {
		t.Errorf("ExtractJobID() = %q; want 12345", id)
	}

	if _, err := p.ExtractJobID("Request aborted by esub. Job not submitted."); err == nil {
		t.Error("expected error for output without job id")
	}
}

func TestLsfOutputPaths(t *testing.T) {
	p := lsfProfile()
	out, errPath := p.OutputPaths("/w", "run_01_unpack_0", "77")
	if out != "/w/run_01_unpack_0_77.o" || errPath != "/w/run_01_unpack_0_77.e" {
		t.Errorf("OutputPaths() = %q, %q", out, errPath)
	}
}
