package cmd

import (
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/geodesymiami/rsmas-insar-sub000/internal/jobs"
)

func submitFlags(t *testing.T, extra func(fs *pflag.FlagSet), args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	addResourceFlags(fs)
	if extra != nil {
		extra(fs)
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse(%v) error: %v", args, err)
	}
	return fs
}

func TestJobOptionsUnsetStayNil(t *testing.T) {
	opts, err := jobOptions(submitFlags(t, nil))
	if err != nil {
		t.Fatal(err)
	}
	if opts.Queue != nil || opts.Memory != nil || opts.Walltime != nil || opts.NumThreads != nil || opts.NumBursts != nil {
		t.Errorf("unset flags should leave overrides nil: %+v", opts)
	}
	if opts.WalltimeFactor != 1 || opts.WriteOnly {
		t.Errorf("defaults = %+v", opts)
	}
}

func TestJobOptionsOverrides(t *testing.T) {
	fs := submitFlags(t, nil,
		"--queue", "skx-dev", "--memory", "4G", "--walltime", "1:30",
		"--num-threads", "4", "--num-bursts", "0", "--write-only")
	opts, err := jobOptions(fs)
	if err != nil {
		t.Fatal(err)
	}
	if *opts.Queue != "skx-dev" || *opts.Memory != 4096 || *opts.Walltime != 90*time.Minute || *opts.NumThreads != 4 {
		t.Errorf("overrides = queue %q memory %d walltime %v threads %d", *opts.Queue, *opts.Memory, *opts.Walltime, *opts.NumThreads)
	}
	// An explicit zero is still an override
	if opts.NumBursts == nil || *opts.NumBursts != 0 {
		t.Errorf("NumBursts = %v; want pointer to 0", opts.NumBursts)
	}
	if !opts.WriteOnly {
		t.Error("WriteOnly not set")
	}
}

func TestJobOptionsCommandFlags(t *testing.T) {
	fs := submitFlags(t, func(fs *pflag.FlagSet) {
		fs.Float64("retry-factor", jobs.DefaultRetryFactor, "")
		fs.Bool("wait", false, "")
		fs.String("work-dir", ".", "")
	}, "--retry-factor", "3", "--wait", "--work-dir", "/scratch/out")

	opts, err := jobOptions(fs)
	if err != nil {
		t.Fatal(err)
	}
	if opts.RetryFactor != 3 || !opts.Wait || opts.WorkDir != "/scratch/out" {
		t.Errorf("opts = %+v", opts)
	}
}

func TestJobOptionsRejectsBadValues(t *testing.T) {
	cases := [][]string{
		{"--walltime", "soon"},
		{"--walltime", "0"},
		{"--memory", "lots"},
		{"--num-threads", "0"},
		{"--num-bursts", "-1"},
	}
	for _, args := range cases {
		if _, err := jobOptions(submitFlags(t, nil, args...)); err == nil {
			t.Errorf("jobOptions(%v) expected error", args)
		}
	}
}

func TestSubmitCommandsRegistered(t *testing.T) {
	for _, name := range []string{"submit", "submit-script", "scheduler", "config", "completion"} {
		if c, _, err := rootCmd.Find([]string{name}); err != nil || c.Name() != name {
			t.Errorf("command %q not registered", name)
		}
	}
	for _, flag := range []string{"queue", "memory", "walltime", "num-threads", "num-bursts", "write-only"} {
		if submitCmd.Flags().Lookup(flag) == nil || submitScriptCmd.Flags().Lookup(flag) == nil {
			t.Errorf("flag --%s missing on submit or submit-script", flag)
		}
	}
}
