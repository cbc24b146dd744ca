package config

import (
	"fmt"

	"github.com/geodesymiami/rsmas-insar-sub000/internal/scheduler"
)

const VERSION = "0.4.0"

// ClusterConfig holds the cluster settings every job-submission component
// receives explicitly. It is built once at startup by Load.
type ClusterConfig struct {
	Scheduler         scheduler.Kind `yaml:"scheduler"`
	Queue             string         `yaml:"queue"`
	CoresPerNode      int            `yaml:"cores_per_node"`
	ThreadsPerCore    int            `yaml:"threads_per_core"`
	SubmissionScheme  string         `yaml:"submission_scheme"`
	MaxJobsPerQueue   int            `yaml:"max_jobs_per_queue"` // <= 0 means unbounded
	MaxMemoryPerNode  int            `yaml:"max_memory_per_node_mb"`
	PlatformName      string         `yaml:"platform_name"`
	NotificationEmail string         `yaml:"notification_email,omitempty"`
	Project           string         `yaml:"project,omitempty"`
	JobDefaultsFile   string         `yaml:"job_defaults_file"`

	SchedulerBin string `yaml:"scheduler_bin,omitempty"` // Overrides the profile's submit command
	SacctBin     string `yaml:"sacct_bin,omitempty"`
	SrunBin      string `yaml:"srun_bin,omitempty"`
	UseSrun      bool   `yaml:"use_srun"`
}

// Validate checks the values the partitioner and script builder rely on.
func (c ClusterConfig) Validate() error {
	if _, err := scheduler.ProfileFor(c.Scheduler); err != nil {
		return err
	}
	if c.CoresPerNode < 1 {
		return scheduler.NewConfigError("NUMBER_OF_CORES_PER_NODE", fmt.Sprint(c.CoresPerNode), "must be at least 1", nil)
	}
	if c.ThreadsPerCore < 1 {
		return scheduler.NewConfigError("NUMBER_OF_THREADS_PER_CORE", fmt.Sprint(c.ThreadsPerCore), "must be at least 1", nil)
	}
	if c.MaxMemoryPerNode < 0 {
		return scheduler.NewConfigError("MAX_MEMORY_PER_NODE", fmt.Sprint(c.MaxMemoryPerNode), "must not be negative", nil)
	}
	if c.UseSrun && c.Scheduler != scheduler.KindSLURM {
		return scheduler.NewConfigError("use_srun", "true", "srun launches need SLURM", nil)
	}
	return nil
}
