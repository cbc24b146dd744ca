package config

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/geodesymiami/rsmas-insar-sub000/internal/scheduler"
	"github.com/geodesymiami/rsmas-insar-sub000/internal/utils"
)

// ConfigFilename is the name of the config file
const ConfigFilename = "config"

// ConfigType is the type of config file (yaml, json, toml)
const ConfigType = "yaml"

// legacyEnv maps config keys to the environment variables the pipeline's
// shell setup exports.
var legacyEnv = map[string]string{
	"scheduler":           "JOBSCHEDULER",
	"queue":               "QUEUENAME",
	"cores_per_node":      "NUMBER_OF_CORES_PER_NODE",
	"threads_per_core":    "NUMBER_OF_THREADS_PER_CORE",
	"submission_scheme":   "JOB_SUBMISSION_SCHEME",
	"max_jobs_per_queue":  "MAX_JOBS_PER_QUEUE",
	"max_memory_per_node": "MAX_MEMORY_PER_NODE",
	"platform_name":       "PLATFORM_NAME",
	"notification_email":  "NOTIFICATIONEMAIL",
	"project":             "JOBSHEDULER_PROJECTNAME",
	"job_defaults_file":   "JOB_DEFAULTS_CFG",
	"rsmasinsar_home":     "RSMASINSAR_HOME",
}

// localKeys are settings without a legacy environment variable.
var localKeys = []string{"scheduler_bin", "sacct_bin", "srun_bin", "use_srun"}

// Keys returns every config key in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(legacyEnv)+len(localKeys))
	for key := range legacyEnv {
		keys = append(keys, key)
	}
	keys = append(keys, localKeys...)
	sort.Strings(keys)
	return keys
}

// EnvVars returns the environment variables that set key, highest priority first.
func EnvVars(key string) []string {
	vars := []string{"MINSAR_" + strings.ToUpper(key)}
	if legacy, ok := legacyEnv[key]; ok {
		vars = append(vars, legacy)
	}
	return vars
}

// InitViper initializes Viper with proper search paths and defaults.
// Priority (highest to lowest):
// 1. Command-line flags (handled by cobra)
// 2. Environment variables (MINSAR_*, then the legacy names)
// 3. configFile, or the first config.yaml found in ~/.config/minsar, ~/.minsar, /etc/minsar, .
// 4. Defaults
func InitViper(configFile string) error {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName(ConfigFilename)
		viper.SetConfigType(ConfigType)

		if userConfigDir, err := os.UserConfigDir(); err == nil {
			viper.AddConfigPath(filepath.Join(userConfigDir, "minsar"))
		}
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".minsar"))
		}
		viper.AddConfigPath("/etc/minsar")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("MINSAR")
	viper.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := viper.BindEnv(key, env); err != nil {
			return fmt.Errorf("binding %s: %w", env, err)
		}
	}

	setDefaults()

	// Read config file (non-fatal if not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && configFile == "" {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}
	utils.PrintDebug("Using config file %s", utils.StylePath(viper.ConfigFileUsed()))
	return nil
}

// setDefaults sets default values for all config keys
func setDefaults() {
	viper.SetDefault("scheduler", "")
	viper.SetDefault("queue", "")
	viper.SetDefault("cores_per_node", 1)
	viper.SetDefault("threads_per_core", 1)
	viper.SetDefault("submission_scheme", "multitask_singleNode")
	viper.SetDefault("max_jobs_per_queue", 0)
	viper.SetDefault("max_memory_per_node", "0")
	viper.SetDefault("platform_name", "")
	viper.SetDefault("job_defaults_file", "")
	viper.SetDefault("scheduler_bin", "")
	viper.SetDefault("sacct_bin", "")
	viper.SetDefault("srun_bin", "")
	// Inside a SLURM allocation jobs run through srun
	viper.SetDefault("use_srun", os.Getenv("SLURM_JOB_ID") != "")
}

// Load builds the ClusterConfig from Viper. InitViper must run first.
func Load() (ClusterConfig, error) {
	cfg := ClusterConfig{
		Queue:             viper.GetString("queue"),
		CoresPerNode:      viper.GetInt("cores_per_node"),
		ThreadsPerCore:    viper.GetInt("threads_per_core"),
		SubmissionScheme:  viper.GetString("submission_scheme"),
		MaxJobsPerQueue:   viper.GetInt("max_jobs_per_queue"),
		PlatformName:      viper.GetString("platform_name"),
		NotificationEmail: viper.GetString("notification_email"),
		Project:           viper.GetString("project"),
		JobDefaultsFile:   viper.GetString("job_defaults_file"),
		SchedulerBin:      viper.GetString("scheduler_bin"),
		SacctBin:          viper.GetString("sacct_bin"),
		SrunBin:           viper.GetString("srun_bin"),
		UseSrun:           viper.GetBool("use_srun"),
	}

	if name := viper.GetString("scheduler"); name != "" {
		kind, err := scheduler.ParseKind(name)
		if err != nil {
			return cfg, err
		}
		cfg.Scheduler = kind
	} else {
		cfg.Scheduler = scheduler.DetectType()
		if cfg.Scheduler == scheduler.KindUnknown {
			return cfg, scheduler.NewConfigError("JOBSCHEDULER", "", "not set and no scheduler found in PATH", scheduler.ErrSchedulerNotFound)
		}
		utils.PrintDebug("JOBSCHEDULER not set, detected %s", cfg.Scheduler)
	}

	mem := strings.TrimSpace(viper.GetString("max_memory_per_node"))
	if mem != "" && mem != "0" {
		mb, err := utils.ParseSizeToMB(mem)
		if err != nil {
			return cfg, scheduler.NewConfigError("MAX_MEMORY_PER_NODE", mem, "expected MB or a size like 192G", err)
		}
		cfg.MaxMemoryPerNode = mb
	}

	if cfg.JobDefaultsFile == "" {
		if home := viper.GetString("rsmasinsar_home"); home != "" {
			cfg.JobDefaultsFile = filepath.Join(home, "minsar", "defaults", "job_defaults.cfg")
		}
	}

	// srun launches only exist on SLURM
	if cfg.Scheduler != scheduler.KindSLURM {
		cfg.UseSrun = false
	}

	return cfg, cfg.Validate()
}

// GetUserConfigPath returns the path to the user config file
func GetUserConfigPath() (string, error) {
	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		// Fallback to home directory
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".minsar", ConfigFilename+"."+ConfigType), nil
	}

	return filepath.Join(userConfigDir, "minsar", ConfigFilename+"."+ConfigType), nil
}

// SaveConfig saves current Viper config to the user config file
func SaveConfig() (string, error) {
	configPath, err := GetUserConfigPath()
	if err != nil {
		return "", fmt.Errorf("failed to get config path: %w", err)
	}

	if err := utils.EnsureDir(filepath.Dir(configPath)); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := viper.WriteConfigAs(configPath); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	return configPath, nil
}

// ValidateBinary checks if a binary exists and is executable
func ValidateBinary(binPath string) bool {
	if binPath == "" {
		return false
	}

	// If it's a full path, check directly
	if filepath.IsAbs(binPath) {
		info, err := os.Stat(binPath)
		if err != nil {
			return false
		}
		return info.Mode()&0111 != 0
	}

	_, err := exec.LookPath(binPath)
	return err == nil
}

// DetectAndSet records the scheduler found in PATH and its submit binary.
// It returns false when nothing was detected.
func DetectAndSet() bool {
	kind := scheduler.DetectType()
	if kind == scheduler.KindUnknown {
		return false
	}
	p, err := scheduler.ProfileFor(kind)
	if err != nil {
		return false
	}
	path, err := exec.LookPath(p.SubmitBin)
	if err != nil {
		return false
	}
	viper.Set("scheduler", string(kind))
	viper.Set("scheduler_bin", path)
	return true
}
