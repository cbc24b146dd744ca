package cmd

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/geodesymiami/rsmas-insar-sub000/internal/config"
	"github.com/geodesymiami/rsmas-insar-sub000/internal/jobs"
	"github.com/geodesymiami/rsmas-insar-sub000/internal/resources"
	"github.com/geodesymiami/rsmas-insar-sub000/internal/scheduler"
	"github.com/geodesymiami/rsmas-insar-sub000/internal/utils"
)

var (
	showPath  bool
	forceInit bool
)

// configKeys is the list of known configuration keys for shell completion
var configKeys = config.Keys()

// configKeysCompletion returns config keys for shell completion
func configKeysCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return configKeys, cobra.ShellCompDirectiveNoFileComp
	}
	if len(args) == 1 {
		return configValueCompletion(args[0]), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

// configValueCompletion returns suggested values for a config key
func configValueCompletion(key string) []string {
	switch key {
	case "scheduler":
		return []string{string(scheduler.KindLSF), string(scheduler.KindPBS), string(scheduler.KindSLURM)}
	case "submission_scheme":
		values := make([]string, len(jobs.Strategies))
		for i, s := range jobs.Strategies {
			values[i] = string(s)
		}
		return values
	case "use_srun":
		return []string{"true", "false"}
	case "cores_per_node":
		return []string{"24", "48", "56", "64", "128"}
	case "threads_per_core":
		return []string{"1", "2"}
	case "max_memory_per_node":
		return []string{"96G", "192G", "256G"}
	default:
		return nil
	}
}

// getConfigEnvVars returns every environment variable that sets a config key.
func getConfigEnvVars() []string {
	var vars []string
	for _, key := range configKeys {
		vars = append(vars, config.EnvVars(key)...)
	}
	sort.Strings(vars)
	return vars
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage cluster configuration",
	Long: `Manage the cluster settings used for job submission.

Priority (highest to lowest):
  1. Command-line flags
  2. Environment variables (MINSAR_*, then JOBSCHEDULER, QUEUENAME, ...)
  3. --config file, or the first of:
       ~/.config/minsar/config.yaml
       ~/.minsar/config.yaml
       /etc/minsar/config.yaml
       ./config.yaml
  4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved cluster configuration",
	Long: `Display the cluster configuration as job submission sees it,
the config file in use and the environment variables that override it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showPath {
			configPath, err := config.GetUserConfigPath()
			if err != nil {
				return fmt.Errorf("failed to get config path: %w", err)
			}
			fmt.Println(configPath)
			return nil
		}

		fmt.Println(utils.StyleTitle("Config File:"))
		if used := viper.ConfigFileUsed(); used != "" && utils.FileExists(used) {
			fmt.Printf("  %s %s\n", used, utils.StyleSuccess("← in use"))
		} else {
			fmt.Printf("  %s (use 'minsar_jobs config init' to create)\n", utils.StyleWarning("No config file found"))
		}
		fmt.Println()

		fmt.Println(utils.StyleTitle("Environment Overrides:"))
		found := false
		for _, env := range getConfigEnvVars() {
			if v, ok := os.LookupEnv(env); ok {
				fmt.Printf("  %s=%s\n", env, v)
				found = true
			}
		}
		if !found {
			fmt.Println("  (none)")
		}
		fmt.Println()

		fmt.Println(utils.StyleTitle("Cluster Configuration:"))
		var doc interface{}
		cfg, err := config.Load()
		if err != nil {
			utils.PrintWarning("%v", err)
			doc = viper.AllSettings()
		} else {
			doc = cfg
		}
		out, err := yaml.Marshal(doc)
		if err != nil {
			return err
		}
		for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
			fmt.Println("  " + line)
		}
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Long: `Get a specific configuration value.

Examples:
  minsar_jobs config get queue
  minsar_jobs config get cores_per_node`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: configKeysCompletion,
	RunE: func(cmd *cobra.Command, args []string) error {
		value := viper.Get(args[0])
		if value == nil {
			return fmt.Errorf("unknown config key: %s", args[0])
		}
		fmt.Println(value)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value and save it to the user config file.

Examples:
  minsar_jobs config set scheduler SLURM
  minsar_jobs config set queue skx-normal
  minsar_jobs config set cores_per_node 48
  minsar_jobs config set max_memory_per_node 192G`,
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: configKeysCompletion,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := validateConfigValue(key, value); err != nil {
			return err
		}
		if !containsKey(configKeys, key) {
			utils.PrintWarning("'%s' is not a standard config key", key)
		}

		viper.Set(key, value)
		configPath, err := config.SaveConfig()
		if err != nil {
			return err
		}
		utils.PrintSuccess("Set %s = %s", utils.StyleInfo(key), utils.StyleInfo(value))
		utils.PrintNote("Config saved to: %s", configPath)
		return nil
	},
}

// validateConfigValue rejects values Load would refuse later.
func validateConfigValue(key, value string) error {
	switch key {
	case "scheduler":
		_, err := scheduler.ParseKind(value)
		return err
	case "submission_scheme":
		_, err := jobs.ParseStrategy(value)
		return err
	case "cores_per_node", "threads_per_core", "max_jobs_per_queue":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 || (n == 0 && key != "max_jobs_per_queue") {
			return scheduler.NewConfigError(key, value, "expected a positive integer", err)
		}
	case "max_memory_per_node":
		if _, err := utils.ParseSizeToMB(value); err != nil {
			return scheduler.NewConfigError(key, value, "expected MB or a size like 192G", err)
		}
	case "use_srun":
		if _, err := strconv.ParseBool(value); err != nil {
			return scheduler.NewConfigError(key, value, "expected true or false", err)
		}
	}
	return nil
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file with detected settings",
	Long: `Create ~/.config/minsar/config.yaml from the current environment.

The scheduler is detected from bsub, qsub or sbatch on PATH; other values
come from the environment (QUEUENAME, NUMBER_OF_CORES_PER_NODE, ...) or defaults.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, err := config.GetUserConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}

		if utils.FileExists(configPath) && !forceInit {
			utils.PrintWarning("Config file already exists: %s", configPath)
			fmt.Print("Overwrite? [y/N]: ")
			var response string
			fmt.Scanln(&response)
			response = strings.ToLower(strings.TrimSpace(response))
			if response != "y" && response != "yes" {
				utils.PrintNote("Cancelled")
				return nil
			}
		}

		detected := false
		if viper.GetString("scheduler") == "" {
			detected = config.DetectAndSet()
		}
		if _, err := config.SaveConfig(); err != nil {
			return err
		}

		if detected {
			utils.PrintSuccess("Config file created with auto-detected settings")
		} else {
			utils.PrintSuccess("Config file created")
		}
		fmt.Printf("  Location: %s\n", utils.StylePath(configPath))
		fmt.Println()
		fmt.Println(utils.StyleTitle("Detected settings:"))
		if name := viper.GetString("scheduler"); name != "" {
			fmt.Printf("  Scheduler: %s (%s)\n", name, valueOr(viper.GetString("scheduler_bin"), "submit binary from PATH"))
		} else {
			fmt.Printf("  Scheduler: %s\n", utils.StyleWarning("not found"))
		}
		fmt.Printf("  Queue:     %s\n", valueOr(viper.GetString("queue"), "(scheduler default)"))
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  "Check that the cluster configuration loads, the scheduler binaries are reachable and job_defaults.cfg parses",
	RunE: func(cmd *cobra.Command, args []string) error {
		valid := true
		ok := func(format string, a ...interface{}) {
			if !utils.QuietMode {
				fmt.Printf("%s %s\n", utils.StyleSuccess("✓"), fmt.Sprintf(format, a...))
			}
		}
		bad := func(format string, a ...interface{}) {
			fmt.Printf("%s %s\n", utils.StyleError("✗"), fmt.Sprintf(format, a...))
			valid = false
		}

		if !utils.QuietMode {
			fmt.Println(utils.StyleTitle("Validating configuration..."))
			fmt.Println()
		}

		cfg, err := config.Load()
		if err != nil {
			bad("Cluster config: %v", err)
			return fmt.Errorf("configuration has errors")
		}
		ok("Scheduler: %s, %d core(s) per node, scheme %s", cfg.Scheduler, cfg.CoresPerNode, cfg.SubmissionScheme)

		p, _ := scheduler.ProfileFor(cfg.Scheduler)
		bins := map[string]string{"Submit": valueOr(cfg.SchedulerBin, p.SubmitBin)}
		if cfg.Scheduler == scheduler.KindSLURM {
			bins["sacct"] = valueOr(cfg.SacctBin, "sacct")
			if cfg.UseSrun {
				bins["srun"] = valueOr(cfg.SrunBin, "srun")
			}
		}
		for _, label := range []string{"Submit", "sacct", "srun"} {
			bin, want := bins[label]
			if !want {
				continue
			}
			if config.ValidateBinary(bin) {
				ok("%s binary: %s", label, bin)
			} else {
				bad("%s binary not found: %s", label, bin)
			}
		}

		if table, err := resources.Load(cfg.JobDefaultsFile); err != nil {
			bad("Job defaults: %v", err)
		} else {
			ok("Job defaults: %s (%d step(s))", table.Path, len(table.Steps))
		}

		if !utils.QuietMode {
			fmt.Println()
		}
		if !valid {
			return fmt.Errorf("configuration has errors")
		}
		if !utils.QuietMode {
			utils.PrintSuccess("Configuration is valid")
		}
		return nil
	},
}

func init() {
	configShowCmd.Flags().BoolVar(&showPath, "path", false, "Show only the user config file path")
	configInitCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite an existing config file without asking")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	rootCmd.AddCommand(configCmd)
}
