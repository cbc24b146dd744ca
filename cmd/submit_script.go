package cmd

import (
	"strings"

	"github.com/spf13/cobra"
)

var submitScriptCmd = &cobra.Command{
	Use:   "submit-script <job_name> <command>...",
	Short: "Run one command as a single cluster job",
	Long: `Write a job file named <job_name>.job that runs <command> and submit it.

<job_name> also selects the job_defaults.cfg entry, e.g. smallbaseline_wrapper
or insarmaps; unknown names use the DEFAULT section. Stdout and stderr go to
<job_name>_<jobid>.o/.e in the work directory.

Use -- to pass a command that has its own flags.`,
	Example: `  minsar_jobs submit-script smallbaseline_wrapper "smallbaselineApp.py smallbaselineApp.cfg"
  minsar_jobs submit-script insarmaps --wait -- ingest_insarmaps.bash unittestGalapagosSenDT128.template`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSubmitScript,
}

func init() {
	addResourceFlags(submitScriptCmd.Flags())
	submitScriptCmd.Flags().String("work-dir", ".", "Directory for the job file and its output")
	submitScriptCmd.Flags().Bool("wait", false, "Wait for the job to finish")
	rootCmd.AddCommand(submitScriptCmd)
}

func runSubmitScript(cmd *cobra.Command, args []string) error {
	js, err := newJobSubmit(cmd.Flags())
	if err != nil {
		return err
	}
	command := strings.Join(args[1:], " ")
	_, err = js.SubmitScript(args[0], command, "")
	return err
}
