package scheduler

import (
	"fmt"
	"regexp"

	"github.com/geodesymiami/rsmas-insar-sub000/internal/utils"
)

var lsfJobIDRe = regexp.MustCompile(`<(\d+)>`)

// lsfProfile describes IBM Spectrum LSF.
// Walltime is written as H:MM, memory as an rusage request in MB.
func lsfProfile() Profile {
	return Profile{
		Kind:        KindLSF,
		Prefix:      "#BSUB",
		Shebang:     "#!/bin/bash",
		JobNameFmt:  "-J %s",
		ProjectFmt:  "-P %s",
		QueueFmt:    "-q %s",
		WalltimeFmt: "-W %s",
		MemoryFmt:   "-R rusage[mem=%d]",
		StdoutFmt:   "-o %s",
		StderrFmt:   "-e %s",
		EmailFmts:   []string{"-u %s"},
		JobIDToken:  "%J",
		SubmitBin:   "bsub",
		SubmitStdin: true,

		countDirectives: func(nodes, tasks, coresPerNode int) []string {
			lines := []string{fmt.Sprintf("-n %d", tasks)}
			if nodes == 1 {
				// Keep every task on a single host
				return append(lines, "-R span[hosts=1]")
			}
			ptile := (tasks + nodes - 1) / nodes
			return append(lines, fmt.Sprintf("-R span[ptile=%d]", ptile))
		},
		formatWalltime: utils.FormatHM,
		parseWalltime:  utils.ParseDuration,
		parseJobID: func(output string) (string, bool) {
			// "Job <12345> is submitted to queue <general>."
			m := lsfJobIDRe.FindStringSubmatch(output)
			if len(m) < 2 {
				return "", false
			}
			return m[1], true
		},
		walltimeRe: regexp.MustCompile(`^-W\s+(\S+)`),
		memoryRe:   regexp.MustCompile(`^-R\s+rusage\[mem=(\d+)\]`),
	}
}
