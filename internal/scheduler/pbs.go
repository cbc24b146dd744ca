package scheduler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/geodesymiami/rsmas-insar-sub000/internal/utils"
)

var pbsJobIDRe = regexp.MustCompile(`^\d+$`)

// pbsProfile describes PBS/Torque.
// PBS does not substitute the job id into -o/-e paths, so output files are <job>.o/.e.
func pbsProfile() Profile {
	return Profile{
		Kind:        KindPBS,
		Prefix:      "#PBS",
		Shebang:     "#!/bin/bash",
		JobNameFmt:  "-N %s",
		ProjectFmt:  "-A %s",
		QueueFmt:    "-q %s",
		WalltimeFmt: "-l walltime=%s",
		MemoryFmt:   "-l mem=%dmb",
		StdoutFmt:   "-o %s",
		StderrFmt:   "-e %s",
		EmailFmts:   []string{"-m a", "-M %s"},
		Extras:      []string{"-V"},
		SubmitBin:   "qsub",
		SubmitStdin: true,

		countDirectives: func(nodes, tasks, coresPerNode int) []string {
			ppn := coresPerNode
			if ppn < 1 {
				ppn = (tasks + nodes - 1) / nodes
			}
			return []string{fmt.Sprintf("-l nodes=%d:ppn=%d", nodes, ppn)}
		},
		formatWalltime: utils.FormatHMS,
		parseWalltime:  utils.ParseDuration,
		parseJobID: func(output string) (string, bool) {
			// "12345.headnode.cluster"
			id := strings.TrimSpace(output)
			if idx := strings.Index(id, "."); idx >= 0 {
				id = id[:idx]
			}
			return id, pbsJobIDRe.MatchString(id)
		},
		walltimeRe: regexp.MustCompile(`^-l\s+walltime=(\S+)`),
		memoryRe:   regexp.MustCompile(`^-l\s+mem=(\d+)mb`),
	}
}
