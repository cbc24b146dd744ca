package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	slurmJobIDRe    = regexp.MustCompile(`Submitted batch job (\d+)`)
	slurmParsableRe = regexp.MustCompile(`^(\d+)(;\S+)?$`)
)

// slurmProfile describes SLURM.
// No memory directive is written: nodes are allocated whole and a --mem
// request is rejected on several of the target systems.
func slurmProfile() Profile {
	return Profile{
		Kind:        KindSLURM,
		Prefix:      "#SBATCH",
		Shebang:     "#!/bin/bash",
		JobNameFmt:  "-J %s",
		ProjectFmt:  "-A %s",
		QueueFmt:    "-p %s",
		WalltimeFmt: "-t %s",
		StdoutFmt:   "-o %s",
		StderrFmt:   "-e %s",
		EmailFmts:   []string{"--mail-user=%s", "--mail-type=FAIL"},
		GpuFmt:      "--gres=gpu:%d",
		JobIDToken:  "%j",
		SubmitBin:   "sbatch",
		PollSacct:   true,

		countDirectives: func(nodes, tasks, coresPerNode int) []string {
			return []string{fmt.Sprintf("-N %d", nodes), fmt.Sprintf("-n %d", tasks)}
		},
		formatWalltime: formatSlurmTimeSpec,
		parseWalltime:  parseSlurmTimeSpec,
		parseJobID: func(output string) (string, bool) {
			if m := slurmJobIDRe.FindStringSubmatch(output); len(m) == 2 {
				return m[1], true
			}
			// sbatch --parsable prints "<id>" or "<id>;<cluster>"
			lines := strings.Split(strings.TrimSpace(output), "\n")
			last := strings.TrimSpace(lines[len(lines)-1])
			if m := slurmParsableRe.FindStringSubmatch(last); len(m) >= 2 {
				return m[1], true
			}
			return "", false
		},
		walltimeRe: regexp.MustCompile(`^(?:-t|--time=?)\s*(\S+)`),
	}
}

// parseSlurmTimeSpec parses [D-]HH:MM:SS, HH:MM and bare-minute walltimes.
func parseSlurmTimeSpec(timeStr string) (time.Duration, error) {
	timeStr = strings.TrimSpace(timeStr)
	if timeStr == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidTimeFormat)
	}

	var days int64
	hms := timeStr
	if idx := strings.Index(hms, "-"); idx >= 0 {
		parsed, err := strconv.ParseInt(hms[:idx], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s", ErrInvalidTimeFormat, timeStr)
		}
		days = parsed
		hms = strings.TrimSpace(hms[idx+1:])
	}

	var hours, minutes, seconds int64
	parts := strings.Split(hms, ":")
	values := make([]int64, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseInt(part, 10, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("%w: %s", ErrInvalidTimeFormat, timeStr)
		}
		values[i] = v
	}
	switch len(values) {
	case 3:
		hours, minutes, seconds = values[0], values[1], values[2]
	case 2:
		hours, minutes = values[0], values[1]
	case 1:
		if days > 0 {
			hours = values[0]
		} else {
			minutes = values[0]
		}
	default:
		return 0, fmt.Errorf("%w: %s", ErrInvalidTimeFormat, timeStr)
	}

	totalSeconds := days*24*3600 + hours*3600 + minutes*60 + seconds
	return time.Duration(totalSeconds) * time.Second, nil
}

func formatSlurmTimeSpec(d time.Duration) string {
	if d <= 0 {
		return "00:00:00"
	}
	total := int64(d.Round(time.Second).Seconds())
	days := total / (24 * 3600)
	rem := total % (24 * 3600)
	hours := rem / 3600
	rem %= 3600
	minutes := rem / 60
	seconds := rem % 60
	if days > 0 {
		return fmt.Sprintf("%d-%02d:%02d:%02d", days, hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
