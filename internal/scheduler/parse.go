package scheduler

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// readFileLines opens a file and returns all its lines.
func readFileLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrScriptNotFound, path)
		}
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading script: %w", err)
	}
	return lines, nil
}

// extractDirectives returns directive bodies (prefix stripped) in file order.
func (p Profile) extractDirectives(lines []string) []string {
	var out []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if body, ok := strings.CutPrefix(trimmed, p.Prefix); ok {
			if body == "" || (body[0] != ' ' && body[0] != '\t') {
				continue
			}
			out = append(out, strings.TrimSpace(body))
		}
	}
	return out
}

// ReadResources extracts walltime and memory (MB) from job-script text.
// Memory is 0 when the profile writes no memory directive or none is present.
func (p Profile) ReadResources(text string) (time.Duration, int, error) {
	directives := p.extractDirectives(strings.Split(text, "\n"))

	var walltime time.Duration
	var memoryMB int
	foundWalltime := false

	for _, d := range directives {
		if m := p.walltimeRe.FindStringSubmatch(d); m != nil && !foundWalltime {
			wt, err := p.parseWalltime(m[1])
			if err != nil {
				return 0, 0, fmt.Errorf("%s walltime %q: %w", p.Kind, m[1], err)
			}
			walltime = wt
			foundWalltime = true
			continue
		}
		if p.memoryRe != nil {
			if m := p.memoryRe.FindStringSubmatch(d); m != nil {
				mem, err := strconv.Atoi(m[1])
				if err != nil {
					return 0, 0, fmt.Errorf("%s memory %q: %w", p.Kind, m[1], err)
				}
				memoryMB = mem
			}
		}
	}

	if !foundWalltime {
		return 0, 0, fmt.Errorf("%w: %s walltime", ErrDirectiveNotFound, p.Kind)
	}
	return walltime, memoryMB, nil
}

// ReadJobFileResources is ReadResources over a job file on disk.
func (p Profile) ReadJobFileResources(path string) (time.Duration, int, error) {
	lines, err := readFileLines(path)
	if err != nil {
		return 0, 0, err
	}
	return p.ReadResources(strings.Join(lines, "\n"))
}
