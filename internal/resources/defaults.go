// Package resources resolves per-step memory, walltime and thread defaults
// from job_defaults.cfg.
package resources

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/geodesymiami/rsmas-insar-sub000/internal/scheduler"
	"github.com/geodesymiami/rsmas-insar-sub000/internal/utils"
)

// DefaultSection names the fallback entry.
const DefaultSection = "DEFAULT"

var sectionLineRe = regexp.MustCompile(`(?m)^\s*\[[^\]]+\]\s*$`)

// Entry holds the defaults of one processing step.
type Entry struct {
	Name       string
	Walltime   time.Duration // c_walltime
	SWalltime  time.Duration // s_walltime, added per unit of workload
	MemoryMB   int           // c_memory
	SMemoryMB  float64       // s_memory, added per unit of workload
	NumThreads int
	Adjust     bool
}

// Table is a loaded job_defaults.cfg.
type Table struct {
	Path    string
	Default Entry
	Steps   map[string]Entry
}

// Load reads a defaults file in either ini or columnar layout.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, scheduler.NewConfigError("JOB_DEFAULTS_CFG", path, "cannot read job defaults", err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, err
	}
	t.Path = path
	utils.PrintDebug("Loaded %d step defaults from %s", len(t.Steps), utils.StylePath(path))
	return t, nil
}

// Parse detects the layout by the presence of a "[section]" line.
func Parse(data []byte) (*Table, error) {
	if sectionLineRe.Match(data) {
		return parseIni(data)
	}
	return parseColumnar(data)
}

// Lookup returns the step entry, or DEFAULT when the step has none.
func (t *Table) Lookup(step string) Entry {
	if e, ok := t.Steps[step]; ok {
		return e
	}
	return t.Default
}

// parseIni reads the configparser layout. Keys a step section does not set
// are inherited from [DEFAULT].
func parseIni(data []byte) (*Table, error) {
	f, err := ini.LoadSources(ini.LoadOptions{SpaceBeforeInlineComment: true}, data)
	if err != nil {
		return nil, scheduler.NewConfigError("job_defaults", "", "malformed ini", err)
	}

	def := f.Section(ini.DefaultSection)
	if len(def.Keys()) == 0 {
		return nil, scheduler.NewConfigError(DefaultSection, "", "section missing or empty", nil)
	}

	t := &Table{Steps: make(map[string]Entry)}
	t.Default, err = iniEntry(DefaultSection, def, nil)
	if err != nil {
		return nil, err
	}

	for _, sec := range f.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}
		e, err := iniEntry(sec.Name(), sec, def)
		if err != nil {
			return nil, err
		}
		t.Steps[sec.Name()] = e
	}
	return t, nil
}

func iniEntry(name string, sec, def *ini.Section) (Entry, error) {
	value := func(keys ...string) string {
		for _, s := range []*ini.Section{sec, def} {
			if s == nil {
				continue
			}
			for _, k := range keys {
				if s.HasKey(k) {
					return strings.TrimSpace(s.Key(k).String())
				}
			}
		}
		return ""
	}

	e := Entry{Name: name}
	var err error
	if e.Walltime, err = parseWalltime(value("walltime", "c_walltime")); err != nil {
		return e, entryError(name, "walltime", err)
	}
	if e.SWalltime, err = parseWalltime(value("s_walltime")); err != nil {
		return e, entryError(name, "s_walltime", err)
	}
	if e.MemoryMB, err = parseMemory(value("memory", "c_memory")); err != nil {
		return e, entryError(name, "memory", err)
	}
	if e.SMemoryMB, err = parseFloat(value("s_memory")); err != nil {
		return e, entryError(name, "s_memory", err)
	}
	if e.NumThreads, err = parseInt(value("num_threads")); err != nil {
		return e, entryError(name, "num_threads", err)
	}
	if v := value("adjust"); v != "" {
		if e.Adjust, err = parseBool(v); err != nil {
			return e, entryError(name, "adjust", err)
		}
	}
	return e, nil
}

// parseColumnar reads the whitespace table
//
//	name  c_walltime  s_walltime  c_memory  s_memory  num_threads
//
// An entry is adjustable when it has a non-zero scaling column.
func parseColumnar(data []byte) (*Table, error) {
	t := &Table{Steps: make(map[string]Entry)}
	haveDefault := false

	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		fields := strings.Fields(line)
		if isColumnHeader(fields) {
			continue
		}
		if len(fields) < 6 {
			return nil, scheduler.NewConfigError("job_defaults", line,
				fmt.Sprintf("line %d: expected 6 columns, got %d", lineNo, len(fields)), nil)
		}

		e := Entry{Name: fields[0]}
		var err error
		if e.Walltime, err = parseWalltime(fields[1]); err != nil {
			return nil, entryError(e.Name, "c_walltime", err)
		}
		if e.SWalltime, err = parseWalltime(fields[2]); err != nil {
			return nil, entryError(e.Name, "s_walltime", err)
		}
		if e.MemoryMB, err = parseMemory(fields[3]); err != nil {
			return nil, entryError(e.Name, "c_memory", err)
		}
		if e.SMemoryMB, err = parseFloat(fields[4]); err != nil {
			return nil, entryError(e.Name, "s_memory", err)
		}
		if e.NumThreads, err = parseInt(fields[5]); err != nil {
			return nil, entryError(e.Name, "num_threads", err)
		}
		e.Adjust = e.SWalltime > 0 || e.SMemoryMB > 0

		if strings.EqualFold(e.Name, DefaultSection) {
			e.Name = DefaultSection
			t.Default = e
			haveDefault = true
			continue
		}
		t.Steps[e.Name] = e
	}
	if err := scanner.Err(); err != nil {
		return nil, scheduler.NewConfigError("job_defaults", "", "read failed", err)
	}
	if !haveDefault {
		return nil, scheduler.NewConfigError(DefaultSection, "", "entry missing", nil)
	}
	return t, nil
}

// isColumnHeader reports whether fields are the column title line, whatever
// the first column is called.
func isColumnHeader(fields []string) bool {
	if strings.EqualFold(fields[0], "name") {
		return true
	}
	return len(fields) > 1 && strings.EqualFold(fields[1], "c_walltime")
}

func entryError(step, key string, err error) error {
	return scheduler.NewConfigError(step+"."+key, "", "invalid value", err)
}

// parseWalltime accepts H:MM[:SS], Go durations, and decimal minutes.
func parseWalltime(s string) (time.Duration, error) {
	if s == "" || s == "None" {
		return 0, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if f < 0 {
			return 0, fmt.Errorf("negative walltime %q", s)
		}
		return time.Duration(f * float64(time.Minute)), nil
	}
	return utils.ParseDuration(s)
}

// parseMemory accepts plain MB values and sizes like "4G".
func parseMemory(s string) (int, error) {
	if s == "" || s == "None" {
		return 0, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f), nil
	}
	return utils.ParseSizeToMB(s)
}

func parseFloat(s string) (float64, error) {
	if s == "" || s == "None" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseInt(s string) (int, error) {
	if s == "" || s == "None" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", s)
}
