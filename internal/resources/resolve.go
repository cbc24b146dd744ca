package resources

import (
	"math"
	"time"

	"github.com/geodesymiami/rsmas-insar-sub000/internal/scheduler"
)

// Request carries caller overrides. Nil fields fall back to the table.
type Request struct {
	Memory       *int
	Walltime     *time.Duration
	NumThreads   *int
	WorkloadSize *int // e.g. number of bursts
	// WalltimeFactor multiplies adjusted walltimes; <= 0 means 1.
	WalltimeFactor float64
}

// Resources is a resolved resource request.
type Resources struct {
	MemoryMB   int
	Walltime   time.Duration
	NumThreads int
	Adjusted   bool // Walltime/memory were scaled by workload size
}

// WalltimeString formats the walltime for profile p.
func (r Resources) WalltimeString(p scheduler.Profile) string {
	return p.FormatWalltime(r.Walltime)
}

// Resolve computes the resources of step. Explicit values in req win over
// the step entry, which wins over DEFAULT. Resolve has no side effects.
func (t *Table) Resolve(step string, req Request) (Resources, error) {
	if t == nil {
		return Resources{}, scheduler.NewConfigError("JOB_DEFAULTS_CFG", "", "no job defaults loaded", nil)
	}
	e := t.Lookup(step)

	res := Resources{
		MemoryMB:   e.MemoryMB,
		Walltime:   e.Walltime,
		NumThreads: e.NumThreads,
	}

	if e.Adjust && req.WorkloadSize != nil {
		size := float64(*req.WorkloadSize)
		factor := req.WalltimeFactor
		if factor <= 0 {
			factor = 1
		}
		wt := float64(e.Walltime) + size*float64(e.SWalltime)
		res.Walltime = time.Duration(wt * factor).Round(time.Second)
		res.MemoryMB = e.MemoryMB + int(math.Round(size*e.SMemoryMB))
		res.Adjusted = true
	}

	if req.Memory != nil {
		res.MemoryMB = *req.Memory
	}
	if req.Walltime != nil {
		res.Walltime = *req.Walltime
	}
	if req.NumThreads != nil {
		res.NumThreads = *req.NumThreads
	}
	if res.NumThreads < 1 {
		res.NumThreads = 1
	}

	if res.Walltime <= 0 {
		return res, scheduler.NewConfigError(step+".walltime", "", "no walltime for step or DEFAULT", nil)
	}
	return res, nil
}
