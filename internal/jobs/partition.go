package jobs

import (
	"errors"
	"strings"

	"github.com/geodesymiami/rsmas-insar-sub000/internal/scheduler"
)

// Strategy is a job submission scheme.
type Strategy string

const (
	SingleTask          Strategy = "singletask"
	MultiTaskSingleNode Strategy = "multitask_singleNode"
	MultiTaskMultiNode  Strategy = "multitask_multiNode"
	LauncherSingleNode  Strategy = "launcher_multitask_singleNode"
	LauncherMultiNode   Strategy = "launcher_multitask_multiNode"
)

// Strategies lists every supported scheme.
var Strategies = []Strategy{SingleTask, MultiTaskSingleNode, MultiTaskMultiNode, LauncherSingleNode, LauncherMultiNode}

// ErrNoTasks is returned when there is nothing to partition.
var ErrNoTasks = errors.New("no tasks to submit")

// ParseStrategy parses JOB_SUBMISSION_SCHEME (case-insensitive).
// An empty name selects MultiTaskSingleNode.
func ParseStrategy(name string) (Strategy, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return MultiTaskSingleNode, nil
	}
	for _, s := range Strategies {
		if strings.EqualFold(name, string(s)) {
			return s, nil
		}
	}
	return "", scheduler.NewConfigError("JOB_SUBMISSION_SCHEME", name, "unknown submission scheme", nil)
}

// Launcher reports whether tasks run through the launcher utility.
func (s Strategy) Launcher() bool {
	return s == LauncherSingleNode || s == LauncherMultiNode
}

// MultiNode reports whether one job may span several nodes.
func (s Strategy) MultiNode() bool {
	return s == MultiTaskMultiNode || s == LauncherMultiNode
}

// Capacity describes the node shape and per-task thread demand.
type Capacity struct {
	CoresPerNode   int
	ThreadsPerCore int
	ThreadsPerTask int
}

func (c Capacity) threadsPerNode() int {
	return max(c.CoresPerNode, 1) * max(c.ThreadsPerCore, 1)
}

// nodesFor is the number of nodes needed to run tasks concurrently.
func (c Capacity) nodesFor(tasks int) int {
	return max(ceilDiv(tasks*max(c.ThreadsPerTask, 1), c.threadsPerNode()), 1)
}

// Slice is the tasks of one job and the nodes it requests.
type Slice struct {
	Tasks []string
	Nodes int
}

// Partition splits tasks into jobs. SingleTask makes one job per task.
// Single-node strategies make min(maxQueuedJobs, requiredNodes) one-node
// jobs. Multi-node strategies make one job over all required nodes, or with
// a queue limit, the fewest nodes per job that keep the job count within
// maxQueuedJobs. maxQueuedJobs <= 0 means no limit. Every task lands in
// exactly one job, in order. Job sizes are balanced rather than filling
// ceil(n/numJobs) per job with a short last job: 10 tasks over 3 jobs is
// 4,3,3 and not 4,4,2, so the job count is always exactly numJobs.
func Partition(tasks []string, c Capacity, maxQueuedJobs int, s Strategy) ([]Slice, error) {
	n := len(tasks)
	if n == 0 {
		return nil, ErrNoTasks
	}

	if s == SingleTask {
		slices := make([]Slice, n)
		for i, task := range tasks {
			slices[i] = Slice{Tasks: []string{task}, Nodes: 1}
		}
		return slices, nil
	}

	requiredNodes := c.nodesFor(n)

	if !s.MultiNode() || requiredNodes == 1 {
		numJobs := requiredNodes
		if maxQueuedJobs > 0 && numJobs > maxQueuedJobs {
			numJobs = maxQueuedJobs
		}
		return split(tasks, numJobs, func([]string) int { return 1 }), nil
	}

	nodesPerJob := requiredNodes
	if maxQueuedJobs > 0 {
		nodesPerJob = 1
		for ceilDiv(requiredNodes, nodesPerJob) > maxQueuedJobs {
			nodesPerJob++
		}
	}
	numJobs := ceilDiv(requiredNodes, nodesPerJob)
	return split(tasks, numJobs, func(part []string) int {
		return min(c.nodesFor(len(part)), nodesPerJob)
	}), nil
}

// split cuts tasks into numJobs contiguous chunks (at most one per task).
// Chunk sizes differ by at most one; the leading chunks get
// ceil(n/numJobs) tasks.
func split(tasks []string, numJobs int, nodes func([]string) int) []Slice {
	numJobs = min(max(numJobs, 1), len(tasks))
	size, extra := len(tasks)/numJobs, len(tasks)%numJobs

	slices := make([]Slice, 0, numJobs)
	start := 0
	for i := 0; i < numJobs; i++ {
		end := start + size
		if i < extra {
			end++
		}
		part := append([]string(nil), tasks[start:end]...)
		slices = append(slices, Slice{Tasks: part, Nodes: nodes(part)})
		start = end
	}
	return slices
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
