package jobs

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/geodesymiami/rsmas-insar-sub000/internal/scheduler"
)

func makeTasks(n int) []string {
	tasks := make([]string, n)
	for i := range tasks {
		tasks[i] = fmt.Sprintf("echo task%d", i)
	}
	return tasks
}

func flatten(slices []Slice) []string {
	var out []string
	for _, s := range slices {
		out = append(out, s.Tasks...)
	}
	return out
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		input string
		want  Strategy
	}{
		{"", MultiTaskSingleNode},
		{"singletask", SingleTask},
		{"multitask_singleNode", MultiTaskSingleNode},
		{"MULTITASK_MULTINODE", MultiTaskMultiNode},
		{"launcher_multitask_singlenode", LauncherSingleNode},
		{"launcher_multitask_multiNode", LauncherMultiNode},
	}
	for _, tt := range tests {
		got, err := ParseStrategy(tt.input)
		if err != nil || got != tt.want {
			t.Errorf("ParseStrategy(%q) = %q, %v; want %q", tt.input, got, err, tt.want)
		}
	}

	if _, err := ParseStrategy("round_robin"); !scheduler.IsConfigError(err) {
		t.Errorf("ParseStrategy(round_robin) error = %v; want ConfigError", err)
	}
	if !LauncherMultiNode.Launcher() || !LauncherMultiNode.MultiNode() || MultiTaskSingleNode.MultiNode() {
		t.Error("strategy predicates are wrong")
	}
}

func TestPartitionSingleNodeConservesTasks(t *testing.T) {
	for n := 1; n <= 30; n++ {
		for cores := 1; cores <= 5; cores++ {
			for threads := 1; threads <= 3; threads++ {
				for _, limit := range []int{0, 1, 2, 5, 100} {
					tasks := makeTasks(n)
					c := Capacity{CoresPerNode: cores, ThreadsPerCore: 1, ThreadsPerTask: threads}
					slices, err := Partition(tasks, c, limit, MultiTaskSingleNode)
					if err != nil {
						t.Fatal(err)
					}

					required := (n*threads + cores - 1) / cores
					want := required
					if limit > 0 && limit < want {
						want = limit
					}
					if want > n {
						want = n
					}
					if len(slices) != want {
						t.Errorf("n=%d cores=%d threads=%d limit=%d: %d jobs; want %d",
							n, cores, threads, limit, len(slices), want)
					}
					if strings.Join(flatten(slices), "|") != strings.Join(tasks, "|") {
						t.Errorf("n=%d cores=%d limit=%d: tasks not conserved in order", n, cores, limit)
					}
					for _, s := range slices {
						if s.Nodes != 1 || len(s.Tasks) == 0 {
							t.Errorf("bad slice %+v", s)
						}
					}
				}
			}
		}
	}
}

func TestPartitionSmallBatchFitsOneNode(t *testing.T) {
	// 3 tasks, 4 cores per node
	slices, err := Partition(makeTasks(3), Capacity{CoresPerNode: 4, ThreadsPerCore: 1, ThreadsPerTask: 1}, 10, MultiTaskMultiNode)
	if err != nil {
		t.Fatal(err)
	}
	if len(slices) != 1 || len(slices[0].Tasks) != 3 || slices[0].Nodes != 1 {
		t.Errorf("Partition() = %+v; want one single-node job", slices)
	}
}

func TestPartitionCapsQueuedJobs(t *testing.T) {
	// 3 tasks, 1 core per node, 1 queue slot: nodesPerJob grows to 3
	slices, err := Partition(makeTasks(3), Capacity{CoresPerNode: 1, ThreadsPerCore: 1, ThreadsPerTask: 1}, 1, MultiTaskMultiNode)
	if err != nil {
		t.Fatal(err)
	}
	if len(slices) != 1 || slices[0].Nodes != 3 || len(slices[0].Tasks) != 3 {
		t.Errorf("Partition() = %+v; want one 3-node job", slices)
	}
}

func TestPartitionMultiNode(t *testing.T) {
	c := Capacity{CoresPerNode: 1, ThreadsPerCore: 1, ThreadsPerTask: 1}

	// 5 nodes, 2 slots: nodesPerJob = 3
	slices, err := Partition(makeTasks(5), c, 2, LauncherMultiNode)
	if err != nil {
		t.Fatal(err)
	}
	if len(slices) != 2 {
		t.Fatalf("got %d jobs; want 2", len(slices))
	}
	if len(slices[0].Tasks) != 3 || slices[0].Nodes != 3 || len(slices[1].Tasks) != 2 || slices[1].Nodes != 2 {
		t.Errorf("Partition() = %+v", slices)
	}

	// No queue limit: one job over every node
	slices, err = Partition(makeTasks(5), c, 0, MultiTaskMultiNode)
	if err != nil {
		t.Fatal(err)
	}
	if len(slices) != 1 || slices[0].Nodes != 5 {
		t.Errorf("Partition(unbounded) = %+v; want one 5-node job", slices)
	}
}

func TestPartitionSingleTask(t *testing.T) {
	slices, err := Partition(makeTasks(4), Capacity{CoresPerNode: 48, ThreadsPerCore: 1, ThreadsPerTask: 1}, 1, SingleTask)
	if err != nil {
		t.Fatal(err)
	}
	if len(slices) != 4 {
		t.Fatalf("got %d jobs; want 4", len(slices))
	}
	for i, s := range slices {
		if len(s.Tasks) != 1 || s.Tasks[0] != fmt.Sprintf("echo task%d", i) || s.Nodes != 1 {
			t.Errorf("slice %d = %+v", i, s)
		}
	}
}

func TestPartitionNoTasks(t *testing.T) {
	_, err := Partition(nil, Capacity{CoresPerNode: 4}, 1, MultiTaskSingleNode)
	if !errors.Is(err, ErrNoTasks) {
		t.Errorf("Partition(nil) error = %v; want ErrNoTasks", err)
	}
}

func TestPartitionDoesNotAliasInput(t *testing.T) {
	tasks := makeTasks(4)
	slices, _ := Partition(tasks, Capacity{CoresPerNode: 2, ThreadsPerCore: 1, ThreadsPerTask: 1}, 0, MultiTaskSingleNode)
	slices[0].Tasks[0] = "changed"
	if tasks[0] != "echo task0" {
		t.Error("Partition slices share memory with the input")
	}
}

func TestPartitionBalancesJobSizes(t *testing.T) {
	// 10 tasks, 1 core per node, 3 queue slots
	slices, err := Partition(makeTasks(10), Capacity{CoresPerNode: 1, ThreadsPerCore: 1, ThreadsPerTask: 1}, 3, MultiTaskSingleNode)
	if err != nil {
		t.Fatal(err)
	}
	var sizes []int
	for _, s := range slices {
		sizes = append(sizes, len(s.Tasks))
	}
	if fmt.Sprint(sizes) != "[4 3 3]" {
		t.Errorf("job sizes = %v; want [4 3 3]", sizes)
	}
}
