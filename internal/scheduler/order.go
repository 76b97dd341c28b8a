package scheduler

import (
	"container/heap"
	"fmt"

	"github.com/vk/nodeweave/internal/graph"
)

// indexHeap is a min-heap of snapshot node positions.
type indexHeap []int

func (h indexHeap) Len() int           { return len(h) }
func (h indexHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h indexHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *indexHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *indexHeap) Pop() any {
	old := *h
	x := old[len(old)-1]
	*h = old[:len(old)-1]
	return x
}

// TopologicalOrder returns the snapshot's nodes ordered so that every node
// comes after all nodes feeding it. Among nodes that are ready at the same
// time the one inserted into the tree first wins, so the order is stable
// for a given tree.
func TopologicalOrder(s *graph.Snapshot) ([]graph.NodeHandle, error) {
	pos := make(map[graph.NodeHandle]int, len(s.Nodes))
	for i, n := range s.Nodes {
		pos[n.Handle] = i
	}

	indegree := make([]int, len(s.Nodes))
	dependents := make([][]int, len(s.Nodes))
	for i, n := range s.Nodes {
		for _, up := range s.Upstream(n.Handle) {
			j := pos[up]
			indegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	ready := &indexHeap{}
	for i, d := range indegree {
		if d == 0 {
			heap.Push(ready, i)
		}
	}

	order := make([]graph.NodeHandle, 0, len(s.Nodes))
	for ready.Len() > 0 {
		i := heap.Pop(ready).(int)
		order = append(order, s.Nodes[i].Handle)
		for _, j := range dependents[i] {
			indegree[j]--
			if indegree[j] == 0 {
				heap.Push(ready, j)
			}
		}
	}
	if len(order) != len(s.Nodes) {
		return nil, fmt.Errorf("%w: %d of %d nodes are on a cycle", graph.ErrCycleDetected, len(s.Nodes)-len(order), len(s.Nodes))
	}
	return order, nil
}
