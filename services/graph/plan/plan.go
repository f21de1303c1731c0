// Package plan implements the topological planner: Kahn's algorithm over a
// graph.Index, producing a stable execution order plus a parallel-level
// assignment.
package plan

import (
	"agentforge/core/pkg/ids"
	"agentforge/core/services/graph"
)

// Result is the outcome of Plan: either Ok with a full execution order and
// level assignment, or a cycle-detected failure.
type Result struct {
	Ok            bool
	Order         []ids.NodeID
	Levels        map[ids.NodeID]int
	CycleDetected bool
}

// Plan runs Kahn's algorithm over idx. The starting frontier is entry nodes
// in workflow-insertion order; the frontier is a FIFO queue, so ties among
// ready nodes are broken by insertion order and the result is stable and
// deterministic. If the caller has already run the structural validator's
// cycle check, CycleDetected should never be true here; it is the safety
// net for callers that invoke the planner directly.
func Plan(idx *graph.Index) Result {
	w := idx.Workflow()
	inDegree := make(map[ids.NodeID]int, w.Nodes.Len())
	for _, id := range w.Nodes.IDs() {
		inDegree[id] = idx.InDegree(id)
	}

	queue := append([]ids.NodeID{}, idx.EntryNodes()...)
	order := make([]ids.NodeID, 0, w.Nodes.Len())

	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		order = append(order, u)

		for _, v := range idx.Successors(u) {
			inDegree[v]--
			if inDegree[v] == 0 {
				queue = append(queue, v)
			}
		}
	}

	if len(order) != w.Nodes.Len() {
		return Result{CycleDetected: true}
	}

	levels := make(map[ids.NodeID]int, len(order))
	for _, id := range order {
		preds := idx.Predecessors(id)
		if len(preds) == 0 {
			levels[id] = 0
			continue
		}
		max := -1
		for _, p := range preds {
			if levels[p] > max {
				max = levels[p]
			}
		}
		levels[id] = max + 1
	}

	return Result{Ok: true, Order: order, Levels: levels}
}
