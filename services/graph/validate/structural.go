package validate

import (
	"fmt"

	"agentforge/core/pkg/ids"
	"agentforge/core/services/graph"
)

// CheckEdgeReferences reports INVALID_EDGE_REFERENCE: every edge whose
// source or target does not resolve to a node in the workflow produces one
// error per missing endpoint; both may fail for the same edge.
func CheckEdgeReferences(idx *graph.Index) Result {
	w := idx.Workflow()
	var errs []Error

	for _, e := range w.Edges.All() {
		if _, ok := w.Nodes.Get(e.Source); !ok {
			errs = append(errs, Error{
				Code:    CodeInvalidEdgeReference,
				Message: fmt.Sprintf("edge %q references non-existent source node %q", e.ID, e.Source),
				NodeIDs: []ids.NodeID{e.Source},
				EdgeIDs: []ids.EdgeID{e.ID},
			})
		}
		if _, ok := w.Nodes.Get(e.Target); !ok {
			errs = append(errs, Error{
				Code:    CodeInvalidEdgeReference,
				Message: fmt.Sprintf("edge %q references non-existent target node %q", e.ID, e.Target),
				NodeIDs: []ids.NodeID{e.Target},
				EdgeIDs: []ids.EdgeID{e.ID},
			})
		}
	}

	return Result{Errors: errs}
}

// edgeKey identifies an edge by its (source, sourcePort, target, targetPort)
// tuple for duplicate detection.
type edgeKey struct {
	source     ids.NodeID
	sourcePort ids.PortID
	target     ids.NodeID
	targetPort ids.PortID
}

// CheckDuplicateEdges reports DUPLICATE_EDGE: edges sharing a (source,
// sourcePort, target, targetPort) tuple collide. One error is emitted per
// colliding group, naming every EdgeID involved in insertion order.
func CheckDuplicateEdges(idx *graph.Index) Result {
	w := idx.Workflow()
	groups := make(map[edgeKey][]ids.EdgeID)
	var keyOrder []edgeKey

	for _, e := range w.Edges.All() {
		k := edgeKey{source: e.Source, sourcePort: e.SourcePort, target: e.Target, targetPort: e.TargetPort}
		if _, seen := groups[k]; !seen {
			keyOrder = append(keyOrder, k)
		}
		groups[k] = append(groups[k], e.ID)
	}

	var errs []Error
	for _, k := range keyOrder {
		ids2 := groups[k]
		if len(ids2) < 2 {
			continue
		}
		errs = append(errs, Error{
			Code:    CodeDuplicateEdge,
			Message: fmt.Sprintf("duplicate edges %s connect %q:%q -> %q:%q", joinEdgeIDs(ids2), k.source, k.sourcePort, k.target, k.targetPort),
			EdgeIDs: ids2,
		})
	}

	return Result{Errors: errs}
}

// CheckEntryNodes reports NO_ENTRY_NODE: an empty workflow and a workflow
// where every node has positive in-degree each produce exactly one error.
func CheckEntryNodes(idx *graph.Index) Result {
	w := idx.Workflow()

	if w.Nodes.Len() == 0 {
		return Result{Errors: []Error{{Code: CodeNoEntryNode, Message: "workflow has no nodes"}}}
	}

	if len(idx.EntryNodes()) == 0 {
		return Result{Errors: []Error{{Code: CodeNoEntryNode, Message: "workflow has no entry nodes: every node has at least one incoming edge"}}}
	}

	return Result{}
}

// CheckAcyclic reports CYCLE_DETECTED via three-colour DFS (unvisited/
// visiting/visited). Starting nodes are walked in workflow-insertion order
// so that, when multiple independent cycles exist, the errors are reported
// in a deterministic order.
func CheckAcyclic(idx *graph.Index) Result {
	const (
		unvisited = 0
		visiting  = 1
		visited   = 2
	)

	color := make(map[ids.NodeID]int)
	stackPos := make(map[ids.NodeID]int)
	var stack []ids.NodeID
	var errs []Error

	var dfs func(u ids.NodeID)
	dfs = func(u ids.NodeID) {
		color[u] = visiting
		stackPos[u] = len(stack)
		stack = append(stack, u)

		for _, v := range idx.Successors(u) {
			switch color[v] {
			case unvisited:
				dfs(v)
			case visiting:
				pos := stackPos[v]
				cycle := append([]ids.NodeID{}, stack[pos:]...)
				errs = append(errs, Error{
					Code:    CodeCycleDetected,
					Message: fmt.Sprintf("cycle detected: %s", joinNodeIDs(append(cycle, v))),
					NodeIDs: cycle,
				})
			case visited:
				// already fully explored; no cycle through this edge
			}
		}

		color[u] = visited
		stack = stack[:len(stack)-1]
		delete(stackPos, u)
	}

	for _, id := range idx.Workflow().Nodes.IDs() {
		if color[id] == unvisited {
			dfs(id)
		}
	}

	return Result{Errors: errs}
}

// CheckOrphans reports ORPHAN_NODE: a node reachable from no entry node by
// a forward walk, and from which no exit node is reachable by a backward
// walk, is an orphan. A single error lists every orphan found.
func CheckOrphans(idx *graph.Index) Result {
	reachableFromEntry := bfs(idx.EntryNodes(), idx.Successors)
	reachesExit := bfs(idx.ExitNodes(), idx.Predecessors)

	w := idx.Workflow()
	var orphans []ids.NodeID
	for _, id := range w.Nodes.IDs() {
		// A node with no edges at all is both an entry and an exit, so it
		// seeds both walks and would always look reachable; it still
		// connects to nothing, so it is an orphan unless it is the whole
		// workflow.
		if idx.InDegree(id) == 0 && idx.OutDegree(id) == 0 {
			if w.Nodes.Len() > 1 {
				orphans = append(orphans, id)
			}
			continue
		}
		_, fromEntry := reachableFromEntry[id]
		_, toExit := reachesExit[id]
		if !fromEntry && !toExit {
			orphans = append(orphans, id)
		}
	}

	if len(orphans) == 0 {
		return Result{}
	}

	return Result{Errors: []Error{{
		Code:    CodeOrphanNode,
		Message: fmt.Sprintf("orphan nodes not on any path from an entry node to an exit node: %s", joinNodeIDs(orphans)),
		NodeIDs: orphans,
	}}}
}

// bfs walks the graph breadth-first from the given starting nodes using
// neighbors(n) as the expansion function, returning the set of visited
// node IDs.
func bfs(start []ids.NodeID, neighbors func(ids.NodeID) []ids.NodeID) map[ids.NodeID]struct{} {
	seen := make(map[ids.NodeID]struct{}, len(start))
	queue := append([]ids.NodeID{}, start...)
	for _, n := range start {
		seen[n] = struct{}{}
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range neighbors(cur) {
			if _, ok := seen[next]; ok {
				continue
			}
			seen[next] = struct{}{}
			queue = append(queue, next)
		}
	}

	return seen
}
