package graph

import "agentforge/core/pkg/ids"

// Index holds adjacency, reverse-adjacency, and degree maps built once
// from an immutable Workflow snapshot. Degree and adjacency lookups are
// O(1) after construction, EntryNodes/ExitNodes are O(V), and Build itself
// is O(V+E). An edge whose endpoints don't
// resolve to a node in the snapshot is excluded from adjacency and degree
// counts; the edge-reference rule is responsible for surfacing that
// condition, not the index.
type Index struct {
	workflow  *Workflow
	adjacency map[ids.NodeID][]ids.EdgeID
	reverse   map[ids.NodeID][]ids.EdgeID
	inDegree  map[ids.NodeID]int
	outDegree map[ids.NodeID]int
}

// Build constructs a graph Index from w. w is never mutated.
func Build(w *Workflow) *Index {
	idx := &Index{
		workflow:  w,
		adjacency: make(map[ids.NodeID][]ids.EdgeID, w.Nodes.Len()),
		reverse:   make(map[ids.NodeID][]ids.EdgeID, w.Nodes.Len()),
		inDegree:  make(map[ids.NodeID]int, w.Nodes.Len()),
		outDegree: make(map[ids.NodeID]int, w.Nodes.Len()),
	}

	for _, id := range w.Nodes.IDs() {
		idx.inDegree[id] = 0
		idx.outDegree[id] = 0
	}

	for _, e := range w.Edges.All() {
		_, srcOK := w.Nodes.Get(e.Source)
		_, tgtOK := w.Nodes.Get(e.Target)
		if !srcOK || !tgtOK {
			// Dangling edge; the validator reports it, the index skips it.
			continue
		}
		idx.adjacency[e.Source] = append(idx.adjacency[e.Source], e.ID)
		idx.reverse[e.Target] = append(idx.reverse[e.Target], e.ID)
		idx.inDegree[e.Target]++
		idx.outDegree[e.Source]++
	}

	return idx
}

// Adjacency returns the outgoing EdgeIDs for nodeID, in insertion order.
func (idx *Index) Adjacency(nodeID ids.NodeID) []ids.EdgeID {
	return idx.adjacency[nodeID]
}

// ReverseAdjacency returns the incoming EdgeIDs for nodeID, in insertion
// order.
func (idx *Index) ReverseAdjacency(nodeID ids.NodeID) []ids.EdgeID {
	return idx.reverse[nodeID]
}

// InDegree returns the number of valid incoming edges for nodeID.
func (idx *Index) InDegree(nodeID ids.NodeID) int {
	return idx.inDegree[nodeID]
}

// OutDegree returns the number of valid outgoing edges for nodeID.
func (idx *Index) OutDegree(nodeID ids.NodeID) int {
	return idx.outDegree[nodeID]
}

// EntryNodes returns node IDs with in-degree 0, in workflow-insertion
// order.
func (idx *Index) EntryNodes() []ids.NodeID {
	var out []ids.NodeID
	for _, id := range idx.workflow.Nodes.IDs() {
		if idx.inDegree[id] == 0 {
			out = append(out, id)
		}
	}
	return out
}

// ExitNodes returns node IDs with out-degree 0, in workflow-insertion
// order.
func (idx *Index) ExitNodes() []ids.NodeID {
	var out []ids.NodeID
	for _, id := range idx.workflow.Nodes.IDs() {
		if idx.outDegree[id] == 0 {
			out = append(out, id)
		}
	}
	return out
}

// Workflow returns the snapshot this index was built from.
func (idx *Index) Workflow() *Workflow { return idx.workflow }

// Successors returns the target node IDs reachable by one edge from
// nodeID, in insertion order of the underlying edges.
func (idx *Index) Successors(nodeID ids.NodeID) []ids.NodeID {
	edgeIDs := idx.adjacency[nodeID]
	out := make([]ids.NodeID, 0, len(edgeIDs))
	for _, eid := range edgeIDs {
		if e, ok := idx.workflow.Edges.Get(eid); ok {
			out = append(out, e.Target)
		}
	}
	return out
}

// Predecessors returns the source node IDs with an edge into nodeID, in
// insertion order of the underlying edges.
func (idx *Index) Predecessors(nodeID ids.NodeID) []ids.NodeID {
	edgeIDs := idx.reverse[nodeID]
	out := make([]ids.NodeID, 0, len(edgeIDs))
	for _, eid := range edgeIDs {
		if e, ok := idx.workflow.Edges.Get(eid); ok {
			out = append(out, e.Source)
		}
	}
	return out
}
