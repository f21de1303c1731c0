package graph

import (
	"fmt"

	"agentforge/core/pkg/ids"
)

// NodeSet is an insertion-ordered collection of Nodes keyed by NodeID.
// Iteration order is always insertion order, which every graph algorithm in
// this module relies on for deterministic, reproducible output.
type NodeSet struct {
	order []ids.NodeID
	byID  map[ids.NodeID]Node
}

// NewNodeSet builds a NodeSet from nodes in the given order, rejecting
// duplicate IDs.
func NewNodeSet(nodes ...Node) (NodeSet, error) {
	s := NodeSet{byID: make(map[ids.NodeID]Node, len(nodes))}
	for _, n := range nodes {
		if err := s.Add(n); err != nil {
			return NodeSet{}, err
		}
	}
	return s, nil
}

// Add appends a node, preserving insertion order. Returns an error if the
// node's ID already exists.
func (s *NodeSet) Add(n Node) error {
	if s.byID == nil {
		s.byID = make(map[ids.NodeID]Node)
	}
	if _, exists := s.byID[n.ID]; exists {
		return fmt.Errorf("duplicate node id %q", n.ID)
	}
	s.byID[n.ID] = n
	s.order = append(s.order, n.ID)
	return nil
}

// Get looks up a node by ID.
func (s NodeSet) Get(id ids.NodeID) (Node, bool) {
	n, ok := s.byID[id]
	return n, ok
}

// Len returns the number of nodes.
func (s NodeSet) Len() int { return len(s.order) }

// IDs returns node IDs in insertion order.
func (s NodeSet) IDs() []ids.NodeID {
	out := make([]ids.NodeID, len(s.order))
	copy(out, s.order)
	return out
}

// All returns nodes in insertion order.
func (s NodeSet) All() []Node {
	out := make([]Node, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// EdgeSet is an insertion-ordered collection of Edges keyed by EdgeID.
type EdgeSet struct {
	order []ids.EdgeID
	byID  map[ids.EdgeID]Edge
}

// NewEdgeSet builds an EdgeSet from edges in the given order, rejecting
// duplicate IDs.
func NewEdgeSet(edges ...Edge) (EdgeSet, error) {
	s := EdgeSet{byID: make(map[ids.EdgeID]Edge, len(edges))}
	for _, e := range edges {
		if err := s.Add(e); err != nil {
			return EdgeSet{}, err
		}
	}
	return s, nil
}

// Add appends an edge, preserving insertion order. Returns an error if the
// edge's ID already exists.
func (s *EdgeSet) Add(e Edge) error {
	if s.byID == nil {
		s.byID = make(map[ids.EdgeID]Edge)
	}
	if _, exists := s.byID[e.ID]; exists {
		return fmt.Errorf("duplicate edge id %q", e.ID)
	}
	s.byID[e.ID] = e
	s.order = append(s.order, e.ID)
	return nil
}

// Get looks up an edge by ID.
func (s EdgeSet) Get(id ids.EdgeID) (Edge, bool) {
	e, ok := s.byID[id]
	return e, ok
}

// Len returns the number of edges.
func (s EdgeSet) Len() int { return len(s.order) }

// All returns edges in insertion order.
func (s EdgeSet) All() []Edge {
	out := make([]Edge, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}
