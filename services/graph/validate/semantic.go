package validate

import (
	"fmt"

	"agentforge/core/pkg/ids"
	"agentforge/core/services/graph"
)

// AgentLookup is the read-only view of an agent registry that the semantic
// rules need. Implementations must be a consistent snapshot for the
// duration of one validation call; see services/registry.Snapshot for a
// ready-made one backed by any registry.Registry.
type AgentLookup interface {
	Lookup(id ids.AgentID) (graph.AgentDefinition, bool)
}

// CheckPortTypes reports TYPE_MISMATCH: for every edge connecting two
// agent-typed nodes, the source output port's type must strictly equal the
// target input port's type. Edges touching input/output nodes or non-agent
// nodes are skipped; their types are dynamic and checked at execution. An
// edge whose agent, source port, or target port cannot be resolved is
// reported as TYPE_MISMATCH too, since the edge cannot be typed at all.
func CheckPortTypes(idx *graph.Index, registry AgentLookup) Result {
	w := idx.Workflow()
	var errs []Error

	for _, e := range w.Edges.All() {
		srcNode, ok := w.Nodes.Get(e.Source)
		if !ok {
			continue // CheckEdgeReferences reports these
		}
		tgtNode, ok := w.Nodes.Get(e.Target)
		if !ok {
			continue // CheckEdgeReferences reports these
		}
		if srcNode.Type != graph.NodeTypeAgent || tgtNode.Type != graph.NodeTypeAgent {
			continue
		}

		srcCfg, ok := srcNode.Config.(graph.AgentNodeConfig)
		if !ok {
			continue
		}
		tgtCfg, ok := tgtNode.Config.(graph.AgentNodeConfig)
		if !ok {
			continue
		}

		srcAgent, ok := registry.Lookup(srcCfg.AgentID)
		if !ok {
			errs = append(errs, Error{
				Code:    CodeTypeMismatch,
				Message: fmt.Sprintf("edge %q: source node %q references unknown agent %q", e.ID, e.Source, srcCfg.AgentID),
				NodeIDs: []ids.NodeID{e.Source},
				EdgeIDs: []ids.EdgeID{e.ID},
			})
			continue
		}
		tgtAgent, ok := registry.Lookup(tgtCfg.AgentID)
		if !ok {
			errs = append(errs, Error{
				Code:    CodeTypeMismatch,
				Message: fmt.Sprintf("edge %q: target node %q references unknown agent %q", e.ID, e.Target, tgtCfg.AgentID),
				NodeIDs: []ids.NodeID{e.Target},
				EdgeIDs: []ids.EdgeID{e.ID},
			})
			continue
		}

		srcPort, ok := srcAgent.OutputPort(e.SourcePort)
		if !ok {
			errs = append(errs, Error{
				Code:    CodeTypeMismatch,
				Message: fmt.Sprintf("edge %q: agent %q has no output port %q", e.ID, srcAgent.ID, e.SourcePort),
				NodeIDs: []ids.NodeID{e.Source},
				EdgeIDs: []ids.EdgeID{e.ID},
			})
			continue
		}
		tgtPort, ok := tgtAgent.InputPort(e.TargetPort)
		if !ok {
			errs = append(errs, Error{
				Code:    CodeTypeMismatch,
				Message: fmt.Sprintf("edge %q: agent %q has no input port %q", e.ID, tgtAgent.ID, e.TargetPort),
				NodeIDs: []ids.NodeID{e.Target},
				EdgeIDs: []ids.EdgeID{e.ID},
			})
			continue
		}

		if srcPort.Type != tgtPort.Type {
			errs = append(errs, Error{
				Code: CodeTypeMismatch,
				Message: fmt.Sprintf("edge %q: output port %q:%s does not match input port %q:%s",
					e.ID, srcPort.Name, srcPort.Type, tgtPort.Name, tgtPort.Type),
				NodeIDs: []ids.NodeID{e.Source, e.Target},
				EdgeIDs: []ids.EdgeID{e.ID},
			})
		}
	}

	return Result{Errors: errs}
}

// CheckRequiredInputs reports MISSING_REQUIRED_INPUT: for every agent node,
// every required input port must have at least one incoming edge targeting
// it. One error per offending node lists all of its missing ports.
func CheckRequiredInputs(idx *graph.Index, registry AgentLookup) Result {
	w := idx.Workflow()
	var errs []Error

	for _, n := range w.Nodes.All() {
		if n.Type != graph.NodeTypeAgent {
			continue
		}
		cfg, ok := n.Config.(graph.AgentNodeConfig)
		if !ok {
			continue
		}
		agent, ok := registry.Lookup(cfg.AgentID)
		if !ok {
			continue // CheckPortTypes reports unknown agents
		}

		connected := make(map[ids.PortID]struct{})
		for _, eid := range idx.ReverseAdjacency(n.ID) {
			if e, ok := w.Edges.Get(eid); ok {
				connected[e.TargetPort] = struct{}{}
			}
		}

		var missing []string
		for _, port := range agent.InputSchema {
			if !port.Required {
				continue
			}
			if _, ok := connected[port.Name]; !ok {
				missing = append(missing, string(port.Name))
			}
		}

		if len(missing) > 0 {
			errs = append(errs, Error{
				Code:    CodeMissingRequiredInput,
				Message: fmt.Sprintf("node %q is missing required input(s): %v", n.ID, missing),
				NodeIDs: []ids.NodeID{n.ID},
			})
		}
	}

	return Result{Errors: errs}
}
