package plan

import (
	"testing"

	"agentforge/core/pkg/ids"
	"agentforge/core/services/graph"
)

func node(id string, typ graph.NodeType) graph.Node {
	return graph.Node{ID: ids.NodeID(id), Type: typ}
}

func edge(id, source, sourcePort, target, targetPort string) graph.Edge {
	return graph.Edge{
		ID:         ids.EdgeID(id),
		Source:     ids.NodeID(source),
		SourcePort: ids.PortID(sourcePort),
		Target:     ids.NodeID(target),
		TargetPort: ids.PortID(targetPort),
	}
}

func buildIndex(t *testing.T, nodes []graph.Node, edges []graph.Edge) *graph.Index {
	t.Helper()
	ns, err := graph.NewNodeSet(nodes...)
	if err != nil {
		t.Fatalf("NewNodeSet: %v", err)
	}
	es, err := graph.NewEdgeSet(edges...)
	if err != nil {
		t.Fatalf("NewEdgeSet: %v", err)
	}
	w := &graph.Workflow{ID: "wf", Nodes: ns, Edges: es}
	return graph.Build(w)
}

// Scenario A — linear valid.
func TestPlan_LinearOrderAndLevels(t *testing.T) {
	idx := buildIndex(t,
		[]graph.Node{node("in", graph.NodeTypeInput), node("a", graph.NodeTypeAgent), node("out", graph.NodeTypeOutput)},
		[]graph.Edge{edge("e1", "in", "out", "a", "in"), edge("e2", "a", "out", "out", "in")},
	)
	res := Plan(idx)
	if !res.Ok || res.CycleDetected {
		t.Fatalf("expected successful plan, got %+v", res)
	}
	want := []ids.NodeID{"in", "a", "out"}
	if len(res.Order) != len(want) {
		t.Fatalf("order length: got %v, want %v", res.Order, want)
	}
	for i, id := range want {
		if res.Order[i] != id {
			t.Errorf("order[%d]: got %q, want %q", i, res.Order[i], id)
		}
	}
	wantLevels := map[ids.NodeID]int{"in": 0, "a": 1, "out": 2}
	for id, lvl := range wantLevels {
		if res.Levels[id] != lvl {
			t.Errorf("level[%q]: got %d, want %d", id, res.Levels[id], lvl)
		}
	}
}

func TestPlan_CycleDetected(t *testing.T) {
	idx := buildIndex(t,
		[]graph.Node{node("a", graph.NodeTypeAgent), node("b", graph.NodeTypeAgent)},
		[]graph.Edge{edge("e1", "a", "out", "b", "in"), edge("e2", "b", "out", "a", "in")},
	)
	res := Plan(idx)
	if res.Ok || !res.CycleDetected {
		t.Fatalf("expected cycle-detected failure, got %+v", res)
	}
}

func TestPlan_StableTieBreakByInsertionOrder(t *testing.T) {
	idx := buildIndex(t,
		[]graph.Node{node("c", graph.NodeTypeAgent), node("b", graph.NodeTypeAgent), node("a", graph.NodeTypeAgent)},
		nil,
	)
	res := Plan(idx)
	if !res.Ok {
		t.Fatalf("expected successful plan, got %+v", res)
	}
	want := []ids.NodeID{"c", "b", "a"}
	for i, id := range want {
		if res.Order[i] != id {
			t.Errorf("order[%d]: got %q, want %q (insertion order, not lexical)", i, res.Order[i], id)
		}
	}
}

func TestPlan_ParallelLevels(t *testing.T) {
	idx := buildIndex(t,
		[]graph.Node{node("in", graph.NodeTypeInput), node("a", graph.NodeTypeAgent), node("b", graph.NodeTypeAgent), node("out", graph.NodeTypeOutput)},
		[]graph.Edge{
			edge("e1", "in", "out", "a", "in"),
			edge("e2", "in", "out", "b", "in"),
			edge("e3", "a", "out", "out", "in"),
			edge("e4", "b", "out", "out", "in2"),
		},
	)
	res := Plan(idx)
	if !res.Ok {
		t.Fatalf("expected successful plan, got %+v", res)
	}
	if res.Levels["a"] != res.Levels["b"] {
		t.Errorf("expected a and b at the same level, got a=%d b=%d", res.Levels["a"], res.Levels["b"])
	}
	if res.Levels["out"] <= res.Levels["a"] {
		t.Errorf("expected out's level to exceed its predecessors")
	}
}
