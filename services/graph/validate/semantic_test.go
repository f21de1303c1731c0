package validate

import (
	"testing"

	"agentforge/core/pkg/ids"
	"agentforge/core/services/graph"
)

type fakeRegistry map[ids.AgentID]graph.AgentDefinition

func (r fakeRegistry) Lookup(id ids.AgentID) (graph.AgentDefinition, bool) {
	a, ok := r[id]
	return a, ok
}

func agentNode(id, agentID string) graph.Node {
	return graph.Node{
		ID:   ids.NodeID(id),
		Type: graph.NodeTypeAgent,
		Config: graph.AgentNodeConfig{
			AgentID: ids.AgentID(agentID),
		},
	}
}

func stringAgent(id string) graph.AgentDefinition {
	return graph.AgentDefinition{
		ID:           ids.AgentID(id),
		InputSchema:  []graph.PortSchema{{Name: "in", Type: graph.PortTypeString, Required: true}},
		OutputSchema: []graph.PortSchema{{Name: "out", Type: graph.PortTypeString}},
	}
}

// Scenario F — type mismatch.
func TestCheckPortTypes_TypeMismatch(t *testing.T) {
	registry := fakeRegistry{
		"summarizer": stringAgent("summarizer"),
		"classifier": {
			ID:          "classifier",
			InputSchema: []graph.PortSchema{{Name: "in", Type: graph.PortTypeNumber, Required: true}},
		},
	}
	idx := buildIndex(t,
		[]graph.Node{agentNode("a", "summarizer"), agentNode("b", "classifier")},
		[]graph.Edge{edge("e1", "a", "out", "b", "in")},
	)
	res := CheckPortTypes(idx, registry)
	if len(res.Errors) != 1 {
		t.Fatalf("expected 1 type mismatch error, got %d: %+v", len(res.Errors), res.Errors)
	}
	if res.Errors[0].Code != CodeTypeMismatch {
		t.Errorf("code: got %s", res.Errors[0].Code)
	}
}

func TestCheckPortTypes_MatchingTypes(t *testing.T) {
	registry := fakeRegistry{"summarizer": stringAgent("summarizer"), "echo": stringAgent("echo")}
	idx := buildIndex(t,
		[]graph.Node{agentNode("a", "summarizer"), agentNode("b", "echo")},
		[]graph.Edge{edge("e1", "a", "out", "b", "in")},
	)
	if res := CheckPortTypes(idx, registry); !res.Valid() {
		t.Fatalf("expected matching port types to pass, got %+v", res.Errors)
	}
}

func TestCheckPortTypes_UnknownAgentIsTypeMismatch(t *testing.T) {
	registry := fakeRegistry{"summarizer": stringAgent("summarizer")}
	idx := buildIndex(t,
		[]graph.Node{agentNode("a", "summarizer"), agentNode("b", "ghost-agent")},
		[]graph.Edge{edge("e1", "a", "out", "b", "in")},
	)
	res := CheckPortTypes(idx, registry)
	if len(res.Errors) != 1 || res.Errors[0].Code != CodeTypeMismatch {
		t.Fatalf("expected unknown agent to surface as TYPE_MISMATCH, got %+v", res.Errors)
	}
}

func TestCheckPortTypes_SkipsNonAgentEdges(t *testing.T) {
	registry := fakeRegistry{"summarizer": stringAgent("summarizer")}
	idx := buildIndex(t,
		[]graph.Node{node("in", graph.NodeTypeInput), agentNode("a", "summarizer")},
		[]graph.Edge{edge("e1", "in", "out", "a", "in")},
	)
	if res := CheckPortTypes(idx, registry); !res.Valid() {
		t.Fatalf("expected input->agent edge to be skipped, got %+v", res.Errors)
	}
}

func TestCheckRequiredInputs_MissingRequiredInput(t *testing.T) {
	registry := fakeRegistry{"summarizer": stringAgent("summarizer")}
	idx := buildIndex(t, []graph.Node{agentNode("a", "summarizer")}, nil)
	res := CheckRequiredInputs(idx, registry)
	if len(res.Errors) != 1 || res.Errors[0].Code != CodeMissingRequiredInput {
		t.Fatalf("expected 1 missing-required-input error, got %+v", res.Errors)
	}
	if res.Errors[0].NodeIDs[0] != "a" {
		t.Errorf("expected node 'a', got %v", res.Errors[0].NodeIDs)
	}
}

func TestCheckRequiredInputs_SatisfiedInput(t *testing.T) {
	registry := fakeRegistry{"summarizer": stringAgent("summarizer"), "echo": stringAgent("echo")}
	idx := buildIndex(t,
		[]graph.Node{node("in", graph.NodeTypeInput), agentNode("a", "summarizer"), agentNode("b", "echo")},
		[]graph.Edge{edge("e0", "in", "out", "a", "in"), edge("e1", "a", "out", "b", "in")},
	)
	if res := CheckRequiredInputs(idx, registry); !res.Valid() {
		t.Fatalf("expected satisfied required input to pass, got %+v", res.Errors)
	}
}

func TestCheckRequiredInputs_UnknownAgentSkipped(t *testing.T) {
	registry := fakeRegistry{}
	idx := buildIndex(t, []graph.Node{agentNode("a", "ghost")}, nil)
	if res := CheckRequiredInputs(idx, registry); !res.Valid() {
		t.Fatalf("expected unknown agent to be left to the port-type check, got %+v", res.Errors)
	}
}
