package graph

import (
	"agentforge/core/pkg/dynamic"
	"agentforge/core/pkg/ids"
)

// AgentCategory is the closed set of agent kinds.
type AgentCategory string

const (
	AgentCategoryLLM         AgentCategory = "llm"
	AgentCategoryRetrieval   AgentCategory = "retrieval"
	AgentCategoryTransform   AgentCategory = "transform"
	AgentCategoryIntegration AgentCategory = "integration"
	AgentCategoryLogic       AgentCategory = "logic"
)

// PortSchema describes one named, typed port on an agent's input or output
// schema.
type PortSchema struct {
	Name        ids.PortID
	Type        PortType
	Required    bool
	Description string
}

// RetryPolicy configures how many times, and with what backoff, a failed
// node attempt is retried by the execution runtime. Nothing in this
// package consumes it directly.
type RetryPolicy struct {
	MaxRetries        int
	BackoffMs         int
	BackoffMultiplier float64
}

// AgentDefinition is a registered agent blueprint, looked up by AgentID
// during semantic validation.
type AgentDefinition struct {
	ID            ids.AgentID
	Name          string
	Category      AgentCategory
	InputSchema   []PortSchema
	OutputSchema  []PortSchema
	DefaultConfig dynamic.Value
	Cacheable     bool
	RetryPolicy   RetryPolicy
}

// InputPort finds an input port by name, returning ok=false if absent.
func (a AgentDefinition) InputPort(name ids.PortID) (PortSchema, bool) {
	for _, p := range a.InputSchema {
		if p.Name == name {
			return p, true
		}
	}
	return PortSchema{}, false
}

// OutputPort finds an output port by name, returning ok=false if absent.
func (a AgentDefinition) OutputPort(name ids.PortID) (PortSchema, bool) {
	for _, p := range a.OutputSchema {
		if p.Name == name {
			return p, true
		}
	}
	return PortSchema{}, false
}
