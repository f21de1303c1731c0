// Package ids defines the string identifiers for the workflow graph
// domain. Each type is a distinct newtype so the compiler rejects, say,
// passing an EdgeID where a NodeID is expected. Equality is by value and
// no structure beyond printability is assumed.
package ids

// NodeID identifies a node within a single workflow.
type NodeID string

// EdgeID identifies an edge within a single workflow.
type EdgeID string

// PortID identifies a named input or output port on a node or agent schema.
type PortID string

// WorkflowID identifies a workflow, globally unique within its tenant.
type WorkflowID string

// ExecutionID identifies a single execution of a workflow snapshot.
type ExecutionID string

// AgentID identifies an agent definition in the AgentRegistry.
type AgentID string

// String implements fmt.Stringer so IDs print without a %v wrapper type tag.
func (n NodeID) String() string      { return string(n) }
func (e EdgeID) String() string      { return string(e) }
func (p PortID) String() string      { return string(p) }
func (w WorkflowID) String() string  { return string(w) }
func (e ExecutionID) String() string { return string(e) }
func (a AgentID) String() string     { return string(a) }
