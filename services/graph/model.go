// Package graph holds the workflow graph domain model and the pure,
// read-only graph index derived from it. Everything here operates on an
// immutable snapshot: nothing in this package mutates a Workflow once
// built.
package graph

import (
	"time"

	"agentforge/core/pkg/dynamic"
	"agentforge/core/pkg/ids"
)

// NodeType is the closed set of node kinds a workflow graph can contain.
type NodeType string

const (
	NodeTypeAgent  NodeType = "agent"
	NodeTypeTool   NodeType = "tool"
	NodeTypeInput  NodeType = "input"
	NodeTypeOutput NodeType = "output"
)

// PortType is the closed set of primitive types a port may declare.
type PortType string

const (
	PortTypeString  PortType = "string"
	PortTypeNumber  PortType = "number"
	PortTypeBoolean PortType = "boolean"
	PortTypeObject  PortType = "object"
	PortTypeArray   PortType = "array"
)

// Position holds a node's canvas coordinates. Purely visual; ignored by
// the validator.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a single vertex in a workflow graph. Config is a tagged union
// keyed on Type — see node_config.go for the concrete variants and their
// JSON encoding.
type Node struct {
	ID       ids.NodeID
	Type     NodeType
	Label    string
	Position Position
	Config   NodeConfig
}

// Edge is a directed connection between a source node's output port and a
// target node's input port.
type Edge struct {
	ID         ids.EdgeID `json:"id"`
	Source     ids.NodeID `json:"source"`
	SourcePort ids.PortID `json:"sourcePort"`
	Target     ids.NodeID `json:"target"`
	TargetPort ids.PortID `json:"targetPort"`
}

// WorkflowStatus is the workflow lifecycle.
type WorkflowStatus string

const (
	WorkflowStatusDraft    WorkflowStatus = "draft"
	WorkflowStatusValid    WorkflowStatus = "valid"
	WorkflowStatusInvalid  WorkflowStatus = "invalid"
	WorkflowStatusArchived WorkflowStatus = "archived"
)

// WorkflowMeta carries the non-structural bookkeeping fields of a workflow.
// Version is the optimistic-concurrency counter: editing increments it and
// resets Status to draft.
type WorkflowMeta struct {
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	OwnerID     string
	Version     int
}

// Workflow is the immutable snapshot the validator and planner operate on.
// Nodes and Edges are insertion-ordered sets so that entry-node discovery,
// cycle reporting, and topological tie-breaking are reproducible.
type Workflow struct {
	ID     ids.WorkflowID
	Status WorkflowStatus
	Meta   WorkflowMeta
	Nodes  NodeSet
	Edges  EdgeSet
}

// NodeExecutionStatus is the per-node execution state machine.
type NodeExecutionStatus string

const (
	NodeStatusPending   NodeExecutionStatus = "pending"
	NodeStatusQueued    NodeExecutionStatus = "queued"
	NodeStatusRunning   NodeExecutionStatus = "running"
	NodeStatusCompleted NodeExecutionStatus = "completed"
	NodeStatusFailed    NodeExecutionStatus = "failed"
	NodeStatusSkipped   NodeExecutionStatus = "skipped"
)

// NodeExecutionState is the live status of a single node within an
// Execution.
type NodeExecutionState struct {
	NodeID      ids.NodeID          `json:"nodeId"`
	Status      NodeExecutionStatus `json:"status"`
	StartedAt   *time.Time          `json:"startedAt,omitempty"`
	CompletedAt *time.Time          `json:"completedAt,omitempty"`
	RetryCount  int                 `json:"retryCount"`
	Error       string              `json:"error,omitempty"`
	Output      dynamic.Value       `json:"output"`
}
