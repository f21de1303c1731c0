package graph

import (
	"time"

	"agentforge/core/pkg/dynamic"
	"agentforge/core/pkg/ids"
)

// ExecutionStatus is the overall execution lifecycle.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// Execution is a single run of a workflow snapshot. WorkflowVersion pins
// the workflow Meta.Version that passed validation; an Execution is
// immutable once Status reaches a terminal value.
type Execution struct {
	ID              ids.ExecutionID
	WorkflowID      ids.WorkflowID
	WorkflowVersion int
	Status          ExecutionStatus
	TriggeredBy     string
	CreatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	Inputs          dynamic.Value
	Outputs         dynamic.Value
	NodeStates      []NodeExecutionState
}

// NodeState returns the execution state for nodeID, if tracked.
func (e Execution) NodeState(nodeID ids.NodeID) (NodeExecutionState, bool) {
	for _, ns := range e.NodeStates {
		if ns.NodeID == nodeID {
			return ns, true
		}
	}
	return NodeExecutionState{}, false
}

// IsTerminal reports whether the status is one of completed, failed, or
// cancelled.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusCancelled:
		return true
	default:
		return false
	}
}
