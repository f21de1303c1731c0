// Package validate implements the structural and semantic validation rules
// for workflow graphs. Every rule is a pure function over a graph.Index
// (plus, for the semantic rules, an AgentLookup) and returns a Result that
// collects *all* failures it can observe, never just the first.
package validate

import (
	"fmt"
	"strings"

	"agentforge/core/pkg/ids"
)

// Code is one of the closed set of validation error codes.
type Code string

const (
	CodeCycleDetected        Code = "CYCLE_DETECTED"
	CodeInvalidEdgeReference Code = "INVALID_EDGE_REFERENCE"
	CodeDuplicateEdge        Code = "DUPLICATE_EDGE"
	CodeNoEntryNode          Code = "NO_ENTRY_NODE"
	CodeOrphanNode           Code = "ORPHAN_NODE"
	CodeTypeMismatch         Code = "TYPE_MISMATCH"
	CodeMissingRequiredInput Code = "MISSING_REQUIRED_INPUT"
)

// Error carries a machine-readable code, a human message, and the
// node/edge context needed to highlight offending elements in a canvas.
type Error struct {
	Code    Code         `json:"code"`
	Message string       `json:"message"`
	NodeIDs []ids.NodeID `json:"nodeIds,omitempty"`
	EdgeIDs []ids.EdgeID `json:"edgeIds,omitempty"`
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Result is the outcome of a single rule: either valid (no errors) or
// invalid, carrying every error the rule observed.
type Result struct {
	Errors []Error
}

// Valid reports whether the rule produced zero errors.
func (r Result) Valid() bool { return len(r.Errors) == 0 }

func joinNodeIDs(ns []ids.NodeID) string {
	ss := make([]string, len(ns))
	for i, n := range ns {
		ss[i] = string(n)
	}
	return strings.Join(ss, ", ")
}

func joinEdgeIDs(es []ids.EdgeID) string {
	ss := make([]string, len(es))
	for i, e := range es {
		ss[i] = string(e)
	}
	return strings.Join(ss, ", ")
}
