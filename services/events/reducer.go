package events

import (
	"encoding/json"
	"time"

	"agentforge/core/pkg/ids"
)

// ExecutionView is the per-execution client-side view a Reducer maintains:
// overall status, per-node state, and a bounded ring of recent log lines.
// UnknownKinds records event kinds the reducer did not recognize.
type ExecutionView struct {
	ExecutionID  ids.ExecutionID
	Status       string
	NodeStates   map[ids.NodeID]*NodeView
	Logs         []LogEmittedPayload
	UnknownKinds []Kind
}

// NodeView mirrors the per-node execution state machine.
type NodeView struct {
	Status      string
	RetryCount  int
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// Reducer applies events to an ExecutionView in receive order. It is
// total: unknown event kinds are recorded and otherwise ignored, and
// duplicate terminal events are idempotent. Not safe for concurrent use
// from multiple goroutines on the same instance; callers drive one reducer
// per execution-id from a single goroutine.
type Reducer struct {
	logRing int
	view    *ExecutionView
}

// NewReducer builds a Reducer for execID, retaining at most logRing of the
// most recent LOG_EMITTED lines.
func NewReducer(execID ids.ExecutionID, logRing int) *Reducer {
	if logRing <= 0 {
		logRing = 100
	}
	return &Reducer{
		logRing: logRing,
		view: &ExecutionView{
			ExecutionID: execID,
			Status:      "pending",
			NodeStates:  make(map[ids.NodeID]*NodeView),
		},
	}
}

// View returns the current view. Callers must not mutate it.
func (r *Reducer) View() *ExecutionView { return r.view }

func (r *Reducer) nodeView(id ids.NodeID) *NodeView {
	nv, ok := r.view.NodeStates[id]
	if !ok {
		nv = &NodeView{Status: "pending"}
		r.view.NodeStates[id] = nv
	}
	return nv
}

// Apply folds evt into the view. The per-node transitions:
//
//	pending  -> queued    on NODE_QUEUED
//	queued   -> running   on NODE_RUNNING
//	running  -> running   on NODE_RUNNING (a retry attempt; updates RetryCount)
//	running  -> completed on NODE_COMPLETED
//	running  -> failed    on NODE_FAILED
//	{pending|queued|running} -> completed on NODE_CACHE_HIT
//	{pending|queued} -> skipped on NODE_SKIPPED
//
// Terminal node states are final: a second terminal event for the same
// node is accepted but changes nothing.
func (r *Reducer) Apply(evt Event) {
	switch evt.Kind {
	case KindExecutionStarted:
		r.view.Status = "running"
	case KindExecutionCompleted:
		r.view.Status = "completed"
	case KindExecutionFailed:
		r.view.Status = "failed"
	case KindExecutionCancelled:
		r.view.Status = "cancelled"

	case KindNodeQueued:
		var p NodePayload
		if json.Unmarshal(evt.Payload, &p) == nil {
			nv := r.nodeView(p.NodeID)
			if nv.Status == "pending" {
				nv.Status = "queued"
			}
		}

	case KindNodeRunning:
		var p NodeRunningPayload
		if json.Unmarshal(evt.Payload, &p) == nil {
			nv := r.nodeView(p.NodeID)
			if nv.Status == "queued" || nv.Status == "running" {
				nv.Status = "running"
				nv.RetryCount = p.RetryCount
				if nv.StartedAt == nil {
					t := evt.Timestamp
					nv.StartedAt = &t
				}
			}
		}

	case KindNodeCompleted:
		var p NodePayload
		if json.Unmarshal(evt.Payload, &p) == nil {
			nv := r.nodeView(p.NodeID)
			if nv.Status == "running" {
				completeTerminal(nv, "completed", evt.Timestamp)
			}
		}

	case KindNodeCacheHit:
		// A cache hit substitutes for the running->completed pair, so it
		// may complete a node that was never reported running.
		var p NodePayload
		if json.Unmarshal(evt.Payload, &p) == nil {
			completeTerminal(r.nodeView(p.NodeID), "completed", evt.Timestamp)
		}

	case KindNodeFailed:
		var p NodeFailedPayload
		if json.Unmarshal(evt.Payload, &p) == nil {
			nv := r.nodeView(p.NodeID)
			if nv.Status == "running" {
				nv.Error = p.Error
				completeTerminal(nv, "failed", evt.Timestamp)
			}
		}

	case KindNodeSkipped:
		var p NodeSkippedPayload
		if json.Unmarshal(evt.Payload, &p) == nil {
			nv := r.nodeView(p.NodeID)
			if nv.Status == "pending" || nv.Status == "queued" {
				completeTerminal(nv, "skipped", evt.Timestamp)
			}
		}

	case KindLogEmitted:
		var p LogEmittedPayload
		if json.Unmarshal(evt.Payload, &p) == nil {
			r.view.Logs = append(r.view.Logs, p)
			if len(r.view.Logs) > r.logRing {
				r.view.Logs = r.view.Logs[len(r.view.Logs)-r.logRing:]
			}
		}

	case KindConnected, KindACK, KindError, KindResumeStart, KindResumeComplete, KindNodeOutputReused:
		// No node or execution state transition.

	default:
		r.view.UnknownKinds = append(r.view.UnknownKinds, evt.Kind)
	}
}

// completeTerminal sets nv to a terminal status exactly once; repeated
// calls (duplicate terminal events) are no-ops.
func completeTerminal(nv *NodeView, status string, ts time.Time) {
	if isTerminal(nv.Status) {
		return
	}
	nv.Status = status
	nv.CompletedAt = &ts
}

func isTerminal(status string) bool {
	switch status {
	case "completed", "failed", "skipped":
		return true
	default:
		return false
	}
}
