package events

import (
	"testing"
	"time"

	"agentforge/core/pkg/ids"
)

// Scenario G — event reduction.
func TestReducer_ScenarioG(t *testing.T) {
	execID := ids.ExecutionID("exec-1")
	nodeID := ids.NodeID("n")
	r := NewReducer(execID, 100)

	r.Apply(NodeQueued(execID, nodeID))
	r.Apply(NodeRunning(execID, nodeID, 0))
	r.Apply(LogEmitted(execID, nodeID, LogLevelInfo, "hi"))
	r.Apply(NodeCompleted(execID, nodeID))
	r.Apply(ExecutionCompleted(execID))

	view := r.View()
	if view.Status != "completed" {
		t.Errorf("execution status: got %q", view.Status)
	}
	nv := view.NodeStates[nodeID]
	if nv == nil || nv.Status != "completed" {
		t.Fatalf("node status: got %+v", nv)
	}
	if nv.StartedAt == nil || nv.CompletedAt == nil || !nv.StartedAt.Before(*nv.CompletedAt) {
		t.Errorf("expected startedAt < completedAt, got %+v", nv)
	}
	if len(view.Logs) != 1 || view.Logs[0].Message != "hi" {
		t.Errorf("expected one log 'hi', got %+v", view.Logs)
	}
}

func TestReducer_DuplicateTerminalEventsAreIdempotent(t *testing.T) {
	execID := ids.ExecutionID("exec-1")
	nodeID := ids.NodeID("n")
	r := NewReducer(execID, 100)

	r.Apply(NodeQueued(execID, nodeID))
	r.Apply(NodeRunning(execID, nodeID, 0))
	r.Apply(NodeCompleted(execID, nodeID))
	first := *r.View().NodeStates[nodeID]

	// A duplicate terminal event (e.g. a replayed NODE_FAILED) must not
	// overwrite the already-terminal state.
	r.Apply(NodeFailed(execID, nodeID, "should be ignored"))
	second := r.View().NodeStates[nodeID]

	if second.Status != first.Status {
		t.Errorf("status changed after duplicate terminal event: %q -> %q", first.Status, second.Status)
	}
	if second.Error != "" {
		t.Errorf("expected error to remain empty, got %q", second.Error)
	}
}

func TestReducer_CacheHitCompletesNode(t *testing.T) {
	execID := ids.ExecutionID("exec-1")
	nodeID := ids.NodeID("n")
	r := NewReducer(execID, 100)

	r.Apply(NodeQueued(execID, nodeID))
	r.Apply(NodeRunning(execID, nodeID, 0))
	r.Apply(NodeCacheHit(execID, nodeID))

	nv := r.View().NodeStates[nodeID]
	if nv.Status != "completed" {
		t.Errorf("expected NODE_CACHE_HIT to complete the node, got %q", nv.Status)
	}
}

func TestReducer_SkippedFromPending(t *testing.T) {
	execID := ids.ExecutionID("exec-1")
	nodeID := ids.NodeID("n")
	r := NewReducer(execID, 100)

	r.Apply(NodeSkipped(execID, nodeID, "upstream failed"))

	nv := r.View().NodeStates[nodeID]
	if nv.Status != "skipped" {
		t.Errorf("expected skipped, got %q", nv.Status)
	}
}

func TestReducer_LogRingBounded(t *testing.T) {
	execID := ids.ExecutionID("exec-1")
	nodeID := ids.NodeID("n")
	r := NewReducer(execID, 2)

	r.Apply(LogEmitted(execID, nodeID, LogLevelInfo, "one"))
	r.Apply(LogEmitted(execID, nodeID, LogLevelInfo, "two"))
	r.Apply(LogEmitted(execID, nodeID, LogLevelInfo, "three"))

	logs := r.View().Logs
	if len(logs) != 2 {
		t.Fatalf("expected ring bounded to 2, got %d", len(logs))
	}
	if logs[0].Message != "two" || logs[1].Message != "three" {
		t.Errorf("expected oldest dropped, got %+v", logs)
	}
}

func TestReducer_UnknownKindIgnored(t *testing.T) {
	execID := ids.ExecutionID("exec-1")
	r := NewReducer(execID, 100)
	r.Apply(Event{Kind: "SOMETHING_NEW", ExecutionID: execID, Timestamp: time.Now()})
	if r.View().Status != "pending" {
		t.Errorf("unknown kind should not change status, got %q", r.View().Status)
	}
	if len(r.View().UnknownKinds) != 1 || r.View().UnknownKinds[0] != "SOMETHING_NEW" {
		t.Errorf("expected unknown kind to be recorded, got %v", r.View().UnknownKinds)
	}
}
