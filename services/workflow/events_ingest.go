package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"

	"agentforge/core/pkg/dynamic"
	"agentforge/core/pkg/ids"
	"agentforge/core/services/events"
	"agentforge/core/services/graph"
)

// reportEventRequest is what the execution runtime posts to report a node
// or execution transition. It is a flat superset of every event kind's
// fields rather than a tagged union on the wire. Output is an optional
// extra beyond the NODE_COMPLETED stream payload, accepted so cacheable
// agents' results can be memoized for a later NODE_CACHE_HIT without
// changing what gets relayed to stream subscribers.
type reportEventRequest struct {
	Kind       events.Kind     `json:"kind"`
	NodeID     ids.NodeID      `json:"nodeId,omitempty"`
	RetryCount int             `json:"retryCount,omitempty"`
	Error      string          `json:"error,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	Level      events.LogLevel `json:"level,omitempty"`
	Message    string          `json:"message,omitempty"`
	Outputs    json.RawMessage `json:"outputs,omitempty"`
	Output     json.RawMessage `json:"output,omitempty"`
}

// HandleReportEvent lets the external execution runtime report node and
// execution transitions. It persists the state change where one applies
// and republishes the event to the hub so stream subscribers observe it
// live.
func (s *Service) HandleReportEvent(w http.ResponseWriter, r *http.Request) {
	rid := reqID(r)
	execIDStr := mux.Vars(r)["id"]
	execID := ids.ExecutionID(execIDStr)

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	var body reportEventRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrorJSON(w, "INVALID_BODY", "invalid request body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	now := time.Now()

	var evt events.Event
	switch body.Kind {
	case events.KindExecutionStarted:
		evt = events.ExecutionStarted(execID)
	case events.KindExecutionCompleted:
		evt = events.ExecutionCompleted(execID)
		s.completeExecution(ctx, rid, execID, graph.ExecutionStatusCompleted, body.Outputs)
	case events.KindExecutionFailed:
		evt = events.ExecutionFailed(execID)
		s.completeExecution(ctx, rid, execID, graph.ExecutionStatusFailed, body.Outputs)
	case events.KindExecutionCancelled:
		evt = events.ExecutionCancelled(execID)
		s.completeExecution(ctx, rid, execID, graph.ExecutionStatusCancelled, body.Outputs)

	case events.KindNodeQueued:
		evt = events.NodeQueued(execID, body.NodeID)
		s.updateNodeState(ctx, rid, execID, graph.NodeExecutionState{
			NodeID: body.NodeID, Status: graph.NodeStatusQueued,
		})
	case events.KindNodeRunning:
		evt = events.NodeRunning(execID, body.NodeID, body.RetryCount)
		s.updateNodeState(ctx, rid, execID, graph.NodeExecutionState{
			NodeID: body.NodeID, Status: graph.NodeStatusRunning, RetryCount: body.RetryCount, StartedAt: &now,
		})
	case events.KindNodeCompleted:
		evt = events.NodeCompleted(execID, body.NodeID)
		output := dynamic.FromRaw(body.Output)
		s.updateNodeState(ctx, rid, execID, graph.NodeExecutionState{
			NodeID: body.NodeID, Status: graph.NodeStatusCompleted, CompletedAt: &now, Output: output,
		})
		s.maybeCacheOutput(ctx, execID, body.NodeID, output)
	case events.KindNodeFailed:
		evt = events.NodeFailed(execID, body.NodeID, body.Error)
		s.updateNodeState(ctx, rid, execID, graph.NodeExecutionState{
			NodeID: body.NodeID, Status: graph.NodeStatusFailed, Error: body.Error, CompletedAt: &now,
		})
	case events.KindNodeSkipped:
		evt = events.NodeSkipped(execID, body.NodeID, body.Reason)
		s.updateNodeState(ctx, rid, execID, graph.NodeExecutionState{
			NodeID: body.NodeID, Status: graph.NodeStatusSkipped, CompletedAt: &now,
		})
	case events.KindNodeCacheHit:
		evt = events.NodeCacheHit(execID, body.NodeID)
		state := graph.NodeExecutionState{NodeID: body.NodeID, Status: graph.NodeStatusCompleted, CompletedAt: &now}
		if cached, ok := s.cachedOutput(ctx, execID, body.NodeID); ok {
			state.Output = cached
		}
		s.updateNodeState(ctx, rid, execID, state)
	case events.KindLogEmitted:
		evt = events.LogEmitted(execID, body.NodeID, body.Level, body.Message)

	default:
		writeErrorJSON(w, "INVALID_BODY", "unknown event kind", http.StatusBadRequest)
		return
	}

	s.hub.Publish(evt)
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]any{"accepted": true})
}

func (s *Service) updateNodeState(ctx context.Context, rid string, execID ids.ExecutionID, state graph.NodeExecutionState) {
	if err := s.store.UpdateNodeState(ctx, execID, state); err != nil {
		s.logger.Error("failed to update node state", "executionId", execID.String(), "nodeId", state.NodeID.String(), "requestId", rid, "error", err)
	}
}

// execWorkflow resolves the workflow snapshot and inputs backing execID, for
// callers that need to key the output cache. Returns ok=false if either
// lookup fails — caching is a best-effort affordance, never a hard
// dependency of event ingestion.
func (s *Service) execWorkflow(ctx context.Context, execID ids.ExecutionID) (*graph.Workflow, dynamic.Value, bool) {
	exec, err := s.store.GetExecution(ctx, execID)
	if err != nil {
		return nil, dynamic.Value{}, false
	}
	wf, err := s.store.GetWorkflow(ctx, exec.WorkflowID)
	if err != nil {
		return nil, dynamic.Value{}, false
	}
	return wf, exec.Inputs, true
}

// maybeCacheOutput memoizes nodeID's output for this workflow version and
// input set if, and only if, the node is backed by a cacheable
// AgentDefinition.
func (s *Service) maybeCacheOutput(ctx context.Context, execID ids.ExecutionID, nodeID ids.NodeID, output dynamic.Value) {
	if output.IsNull() {
		return
	}
	wf, inputs, ok := s.execWorkflow(ctx, execID)
	if !ok {
		return
	}
	if _, cacheable := cacheableAgentOutput(ctx, wf, s.registry, nodeID); cacheable {
		s.outputs.put(wf.ID, wf.Meta.Version, nodeID, inputs, output)
	}
}

// cachedOutput looks up a previously cached output for nodeID under the
// same workflow version and input set as execID's run.
func (s *Service) cachedOutput(ctx context.Context, execID ids.ExecutionID, nodeID ids.NodeID) (dynamic.Value, bool) {
	wf, inputs, ok := s.execWorkflow(ctx, execID)
	if !ok {
		return dynamic.Value{}, false
	}
	return s.outputs.get(wf.ID, wf.Meta.Version, nodeID, inputs)
}

func (s *Service) completeExecution(ctx context.Context, rid string, execID ids.ExecutionID, status graph.ExecutionStatus, outputs json.RawMessage) {
	if err := s.store.CompleteExecution(ctx, execID, status, outputs); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		s.logger.Error("failed to complete execution", "executionId", execID.String(), "requestId", rid, "error", err)
	}
}
