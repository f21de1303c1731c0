package workflow

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"

	"agentforge/core/pkg/dynamic"
	"agentforge/core/pkg/ids"
	"agentforge/core/services/events"
	"agentforge/core/services/graph"
)

// wireExecution is the on-the-wire shape of an Execution for the get
// endpoint.
type wireExecution struct {
	ID              ids.ExecutionID            `json:"id"`
	WorkflowID      ids.WorkflowID             `json:"workflowId"`
	WorkflowVersion int                        `json:"workflowVersion"`
	Status          graph.ExecutionStatus      `json:"status"`
	TriggeredBy     string                     `json:"triggeredBy"`
	CreatedAt       time.Time                  `json:"createdAt"`
	StartedAt       *time.Time                 `json:"startedAt,omitempty"`
	CompletedAt     *time.Time                 `json:"completedAt,omitempty"`
	Inputs          json.RawMessage            `json:"inputs,omitempty"`
	Outputs         json.RawMessage            `json:"outputs,omitempty"`
	NodeStates      []graph.NodeExecutionState `json:"nodeStates,omitempty"`
}

func toWireExecution(e *graph.Execution) wireExecution {
	return wireExecution{
		ID:              e.ID,
		WorkflowID:      e.WorkflowID,
		WorkflowVersion: e.WorkflowVersion,
		Status:          e.Status,
		TriggeredBy:     e.TriggeredBy,
		CreatedAt:       e.CreatedAt,
		StartedAt:       e.StartedAt,
		CompletedAt:     e.CompletedAt,
		Inputs:          e.Inputs.Raw(),
		Outputs:         e.Outputs.Raw(),
		NodeStates:      e.NodeStates,
	}
}

type executeRequest struct {
	TriggeredBy string          `json:"triggeredBy"`
	Inputs      json.RawMessage `json:"inputs"`
}

// HandleExecuteWorkflow creates an Execution snapshot from a workflow that
// has already passed validation and publishes EXECUTION_STARTED so stream
// subscribers observe it. Running the workflow's nodes to completion
// belongs to the external execution runtime; this handler only creates
// the record and bootstraps the event stream for it.
func (s *Service) HandleExecuteWorkflow(w http.ResponseWriter, r *http.Request) {
	rid := reqID(r)
	idStr := mux.Vars(r)["id"]
	s.logger.Debug("triggering workflow execution", "id", idStr, "requestId", rid)

	if _, err := uuid.Parse(idStr); err != nil {
		writeErrorJSON(w, "INVALID_ID", "invalid workflow id", http.StatusBadRequest)
		return
	}
	id := ids.WorkflowID(idStr)
	ctx := r.Context()

	wf, err := s.store.GetWorkflow(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeErrorJSON(w, "NOT_FOUND", "workflow not found", http.StatusNotFound)
			return
		}
		s.logger.Error("failed to get workflow", "id", idStr, "requestId", rid, "error", err)
		writeErrorJSON(w, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
		return
	}
	if wf.Status != graph.WorkflowStatusValid {
		writeErrorJSON(w, "WORKFLOW_NOT_VALID", "workflow has not passed validation", http.StatusConflict)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	var body executeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrorJSON(w, "INVALID_BODY", "invalid request body", http.StatusBadRequest)
		return
	}

	now := time.Now()
	exec := &graph.Execution{
		ID:              ids.ExecutionID(ulid.Make().String()),
		WorkflowID:      id,
		WorkflowVersion: wf.Meta.Version,
		Status:          graph.ExecutionStatusRunning,
		TriggeredBy:     body.TriggeredBy,
		CreatedAt:       now,
		StartedAt:       &now,
		Inputs:          dynamic.FromRaw(body.Inputs),
	}
	if err := s.store.CreateExecution(ctx, exec); err != nil {
		s.logger.Error("failed to create execution", "id", idStr, "requestId", rid, "error", err)
		writeErrorJSON(w, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
		return
	}

	s.hub.Publish(events.ExecutionStarted(exec.ID))

	w.WriteHeader(http.StatusCreated)
	writeJSON(w, toWireExecution(exec))
}

// HandleGetExecution loads an execution snapshot, including its per-node
// states, by ID.
func (s *Service) HandleGetExecution(w http.ResponseWriter, r *http.Request) {
	rid := reqID(r)
	idStr := mux.Vars(r)["id"]
	s.logger.Debug("returning execution", "id", idStr, "requestId", rid)

	exec, err := s.store.GetExecution(r.Context(), ids.ExecutionID(idStr))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeErrorJSON(w, "NOT_FOUND", "execution not found", http.StatusNotFound)
			return
		}
		s.logger.Error("failed to get execution", "id", idStr, "requestId", rid, "error", err)
		writeErrorJSON(w, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	writeJSON(w, toWireExecution(exec))
}
