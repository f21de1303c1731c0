package workflow

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"

	"agentforge/core/pkg/ids"
	"agentforge/core/services/graph"
	"agentforge/core/services/graph/orchestrate"
	"agentforge/core/services/registry"
)

// maxRequestBody limits the size of request bodies to prevent abuse.
const maxRequestBody = 1 << 20 // 1MB

// wireWorkflow is the on-the-wire shape of a workflow for the upsert/get
// endpoints: a header plus its nodes/edges (which already know how to
// marshal themselves as a tagged union, see graph/node_config.go).
type wireWorkflow struct {
	ID          ids.WorkflowID       `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	OwnerID     string               `json:"ownerId"`
	Status      graph.WorkflowStatus `json:"status"`
	Version     int                  `json:"version"`
	CreatedAt   time.Time            `json:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt"`
	Nodes       []graph.Node         `json:"nodes"`
	Edges       []graph.Edge         `json:"edges"`
}

func toWireWorkflow(w *graph.Workflow) wireWorkflow {
	return wireWorkflow{
		ID:          w.ID,
		Name:        w.Meta.Name,
		Description: w.Meta.Description,
		OwnerID:     w.Meta.OwnerID,
		Status:      w.Status,
		Version:     w.Meta.Version,
		CreatedAt:   w.Meta.CreatedAt,
		UpdatedAt:   w.Meta.UpdatedAt,
		Nodes:       w.Nodes.All(),
		Edges:       w.Edges.All(),
	}
}

// HandleGetWorkflow loads a workflow by ID and returns its nodes/edges.
func (s *Service) HandleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	rid := reqID(r)
	idStr := mux.Vars(r)["id"]
	s.logger.Debug("returning workflow definition", "id", idStr, "requestId", rid)

	if _, err := uuid.Parse(idStr); err != nil {
		s.logger.Warn("invalid workflow id", "id", idStr, "requestId", rid, "error", err)
		writeErrorJSON(w, "INVALID_ID", "invalid workflow id", http.StatusBadRequest)
		return
	}

	wf, err := s.store.GetWorkflow(r.Context(), ids.WorkflowID(idStr))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeErrorJSON(w, "NOT_FOUND", "workflow not found", http.StatusNotFound)
			return
		}
		s.logger.Error("failed to get workflow", "id", idStr, "requestId", rid, "error", err)
		writeErrorJSON(w, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	writeJSON(w, toWireWorkflow(wf))
}

// HandleUpsertWorkflow creates or replaces a workflow's nodes/edges.
// Editing an existing workflow bumps Meta.Version and resets Status to
// draft; a brand-new workflow starts at version 1.
func (s *Service) HandleUpsertWorkflow(w http.ResponseWriter, r *http.Request) {
	rid := reqID(r)
	idStr := mux.Vars(r)["id"]
	s.logger.Debug("upserting workflow", "id", idStr, "requestId", rid)

	if _, err := uuid.Parse(idStr); err != nil {
		writeErrorJSON(w, "INVALID_ID", "invalid workflow id", http.StatusBadRequest)
		return
	}
	id := ids.WorkflowID(idStr)

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	var body wireWorkflow
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.logger.Warn("failed to decode request body", "id", idStr, "requestId", rid, "error", err)
		writeErrorJSON(w, "INVALID_BODY", "invalid request body", http.StatusBadRequest)
		return
	}

	nodeSet, err := graph.NewNodeSet(body.Nodes...)
	if err != nil {
		writeErrorJSON(w, "INVALID_BODY", err.Error(), http.StatusBadRequest)
		return
	}
	edgeSet, err := graph.NewEdgeSet(body.Edges...)
	if err != nil {
		writeErrorJSON(w, "INVALID_BODY", err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	// Agent parameters are checked against the agent's declared schema at
	// write time, so a bad config never reaches semantic validation.
	// Unknown agents are left for the validator to report.
	for _, n := range body.Nodes {
		cfg, ok := n.Config.(graph.AgentNodeConfig)
		if !ok || cfg.Parameters.IsNull() {
			continue
		}
		def, err := s.registry.Get(ctx, cfg.AgentID)
		if err != nil {
			continue
		}
		if err := registry.ValidateParameters(def, cfg.Parameters); err != nil {
			s.logger.Warn("rejected workflow with invalid agent parameters", "id", idStr, "nodeId", n.ID.String(), "requestId", rid, "error", err)
			writeErrorJSON(w, "INVALID_PARAMETERS", err.Error(), http.StatusBadRequest)
			return
		}
	}

	meta := graph.WorkflowMeta{
		Name:        body.Name,
		Description: body.Description,
		OwnerID:     body.OwnerID,
		Version:     1,
	}
	if existing, err := s.store.GetWorkflow(ctx, id); err == nil {
		meta.CreatedAt = existing.Meta.CreatedAt
		meta.Version = existing.Meta.Version + 1
	} else if !errors.Is(err, pgx.ErrNoRows) {
		s.logger.Error("failed to load existing workflow", "id", idStr, "requestId", rid, "error", err)
		writeErrorJSON(w, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
		return
	}

	wf := &graph.Workflow{
		ID:     id,
		Status: graph.WorkflowStatusDraft,
		Meta:   meta,
		Nodes:  nodeSet,
		Edges:  edgeSet,
	}
	if err := s.store.UpsertWorkflow(ctx, wf); err != nil {
		s.logger.Error("failed to upsert workflow", "id", idStr, "requestId", rid, "error", err)
		writeErrorJSON(w, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	writeJSON(w, toWireWorkflow(wf))
}

// HandleDeleteWorkflow soft-deletes a workflow definition.
func (s *Service) HandleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	rid := reqID(r)
	idStr := mux.Vars(r)["id"]
	s.logger.Debug("deleting workflow", "id", idStr, "requestId", rid)

	if _, err := uuid.Parse(idStr); err != nil {
		writeErrorJSON(w, "INVALID_ID", "invalid workflow id", http.StatusBadRequest)
		return
	}

	if err := s.store.DeleteWorkflow(r.Context(), ids.WorkflowID(idStr)); err != nil {
		s.logger.Error("failed to delete workflow", "id", idStr, "requestId", rid, "error", err)
		writeErrorJSON(w, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleValidateWorkflow runs the validation orchestrator against the
// stored workflow snapshot and persists the resulting status (valid or
// invalid) back onto the workflow header.
func (s *Service) HandleValidateWorkflow(w http.ResponseWriter, r *http.Request) {
	rid := reqID(r)
	idStr := mux.Vars(r)["id"]
	s.logger.Debug("validating workflow", "id", idStr, "requestId", rid)

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

	lookup, err := registry.Snapshot(ctx, s.registry)
	if err != nil {
		s.logger.Error("failed to snapshot agent registry", "id", idStr, "requestId", rid, "error", err)
		writeErrorJSON(w, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
		return
	}

	result := orchestrate.Run(ctx, wf, orchestrate.Options{Registry: lookup})

	if result.Valid {
		wf.Status = graph.WorkflowStatusValid
	} else {
		wf.Status = graph.WorkflowStatusInvalid
	}
	if err := s.store.UpsertWorkflow(ctx, wf); err != nil {
		s.logger.Error("failed to persist validation status", "id", idStr, "requestId", rid, "error", err)
		writeErrorJSON(w, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
		return
	}

	if !result.Valid {
		s.logger.Warn("workflow failed validation", "id", idStr, "requestId", rid, "errorCount", len(result.Errors))
	}

	w.WriteHeader(http.StatusOK)
	writeJSON(w, result)
}
