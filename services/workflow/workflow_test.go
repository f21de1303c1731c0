package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"

	"agentforge/core/pkg/dynamic"
	"agentforge/core/pkg/ids"
	"agentforge/core/services/events"
	"agentforge/core/services/graph"
	"agentforge/core/services/registry"
)

// fakeStore implements storage.Store in memory for handler tests.
type fakeStore struct {
	workflows  map[ids.WorkflowID]*graph.Workflow
	executions map[ids.ExecutionID]*graph.Execution

	// nodeStates and completedExecutions record every call made to
	// UpdateNodeState/CompleteExecution, independent of whether a
	// matching execution record exists, so tests can assert a report
	// endpoint reached the store without needing to seed an execution.
	nodeStates          []graph.NodeExecutionState
	completedExecutions []ids.ExecutionID
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		workflows:  make(map[ids.WorkflowID]*graph.Workflow),
		executions: make(map[ids.ExecutionID]*graph.Execution),
	}
}

func (s *fakeStore) GetWorkflow(_ context.Context, id ids.WorkflowID) (*graph.Workflow, error) {
	wf, ok := s.workflows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *wf
	return &cp, nil
}

func (s *fakeStore) UpsertWorkflow(_ context.Context, w *graph.Workflow) error {
	cp := *w
	s.workflows[w.ID] = &cp
	return nil
}

func (s *fakeStore) DeleteWorkflow(_ context.Context, id ids.WorkflowID) error {
	delete(s.workflows, id)
	return nil
}

func (s *fakeStore) CreateExecution(_ context.Context, exec *graph.Execution) error {
	cp := *exec
	s.executions[exec.ID] = &cp
	return nil
}

func (s *fakeStore) GetExecution(_ context.Context, id ids.ExecutionID) (*graph.Execution, error) {
	exec, ok := s.executions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *exec
	return &cp, nil
}

func (s *fakeStore) UpdateNodeState(_ context.Context, execID ids.ExecutionID, state graph.NodeExecutionState) error {
	s.nodeStates = append(s.nodeStates, state)
	if exec, ok := s.executions[execID]; ok {
		exec.NodeStates = append(exec.NodeStates, state)
	}
	return nil
}

func (s *fakeStore) CompleteExecution(_ context.Context, execID ids.ExecutionID, status graph.ExecutionStatus, _ json.RawMessage) error {
	s.completedExecutions = append(s.completedExecutions, execID)
	if exec, ok := s.executions[execID]; ok {
		exec.Status = status
	}
	return nil
}

func newTestRouter(svc *Service) *mux.Router {
	router := mux.NewRouter()
	api := router.PathPrefix("/api/v1").Subrouter()
	svc.LoadRoutes(api)
	return router
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(bytesDiscard{}, nil))
}

type bytesDiscard struct{}

func (bytesDiscard) Write(p []byte) (int, error) { return len(p), nil }

func newTestService(t *testing.T, store *fakeStore) *Service {
	t.Helper()
	reg := registry.NewMemory()
	hub := events.NewHub(10, 10)
	svc, err := NewService(store, reg, hub, discardLogger())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestNewService_NilDeps(t *testing.T) {
	store := newFakeStore()
	reg := registry.NewMemory()
	hub := events.NewHub(10, 10)

	if _, err := NewService(nil, reg, hub, nil); err == nil {
		t.Error("expected error for nil store")
	}
	if _, err := NewService(store, nil, hub, nil); err == nil {
		t.Error("expected error for nil registry")
	}
	if _, err := NewService(store, reg, nil, nil); err == nil {
		t.Error("expected error for nil hub")
	}
}

func validNodeSetWorkflow(id ids.WorkflowID, status graph.WorkflowStatus) *graph.Workflow {
	nodeSet, _ := graph.NewNodeSet(
		graph.Node{ID: "in", Type: graph.NodeTypeInput, Config: graph.InputNodeConfig{DataType: graph.PortTypeString}},
		graph.Node{ID: "out", Type: graph.NodeTypeOutput, Config: graph.OutputNodeConfig{DataType: graph.PortTypeString}},
	)
	edgeSet, _ := graph.NewEdgeSet(
		graph.Edge{ID: "e1", Source: "in", SourcePort: "out", Target: "out", TargetPort: "in"},
	)
	return &graph.Workflow{
		ID:     id,
		Status: status,
		Meta:   graph.WorkflowMeta{Name: "test", Version: 1},
		Nodes:  nodeSet,
		Edges:  edgeSet,
	}
}

const testWfID = "550e8400-e29b-41d4-a716-446655440000"

func TestHandleGetWorkflow(t *testing.T) {
	t.Run("invalid id", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(t, store)
		router := newTestRouter(svc)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/workflows/not-a-uuid", nil)
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("not found", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(t, store)
		router := newTestRouter(svc)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/workflows/"+testWfID, nil)
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("success", func(t *testing.T) {
		store := newFakeStore()
		store.workflows[ids.WorkflowID(testWfID)] = validNodeSetWorkflow(ids.WorkflowID(testWfID), graph.WorkflowStatusDraft)
		svc := newTestService(t, store)
		router := newTestRouter(svc)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/workflows/"+testWfID, nil)
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var body wireWorkflow
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if len(body.Nodes) != 2 {
			t.Errorf("expected 2 nodes, got %d", len(body.Nodes))
		}
	})
}

func TestHandleUpsertWorkflow(t *testing.T) {
	t.Run("invalid body", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(t, store)
		router := newTestRouter(svc)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/api/v1/workflows/"+testWfID, bytes.NewReader([]byte("not json")))
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("creates a new workflow at version 1", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(t, store)
		router := newTestRouter(svc)

		payload := `{"name":"my flow","nodes":[{"id":"in","type":"input","config":{"dataType":"string"}}],"edges":[]}`
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/api/v1/workflows/"+testWfID, bytes.NewReader([]byte(payload)))
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var body wireWorkflow
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body.Version != 1 {
			t.Errorf("expected version 1, got %d", body.Version)
		}
		if body.Status != graph.WorkflowStatusDraft {
			t.Errorf("expected draft status, got %q", body.Status)
		}
	})

	t.Run("rejects agent parameters that violate the agent's schema", func(t *testing.T) {
		store := newFakeStore()
		schema := dynamic.FromRaw(json.RawMessage(`{
			"type": "object",
			"properties": {"model": {"type": "string"}},
			"required": ["model"]
		}`))
		reg := registry.NewMemory(graph.AgentDefinition{ID: "summarizer", Name: "Summarizer", DefaultConfig: schema})
		hub := events.NewHub(10, 10)
		svc, err := NewService(store, reg, hub, discardLogger())
		if err != nil {
			t.Fatalf("new service: %v", err)
		}
		router := newTestRouter(svc)

		payload := `{"name":"flow","nodes":[{"id":"a","type":"agent","config":{"agentId":"summarizer","parameters":{"other":1}}}],"edges":[]}`
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/api/v1/workflows/"+testWfID, bytes.NewReader([]byte(payload)))
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
		}
		if len(store.workflows) != 0 {
			t.Error("expected nothing persisted for a rejected workflow")
		}
	})

	t.Run("editing an existing workflow bumps version and resets to draft", func(t *testing.T) {
		store := newFakeStore()
		store.workflows[ids.WorkflowID(testWfID)] = validNodeSetWorkflow(ids.WorkflowID(testWfID), graph.WorkflowStatusValid)
		svc := newTestService(t, store)
		router := newTestRouter(svc)

		payload := `{"name":"edited","nodes":[{"id":"in","type":"input","config":{"dataType":"string"}}],"edges":[]}`
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/api/v1/workflows/"+testWfID, bytes.NewReader([]byte(payload)))
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var body wireWorkflow
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body.Version != 2 {
			t.Errorf("expected version bumped to 2, got %d", body.Version)
		}
		if body.Status != graph.WorkflowStatusDraft {
			t.Errorf("expected status reset to draft, got %q", body.Status)
		}
	})
}

func TestHandleValidateWorkflow(t *testing.T) {
	t.Run("valid workflow", func(t *testing.T) {
		store := newFakeStore()
		store.workflows[ids.WorkflowID(testWfID)] = validNodeSetWorkflow(ids.WorkflowID(testWfID), graph.WorkflowStatusDraft)
		svc := newTestService(t, store)
		router := newTestRouter(svc)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/workflows/"+testWfID+"/validate", nil)
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if store.workflows[ids.WorkflowID(testWfID)].Status != graph.WorkflowStatusValid {
			t.Errorf("expected workflow status persisted as valid, got %q", store.workflows[ids.WorkflowID(testWfID)].Status)
		}
	})

	t.Run("workflow with a cycle is invalid", func(t *testing.T) {
		store := newFakeStore()
		nodeSet, _ := graph.NewNodeSet(
			graph.Node{ID: "a", Type: graph.NodeTypeTool, Config: graph.ToolNodeConfig{ToolID: "t"}},
			graph.Node{ID: "b", Type: graph.NodeTypeTool, Config: graph.ToolNodeConfig{ToolID: "t"}},
		)
		edgeSet, _ := graph.NewEdgeSet(
			graph.Edge{ID: "e1", Source: "a", SourcePort: "out", Target: "b", TargetPort: "in"},
			graph.Edge{ID: "e2", Source: "b", SourcePort: "out", Target: "a", TargetPort: "in"},
		)
		store.workflows[ids.WorkflowID(testWfID)] = &graph.Workflow{
			ID: ids.WorkflowID(testWfID), Status: graph.WorkflowStatusDraft,
			Meta: graph.WorkflowMeta{Name: "cyclic", Version: 1}, Nodes: nodeSet, Edges: edgeSet,
		}
		svc := newTestService(t, store)
		router := newTestRouter(svc)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/workflows/"+testWfID+"/validate", nil)
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if store.workflows[ids.WorkflowID(testWfID)].Status != graph.WorkflowStatusInvalid {
			t.Errorf("expected workflow status persisted as invalid, got %q", store.workflows[ids.WorkflowID(testWfID)].Status)
		}
	})
}

func TestHandleExecuteWorkflow(t *testing.T) {
	t.Run("rejects a workflow that hasn't passed validation", func(t *testing.T) {
		store := newFakeStore()
		store.workflows[ids.WorkflowID(testWfID)] = validNodeSetWorkflow(ids.WorkflowID(testWfID), graph.WorkflowStatusDraft)
		svc := newTestService(t, store)
		router := newTestRouter(svc)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/workflows/"+testWfID+"/execute", bytes.NewReader([]byte(`{}`)))
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusConflict {
			t.Errorf("expected 409, got %d", rec.Code)
		}
	})

	t.Run("creates an execution for a valid workflow", func(t *testing.T) {
		store := newFakeStore()
		store.workflows[ids.WorkflowID(testWfID)] = validNodeSetWorkflow(ids.WorkflowID(testWfID), graph.WorkflowStatusValid)
		svc := newTestService(t, store)
		router := newTestRouter(svc)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/workflows/"+testWfID+"/execute", bytes.NewReader([]byte(`{"triggeredBy":"user-1","inputs":{"x":1}}`)))
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		var body wireExecution
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body.TriggeredBy != "user-1" {
			t.Errorf("expected triggeredBy user-1, got %q", body.TriggeredBy)
		}
		if len(store.executions) != 1 {
			t.Errorf("expected one execution persisted, got %d", len(store.executions))
		}
	})
}

func TestHandleGetExecution(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(t, store)
		router := newTestRouter(svc)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/executions/exec-1", nil)
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("success", func(t *testing.T) {
		store := newFakeStore()
		store.executions[ids.ExecutionID("exec-1")] = &graph.Execution{
			ID: "exec-1", WorkflowID: ids.WorkflowID(testWfID), Status: graph.ExecutionStatusRunning,
		}
		svc := newTestService(t, store)
		router := newTestRouter(svc)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/executions/exec-1", nil)
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})
}

func TestHandleDeleteWorkflow(t *testing.T) {
	t.Run("invalid id", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(t, store)
		router := newTestRouter(svc)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/workflows/not-a-uuid", nil)
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("success", func(t *testing.T) {
		store := newFakeStore()
		store.workflows[ids.WorkflowID(testWfID)] = validNodeSetWorkflow(ids.WorkflowID(testWfID), graph.WorkflowStatusDraft)
		svc := newTestService(t, store)
		router := newTestRouter(svc)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/workflows/"+testWfID, nil)
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
		}
	})
}

func TestHandleReportEvent(t *testing.T) {
	t.Run("unknown kind rejected", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(t, store)
		router := newTestRouter(svc)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/executions/exec-1/events", bytes.NewReader([]byte(`{"kind":"BOGUS"}`)))
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("node running persists state", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(t, store)
		router := newTestRouter(svc)

		payload := `{"kind":"NODE_RUNNING","nodeId":"node-a","retryCount":1}`
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/executions/exec-1/events", bytes.NewReader([]byte(payload)))
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
		}
		if len(store.nodeStates) != 1 {
			t.Fatalf("expected one node state recorded, got %d", len(store.nodeStates))
		}
		if store.nodeStates[0].Status != graph.NodeStatusRunning {
			t.Errorf("expected running status, got %q", store.nodeStates[0].Status)
		}
	})

	t.Run("execution completed persists terminal status", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(t, store)
		router := newTestRouter(svc)

		payload := `{"kind":"EXECUTION_COMPLETED"}`
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/executions/exec-1/events", bytes.NewReader([]byte(payload)))
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
		}
		if len(store.completedExecutions) != 1 {
			t.Fatalf("expected one execution completion recorded, got %d", len(store.completedExecutions))
		}
	})
}
