// Package storage is the persistence layer for workflows and executions,
// a thin DB interface over pgx satisfied by *pgxpool.Pool in production
// and pgxmock in tests. Because NodeConfig is a self-contained tagged
// union, a workflow's nodes and edges are stored as jsonb documents on
// the workflow row rather than normalized into join tables.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"agentforge/core/pkg/dynamic"
	"agentforge/core/pkg/ids"
	"agentforge/core/services/graph"
)

// DB abstracts the database operations the storage layer uses, satisfied
// by *pgxpool.Pool in production and pgxmock in tests.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Store persists Workflow headers+graphs and Execution records.
type Store interface {
	GetWorkflow(ctx context.Context, id ids.WorkflowID) (*graph.Workflow, error)
	UpsertWorkflow(ctx context.Context, w *graph.Workflow) error
	DeleteWorkflow(ctx context.Context, id ids.WorkflowID) error

	CreateExecution(ctx context.Context, exec *graph.Execution) error
	GetExecution(ctx context.Context, id ids.ExecutionID) (*graph.Execution, error)
	UpdateNodeState(ctx context.Context, execID ids.ExecutionID, state graph.NodeExecutionState) error
	CompleteExecution(ctx context.Context, execID ids.ExecutionID, status graph.ExecutionStatus, outputs json.RawMessage) error
}

type pgStore struct {
	db DB
}

// New builds a postgres-backed Store.
func New(db *pgxpool.Pool) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("storage: db connection cannot be nil")
	}
	return &pgStore{db: db}, nil
}

// GetWorkflow loads a workflow header and its nodes/edges document inside
// a read-only repeatable-read transaction so multi-statement reads see a
// consistent row.
func (s *pgStore) GetWorkflow(ctx context.Context, id ids.WorkflowID) (*graph.Workflow, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(timeoutCtx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(timeoutCtx)

	w := &graph.Workflow{ID: id}
	var nodesJSON, edgesJSON []byte
	err = tx.QueryRow(timeoutCtx, `
		SELECT name, description, status, owner_id, version, created_at, updated_at, nodes, edges
		FROM workflows
		WHERE id = $1 AND deleted_at IS NULL`, string(id)).Scan(
		&w.Meta.Name, &w.Meta.Description, &w.Status, &w.Meta.OwnerID, &w.Meta.Version,
		&w.Meta.CreatedAt, &w.Meta.UpdatedAt, &nodesJSON, &edgesJSON,
	)
	if err != nil {
		return nil, err // pgx.ErrNoRows if not found
	}

	var nodes []graph.Node
	if err := json.Unmarshal(nodesJSON, &nodes); err != nil {
		return nil, fmt.Errorf("decode workflow %q nodes: %w", id, err)
	}
	var edges []graph.Edge
	if err := json.Unmarshal(edgesJSON, &edges); err != nil {
		return nil, fmt.Errorf("decode workflow %q edges: %w", id, err)
	}
	nodeSet, err := graph.NewNodeSet(nodes...)
	if err != nil {
		return nil, fmt.Errorf("rebuild node set for %q: %w", id, err)
	}
	edgeSet, err := graph.NewEdgeSet(edges...)
	if err != nil {
		return nil, fmt.Errorf("rebuild edge set for %q: %w", id, err)
	}
	w.Nodes = nodeSet
	w.Edges = edgeSet

	return w, tx.Commit(timeoutCtx)
}

// UpsertWorkflow saves the workflow header and its full nodes/edges
// document in one statement. Callers are expected to have already bumped
// Version and reset Status for an edit; this method persists whatever
// Meta/Status it's given.
func (s *pgStore) UpsertWorkflow(ctx context.Context, w *graph.Workflow) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	nodesJSON, err := json.Marshal(w.Nodes.All())
	if err != nil {
		return fmt.Errorf("marshal nodes: %w", err)
	}
	edgesJSON, err := json.Marshal(w.Edges.All())
	if err != nil {
		return fmt.Errorf("marshal edges: %w", err)
	}

	now := time.Now()
	if w.Meta.CreatedAt.IsZero() {
		w.Meta.CreatedAt = now
	}
	w.Meta.UpdatedAt = now

	rows, err := s.db.Query(timeoutCtx, `
		INSERT INTO workflows (id, name, description, status, owner_id, version, created_at, updated_at, nodes, edges)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at,
			nodes = EXCLUDED.nodes,
			edges = EXCLUDED.edges,
			deleted_at = NULL`,
		string(w.ID), w.Meta.Name, w.Meta.Description, w.Status, w.Meta.OwnerID, w.Meta.Version,
		w.Meta.CreatedAt, w.Meta.UpdatedAt, nodesJSON, edgesJSON)
	if err != nil {
		return fmt.Errorf("upsert workflow %q: %w", w.ID, err)
	}
	rows.Close()
	return nil
}

// DeleteWorkflow soft-deletes a workflow header.
func (s *pgStore) DeleteWorkflow(ctx context.Context, id ids.WorkflowID) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := s.db.Query(timeoutCtx, `
		UPDATE workflows SET deleted_at = $1, updated_at = $1 WHERE id = $2 AND deleted_at IS NULL`,
		time.Now(), string(id))
	if err != nil {
		return fmt.Errorf("soft delete workflow %q: %w", id, err)
	}
	rows.Close()
	return nil
}

// CreateExecution inserts a new Execution row with the status, inputs, and
// creation time the caller set on exec.
func (s *pgStore) CreateExecution(ctx context.Context, exec *graph.Execution) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	inputsJSON := exec.Inputs.Raw()
	rows, err := s.db.Query(timeoutCtx, `
		INSERT INTO executions (id, workflow_id, workflow_version, status, triggered_by, created_at, inputs)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(exec.ID), string(exec.WorkflowID), exec.WorkflowVersion, exec.Status, exec.TriggeredBy,
		exec.CreatedAt, inputsJSON)
	if err != nil {
		return fmt.Errorf("create execution %q: %w", exec.ID, err)
	}
	rows.Close()
	return nil
}

// GetExecution loads an execution header plus its per-node states.
func (s *pgStore) GetExecution(ctx context.Context, id ids.ExecutionID) (*graph.Execution, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exec := &graph.Execution{ID: id}
	var inputsJSON, outputsJSON []byte
	err := s.db.QueryRow(timeoutCtx, `
		SELECT workflow_id, workflow_version, status, triggered_by, created_at, started_at, completed_at, inputs, outputs
		FROM executions WHERE id = $1`, string(id)).Scan(
		&exec.WorkflowID, &exec.WorkflowVersion, &exec.Status, &exec.TriggeredBy,
		&exec.CreatedAt, &exec.StartedAt, &exec.CompletedAt, &inputsJSON, &outputsJSON,
	)
	if err != nil {
		return nil, err
	}
	exec.Inputs = dynamicFromRaw(inputsJSON)
	exec.Outputs = dynamicFromRaw(outputsJSON)

	rows, err := s.db.Query(timeoutCtx, `
		SELECT node_id, status, started_at, completed_at, retry_count, error, output
		FROM execution_node_states WHERE execution_id = $1`, string(id))
	if err != nil {
		return nil, fmt.Errorf("query node states for %q: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var st graph.NodeExecutionState
		var outputJSON []byte
		if err := rows.Scan(&st.NodeID, &st.Status, &st.StartedAt, &st.CompletedAt, &st.RetryCount, &st.Error, &outputJSON); err != nil {
			return nil, fmt.Errorf("scan node state: %w", err)
		}
		st.Output = dynamicFromRaw(outputJSON)
		exec.NodeStates = append(exec.NodeStates, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("node state rows: %w", err)
	}

	return exec, nil
}

// UpdateNodeState upserts one node's live execution state.
func (s *pgStore) UpdateNodeState(ctx context.Context, execID ids.ExecutionID, state graph.NodeExecutionState) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := s.db.Query(timeoutCtx, `
		INSERT INTO execution_node_states (execution_id, node_id, status, started_at, completed_at, retry_count, error, output)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (execution_id, node_id) DO UPDATE SET
			status = EXCLUDED.status,
			started_at = COALESCE(execution_node_states.started_at, EXCLUDED.started_at),
			completed_at = EXCLUDED.completed_at,
			retry_count = EXCLUDED.retry_count,
			error = EXCLUDED.error,
			output = EXCLUDED.output`,
		string(execID), string(state.NodeID), state.Status, state.StartedAt, state.CompletedAt,
		state.RetryCount, state.Error, state.Output.Raw())
	if err != nil {
		return fmt.Errorf("update node state %q/%q: %w", execID, state.NodeID, err)
	}
	rows.Close()
	return nil
}

// CompleteExecution marks an execution terminal and records its outputs.
func (s *pgStore) CompleteExecution(ctx context.Context, execID ids.ExecutionID, status graph.ExecutionStatus, outputs json.RawMessage) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := s.db.Query(timeoutCtx, `
		UPDATE executions SET status = $1, completed_at = $2, outputs = $3 WHERE id = $4`,
		status, time.Now(), outputs, string(execID))
	if err != nil {
		return fmt.Errorf("complete execution %q: %w", execID, err)
	}
	rows.Close()
	return nil
}

func dynamicFromRaw(raw []byte) dynamic.Value {
	return dynamic.FromRaw(raw)
}
