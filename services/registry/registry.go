// Package registry implements the agent registry the semantic validation
// rules depend on: a minimal Registry interface plus two implementations,
// an in-memory one for tests and small deployments and a postgres-backed
// one.
package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xeipuuv/gojsonschema"

	"agentforge/core/pkg/dynamic"
	"agentforge/core/pkg/ids"
	"agentforge/core/services/graph"
	"agentforge/core/services/graph/validate"
)

// Registry is the read/write view over registered agent definitions.
type Registry interface {
	Get(ctx context.Context, id ids.AgentID) (graph.AgentDefinition, error)
	List(ctx context.Context) ([]graph.AgentDefinition, error)
	Upsert(ctx context.Context, def graph.AgentDefinition) error
}

// ErrNotFound is returned by Get when the agent ID is unregistered.
var ErrNotFound = fmt.Errorf("agent not found")

// snapshot adapts a point-in-time List() call to validate.AgentLookup, so
// one validation run always sees a consistent view of the registry even if
// agents are concurrently registered elsewhere.
type snapshot map[ids.AgentID]graph.AgentDefinition

func (s snapshot) Lookup(id ids.AgentID) (graph.AgentDefinition, bool) {
	a, ok := s[id]
	return a, ok
}

// Snapshot builds a validate.AgentLookup from the current contents of r.
func Snapshot(ctx context.Context, r Registry) (validate.AgentLookup, error) {
	defs, err := r.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot registry: %w", err)
	}
	s := make(snapshot, len(defs))
	for _, d := range defs {
		s[d.ID] = d
	}
	return s, nil
}

// ValidateParameters checks a node's config.Parameters against the agent's
// DefaultConfig treated as a JSON schema document, when one is set. Agents
// without a DefaultConfig skip this check entirely — not every agent
// constrains its parameter shape.
func ValidateParameters(def graph.AgentDefinition, params dynamic.Value) error {
	if def.DefaultConfig.IsNull() {
		return nil
	}
	schemaLoader := gojsonschema.NewBytesLoader(def.DefaultConfig.Raw())
	docLoader := gojsonschema.NewBytesLoader(params.Raw())

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("validate agent %q parameters: %w", def.ID, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("agent %q parameters invalid: %v", def.ID, msgs)
	}
	return nil
}

// memRegistry is an in-memory Registry, safe for concurrent use by callers
// that serialize writes externally (it holds no lock of its own — the
// intended use is test fixtures and single-writer deployments).
type memRegistry struct {
	defs map[ids.AgentID]graph.AgentDefinition
}

// NewMemory builds an in-memory Registry seeded with defs.
func NewMemory(defs ...graph.AgentDefinition) Registry {
	m := &memRegistry{defs: make(map[ids.AgentID]graph.AgentDefinition, len(defs))}
	for _, d := range defs {
		m.defs[d.ID] = d
	}
	return m
}

func (m *memRegistry) Get(_ context.Context, id ids.AgentID) (graph.AgentDefinition, error) {
	d, ok := m.defs[id]
	if !ok {
		return graph.AgentDefinition{}, ErrNotFound
	}
	return d, nil
}

func (m *memRegistry) List(_ context.Context) ([]graph.AgentDefinition, error) {
	out := make([]graph.AgentDefinition, 0, len(m.defs))
	for _, d := range m.defs {
		out = append(out, d)
	}
	return out, nil
}

func (m *memRegistry) Upsert(_ context.Context, def graph.AgentDefinition) error {
	m.defs[def.ID] = def
	return nil
}

// DB abstracts the database operations the postgres registry needs.
// Satisfied by *pgxpool.Pool in production and pgxmock in tests.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type pgRegistry struct {
	db DB
}

// NewPostgres builds a postgres-backed Registry.
func NewPostgres(db *pgxpool.Pool) Registry {
	return &pgRegistry{db: db}
}

func (r *pgRegistry) Get(ctx context.Context, id ids.AgentID) (graph.AgentDefinition, error) {
	var def graph.AgentDefinition
	var inputSchema, outputSchema, defaultConfig []byte
	err := r.db.QueryRow(ctx, `
		SELECT id, name, category, input_schema, output_schema, default_config,
		       cacheable, retry_max_retries, retry_backoff_ms, retry_backoff_multiplier
		FROM agent_definitions
		WHERE id = $1`, string(id)).Scan(
		&def.ID, &def.Name, &def.Category, &inputSchema, &outputSchema, &defaultConfig,
		&def.Cacheable, &def.RetryPolicy.MaxRetries, &def.RetryPolicy.BackoffMs, &def.RetryPolicy.BackoffMultiplier,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return graph.AgentDefinition{}, ErrNotFound
		}
		return graph.AgentDefinition{}, fmt.Errorf("get agent %q: %w", id, err)
	}
	if err := json.Unmarshal(inputSchema, &def.InputSchema); err != nil {
		return graph.AgentDefinition{}, fmt.Errorf("decode agent %q input schema: %w", id, err)
	}
	if err := json.Unmarshal(outputSchema, &def.OutputSchema); err != nil {
		return graph.AgentDefinition{}, fmt.Errorf("decode agent %q output schema: %w", id, err)
	}
	def.DefaultConfig = dynamic.FromRaw(defaultConfig)
	return def, nil
}

func (r *pgRegistry) List(ctx context.Context) ([]graph.AgentDefinition, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, category, input_schema, output_schema, default_config,
		       cacheable, retry_max_retries, retry_backoff_ms, retry_backoff_multiplier
		FROM agent_definitions`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var out []graph.AgentDefinition
	for rows.Next() {
		var def graph.AgentDefinition
		var inputSchema, outputSchema, defaultConfig []byte
		if err := rows.Scan(
			&def.ID, &def.Name, &def.Category, &inputSchema, &outputSchema, &defaultConfig,
			&def.Cacheable, &def.RetryPolicy.MaxRetries, &def.RetryPolicy.BackoffMs, &def.RetryPolicy.BackoffMultiplier,
		); err != nil {
			return nil, fmt.Errorf("scan agent row: %w", err)
		}
		if err := json.Unmarshal(inputSchema, &def.InputSchema); err != nil {
			return nil, fmt.Errorf("decode agent %q input schema: %w", def.ID, err)
		}
		if err := json.Unmarshal(outputSchema, &def.OutputSchema); err != nil {
			return nil, fmt.Errorf("decode agent %q output schema: %w", def.ID, err)
		}
		def.DefaultConfig = dynamic.FromRaw(defaultConfig)
		out = append(out, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list agents rows: %w", err)
	}
	return out, nil
}

func (r *pgRegistry) Upsert(ctx context.Context, def graph.AgentDefinition) error {
	inputSchema, err := json.Marshal(def.InputSchema)
	if err != nil {
		return fmt.Errorf("marshal input schema: %w", err)
	}
	outputSchema, err := json.Marshal(def.OutputSchema)
	if err != nil {
		return fmt.Errorf("marshal output schema: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO agent_definitions (
			id, name, category, input_schema, output_schema, default_config,
			cacheable, retry_max_retries, retry_backoff_ms, retry_backoff_multiplier
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			input_schema = EXCLUDED.input_schema,
			output_schema = EXCLUDED.output_schema,
			default_config = EXCLUDED.default_config,
			cacheable = EXCLUDED.cacheable,
			retry_max_retries = EXCLUDED.retry_max_retries,
			retry_backoff_ms = EXCLUDED.retry_backoff_ms,
			retry_backoff_multiplier = EXCLUDED.retry_backoff_multiplier`,
		string(def.ID), def.Name, def.Category, inputSchema, outputSchema, def.DefaultConfig.Raw(),
		def.Cacheable, def.RetryPolicy.MaxRetries, def.RetryPolicy.BackoffMs, def.RetryPolicy.BackoffMultiplier,
	)
	if err != nil {
		return fmt.Errorf("upsert agent %q: %w", def.ID, err)
	}
	return nil
}
