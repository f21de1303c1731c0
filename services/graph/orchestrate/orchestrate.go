// Package orchestrate composes the structural rules, the semantic rules,
// and the topological planner into a single valid/invalid verdict over one
// workflow snapshot, with tracing and metrics around the whole pass.
package orchestrate

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"agentforge/core/services/graph"
	"agentforge/core/services/graph/plan"
	"agentforge/core/services/graph/validate"
)

var tracer = otel.Tracer("agentforge/core/services/graph/orchestrate")

// Result is the outcome of Run: either Valid with an execution order and
// level assignment, or Invalid with the full set of accumulated errors.
type Result struct {
	Valid          bool             `json:"valid"`
	Errors         []validate.Error `json:"errors,omitempty"`
	ExecutionOrder []string         `json:"executionOrder,omitempty"`
	Levels         map[string]int   `json:"levels,omitempty"`
}

// Options configures one Run.
type Options struct {
	// Registry, if non-nil, enables the semantic rules. Without it, Run
	// returns after the structural pass.
	Registry validate.AgentLookup
	// FailFast, if true, returns after the first failing rule's errors
	// instead of continuing to accumulate.
	FailFast bool
}

// Run executes the fixed rule pipeline over w and returns a single
// valid/invalid verdict:
//
//  1. Edge references — stop immediately on failure; later rules
//     dereference edge endpoints.
//  2. Duplicate edges, entry nodes — accumulate, continue.
//  3. Acyclicity — stop on failure; the orphan walk would be meaningless
//     otherwise.
//  4. Orphans — accumulate.
//  5. If any structural errors and no registry was supplied, return them.
//  6. With a registry: port types, required inputs — accumulate.
//  7. Zero errors -> valid{executionOrder, levels} from the planner on the
//     same snapshot; otherwise invalid{errors}.
func Run(ctx context.Context, w *graph.Workflow, opts Options) Result {
	_, span := tracer.Start(ctx, "orchestrate.Run", trace.WithAttributes(
		attribute.String("workflow.id", string(w.ID)),
		attribute.Int("workflow.node_count", w.Nodes.Len()),
		attribute.Int("workflow.edge_count", w.Edges.Len()),
	))
	start := time.Now()
	defer func() {
		runDuration.Observe(time.Since(start).Seconds())
		span.End()
	}()

	idx := graph.Build(w)
	var errs []validate.Error

	refRes := validate.CheckEdgeReferences(idx)
	errs = append(errs, refRes.Errors...)
	if !refRes.Valid() {
		return finish(span, errs, opts.FailFast, true)
	}

	for _, stage := range []func() validate.Result{
		func() validate.Result { return validate.CheckDuplicateEdges(idx) },
		func() validate.Result { return validate.CheckEntryNodes(idx) },
	} {
		r := stage()
		errs = append(errs, r.Errors...)
		if opts.FailFast && !r.Valid() {
			return finish(span, errs, true, false)
		}
	}

	cycleRes := validate.CheckAcyclic(idx)
	errs = append(errs, cycleRes.Errors...)
	if !cycleRes.Valid() {
		return finish(span, errs, opts.FailFast, true)
	}

	orphanRes := validate.CheckOrphans(idx)
	errs = append(errs, orphanRes.Errors...)
	if opts.FailFast && !orphanRes.Valid() {
		return finish(span, errs, true, false)
	}

	if len(errs) > 0 && opts.Registry == nil {
		return finish(span, errs, opts.FailFast, false)
	}

	if opts.Registry != nil {
		for _, stage := range []func() validate.Result{
			func() validate.Result { return validate.CheckPortTypes(idx, opts.Registry) },
			func() validate.Result { return validate.CheckRequiredInputs(idx, opts.Registry) },
		} {
			r := stage()
			errs = append(errs, r.Errors...)
			if opts.FailFast && !r.Valid() {
				return finish(span, errs, true, false)
			}
		}
	}

	if len(errs) > 0 {
		return finish(span, errs, opts.FailFast, false)
	}

	planRes := plan.Plan(idx)
	if planRes.CycleDetected {
		// Cycle detection already passed, so this indicates a bug in
		// either the DFS or the planner, not a user error.
		span.AddEvent("planner reported a cycle after cycle detection passed")
		errs = append(errs, validate.Error{
			Code:    validate.CodeCycleDetected,
			Message: "topological planner detected a cycle after structural validation passed",
		})
		return finish(span, errs, opts.FailFast, false)
	}

	order := make([]string, len(planRes.Order))
	for i, id := range planRes.Order {
		order[i] = string(id)
	}
	levels := make(map[string]int, len(planRes.Levels))
	for id, lvl := range planRes.Levels {
		levels[string(id)] = lvl
	}

	span.SetAttributes(attribute.Bool("workflow.valid", true))
	runsTotal.WithLabelValues("valid").Inc()
	return Result{Valid: true, ExecutionOrder: order, Levels: levels}
}

func finish(span trace.Span, errs []validate.Error, failFast, stopped bool) Result {
	span.SetAttributes(
		attribute.Bool("workflow.valid", false),
		attribute.Int("workflow.error_count", len(errs)),
		attribute.Bool("workflow.fail_fast", failFast),
	)
	if stopped {
		span.AddEvent("validation stopped early: later rules would be unsafe")
	}
	runsTotal.WithLabelValues("invalid").Inc()
	return Result{Valid: false, Errors: errs}
}
