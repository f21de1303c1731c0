// Package workflow is the HTTP service: workflow CRUD, validate,
// execute-trigger, and websocket-subscribe handlers wired to the
// graph/validate/plan/orchestrate pipeline, the agent registry, the
// storage layer, and the event hub.
package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"agentforge/core/services/events"
	"agentforge/core/services/registry"
	"agentforge/core/services/storage"
)

type contextKey string

const requestIDKey contextKey = "requestID"

// Service handles HTTP requests for workflow, execution, and event-stream
// operations. Its store and registry are interfaces (storage.Store,
// registry.Registry) so handler tests can substitute fakes; the event hub
// is the concrete *events.Hub.
type Service struct {
	store    storage.Store
	registry registry.Registry
	hub      *events.Hub
	logger   *slog.Logger
	outputs  *outputCache
}

// NewService builds a workflow Service. logger defaults to slog.Default()
// if nil.
func NewService(store storage.Store, reg registry.Registry, hub *events.Hub, logger *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("service: store cannot be nil")
	}
	if reg == nil {
		return nil, fmt.Errorf("service: registry cannot be nil")
	}
	if hub == nil {
		return nil, fmt.Errorf("service: hub cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, registry: reg, hub: hub, logger: logger, outputs: newOutputCache()}, nil
}

// requestIDMiddleware assigns a unique ID to each request for log
// correlation. If the client sends X-Request-ID, it's reused; otherwise a
// new UUID is generated.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// jsonMiddleware sets the Content-Type header to application/json.
func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// LoadRoutes mounts every workflow/execution/stream endpoint under
// parentRouter.
func (s *Service) LoadRoutes(parentRouter *mux.Router) {
	wf := parentRouter.PathPrefix("/workflows").Subrouter()
	wf.StrictSlash(false)
	wf.Use(requestIDMiddleware)
	wf.Use(jsonMiddleware)

	wf.HandleFunc("/{id}", s.HandleGetWorkflow).Methods("GET")
	wf.HandleFunc("/{id}", s.HandleUpsertWorkflow).Methods("PUT")
	wf.HandleFunc("/{id}", s.HandleDeleteWorkflow).Methods("DELETE")
	wf.HandleFunc("/{id}/validate", s.HandleValidateWorkflow).Methods("POST")
	wf.HandleFunc("/{id}/execute", s.HandleExecuteWorkflow).Methods("POST")

	ex := parentRouter.PathPrefix("/executions").Subrouter()
	ex.StrictSlash(false)
	ex.Use(requestIDMiddleware)
	ex.Use(jsonMiddleware)
	ex.HandleFunc("/{id}", s.HandleGetExecution).Methods("GET")
	ex.HandleFunc("/{id}/events", s.HandleReportEvent).Methods("POST")

	// The websocket upgrade itself sets its own headers; it must not run
	// behind jsonMiddleware.
	stream := parentRouter.PathPrefix("/stream").Subrouter()
	stream.Use(requestIDMiddleware)
	stream.HandleFunc("", s.HandleStream).Methods("GET")
}

// writeErrorJSON writes a structured JSON error response with a
// machine-readable code and a human-readable message.
func writeErrorJSON(w http.ResponseWriter, errCode, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	writeJSON(w, map[string]any{"code": errCode, "message": message})
}

// reqID extracts the request ID from context (set by requestIDMiddleware).
func reqID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey).(string)
	return id
}

// writeJSON encodes v to w, logging (not panicking) on a write failure —
// the response is already committed by the time Encode could fail.
func writeJSON(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
