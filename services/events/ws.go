package events

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"agentforge/core/pkg/dynamic"
	"agentforge/core/pkg/ids"
)

var tracer = otel.Tracer("agentforge/core/services/events")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true }, // CORS handled by gorilla/handlers at the HTTP layer
}

// ServeWS upgrades r to a websocket and pumps Hub events to the client,
// applying subscribe/unsubscribe control messages the client sends back
// over the same connection. One connection may be subscribed to multiple
// execution-ids at once.
func ServeWS(hub *Hub, logger *slog.Logger, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	connID := ulid.Make().String()
	var writeMu sync.Mutex
	write := func(evt Event) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(evt)
	}

	subs := make(map[ids.ExecutionID]chan struct{})
	var subsMu sync.Mutex
	defer func() {
		subsMu.Lock()
		for execID := range subs {
			hub.Unsubscribe(execID, connID)
		}
		subsMu.Unlock()
	}()

	// Identity fields are stamped by the gateway in front of this service;
	// they are surfaced to the client, not enforced here.
	if err := write(Connected("", ConnectedPayload{
		ConnectionID: connID,
		UserID:       r.Header.Get("X-User-ID"),
		TenantID:     r.Header.Get("X-Tenant-ID"),
		Role:         r.Header.Get("X-Role"),
	})); err != nil {
		return
	}

	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Action {
		case ActionSubscribe:
			subsMu.Lock()
			if _, already := subs[msg.ExecutionID]; already {
				subsMu.Unlock()
				continue // duplicate subscribe is a no-op
			}
			done := make(chan struct{})
			subs[msg.ExecutionID] = done
			subsMu.Unlock()

			ch, replay := hub.Subscribe(msg.ExecutionID, connID)
			if err := write(ack(msg)); err != nil {
				return
			}
			for _, evt := range replay {
				if err := write(evt); err != nil {
					return
				}
			}
			// One span per subscription, spanning its lifetime: ended when
			// the pump stops on unsubscribe, hub close, or a write failure.
			_, span := tracer.Start(r.Context(), "events.Subscription", trace.WithAttributes(
				attribute.String("execution.id", msg.ExecutionID.String()),
				attribute.String("connection.id", connID),
			))
			go func() {
				defer span.End()
				pump(ch, done, write, logger)
			}()

		case ActionUnsubscribe:
			subsMu.Lock()
			done, ok := subs[msg.ExecutionID]
			delete(subs, msg.ExecutionID)
			subsMu.Unlock()
			if ok {
				hub.Unsubscribe(msg.ExecutionID, connID)
				close(done)
			}
			if err := write(ack(msg)); err != nil {
				return
			}

		default:
			_ = write(ProtocolError("", ProtocolErrorMalformed, "unrecognized client action"))
		}
	}
}

// ack echoes the control message that triggered it so the client can
// correlate the handshake reply with its request.
func ack(msg ClientMessage) Event {
	raw, _ := json.Marshal(msg)
	return Ack(msg.ExecutionID, dynamic.FromRaw(raw))
}

// pump forwards hub events for one subscription to the websocket write
// function until the channel closes or the subscription is cancelled.
func pump(ch <-chan Event, done <-chan struct{}, write func(Event) error, logger *slog.Logger) {
	for {
		select {
		case <-done:
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := write(evt); err != nil {
				logger.Warn("websocket write failed, dropping subscriber", "error", err)
				return
			}
		}
	}
}

// MarshalClientMessage is a small helper for tests and reference clients.
func MarshalClientMessage(action string, execID ids.ExecutionID) ([]byte, error) {
	return json.Marshal(ClientMessage{Action: action, ExecutionID: execID})
}
