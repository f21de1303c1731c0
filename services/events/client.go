package events

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"agentforge/core/pkg/ids"
)

// Client is a reference subscriber. It localises transient disconnects:
// on any connection error it reconnects with exponential backoff,
// resubscribes, and reconciles state via a fresh execution fetch, since
// the stream itself is not an authoritative store.
type Client struct {
	URL     string
	Dial    func(ctx context.Context, url string) (*websocket.Conn, error)
	Refetch func(ctx context.Context, execID ids.ExecutionID) (*ExecutionView, error)
	Reducer *Reducer
	OnEvent func(Event)
	Backoff backoff.BackOff
}

// DefaultDialer opens a plain websocket connection with no extra headers.
func DefaultDialer(ctx context.Context, url string) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, http.Header{})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return conn, nil
}

// Run subscribes to execID and feeds every received event to c.Reducer (if
// set) and then to c.OnEvent (if set) until ctx is cancelled or a terminal
// execution event arrives. On any
// connection error it reconnects per c.Backoff, resubscribes, and calls
// c.Refetch to reconcile state from a fresh snapshot.
func (c *Client) Run(ctx context.Context, execID ids.ExecutionID) error {
	bo := c.Backoff
	if bo == nil {
		bo = backoff.NewExponentialBackOff()
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := c.runOnce(ctx, execID)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			return nil // stream terminated cleanly (a terminal execution event)
		}

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			return fmt.Errorf("subscriber giving up on execution %q: %w", execID, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		if c.Refetch != nil {
			if view, ferr := c.Refetch(ctx, execID); ferr == nil {
				c.Reducer = reducerFromView(view)
			}
		}
	}
}

func (c *Client) runOnce(ctx context.Context, execID ids.ExecutionID) error {
	conn, err := c.Dial(ctx, c.URL)
	if err != nil {
		return err
	}
	defer conn.Close()

	sub, err := json.Marshal(ClientMessage{Action: ActionSubscribe, ExecutionID: execID})
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		return err
	}

	for {
		var evt Event
		if err := conn.ReadJSON(&evt); err != nil {
			return err
		}
		if c.Reducer != nil {
			c.Reducer.Apply(evt)
		}
		if c.OnEvent != nil {
			c.OnEvent(evt)
		}
		switch evt.Kind {
		case KindExecutionCompleted, KindExecutionFailed, KindExecutionCancelled:
			return nil
		}
	}
}

// reducerFromView rebuilds a Reducer's internal state from a freshly
// fetched ExecutionView after a reconnect, so replayed events don't regress
// state the client already observed.
func reducerFromView(view *ExecutionView) *Reducer {
	r := NewReducer(view.ExecutionID, 100)
	r.view.Status = view.Status
	for id, nv := range view.NodeStates {
		cp := *nv
		r.view.NodeStates[id] = &cp
	}
	r.view.Logs = append([]LogEmittedPayload{}, view.Logs...)
	return r
}
