// Package events implements the execution event contract: the event
// vocabulary, a hub-and-spoke producer/broker with one serialized writer
// per execution-id and a bounded per-subscriber outbox, a websocket
// transport, and a client-side reducer.
package events

import (
	"encoding/json"
	"time"

	"agentforge/core/pkg/dynamic"
	"agentforge/core/pkg/ids"
)

// Kind is the closed set of server-to-client event kinds.
type Kind string

const (
	KindConnected          Kind = "CONNECTED"
	KindExecutionStarted   Kind = "EXECUTION_STARTED"
	KindExecutionCompleted Kind = "EXECUTION_COMPLETED"
	KindExecutionFailed    Kind = "EXECUTION_FAILED"
	KindExecutionCancelled Kind = "EXECUTION_CANCELLED"
	KindNodeQueued         Kind = "NODE_QUEUED"
	KindNodeRunning        Kind = "NODE_RUNNING"
	KindNodeCompleted      Kind = "NODE_COMPLETED"
	KindNodeFailed         Kind = "NODE_FAILED"
	KindNodeSkipped        Kind = "NODE_SKIPPED"
	KindNodeCacheHit       Kind = "NODE_CACHE_HIT"
	KindLogEmitted         Kind = "LOG_EMITTED"
	KindResumeStart        Kind = "RESUME_START"
	KindNodeOutputReused   Kind = "NODE_OUTPUT_REUSED"
	KindResumeComplete     Kind = "RESUME_COMPLETE"
	KindACK                Kind = "ACK"
	KindError              Kind = "ERROR"
)

// LogLevel is the closed set of LOG_EMITTED severities.
type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// ProtocolErrorCode is the closed set of ERROR event codes.
type ProtocolErrorCode string

const (
	ProtocolErrorOverflow         ProtocolErrorCode = "overflow"
	ProtocolErrorUnauthorized     ProtocolErrorCode = "unauthorized"
	ProtocolErrorUnknownExecution ProtocolErrorCode = "unknown_execution"
	ProtocolErrorMalformed        ProtocolErrorCode = "malformed"
)

// Event is the wire envelope for every server-to-client message: kind,
// execution-id, a UTC timestamp, and a kind-specific payload.
type Event struct {
	Kind        Kind            `json:"event"`
	ExecutionID ids.ExecutionID `json:"executionId"`
	Timestamp   time.Time       `json:"timestamp"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

func newEvent(kind Kind, execID ids.ExecutionID, payload any) Event {
	raw, _ := json.Marshal(payload)
	return Event{Kind: kind, ExecutionID: execID, Timestamp: time.Now().UTC(), Payload: raw}
}

// Payload shapes, one per event kind that carries data.

type ConnectedPayload struct {
	ConnectionID string `json:"connectionId"`
	UserID       string `json:"userId"`
	TenantID     string `json:"tenantId"`
	Role         string `json:"role"`
}

type NodePayload struct {
	NodeID ids.NodeID `json:"nodeId"`
}

type NodeRunningPayload struct {
	NodeID     ids.NodeID `json:"nodeId"`
	RetryCount int        `json:"retryCount"`
}

type NodeFailedPayload struct {
	NodeID ids.NodeID `json:"nodeId"`
	Error  string     `json:"error"`
}

type NodeSkippedPayload struct {
	NodeID ids.NodeID `json:"nodeId"`
	Reason string     `json:"reason"`
}

type LogEmittedPayload struct {
	NodeID  ids.NodeID `json:"nodeId"`
	Level   LogLevel   `json:"level"`
	Message string     `json:"message"`
}

type ResumeStartPayload struct {
	ParentExecutionID ids.ExecutionID `json:"parentExecutionId"`
	ResumedFromNodeID ids.NodeID      `json:"resumedFromNodeId"`
	SkippedCount      int             `json:"skippedCount"`
	RerunCount        int             `json:"rerunCount"`
}

type NodeOutputReusedPayload struct {
	NodeID            ids.NodeID      `json:"nodeId"`
	SourceExecutionID ids.ExecutionID `json:"sourceExecutionId"`
}

type ResumeCompletePayload struct {
	Status string `json:"status"`
}

type ProtocolErrorPayload struct {
	Code    ProtocolErrorCode `json:"code"`
	Message string            `json:"message"`
}

// Constructors — one per event kind, so producers cannot hand-assemble a
// mismatched kind/payload pair.

func Connected(execID ids.ExecutionID, p ConnectedPayload) Event {
	return newEvent(KindConnected, execID, p)
}
func ExecutionStarted(execID ids.ExecutionID) Event {
	return newEvent(KindExecutionStarted, execID, struct{}{})
}
func ExecutionCompleted(execID ids.ExecutionID) Event {
	return newEvent(KindExecutionCompleted, execID, struct{}{})
}
func ExecutionFailed(execID ids.ExecutionID) Event {
	return newEvent(KindExecutionFailed, execID, struct{}{})
}
func ExecutionCancelled(execID ids.ExecutionID) Event {
	return newEvent(KindExecutionCancelled, execID, struct{}{})
}
func NodeQueued(execID ids.ExecutionID, nodeID ids.NodeID) Event {
	return newEvent(KindNodeQueued, execID, NodePayload{NodeID: nodeID})
}
func NodeRunning(execID ids.ExecutionID, nodeID ids.NodeID, retryCount int) Event {
	return newEvent(KindNodeRunning, execID, NodeRunningPayload{NodeID: nodeID, RetryCount: retryCount})
}
func NodeCompleted(execID ids.ExecutionID, nodeID ids.NodeID) Event {
	return newEvent(KindNodeCompleted, execID, NodePayload{NodeID: nodeID})
}
func NodeFailed(execID ids.ExecutionID, nodeID ids.NodeID, errMsg string) Event {
	return newEvent(KindNodeFailed, execID, NodeFailedPayload{NodeID: nodeID, Error: errMsg})
}
func NodeSkipped(execID ids.ExecutionID, nodeID ids.NodeID, reason string) Event {
	return newEvent(KindNodeSkipped, execID, NodeSkippedPayload{NodeID: nodeID, Reason: reason})
}
func NodeCacheHit(execID ids.ExecutionID, nodeID ids.NodeID) Event {
	return newEvent(KindNodeCacheHit, execID, NodePayload{NodeID: nodeID})
}
func LogEmitted(execID ids.ExecutionID, nodeID ids.NodeID, level LogLevel, message string) Event {
	return newEvent(KindLogEmitted, execID, LogEmittedPayload{NodeID: nodeID, Level: level, Message: message})
}
func ResumeStart(execID ids.ExecutionID, p ResumeStartPayload) Event {
	return newEvent(KindResumeStart, execID, p)
}
func NodeOutputReused(execID ids.ExecutionID, nodeID ids.NodeID, sourceExecID ids.ExecutionID) Event {
	return newEvent(KindNodeOutputReused, execID, NodeOutputReusedPayload{NodeID: nodeID, SourceExecutionID: sourceExecID})
}
func ResumeComplete(execID ids.ExecutionID, status string) Event {
	return newEvent(KindResumeComplete, execID, ResumeCompletePayload{Status: status})
}
func Ack(execID ids.ExecutionID, requestContext dynamic.Value) Event {
	return newEvent(KindACK, execID, requestContext)
}
func ProtocolError(execID ids.ExecutionID, code ProtocolErrorCode, message string) Event {
	return newEvent(KindError, execID, ProtocolErrorPayload{Code: code, Message: message})
}

// ClientMessage is a client-to-server subscription control message:
// `{action: "subscribe"|"unsubscribe", executionId}`.
type ClientMessage struct {
	Action      string          `json:"action"`
	ExecutionID ids.ExecutionID `json:"executionId"`
}

const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)
