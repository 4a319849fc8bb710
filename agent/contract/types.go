package contract

import (
	"time"

	"github.com/cloudwego/eino/schema"
)

// Stage is a conversational phase with its own instruction set and tool surface.
type Stage string

const (
	StageGreeting Stage = "greeting"
	StageLocation Stage = "location"
	StageOrdering Stage = "ordering"
	StageCheckout Stage = "checkout"

	// StageClosed is the terminal no-op stage for non-active sessions.
	StageClosed Stage = "closed"
)

// OrderMode selects how the customer receives the order.
type OrderMode string

const (
	ModeDelivery OrderMode = "delivery"
	ModePickup   OrderMode = "pickup"
)

// InferenceRequest is the full payload handed to the inference collaborator
// for one model call: stage instructions, the budgeted input, and the tool
// surface the active stage exposes.
type InferenceRequest struct {
	Instructions string
	Input        []*schema.Message
	Tools        []*schema.ToolInfo
}

// InferenceResponse is what the collaborator returns: free text plus the tool
// calls the model decided to issue, in issue order.
type InferenceResponse struct {
	Text      string
	ToolCalls []ToolRequest
}

// ToolRequest is one model-issued tool invocation.
type ToolRequest struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

// ToolResult is the structured outcome fed back to the model. Recoverable
// failures populate Error instead of propagating to the caller.
type ToolResult struct {
	Tool   string `json:"tool"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// EventType enumerates the structured events the core emits.
type EventType string

const (
	EventStageTransition EventType = "stage_transition"
	EventToolCall        EventType = "tool_call"
	EventTruncation      EventType = "truncation"
	EventSessionClosed   EventType = "session_closed"
)

// Event is a structured record handed to the log sink collaborator.
// Formatting and storage are the sink's problem.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"session_id"`
	Type      EventType      `json:"event_type"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// TurnResult is the outcome of one fully resolved inbound message.
type TurnResult struct {
	Reply      string
	Stage      Stage
	StageMoved bool
}
