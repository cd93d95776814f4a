package types

import "time"

// StreamEvent is the base interface for all streaming events
type StreamEvent interface {
	GetType() StreamEventType
	GetTimestamp() time.Time
}

// StreamEventType identifies the type of streaming event
type StreamEventType string

const (
	// Content events
	EventTypeTextDelta StreamEventType = "text-delta"

	// Tool events
	EventTypeToolCallDelta StreamEventType = "tool-call-delta"

	// Lifecycle events
	EventTypeFinish      StreamEventType = "finish"
	EventTypeStreamError StreamEventType = "stream-error"

	// Turn events (emitted by the orchestrator, not by adapters)
	EventTypeToolProgress StreamEventType = "tool-progress"
	EventTypeTurnComplete StreamEventType = "turn-complete"
)

// Finish reasons shared across provider families. Adapters map their
// native stop reasons onto these before emitting a FinishEvent.
const (
	FinishReasonStop      = "stop"
	FinishReasonLength    = "length"
	FinishReasonToolCalls = "tool_calls"
	FinishReasonError     = "error"
)

// Base event struct with common fields
type baseEvent struct {
	eventType StreamEventType
	timestamp time.Time
}

func (e *baseEvent) GetType() StreamEventType {
	return e.eventType
}

func (e *baseEvent) GetTimestamp() time.Time {
	return e.timestamp
}

func newBaseEvent(eventType StreamEventType) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// TextDeltaEvent contains an incremental text chunk
type TextDeltaEvent struct {
	baseEvent
	Delta string `json:"delta"`
}

// ToolCallDeltaEvent carries one fragment of a tool call. Any of the three
// fragment fields may be empty; the accumulator concatenates whatever is
// present onto the record at Index.
type ToolCallDeltaEvent struct {
	baseEvent
	Index     int    `json:"index"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// FinishEvent indicates why generation stopped
type FinishEvent struct {
	baseEvent
	Reason string `json:"reason"`
}

// StreamErrorEvent is the terminal event for a failed stream. Adapters emit
// it instead of returning an error; the stream ends after it.
type StreamErrorEvent struct {
	baseEvent
	Err     error  `json:"-"`
	Message string `json:"message"`
}

// ToolProgressEvent is a human-readable progress block describing one tool
// execution, streamed by the orchestrator during the resolve phase.
type ToolProgressEvent struct {
	baseEvent
	Text string `json:"text"`
}

// TurnCompleteEvent is the last event of every turn. StreamFailed is set
// when a StreamErrorEvent was surfaced earlier in the same turn.
type TurnCompleteEvent struct {
	baseEvent
	Content      string   `json:"content"`
	Provider     string   `json:"provider"`
	ToolsUsed    []string `json:"tools_used"`
	StreamFailed bool     `json:"stream_failed,omitempty"`
}

func NewTextDeltaEvent(delta string) *TextDeltaEvent {
	return &TextDeltaEvent{
		baseEvent: newBaseEvent(EventTypeTextDelta),
		Delta:     delta,
	}
}

func NewToolCallDeltaEvent(index int, id, name, arguments string) *ToolCallDeltaEvent {
	return &ToolCallDeltaEvent{
		baseEvent: newBaseEvent(EventTypeToolCallDelta),
		Index:     index,
		ID:        id,
		Name:      name,
		Arguments: arguments,
	}
}

func NewFinishEvent(reason string) *FinishEvent {
	return &FinishEvent{
		baseEvent: newBaseEvent(EventTypeFinish),
		Reason:    reason,
	}
}

func NewStreamErrorEvent(err error, message string) *StreamErrorEvent {
	return &StreamErrorEvent{
		baseEvent: newBaseEvent(EventTypeStreamError),
		Err:       err,
		Message:   message,
	}
}

func NewToolProgressEvent(text string) *ToolProgressEvent {
	return &ToolProgressEvent{
		baseEvent: newBaseEvent(EventTypeToolProgress),
		Text:      text,
	}
}

func NewTurnCompleteEvent(content, provider string, toolsUsed []string, streamFailed bool) *TurnCompleteEvent {
	return &TurnCompleteEvent{
		baseEvent:    newBaseEvent(EventTypeTurnComplete),
		Content:      content,
		Provider:     provider,
		ToolsUsed:    toolsUsed,
		StreamFailed: streamFailed,
	}
}
