package types

// ToolSchema is an LLM-facing function descriptor. Name is namespaced as
// {toolId}_{serverToolName} so that two tool servers exposing a function
// with the same name never collide. ToolID and ServerToolName link the
// schema back to its origin for execution-time reverse lookup.
type ToolSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`

	ToolID         string `json:"-"`
	ServerToolName string `json:"-"`
}

// ToolCall is a complete, executable tool invocation reassembled from
// streamed fragments.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}
