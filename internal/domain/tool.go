package domain

// ToolKind selects the execution path for a tool.
type ToolKind string

const (
	// ToolKindLocal dispatches to a handler function registered in-process.
	ToolKindLocal ToolKind = "local"
	// ToolKindRemote posts parameters to a plain HTTP endpoint.
	ToolKindRemote ToolKind = "remote-endpoint"
	// ToolKindServer executes against a tool server session owned by the
	// client pool.
	ToolKindServer ToolKind = "server-backed"
)

// Tool is a registry entry loaded once from static configuration and
// immutable for the registry's lifetime.
type Tool struct {
	ID            string   `yaml:"id" json:"id"`
	Name          string   `yaml:"name" json:"name"`
	Description   string   `yaml:"description" json:"description"`
	Kind          ToolKind `yaml:"kind" json:"kind"`
	RequiredGroup string   `yaml:"required_group" json:"required_group"`

	// Connection descriptor for server-backed tools: either a command to
	// spawn (stdio transport) or an HTTP endpoint. Remote-endpoint tools
	// use Endpoint only.
	Command  string   `yaml:"command,omitempty" json:"command,omitempty"`
	Args     []string `yaml:"args,omitempty" json:"args,omitempty"`
	Endpoint string   `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`

	Resources []string `yaml:"resources,omitempty" json:"resources,omitempty"`
	Templates []string `yaml:"templates,omitempty" json:"templates,omitempty"`
}

// ToolInfo is a listing entry: the tool plus the caller's access flag and,
// for server-backed tools, the server's own exposed functions (best-effort;
// a listing failure lands in ServerError, never fails the listing).
type ToolInfo struct {
	Tool
	HasAccess    bool     `json:"has_access"`
	AccessReason string   `json:"access_reason,omitempty"`
	ServerTools  []string `json:"server_tools,omitempty"`
	ServerError  string   `json:"server_error,omitempty"`
}

// ValidationResult reports access for one requested tool id.
type ValidationResult struct {
	ToolID    string `json:"tool_id"`
	Found     bool   `json:"found"`
	HasAccess bool   `json:"has_access"`
	Reason    string `json:"reason"`
}

// ExecutionResult is the uniform outcome of one tool invocation.
type ExecutionResult struct {
	ToolID   string `json:"tool_id"`
	ToolName string `json:"tool_name,omitempty"`
	Success  bool   `json:"success"`
	Result   string `json:"result,omitempty"`
	Error    string `json:"error,omitempty"`
}
