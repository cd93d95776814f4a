package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/conduitchat/conduit/internal/domain"
	"github.com/conduitchat/conduit/internal/toolpool"
)

// QualifiedNameSeparator joins tool id and server function name in
// LLM-facing schema names. Tool identifiers must not contain it, or the
// split on execution becomes ambiguous; NewToolRegistry enforces this.
const QualifiedNameSeparator = "_"

// LocalHandler executes a local-kind tool in process.
type LocalHandler func(ctx context.Context, params map[string]any) (string, error)

// ToolRegistry maps tool ids to their definitions and execution paths.
// Definitions are immutable after construction; local handlers are
// registered during wiring, before the registry is shared.
type ToolRegistry struct {
	tools      map[string]domain.Tool
	order      []string
	access     domain.AccessEvaluator
	pool       *toolpool.Pool
	handlers   map[string]LocalHandler
	httpClient *http.Client
}

// NewToolRegistry validates the definitions. Duplicate ids, ids containing
// the qualified-name separator, and server-backed tools without a
// connection descriptor are configuration errors that abort startup.
func NewToolRegistry(access domain.AccessEvaluator, pool *toolpool.Pool, defs []domain.Tool) (*ToolRegistry, error) {
	r := &ToolRegistry{
		tools:      make(map[string]domain.Tool, len(defs)),
		access:     access,
		pool:       pool,
		handlers:   make(map[string]LocalHandler),
		httpClient: http.DefaultClient,
	}

	for _, def := range defs {
		if def.ID == "" {
			return nil, fmt.Errorf("tool definition without id")
		}
		if strings.Contains(def.ID, QualifiedNameSeparator) {
			return nil, fmt.Errorf("tool id %q must not contain %q", def.ID, QualifiedNameSeparator)
		}
		if _, dup := r.tools[def.ID]; dup {
			return nil, fmt.Errorf("duplicate tool id %q", def.ID)
		}
		switch def.Kind {
		case domain.ToolKindLocal:
		case domain.ToolKindRemote:
			if def.Endpoint == "" {
				return nil, fmt.Errorf("remote tool %q without endpoint", def.ID)
			}
		case domain.ToolKindServer:
			if def.Command == "" && def.Endpoint == "" {
				return nil, fmt.Errorf("server-backed tool %q without command or endpoint", def.ID)
			}
		default:
			return nil, fmt.Errorf("tool %q: unknown kind %q", def.ID, def.Kind)
		}
		if def.RequiredGroup == "" {
			def.RequiredGroup = domain.DefaultGroup
		}
		r.tools[def.ID] = def
		r.order = append(r.order, def.ID)
	}

	log.Info().Int("tools", len(r.order)).Msg("loaded tool registry")
	return r, nil
}

// RegisterLocalHandler binds the in-process implementation of a local tool.
func (r *ToolRegistry) RegisterLocalHandler(toolID string, handler LocalHandler) error {
	tool, ok := r.tools[toolID]
	if !ok {
		return fmt.Errorf("tool %q not found", toolID)
	}
	if tool.Kind != domain.ToolKindLocal {
		return fmt.Errorf("tool %q is not local", toolID)
	}
	r.handlers[toolID] = handler
	return nil
}

// Get returns the raw definition.
func (r *ToolRegistry) Get(id string) (domain.Tool, bool) {
	t, ok := r.tools[id]
	return t, ok
}

// Pool exposes the client pool for collaborators that execute server
// functions directly (the schema translator).
func (r *ToolRegistry) Pool() *toolpool.Pool {
	return r.pool
}

// ListAvailable returns every tool with the caller's access flag and, for
// server-backed tools, the server's exposed function names. Server listing
// is best-effort: failures are attached as a diagnostic, never fatal.
func (r *ToolRegistry) ListAvailable(ctx context.Context, userID string) []domain.ToolInfo {
	infos := make([]domain.ToolInfo, 0, len(r.order))

	for _, id := range r.order {
		tool := r.tools[id]
		info := domain.ToolInfo{Tool: tool, HasAccess: true}

		if !r.access.HasAccess(userID, tool.RequiredGroup) {
			info.HasAccess = false
			info.AccessReason = "Requires group: " + tool.RequiredGroup
		}

		if tool.Kind == domain.ToolKindServer && info.HasAccess {
			names, err := r.listServerTools(ctx, tool)
			if err != nil {
				info.ServerError = err.Error()
			} else {
				info.ServerTools = names
			}
		}

		infos = append(infos, info)
	}

	return infos
}

func (r *ToolRegistry) listServerTools(ctx context.Context, tool domain.Tool) ([]string, error) {
	client, err := r.pool.Get(ctx, tool)
	if err != nil {
		return nil, err
	}
	serverTools, err := client.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(serverTools))
	for _, st := range serverTools {
		names = append(names, st.Name)
	}
	return names, nil
}

// Details returns one tool's listing entry without server enumeration.
func (r *ToolRegistry) Details(id, userID string) (domain.ToolInfo, bool) {
	tool, ok := r.tools[id]
	if !ok {
		return domain.ToolInfo{}, false
	}
	info := domain.ToolInfo{Tool: tool, HasAccess: true}
	if !r.access.HasAccess(userID, tool.RequiredGroup) {
		info.HasAccess = false
		info.AccessReason = "Requires group: " + tool.RequiredGroup
	}
	return info, true
}

// Resources returns a tool's declared resources, or nothing when the
// caller lacks access.
func (r *ToolRegistry) Resources(id, userID string) []string {
	tool, ok := r.tools[id]
	if !ok {
		return nil
	}
	if !r.access.HasAccess(userID, tool.RequiredGroup) {
		return nil
	}
	return tool.Resources
}

// ValidateAccess reports access for each requested id. Unknown ids yield
// found=false with reason "not found". Idempotent and side-effect-free.
func (r *ToolRegistry) ValidateAccess(toolIDs []string, userID string) []domain.ValidationResult {
	results := make([]domain.ValidationResult, 0, len(toolIDs))

	for _, id := range toolIDs {
		tool, ok := r.tools[id]
		if !ok {
			results = append(results, domain.ValidationResult{
				ToolID:    id,
				Found:     false,
				HasAccess: false,
				Reason:    "Tool not found",
			})
			continue
		}

		if r.access.HasAccess(userID, tool.RequiredGroup) {
			results = append(results, domain.ValidationResult{
				ToolID:    id,
				Found:     true,
				HasAccess: true,
				Reason:    "Access granted",
			})
		} else {
			results = append(results, domain.ValidationResult{
				ToolID:    id,
				Found:     true,
				HasAccess: false,
				Reason:    "Requires group: " + tool.RequiredGroup,
			})
		}
	}

	return results
}

// Execute runs a tool by id. Access is re-checked here regardless of any
// earlier validation: execution fails closed.
func (r *ToolRegistry) Execute(ctx context.Context, toolID string, params map[string]any, userID string) domain.ExecutionResult {
	tool, ok := r.tools[toolID]
	if !ok {
		return failure(toolID, "", fmt.Sprintf("tool %q not found", toolID))
	}

	if !r.access.HasAccess(userID, tool.RequiredGroup) {
		return failure(toolID, tool.Name, fmt.Sprintf("access denied to tool %q", toolID))
	}

	log.Info().Str("tool", toolID).Str("user", userID).Str("kind", string(tool.Kind)).Msg("executing tool")

	switch tool.Kind {
	case domain.ToolKindLocal:
		return r.executeLocal(ctx, tool, params)
	case domain.ToolKindRemote:
		return r.executeRemote(ctx, tool, params)
	case domain.ToolKindServer:
		return r.executeServer(ctx, tool, params)
	default:
		return failure(toolID, tool.Name, fmt.Sprintf("unknown tool kind %q", tool.Kind))
	}
}

func (r *ToolRegistry) executeLocal(ctx context.Context, tool domain.Tool, params map[string]any) domain.ExecutionResult {
	handler, ok := r.handlers[tool.ID]
	if !ok {
		return failure(tool.ID, tool.Name, fmt.Sprintf("no handler registered for tool %q", tool.ID))
	}

	result, err := handler(ctx, params)
	if err != nil {
		return failure(tool.ID, tool.Name, err.Error())
	}
	return success(tool.ID, tool.Name, result)
}

func (r *ToolRegistry) executeRemote(ctx context.Context, tool domain.Tool, params map[string]any) domain.ExecutionResult {
	body, err := json.Marshal(params)
	if err != nil {
		return failure(tool.ID, tool.Name, "encoding parameters: "+err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tool.Endpoint, bytes.NewReader(body))
	if err != nil {
		return failure(tool.ID, tool.Name, "building request: "+err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return failure(tool.ID, tool.Name, "calling endpoint: "+err.Error())
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return failure(tool.ID, tool.Name, "reading response: "+err.Error())
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return failure(tool.ID, tool.Name, fmt.Sprintf("endpoint returned status %d: %s", resp.StatusCode, payload))
	}

	return success(tool.ID, tool.Name, string(payload))
}

// executeServer invokes one function on the tool's server. The function
// name travels in the reserved "function" parameter; remaining parameters
// under "arguments" are passed through.
func (r *ToolRegistry) executeServer(ctx context.Context, tool domain.Tool, params map[string]any) domain.ExecutionResult {
	name, _ := params["function"].(string)
	if name == "" {
		return failure(tool.ID, tool.Name, `server-backed execution requires a "function" parameter`)
	}
	args, _ := params["arguments"].(map[string]any)

	client, err := r.pool.Get(ctx, tool)
	if err != nil {
		return failure(tool.ID, tool.Name, err.Error())
	}

	result, err := client.CallTool(ctx, name, args)
	if err != nil {
		return failure(tool.ID, name, err.Error())
	}
	return success(tool.ID, name, result)
}

func success(toolID, toolName, result string) domain.ExecutionResult {
	return domain.ExecutionResult{ToolID: toolID, ToolName: toolName, Success: true, Result: result}
}

func failure(toolID, toolName, errMsg string) domain.ExecutionResult {
	return domain.ExecutionResult{ToolID: toolID, ToolName: toolName, Success: false, Error: errMsg}
}
