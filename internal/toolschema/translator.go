// Package toolschema bridges the tool registry and the LLM wire: it turns
// server-backed tools into LLM-facing function schemas and routes the
// model's tool calls back to the owning server.
package toolschema

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/conduitchat/conduit/internal/domain"
	"github.com/conduitchat/conduit/internal/registry"
	"github.com/conduitchat/conduit/internal/toolpool"
	"github.com/conduitchat/conduit/pkg/llm/types"
)

// Translator resolves qualified schema names of the form
// {toolId}{sep}{serverToolName} where sep is the registry's qualified-name
// separator. Tool ids never contain the separator, so the first occurrence
// splits unambiguously.
type Translator struct {
	registry *registry.ToolRegistry
}

func New(reg *registry.ToolRegistry) *Translator {
	return &Translator{registry: reg}
}

// SchemasFor collects the function schemas of the requested server-backed
// tools, restricted to what the user may access. Denied and unknown tools
// are skipped with a log line rather than failing the turn. A server that
// cannot be reached or listed is skipped too, and reported in the second
// return value so callers can tell the user the toolbox was degraded.
func (t *Translator) SchemasFor(ctx context.Context, toolIDs []string, userID string) ([]types.ToolSchema, []string) {
	var schemas []types.ToolSchema
	var unavailable []string

	for _, result := range t.registry.ValidateAccess(toolIDs, userID) {
		if !result.Found || !result.HasAccess {
			log.Warn().
				Str("tool", result.ToolID).
				Str("user", userID).
				Str("reason", result.Reason).
				Msg("excluding tool from schema set")
			continue
		}

		tool, _ := t.registry.Get(result.ToolID)
		if tool.Kind != domain.ToolKindServer {
			log.Debug().Str("tool", tool.ID).Msg("tool is not server-backed, no schemas to expose")
			continue
		}

		client, err := t.registry.Pool().Get(ctx, tool)
		if err != nil {
			log.Warn().Err(err).Str("tool", tool.ID).Msg("tool server unreachable, excluding from schema set")
			unavailable = append(unavailable, tool.ID+": "+err.Error())
			continue
		}
		serverTools, err := client.ListTools(ctx)
		if err != nil {
			log.Warn().Err(err).Str("tool", tool.ID).Msg("tool server listing failed, excluding from schema set")
			unavailable = append(unavailable, tool.ID+": "+err.Error())
			continue
		}

		for _, st := range serverTools {
			params := map[string]any{
				"type":       st.InputSchema.Type,
				"properties": st.InputSchema.Properties,
				"required":   st.InputSchema.Required,
			}
			normalizeParameters(params)

			schemas = append(schemas, types.ToolSchema{
				Name:           tool.ID + registry.QualifiedNameSeparator + st.Name,
				Description:    st.Description,
				Parameters:     params,
				ToolID:         tool.ID,
				ServerToolName: st.Name,
			})
		}
	}

	return schemas, unavailable
}

// ExecuteCall routes a model-issued call back to its tool server. Access is
// re-checked against the live registry state; the earlier schema lookup is
// no grant.
func (t *Translator) ExecuteCall(ctx context.Context, call types.ToolCall, userID string) domain.ExecutionResult {
	toolID, fnName, ok := strings.Cut(call.Name, registry.QualifiedNameSeparator)
	if !ok || toolID == "" || fnName == "" {
		return domain.ExecutionResult{
			ToolID:  call.Name,
			Success: false,
			Error:   fmt.Sprintf("malformed tool call name %q", call.Name),
		}
	}

	tool, found := t.registry.Get(toolID)
	if !found {
		return domain.ExecutionResult{
			ToolID:   toolID,
			ToolName: fnName,
			Success:  false,
			Error:    fmt.Sprintf("tool %q not found", toolID),
		}
	}
	if tool.Kind != domain.ToolKindServer {
		return domain.ExecutionResult{
			ToolID:   toolID,
			ToolName: fnName,
			Success:  false,
			Error:    fmt.Sprintf("tool %q is not server-backed", toolID),
		}
	}

	results := t.registry.ValidateAccess([]string{toolID}, userID)
	if len(results) == 0 || !results[0].HasAccess {
		return domain.ExecutionResult{
			ToolID:   toolID,
			ToolName: fnName,
			Success:  false,
			Error:    fmt.Sprintf("access denied to tool %q", toolID),
		}
	}

	client, err := t.registry.Pool().Get(ctx, tool)
	if err != nil {
		return domain.ExecutionResult{ToolID: toolID, ToolName: fnName, Success: false, Error: err.Error()}
	}

	if err := t.validateArguments(ctx, client, fnName, call.Arguments); err != nil {
		return domain.ExecutionResult{
			ToolID:   toolID,
			ToolName: fnName,
			Success:  false,
			Error:    fmt.Sprintf("invalid arguments for %q: %v", fnName, err),
		}
	}

	log.Info().
		Str("tool", toolID).
		Str("function", fnName).
		Str("user", userID).
		Msg("executing tool call")

	result, err := client.CallTool(ctx, fnName, call.Arguments)
	if err != nil {
		return domain.ExecutionResult{ToolID: toolID, ToolName: fnName, Success: false, Error: err.Error()}
	}

	return domain.ExecutionResult{ToolID: toolID, ToolName: fnName, Success: true, Result: result}
}

// validateArguments checks model-produced arguments against the server's
// declared schema before dispatch. Schema lookup and compilation are
// best-effort: a server without a usable schema does not block execution,
// but arguments that fail a valid schema do.
func (t *Translator) validateArguments(ctx context.Context, client toolpool.Client, fnName string, args map[string]any) error {
	serverTools, err := client.ListTools(ctx)
	if err != nil {
		log.Debug().Err(err).Str("function", fnName).Msg("cannot list tools for validation, skipping")
		return nil
	}

	for _, st := range serverTools {
		if st.Name != fnName {
			continue
		}
		params := map[string]any{
			"type":       st.InputSchema.Type,
			"properties": st.InputSchema.Properties,
			"required":   st.InputSchema.Required,
		}
		normalizeParameters(params)

		schema := compileSchema(params)
		if schema == nil {
			return nil
		}
		if args == nil {
			args = map[string]any{}
		}
		return schema.Validate(roundTrip(args))
	}

	return fmt.Errorf("function %q not exposed by server", fnName)
}

// roundTrip re-decodes the argument map through JSON so numeric types match
// what the validator expects from decoded documents.
func roundTrip(args map[string]any) any {
	raw, err := json.Marshal(args)
	if err != nil {
		return args
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return args
	}
	return decoded
}

// compileSchema turns a normalized parameter map into a validator. Returns
// nil when the map does not compile, in which case validation is skipped.
func compileSchema(params map[string]any) *jsonschema.Schema {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil
	}
	schema, err := jsonschema.CompileString("tool.json", string(raw))
	if err != nil {
		log.Debug().Err(err).Msg("tool parameter schema does not compile, skipping validation")
		return nil
	}
	return schema
}

// normalizeParameters fills the structural defaults some servers omit so
// every provider wire sees a well-formed object schema.
func normalizeParameters(params map[string]any) {
	if typ, _ := params["type"].(string); typ == "" {
		params["type"] = "object"
	}
	if props, _ := params["properties"].(map[string]any); props == nil {
		params["properties"] = map[string]any{}
	}
	if req, _ := params["required"].([]string); req == nil {
		params["required"] = []string{}
	}
}
