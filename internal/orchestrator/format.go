package orchestrator

import (
	"encoding/json"
	"fmt"

	"github.com/conduitchat/conduit/internal/domain"
	"github.com/conduitchat/conduit/pkg/llm/types"
)

// Progress notifications are markdown text blocks interleaved with the
// model's own output, so plain-text consumers still get a readable
// transcript of what ran.

func formatExecutionHeader(count int) string {
	return fmt.Sprintf("\n\n🔧 **Executing %d tool call(s):**\n", count)
}

func formatCallStart(ordinal int, call types.ToolCall) string {
	args, err := json.Marshal(call.Arguments)
	if err != nil {
		args = []byte("{}")
	}
	return fmt.Sprintf("\n**%d. Tool:** `%s`\n**Arguments:** `%s`\n", ordinal, call.Name, args)
}

func formatCallResult(result domain.ExecutionResult) string {
	if result.Success {
		out := result.Result
		if out == "" {
			out = "Success"
		}
		return fmt.Sprintf("**✅ Result:** %s\n", out)
	}
	errMsg := result.Error
	if errMsg == "" {
		errMsg = "Unknown error"
	}
	return fmt.Sprintf("**❌ Error:** %s\n", errMsg)
}

func formatUnavailableTool(note string) string {
	return fmt.Sprintf("\n\n⚠️ **Tool unavailable:** %s\n\n", note)
}

func formatResolveError(err error) string {
	return fmt.Sprintf("\n\n🚫 **Error**: %v\n\n", err)
}

func formatExecutionFooter() string {
	return "\n**Tool execution completed.**\n\n"
}
