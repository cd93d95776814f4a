// Package orchestrator drives one chat turn end to end: request
// validation, schema preparation, provider streaming, tool-call
// resolution, and history finalization.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/conduitchat/conduit/internal/history"
	"github.com/conduitchat/conduit/internal/registry"
	"github.com/conduitchat/conduit/internal/toolschema"
	"github.com/conduitchat/conduit/pkg/llm/provider"
	"github.com/conduitchat/conduit/pkg/llm/types"
)

// ChatRequest is one inbound chat turn.
type ChatRequest struct {
	Message         string   `json:"message"`
	ProviderID      string   `json:"provider_id"`
	SelectedToolIDs []string `json:"selected_tool_ids,omitempty"`
}

// ChatResult is the synchronous form of a completed turn.
type ChatResult struct {
	Content      string   `json:"content"`
	ProviderUsed string   `json:"provider_used"`
	ToolsUsed    []string `json:"tools_used"`
}

var (
	ErrEmptyMessage  = errors.New("message must not be empty")
	ErrEmptyProvider = errors.New("provider id must not be empty")
)

// AccessDeniedError rejects a turn before any streaming starts.
type AccessDeniedError struct {
	ProviderID string
	Reason     string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("provider %q: %s", e.ProviderID, e.Reason)
}

// Orchestrator is shared by all concurrent turns; it holds no per-turn
// state.
type Orchestrator struct {
	providers  *registry.ProviderRegistry
	tools      *registry.ToolRegistry
	translator *toolschema.Translator
	history    *history.Log
}

func New(providers *registry.ProviderRegistry, tools *registry.ToolRegistry, translator *toolschema.Translator, hist *history.Log) *Orchestrator {
	return &Orchestrator{
		providers:  providers,
		tools:      tools,
		translator: translator,
		history:    hist,
	}
}

// History exposes the chat log for the history endpoint.
func (o *Orchestrator) History() *history.Log {
	return o.history
}

// ChatStream runs one turn and streams its events. Validation failures are
// returned synchronously before any event flows; after that every outcome,
// including a provider stream error, travels the channel and ends with a
// TurnCompleteEvent. The channel is closed after the terminal event.
//
// When the caller's context is cancelled mid-turn, delivery stops but
// already-dispatched tool executions run to completion and the turn is
// still recorded.
func (o *Orchestrator) ChatStream(ctx context.Context, req ChatRequest, userID string) (<-chan types.StreamEvent, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}
	if req.ProviderID == "" {
		return nil, ErrEmptyProvider
	}

	validation := o.providers.Validate(req.ProviderID, userID)
	if !validation.HasAccess {
		return nil, &AccessDeniedError{ProviderID: req.ProviderID, Reason: validation.Reason}
	}

	adapter, providerDef, err := o.providers.Adapter(req.ProviderID)
	if err != nil {
		return nil, err
	}

	out := make(chan types.StreamEvent)
	go o.runTurn(ctx, req, userID, adapter, providerDef.ID, providerDef.WireConfig(), out)
	return out, nil
}

// ChatSync runs a turn to completion and returns the aggregate result.
func (o *Orchestrator) ChatSync(ctx context.Context, req ChatRequest, userID string) (*ChatResult, error) {
	events, err := o.ChatStream(ctx, req, userID)
	if err != nil {
		return nil, err
	}

	for ev := range events {
		if done, ok := ev.(*types.TurnCompleteEvent); ok {
			return &ChatResult{
				Content:      done.Content,
				ProviderUsed: done.Provider,
				ToolsUsed:    done.ToolsUsed,
			}, nil
		}
	}
	return nil, errors.New("stream ended without completion event")
}

func (o *Orchestrator) runTurn(ctx context.Context, req ChatRequest, userID string, adapter provider.Adapter, providerID string, cfg provider.Config, out chan<- types.StreamEvent) {
	defer close(out)

	var (
		content      strings.Builder
		streamFailed bool
		delivering   = true
	)

	// send forwards an event unless the caller is gone; the turn itself
	// keeps going either way.
	send := func(ev types.StreamEvent) {
		if !delivering {
			return
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			delivering = false
			log.Debug().Str("user", userID).Msg("caller gone, continuing turn without delivery")
		}
	}

	finalize := func(toolsUsed []string) {
		o.history.Append(userID, history.Entry{
			UserMessage:       req.Message,
			AssistantResponse: content.String(),
			Provider:          providerID,
			ToolsUsed:         toolsUsed,
		})
		send(types.NewTurnCompleteEvent(content.String(), providerID, toolsUsed, streamFailed))
	}

	toolsUsed := o.authorizedTools(req.SelectedToolIDs, userID)

	schemas, unavailable := o.translator.SchemasFor(ctx, toolsUsed, userID)
	for _, note := range unavailable {
		text := formatUnavailableTool(note)
		content.WriteString(text)
		send(types.NewToolProgressEvent(text))
	}

	accum := newAccumulator()
	finishReason := ""

	events := adapter.CompleteStream(ctx, provider.Request{
		Message: req.Message,
		Config:  cfg,
		Schemas: schemas,
	})

	for ev := range events {
		switch e := ev.(type) {
		case *types.TextDeltaEvent:
			content.WriteString(e.Delta)
			send(e)
		case *types.ToolCallDeltaEvent:
			accum.add(e)
		case *types.FinishEvent:
			finishReason = e.Reason
			log.Debug().Str("provider", providerID).Str("reason", e.Reason).Msg("stream finished")
		case *types.StreamErrorEvent:
			log.Error().Err(e.Err).Str("provider", providerID).Msg("provider stream error")
			streamFailed = true
			send(e)
		}
	}

	// Fragments are complete only once the stream closes with a tool_calls
	// finish. Anything buffered after a truncated or plain-stop stream could
	// be a parseable prefix of the real arguments, so it never executes.
	if !accum.empty() {
		if finishReason == types.FinishReasonToolCalls {
			// Executions already owed to the model survive a disconnect.
			execCtx := context.WithoutCancel(ctx)
			o.executeCalls(execCtx, accum, userID, &content, send)
		} else {
			log.Warn().
				Str("provider", providerID).
				Str("reason", finishReason).
				Int("fragments", len(accum.fragments)).
				Msg("discarding tool call fragments without tool_calls finish")
		}
	}

	finalize(toolsUsed)
}

// authorizedTools intersects the requested ids with the caller's access;
// unknown and denied ids are dropped.
func (o *Orchestrator) authorizedTools(requested []string, userID string) []string {
	authorized := make([]string, 0, len(requested))
	for _, result := range o.tools.ValidateAccess(requested, userID) {
		if result.Found && result.HasAccess {
			authorized = append(authorized, result.ToolID)
		}
	}
	return authorized
}

// executeCalls runs the accumulated tool calls sequentially in first-seen
// order, streaming a progress block per call. Progress text is also folded
// into the recorded response so the transcript matches what was streamed.
func (o *Orchestrator) executeCalls(ctx context.Context, accum *accumulator, userID string, content *strings.Builder, send func(types.StreamEvent)) {
	emitText := func(text string) {
		content.WriteString(text)
		send(types.NewToolProgressEvent(text))
	}

	calls, errs := accum.resolve()
	for _, err := range errs {
		emitText(formatResolveError(err))
	}
	if len(calls) == 0 {
		return
	}

	emitText(formatExecutionHeader(len(calls)))

	for i, call := range calls {
		emitText(formatCallStart(i+1, call))
		result := o.translator.ExecuteCall(ctx, call, userID)
		emitText(formatCallResult(result))
	}

	emitText(formatExecutionFooter())
}
