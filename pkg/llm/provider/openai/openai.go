// Package openai implements the provider adapter for OpenAI-style chat
// completion backends ("data: " SSE framing, [DONE] sentinel,
// delta.tool_calls fragments).
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
	goopenai "github.com/sashabaranov/go-openai"

	"github.com/conduitchat/conduit/pkg/llm/provider"
	"github.com/conduitchat/conduit/pkg/llm/types"
)

const defaultTemperature = 0.7

// Adapter issues chat completion requests against an OpenAI-compatible
// endpoint and owns the SSE parsing of the response body.
type Adapter struct {
	client *http.Client
}

func New() *Adapter {
	return &Adapter{client: http.DefaultClient}
}

// NewWithClient builds an adapter with a custom HTTP client.
func NewWithClient(client *http.Client) *Adapter {
	return &Adapter{client: client}
}

func (a *Adapter) Family() provider.Family {
	return provider.FamilyOpenAI
}

// CompleteStream implements provider.Adapter.
func (a *Adapter) CompleteStream(ctx context.Context, req provider.Request) <-chan types.StreamEvent {
	eventChan := make(chan types.StreamEvent, 64)

	go func() {
		defer close(eventChan)

		body, err := json.Marshal(buildRequest(req))
		if err != nil {
			emit(ctx, eventChan, types.NewStreamErrorEvent(err, "openai: encode request: "+err.Error()))
			return
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.Config.Endpoint, bytes.NewReader(body))
		if err != nil {
			emit(ctx, eventChan, types.NewStreamErrorEvent(err, "openai: build request: "+err.Error()))
			return
		}
		httpReq.Header.Set("Authorization", "Bearer "+req.Config.APIKey)
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := a.client.Do(httpReq)
		if err != nil {
			emit(ctx, eventChan, types.NewStreamErrorEvent(err, "openai: request failed: "+err.Error()))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			err := provider.HTTPError(resp)
			emit(ctx, eventChan, types.NewStreamErrorEvent(err, "openai: "+err.Error()))
			return
		}

		StreamChunks(ctx, eventChan, resp.Body)
	}()

	return eventChan
}

func buildRequest(req provider.Request) goopenai.ChatCompletionRequest {
	chatReq := goopenai.ChatCompletionRequest{
		Model: req.Config.Model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: req.Message},
		},
		MaxTokens:   req.Config.MaxTokens,
		Temperature: defaultTemperature,
		Stream:      true,
	}

	if len(req.Schemas) > 0 {
		chatReq.Tools = ConvertSchemas(req.Schemas)
		chatReq.ToolChoice = "auto"
	}

	return chatReq
}

// ConvertSchemas renders translated tool schemas in OpenAI function-calling
// format. Shared with the Azure adapter, whose payload differs only in
// headers and the absent model field.
func ConvertSchemas(schemas []types.ToolSchema) []goopenai.Tool {
	tools := make([]goopenai.Tool, 0, len(schemas))
	for _, s := range schemas {
		tools = append(tools, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.Parameters,
			},
		})
	}
	return tools
}

// StreamChunks parses the SSE body and emits uniform deltas until the
// [DONE] sentinel or EOF. Non-JSON payloads are transient noise in chunked
// transport and are skipped without terminating the stream. Exported for
// the Azure adapter, which speaks the same chunk format.
func StreamChunks(ctx context.Context, eventChan chan<- types.StreamEvent, body io.Reader) {
	dec := provider.NewSSEDecoder(body)

	for {
		data, err := dec.NextData()
		if err == io.EOF {
			return
		}
		if err != nil {
			emit(ctx, eventChan, types.NewStreamErrorEvent(err, "openai: read stream: "+err.Error()))
			return
		}

		if data == "[DONE]" {
			return
		}

		var chunk goopenai.ChatCompletionStreamResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			log.Debug().Str("payload", data).Msg("skipping malformed stream event")
			continue
		}

		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]

		if choice.Delta.Content != "" {
			if !emit(ctx, eventChan, types.NewTextDeltaEvent(choice.Delta.Content)) {
				return
			}
		}

		for _, tc := range choice.Delta.ToolCalls {
			index := 0
			if tc.Index != nil {
				index = *tc.Index
			}
			ev := types.NewToolCallDeltaEvent(index, tc.ID, tc.Function.Name, tc.Function.Arguments)
			if !emit(ctx, eventChan, ev) {
				return
			}
		}

		if choice.FinishReason != "" {
			if !emit(ctx, eventChan, types.NewFinishEvent(string(choice.FinishReason))) {
				return
			}
		}
	}
}

func emit(ctx context.Context, ch chan<- types.StreamEvent, ev types.StreamEvent) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
