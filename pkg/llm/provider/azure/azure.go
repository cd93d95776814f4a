// Package azure implements the provider adapter for Azure OpenAI
// deployments. The streaming chunk format is identical to OpenAI's; the
// differences are the api-key header and the model being fixed by the
// deployment URL rather than the payload.
package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/conduitchat/conduit/pkg/llm/provider"
	"github.com/conduitchat/conduit/pkg/llm/provider/openai"
	"github.com/conduitchat/conduit/pkg/llm/types"
)

const defaultTemperature = 0.7

type Adapter struct {
	client *http.Client
}

func New() *Adapter {
	return &Adapter{client: http.DefaultClient}
}

func NewWithClient(client *http.Client) *Adapter {
	return &Adapter{client: client}
}

func (a *Adapter) Family() provider.Family {
	return provider.FamilyAzure
}

// chatRequest is the Azure payload. The deployment endpoint already pins
// the model, so no model field is sent.
type chatRequest struct {
	Messages    []goopenai.ChatCompletionMessage `json:"messages"`
	MaxTokens   int                              `json:"max_tokens,omitempty"`
	Temperature float32                          `json:"temperature"`
	Stream      bool                             `json:"stream"`
	Tools       []goopenai.Tool                  `json:"tools,omitempty"`
	ToolChoice  string                           `json:"tool_choice,omitempty"`
}

// CompleteStream implements provider.Adapter.
func (a *Adapter) CompleteStream(ctx context.Context, req provider.Request) <-chan types.StreamEvent {
	eventChan := make(chan types.StreamEvent, 64)

	go func() {
		defer close(eventChan)

		payload := chatRequest{
			Messages: []goopenai.ChatCompletionMessage{
				{Role: goopenai.ChatMessageRoleUser, Content: req.Message},
			},
			MaxTokens:   req.Config.MaxTokens,
			Temperature: defaultTemperature,
			Stream:      true,
		}
		if len(req.Schemas) > 0 {
			payload.Tools = openai.ConvertSchemas(req.Schemas)
			payload.ToolChoice = "auto"
		}

		body, err := json.Marshal(payload)
		if err != nil {
			sendError(ctx, eventChan, err, "azure: encode request: "+err.Error())
			return
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.Config.Endpoint, bytes.NewReader(body))
		if err != nil {
			sendError(ctx, eventChan, err, "azure: build request: "+err.Error())
			return
		}
		httpReq.Header.Set("api-key", req.Config.APIKey)
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := a.client.Do(httpReq)
		if err != nil {
			sendError(ctx, eventChan, err, "azure: request failed: "+err.Error())
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			err := provider.HTTPError(resp)
			sendError(ctx, eventChan, err, "azure: "+err.Error())
			return
		}

		openai.StreamChunks(ctx, eventChan, resp.Body)
	}()

	return eventChan
}

func sendError(ctx context.Context, ch chan<- types.StreamEvent, err error, message string) {
	select {
	case ch <- types.NewStreamErrorEvent(err, message):
	case <-ctx.Done():
	}
}
