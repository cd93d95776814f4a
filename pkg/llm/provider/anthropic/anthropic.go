// Package anthropic implements the provider adapter for Anthropic-style
// messages endpoints. The stream framing differs from OpenAI's: typed
// events (content_block_start, content_block_delta, message_delta,
// message_stop), text under delta.text and tool-call argument fragments
// under delta.partial_json.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/conduitchat/conduit/pkg/llm/provider"
	"github.com/conduitchat/conduit/pkg/llm/types"
)

const apiVersion = "2023-06-01"

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
	return provider.FamilyAnthropic
}

type chatRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []chatMessage `json:"messages"`
	Stream    bool          `json:"stream"`
	Tools     []wireTool    `json:"tools,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// streamEvent is the union of the event payload fields this adapter reads.
type streamEvent struct {
	Type         string `json:"type"`
	Index        int    `json:"index"`
	ContentBlock struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"content_block"`
	Delta struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
		StopReason  string `json:"stop_reason"`
	} `json:"delta"`
}

// CompleteStream implements provider.Adapter.
func (a *Adapter) CompleteStream(ctx context.Context, req provider.Request) <-chan types.StreamEvent {
	eventChan := make(chan types.StreamEvent, 64)

	go func() {
		defer close(eventChan)

		payload := chatRequest{
			Model:     req.Config.Model,
			MaxTokens: req.Config.MaxTokens,
			Messages:  []chatMessage{{Role: "user", Content: req.Message}},
			Stream:    true,
		}
		for _, s := range req.Schemas {
			payload.Tools = append(payload.Tools, wireTool{
				Name:        s.Name,
				Description: s.Description,
				InputSchema: s.Parameters,
			})
		}

		body, err := json.Marshal(payload)
		if err != nil {
			emit(ctx, eventChan, types.NewStreamErrorEvent(err, "anthropic: encode request: "+err.Error()))
			return
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.Config.Endpoint, bytes.NewReader(body))
		if err != nil {
			emit(ctx, eventChan, types.NewStreamErrorEvent(err, "anthropic: build request: "+err.Error()))
			return
		}
		httpReq.Header.Set("x-api-key", req.Config.APIKey)
		httpReq.Header.Set("anthropic-version", apiVersion)
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := a.client.Do(httpReq)
		if err != nil {
			emit(ctx, eventChan, types.NewStreamErrorEvent(err, "anthropic: request failed: "+err.Error()))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			err := provider.HTTPError(resp)
			emit(ctx, eventChan, types.NewStreamErrorEvent(err, "anthropic: "+err.Error()))
			return
		}

		a.streamEvents(ctx, eventChan, resp.Body)
	}()

	return eventChan
}

func (a *Adapter) streamEvents(ctx context.Context, eventChan chan<- types.StreamEvent, body io.Reader) {
	dec := provider.NewSSEDecoder(body)

	for {
		data, err := dec.NextData()
		if err == io.EOF {
			return
		}
		if err != nil {
			emit(ctx, eventChan, types.NewStreamErrorEvent(err, "anthropic: read stream: "+err.Error()))
			return
		}

		var event streamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			log.Debug().Str("payload", data).Msg("skipping malformed stream event")
			continue
		}

		switch event.Type {
		case "content_block_start":
			if event.ContentBlock.Type == "tool_use" {
				ev := types.NewToolCallDeltaEvent(event.Index, event.ContentBlock.ID, event.ContentBlock.Name, "")
				if !emit(ctx, eventChan, ev) {
					return
				}
			}

		case "content_block_delta":
			switch event.Delta.Type {
			case "text_delta":
				if event.Delta.Text != "" {
					if !emit(ctx, eventChan, types.NewTextDeltaEvent(event.Delta.Text)) {
						return
					}
				}
			case "input_json_delta":
				if event.Delta.PartialJSON != "" {
					ev := types.NewToolCallDeltaEvent(event.Index, "", "", event.Delta.PartialJSON)
					if !emit(ctx, eventChan, ev) {
						return
					}
				}
			}

		case "message_delta":
			if event.Delta.StopReason != "" {
				if !emit(ctx, eventChan, types.NewFinishEvent(mapStopReason(event.Delta.StopReason))) {
					return
				}
			}

		case "message_stop":
			return
		}
	}
}

// mapStopReason translates Anthropic stop reasons onto the shared finish
// reasons so the orchestrator can treat all families uniformly.
func mapStopReason(reason string) string {
	switch reason {
	case "end_turn", "stop_sequence":
		return types.FinishReasonStop
	case "max_tokens":
		return types.FinishReasonLength
	case "tool_use":
		return types.FinishReasonToolCalls
	default:
		return reason
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
