// Package ollama implements the provider adapter for local Ollama-style
// model servers. The wire format is newline-delimited JSON rather than SSE:
// each line carries a "response" text fragment and a "done" flag.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/conduitchat/conduit/pkg/llm/provider"
	"github.com/conduitchat/conduit/pkg/llm/types"
)

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
	return provider.FamilyOllama
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// CompleteStream implements provider.Adapter. Local models have no
// function-calling support, so supplied schemas are ignored.
func (a *Adapter) CompleteStream(ctx context.Context, req provider.Request) <-chan types.StreamEvent {
	eventChan := make(chan types.StreamEvent, 64)

	go func() {
		defer close(eventChan)

		if len(req.Schemas) > 0 {
			log.Debug().Int("schemas", len(req.Schemas)).Msg("ollama adapter ignoring tool schemas")
		}

		body, err := json.Marshal(generateRequest{
			Model:  req.Config.Model,
			Prompt: req.Message,
			Stream: true,
		})
		if err != nil {
			emit(ctx, eventChan, types.NewStreamErrorEvent(err, "ollama: encode request: "+err.Error()))
			return
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.Config.Endpoint, bytes.NewReader(body))
		if err != nil {
			emit(ctx, eventChan, types.NewStreamErrorEvent(err, "ollama: build request: "+err.Error()))
			return
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := a.client.Do(httpReq)
		if err != nil {
			emit(ctx, eventChan, types.NewStreamErrorEvent(err, "ollama: request failed: "+err.Error()))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			err := provider.HTTPError(resp)
			emit(ctx, eventChan, types.NewStreamErrorEvent(err, "ollama: "+err.Error()))
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

		for scanner.Scan() {
			line := scanner.Bytes()
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}

			var chunk generateChunk
			if err := json.Unmarshal(line, &chunk); err != nil {
				log.Debug().Str("payload", string(line)).Msg("skipping malformed stream line")
				continue
			}

			if chunk.Response != "" {
				if !emit(ctx, eventChan, types.NewTextDeltaEvent(chunk.Response)) {
					return
				}
			}

			if chunk.Done {
				emit(ctx, eventChan, types.NewFinishEvent(types.FinishReasonStop))
				return
			}
		}

		if err := scanner.Err(); err != nil && err != io.EOF {
			emit(ctx, eventChan, types.NewStreamErrorEvent(err, "ollama: read stream: "+err.Error()))
		}
	}()

	return eventChan
}

func emit(ctx context.Context, ch chan<- types.StreamEvent, ev types.StreamEvent) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
