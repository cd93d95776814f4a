package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduitchat/conduit/pkg/llm/provider"
	"github.com/conduitchat/conduit/pkg/llm/types"
)

func collect(ch <-chan types.StreamEvent) []types.StreamEvent {
	var events []types.StreamEvent
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func sseServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, body)
	}))
}

func TestCompleteStream_TextDeltas(t *testing.T) {
	srv := sseServer(t, ""+
		`data: {"type":"message_start"}`+"\n\n"+
		`data: {"type":"content_block_start","index":0,"content_block":{"type":"text"}}`+"\n\n"+
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hel"}}`+"\n\n"+
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"lo"}}`+"\n\n"+
		`data: {"type":"message_delta","delta":{"stop_reason":"end_turn"}}`+"\n\n"+
		`data: {"type":"message_stop"}`+"\n\n")
	defer srv.Close()

	adapter := New()
	events := collect(adapter.CompleteStream(context.Background(), provider.Request{
		Message: "hi",
		Config:  provider.Config{Endpoint: srv.URL, Model: "claude-3", MaxTokens: 1024},
	}))

	var text strings.Builder
	for _, ev := range events {
		if d, ok := ev.(*types.TextDeltaEvent); ok {
			text.WriteString(d.Delta)
		}
	}
	assert.Equal(t, "Hello", text.String())

	finish, ok := events[len(events)-1].(*types.FinishEvent)
	require.True(t, ok)
	assert.Equal(t, types.FinishReasonStop, finish.Reason)
}

func TestCompleteStream_ToolUseBlocks(t *testing.T) {
	srv := sseServer(t, ""+
		`data: {"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_1","name":"search_query"}}`+"\n\n"+
		`data: {"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"q\":"}}`+"\n\n"+
		`data: {"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"\"go\"}"}}`+"\n\n"+
		`data: {"type":"message_delta","delta":{"stop_reason":"tool_use"}}`+"\n\n"+
		`data: {"type":"message_stop"}`+"\n\n")
	defer srv.Close()

	adapter := New()
	events := collect(adapter.CompleteStream(context.Background(), provider.Request{
		Message: "hi",
		Config:  provider.Config{Endpoint: srv.URL},
	}))

	var deltas []*types.ToolCallDeltaEvent
	var finish *types.FinishEvent
	for _, ev := range events {
		switch e := ev.(type) {
		case *types.ToolCallDeltaEvent:
			deltas = append(deltas, e)
		case *types.FinishEvent:
			finish = e
		}
	}

	require.Len(t, deltas, 3)
	assert.Equal(t, "toolu_1", deltas[0].ID)
	assert.Equal(t, "search_query", deltas[0].Name)
	assert.Equal(t, 1, deltas[0].Index)

	var args strings.Builder
	for _, d := range deltas {
		args.WriteString(d.Arguments)
	}
	assert.Equal(t, `{"q":"go"}`, args.String())

	require.NotNil(t, finish)
	assert.Equal(t, types.FinishReasonToolCalls, finish.Reason)
}

func TestCompleteStream_MalformedEventsSkipped(t *testing.T) {
	srv := sseServer(t, ""+
		"data: garbage\n\n"+
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"ok"}}`+"\n\n"+
		`data: {"type":"message_stop"}`+"\n\n")
	defer srv.Close()

	adapter := New()
	events := collect(adapter.CompleteStream(context.Background(), provider.Request{
		Message: "hi",
		Config:  provider.Config{Endpoint: srv.URL},
	}))

	require.Len(t, events, 1)
	assert.Equal(t, "ok", events[0].(*types.TextDeltaEvent).Delta)
}

func TestCompleteStream_SetsWireHeaders(t *testing.T) {
	var gotKey, gotVersion string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		_, _ = io.WriteString(w, `data: {"type":"message_stop"}`+"\n\n")
	}))
	defer srv.Close()

	adapter := New()
	collect(adapter.CompleteStream(context.Background(), provider.Request{
		Message: "hi",
		Config:  provider.Config{Endpoint: srv.URL, APIKey: "ant-key", Model: "claude-3", MaxTokens: 512},
		Schemas: []types.ToolSchema{{Name: "search_query", Parameters: map[string]any{"type": "object"}}},
	}))

	assert.Equal(t, "ant-key", gotKey)
	assert.Equal(t, apiVersion, gotVersion)
	assert.Equal(t, "claude-3", gotBody["model"])
	assert.Equal(t, float64(512), gotBody["max_tokens"])

	tools, ok := gotBody["tools"].([]any)
	require.True(t, ok)
	require.Len(t, tools, 1)
	tool := tools[0].(map[string]any)
	assert.Equal(t, "search_query", tool["name"])
	assert.Contains(t, tool, "input_schema")
}

func TestMapStopReason(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "end_turn", want: types.FinishReasonStop},
		{in: "stop_sequence", want: types.FinishReasonStop},
		{in: "max_tokens", want: types.FinishReasonLength},
		{in: "tool_use", want: types.FinishReasonToolCalls},
		{in: "mystery", want: "mystery"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mapStopReason(tt.in))
	}
}

func TestCompleteStream_HTTPFailureIsTerminalErrorDelta(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"type":"overloaded_error"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	adapter := New()
	events := collect(adapter.CompleteStream(context.Background(), provider.Request{
		Message: "hi",
		Config:  provider.Config{Endpoint: srv.URL},
	}))

	require.Len(t, events, 1)
	assert.Equal(t, types.EventTypeStreamError, events[0].GetType())
}
