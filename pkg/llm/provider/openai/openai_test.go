package openai

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

func sseServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, body)
	}))
}

func collect(ch <-chan types.StreamEvent) []types.StreamEvent {
	var events []types.StreamEvent
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func textOf(events []types.StreamEvent) string {
	var sb strings.Builder
	for _, ev := range events {
		if text, ok := ev.(*types.TextDeltaEvent); ok {
			sb.WriteString(text.Delta)
		}
	}
	return sb.String()
}

func TestCompleteStream_ReassemblesTextDeltas(t *testing.T) {
	srv := sseServer(t, ""+
		`data: {"choices":[{"delta":{"content":"Hel"}}]}`+"\n\n"+
		`data: {"choices":[{"delta":{"content":"lo"}}]}`+"\n\n"+
		`data: {"choices":[{"delta":{},"finish_reason":"stop"}]}`+"\n\n"+
		"data: [DONE]\n\n")
	defer srv.Close()

	adapter := New()
	events := collect(adapter.CompleteStream(context.Background(), provider.Request{
		Message: "hi",
		Config:  provider.Config{Endpoint: srv.URL, Model: "gpt-4"},
	}))

	assert.Equal(t, "Hello", textOf(events))

	last := events[len(events)-1]
	finish, ok := last.(*types.FinishEvent)
	require.True(t, ok)
	assert.Equal(t, types.FinishReasonStop, finish.Reason)
}

func TestCompleteStream_ExactlyTwoDeltasBeforeDone(t *testing.T) {
	srv := sseServer(t, ""+
		`data: {"choices":[{"delta":{"content":"Hel"}}]}`+"\n\n"+
		`data: {"choices":[{"delta":{"content":"lo"}}]}`+"\n\n"+
		"data: [DONE]\n\n")
	defer srv.Close()

	adapter := New()
	events := collect(adapter.CompleteStream(context.Background(), provider.Request{
		Message: "hi",
		Config:  provider.Config{Endpoint: srv.URL},
	}))

	require.Len(t, events, 2)
	assert.Equal(t, "Hel", events[0].(*types.TextDeltaEvent).Delta)
	assert.Equal(t, "lo", events[1].(*types.TextDeltaEvent).Delta)
}

func TestCompleteStream_MalformedLinesSkipped(t *testing.T) {
	srv := sseServer(t, ""+
		`data: {"choices":[{"delta":{"content":"ok "}}]}`+"\n\n"+
		"data: this is not json\n\n"+
		`data: {"choices":[{"delta":{"content":"still ok"}}]}`+"\n\n"+
		"data: [DONE]\n\n")
	defer srv.Close()

	adapter := New()
	events := collect(adapter.CompleteStream(context.Background(), provider.Request{
		Message: "hi",
		Config:  provider.Config{Endpoint: srv.URL},
	}))

	assert.Equal(t, "ok still ok", textOf(events))
	for _, ev := range events {
		assert.NotEqual(t, types.EventTypeStreamError, ev.GetType())
	}
}

func TestCompleteStream_ToolCallFragments(t *testing.T) {
	srv := sseServer(t, ""+
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"search_query","arguments":""}}]}}]}`+"\n\n"+
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"q\":"}}]}}]}`+"\n\n"+
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"go\"}"}}]}}]}`+"\n\n"+
		`data: {"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`+"\n\n"+
		"data: [DONE]\n\n")
	defer srv.Close()

	adapter := New()
	events := collect(adapter.CompleteStream(context.Background(), provider.Request{
		Message: "hi",
		Config:  provider.Config{Endpoint: srv.URL},
	}))

	var deltas []*types.ToolCallDeltaEvent
	for _, ev := range events {
		if d, ok := ev.(*types.ToolCallDeltaEvent); ok {
			deltas = append(deltas, d)
		}
	}
	require.Len(t, deltas, 3)
	assert.Equal(t, "call_1", deltas[0].ID)
	assert.Equal(t, "search_query", deltas[0].Name)

	var args strings.Builder
	for _, d := range deltas {
		args.WriteString(d.Arguments)
	}
	assert.Equal(t, `{"q":"go"}`, args.String())
}

func TestCompleteStream_MissingIndexDefaultsToZero(t *testing.T) {
	srv := sseServer(t, ""+
		`data: {"choices":[{"delta":{"tool_calls":[{"id":"call_1","function":{"name":"fn","arguments":"{}"}}]}}]}`+"\n\n"+
		"data: [DONE]\n\n")
	defer srv.Close()

	adapter := New()
	events := collect(adapter.CompleteStream(context.Background(), provider.Request{
		Message: "hi",
		Config:  provider.Config{Endpoint: srv.URL},
	}))

	require.Len(t, events, 1)
	delta, ok := events[0].(*types.ToolCallDeltaEvent)
	require.True(t, ok)
	assert.Equal(t, 0, delta.Index)
}

func TestCompleteStream_HTTPFailureIsTerminalErrorDelta(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	adapter := New()
	events := collect(adapter.CompleteStream(context.Background(), provider.Request{
		Message: "hi",
		Config:  provider.Config{Endpoint: srv.URL},
	}))

	require.Len(t, events, 1)
	errEvent, ok := events[0].(*types.StreamErrorEvent)
	require.True(t, ok)
	assert.Contains(t, errEvent.Message, "401")
}

func TestCompleteStream_NetworkFailureIsTerminalErrorDelta(t *testing.T) {
	adapter := New()
	events := collect(adapter.CompleteStream(context.Background(), provider.Request{
		Message: "hi",
		Config:  provider.Config{Endpoint: "http://127.0.0.1:1/v1/chat/completions"},
	}))

	require.Len(t, events, 1)
	assert.Equal(t, types.EventTypeStreamError, events[0].GetType())
}

func TestCompleteStream_SendsAuthAndSchemas(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	adapter := New()
	collect(adapter.CompleteStream(context.Background(), provider.Request{
		Message: "hi",
		Config:  provider.Config{Endpoint: srv.URL, APIKey: "sk-test", Model: "gpt-4"},
		Schemas: []types.ToolSchema{{Name: "search_query", Parameters: map[string]any{"type": "object"}}},
	}))

	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "gpt-4", gotBody["model"])
	assert.Equal(t, true, gotBody["stream"])
	require.Len(t, gotBody["tools"], 1)
	assert.Equal(t, "auto", gotBody["tool_choice"])
}
