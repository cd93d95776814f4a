// Package provider defines the uniform adapter contract that every LLM
// backend family implements, plus the shared SSE plumbing the concrete
// adapters are built on.
package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/conduitchat/conduit/pkg/llm/types"
)

// Family is the closed set of supported backend families. The family is
// resolved to an Adapter once at provider-registry load time, never
// re-dispatched by string comparison per request.
type Family string

const (
	FamilyOpenAI    Family = "openai"
	FamilyAnthropic Family = "anthropic"
	FamilyAzure     Family = "azure-openai"
	FamilyOllama    Family = "ollama"
)

// Config carries the per-provider wire settings an adapter needs to issue a
// completion request. It is loaded once from static configuration and
// read-only thereafter.
type Config struct {
	Model     string
	Endpoint  string
	APIKey    string
	MaxTokens int
}

// Request is a uniform completion request.
type Request struct {
	Message string
	Config  Config
	Schemas []types.ToolSchema
}

// Adapter translates a uniform completion request into a provider's wire
// request and the provider's streaming wire format into a uniform sequence
// of stream events.
//
// CompleteStream never returns an error: network and protocol failures are
// emitted as a single terminal StreamErrorEvent, after which the channel is
// closed. Malformed individual stream events are skipped silently.
type Adapter interface {
	Family() Family
	CompleteStream(ctx context.Context, req Request) <-chan types.StreamEvent
}

// maxErrorBodyBytes caps how much of a non-2xx response body is read into
// an error message.
const maxErrorBodyBytes = 8 << 10

// HTTPError renders a non-2xx provider response as an error suitable for a
// terminal StreamErrorEvent.
func HTTPError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	return fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(body))
}
