package orchestrator

import (
	"encoding/json"
	"fmt"

	"github.com/conduitchat/conduit/pkg/llm/types"
)

// fragment is one tool call under assembly. Providers may split the id,
// name, and argument text across any number of deltas; every field is
// append-only until the stream finishes.
type fragment struct {
	id        string
	name      string
	arguments string
}

// accumulator reassembles streamed tool-call fragments keyed by the
// provider-assigned index. First-seen order of indexes is preserved so
// calls execute in the order the model issued them.
type accumulator struct {
	fragments map[int]*fragment
	order     []int
}

func newAccumulator() *accumulator {
	return &accumulator{fragments: make(map[int]*fragment)}
}

func (a *accumulator) add(ev *types.ToolCallDeltaEvent) {
	f, ok := a.fragments[ev.Index]
	if !ok {
		f = &fragment{}
		a.fragments[ev.Index] = f
		a.order = append(a.order, ev.Index)
	}
	f.id += ev.ID
	f.name += ev.Name
	f.arguments += ev.Arguments
}

func (a *accumulator) empty() bool {
	return len(a.order) == 0
}

// resolve parses every completed fragment into an executable call. A
// fragment whose argument text is not valid JSON fails alone; the rest of
// the batch still resolves.
func (a *accumulator) resolve() ([]types.ToolCall, []error) {
	var (
		calls []types.ToolCall
		errs  []error
	)

	for _, idx := range a.order {
		f := a.fragments[idx]
		if f.name == "" {
			errs = append(errs, fmt.Errorf("tool call at index %d has no name", idx))
			continue
		}

		args := map[string]any{}
		if f.arguments != "" {
			if err := json.Unmarshal([]byte(f.arguments), &args); err != nil {
				errs = append(errs, fmt.Errorf("tool call %q: arguments are not valid JSON: %w", f.name, err))
				continue
			}
		}

		calls = append(calls, types.ToolCall{
			ID:        f.id,
			Name:      f.name,
			Arguments: args,
		})
	}

	return calls, errs
}
