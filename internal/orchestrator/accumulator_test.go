package orchestrator

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduitchat/conduit/pkg/llm/types"
)

func TestAccumulator_SplitInvariance(t *testing.T) {
	arguments := `{"city":"Berlin","days":3,"units":"metric"}`

	// One delivery in a single fragment.
	whole := newAccumulator()
	whole.add(types.NewToolCallDeltaEvent(0, "call_1", "weather_forecast", arguments))

	// The same delivery split into 50 argument fragments.
	split := newAccumulator()
	split.add(types.NewToolCallDeltaEvent(0, "call_1", "weather_forecast", ""))
	chunk := len(arguments)/50 + 1
	for i := 0; i < len(arguments); i += chunk {
		end := i + chunk
		if end > len(arguments) {
			end = len(arguments)
		}
		split.add(types.NewToolCallDeltaEvent(0, "", "", arguments[i:end]))
	}

	wholeCalls, wholeErrs := whole.resolve()
	splitCalls, splitErrs := split.resolve()

	require.Empty(t, wholeErrs)
	require.Empty(t, splitErrs)
	assert.Equal(t, wholeCalls, splitCalls)

	require.Len(t, splitCalls, 1)
	assert.Equal(t, "call_1", splitCalls[0].ID)
	assert.Equal(t, "weather_forecast", splitCalls[0].Name)
	assert.Equal(t, "Berlin", splitCalls[0].Arguments["city"])
}

func TestAccumulator_FirstSeenOrder(t *testing.T) {
	acc := newAccumulator()

	// Indexes arrive out of numeric order; execution order follows first
	// appearance, not index value.
	acc.add(types.NewToolCallDeltaEvent(2, "call_c", "gamma", "{}"))
	acc.add(types.NewToolCallDeltaEvent(0, "call_a", "alpha", "{}"))
	acc.add(types.NewToolCallDeltaEvent(1, "call_b", "beta", "{}"))
	acc.add(types.NewToolCallDeltaEvent(0, "", "", ""))

	calls, errs := acc.resolve()
	require.Empty(t, errs)
	require.Len(t, calls, 3)
	assert.Equal(t, "gamma", calls[0].Name)
	assert.Equal(t, "alpha", calls[1].Name)
	assert.Equal(t, "beta", calls[2].Name)
}

func TestAccumulator_PartialFailureIsolation(t *testing.T) {
	acc := newAccumulator()
	acc.add(types.NewToolCallDeltaEvent(0, "call_a", "alpha", `{"x":1}`))
	acc.add(types.NewToolCallDeltaEvent(1, "call_b", "beta", `{"x":`))
	acc.add(types.NewToolCallDeltaEvent(2, "call_c", "gamma", `{"x":3}`))

	calls, errs := acc.resolve()

	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "beta")

	require.Len(t, calls, 2)
	assert.Equal(t, "alpha", calls[0].Name)
	assert.Equal(t, "gamma", calls[1].Name)
}

func TestAccumulator_EmptyArgumentsBecomeEmptyMap(t *testing.T) {
	acc := newAccumulator()
	acc.add(types.NewToolCallDeltaEvent(0, "call_1", "ping", ""))

	calls, errs := acc.resolve()
	require.Empty(t, errs)
	require.Len(t, calls, 1)
	assert.NotNil(t, calls[0].Arguments)
	assert.Empty(t, calls[0].Arguments)
}

func TestAccumulator_NamelessFragmentFails(t *testing.T) {
	acc := newAccumulator()
	acc.add(types.NewToolCallDeltaEvent(0, "call_1", "", `{"x":1}`))

	calls, errs := acc.resolve()
	assert.Empty(t, calls)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "no name")
}

func TestAccumulator_ManyCalls(t *testing.T) {
	acc := newAccumulator()
	for i := 0; i < 20; i++ {
		acc.add(types.NewToolCallDeltaEvent(i, fmt.Sprintf("call_%d", i), fmt.Sprintf("fn%d", i), "{}"))
	}

	calls, errs := acc.resolve()
	require.Empty(t, errs)
	require.Len(t, calls, 20)
	for i, call := range calls {
		assert.Equal(t, fmt.Sprintf("fn%d", i), call.Name)
	}
}
