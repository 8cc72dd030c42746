package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValue(t *testing.T) {
	assert.Equal(t, Temporal("2026-01-15"), ParseValue("2026-01-15"))
	assert.Equal(t, Temporal("2026-01"), ParseValue("2026-01"))
	assert.Equal(t, Number(123.45), ParseValue("123.45"))
	assert.Equal(t, Number(-7), ParseValue("-7"))
	assert.Equal(t, Text("East"), ParseValue("East"))
	assert.Equal(t, Text(""), ParseValue("  "))

	// bare years are ambiguous with plain integers and stay numeric
	assert.Equal(t, Number(2026), ParseValue("2026"))
}

func TestValueStrictEquality(t *testing.T) {
	assert.True(t, Text("East").Equal(Text("East")))
	assert.True(t, Number(100).Equal(Number(100)))
	assert.True(t, Temporal("2026-01").Equal(Temporal("2026-01")))

	// no coercion across kinds
	assert.False(t, Number(100).Equal(Text("100")))
	assert.False(t, Temporal("2026-01").Equal(Text("2026-01")))
	assert.False(t, Text("").Equal(Temporal("")))
}

func TestValueJSONRoundTrip(t *testing.T) {
	out, err := json.Marshal([]Value{Text("East"), Number(12.5), Temporal("2026-01-15")})
	require.NoError(t, err)
	assert.JSONEq(t, `["East", 12.5, "2026-01-15"]`, string(out))

	var back []Value
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, Text("East"), back[0])
	assert.Equal(t, Number(12.5), back[1])
	assert.Equal(t, Temporal("2026-01-15"), back[2])
}

func TestParseAggregation(t *testing.T) {
	for input, want := range map[string]AggregationKind{
		"sum": AggSum, "average": AggAverage, "avg": AggAverage,
		"count": AggCount, "MIN": AggMin, " max ": AggMax,
	} {
		got, err := ParseAggregation(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got)
	}

	_, err := ParseAggregation("median")
	assert.Error(t, err)
}

func TestAxisAssignmentAxes(t *testing.T) {
	assert.Nil(t, AxisAssignment{}.Axes())
	assert.Equal(t, []string{"Region"}, AxisAssignment{X: "Region"}.Axes())
	assert.Equal(t, []string{"Region", "Product"}, AxisAssignment{X: "Region", Z: "Product"}.Axes())
	assert.Equal(t, []string{"A", "B", "C"}, AxisAssignment{X: "A", Y: "B", Z: "C"}.Axes())
}

func TestHierarchyLookups(t *testing.T) {
	h := &Hierarchy{
		Levels:    []string{"Year", "Month"},
		ParentMap: map[string]string{"2026-01": "2026"},
		ChildMap:  map[string][]string{"2026": {"2026-01"}},
	}

	parent, ok := h.Parent("2026-01")
	assert.True(t, ok)
	assert.Equal(t, "2026", parent)

	assert.Equal(t, []string{"2026-01"}, h.Children("2026"))
	assert.Nil(t, h.Children("2025"))

	var nilH *Hierarchy
	_, ok = nilH.Parent("x")
	assert.False(t, ok)
	assert.Nil(t, nilH.Children("x"))
}
