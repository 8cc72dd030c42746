package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cube over Region × Product with a plain Sales measure
func regionCube() *Cube {
	records := []Record{
		{"Region": Text("East"), "Product": Text("A"), "Sales": Number(100)},
		{"Region": Text("East"), "Product": Text("B"), "Sales": Number(50)},
		{"Region": Text("West"), "Product": Text("A"), "Sales": Number(30)},
	}
	dims := []Dimension{
		{Name: "Region", Kind: DimCategorical, UniqueValues: []Value{Text("East"), Text("West")}},
		{Name: "Product", Kind: DimCategorical, UniqueValues: []Value{Text("A"), Text("B")}},
	}
	measures := []Measure{{Name: "Sales", Aggregation: AggSum, Value: 180}}
	return BuildCube(records, dims, measures)
}

// cube over day-level dates with a Year/Month/Day hierarchy on Date
func dateCube() *Cube {
	days := []string{"2024-01-15", "2024-01-20", "2024-02-03", "2025-03-10"}
	regions := []string{"East", "West", "East", "West"}
	sales := []float64{10, 20, 30, 40}

	h := &Hierarchy{
		Levels:    []string{"Year", "Month", "Day"},
		ParentMap: map[string]string{},
		ChildMap:  map[string][]string{},
	}
	var records []Record
	for i, d := range days {
		month, year := d[:7], d[:4]
		if _, ok := h.ParentMap[month]; !ok {
			h.ParentMap[month] = year
			h.ChildMap[year] = append(h.ChildMap[year], month)
		}
		h.ParentMap[d] = month
		h.ChildMap[month] = append(h.ChildMap[month], d)

		records = append(records, Record{
			"Date":   Temporal(d),
			"Region": Text(regions[i]),
			"Sales":  Number(sales[i]),
		})
	}

	dims := []Dimension{
		{Name: "Date", Kind: DimTemporal, Hierarchy: h},
		{Name: "Region", Kind: DimCategorical},
	}
	measures := []Measure{{Name: "Sales", Aggregation: AggSum, Value: 100}}
	return BuildCube(records, dims, measures)
}

// ============================================================================
// SLICE
// ============================================================================

func TestSlice(t *testing.T) {
	cube := regionCube()

	sliced, op := Slice(cube, "Region", Text("East"))

	assert.True(t, op.Applied)
	assert.Equal(t, OpSlice, op.Type)
	assert.NotEmpty(t, op.ID)
	require.Len(t, sliced.Cells, 2)
	assert.Equal(t, 2, sliced.Metadata.TotalRecords)

	// the sliced dimension stays in the schema
	assert.Len(t, sliced.Dimensions, 2)
	assert.Len(t, sliced.Measures, 1)

	// input cube untouched
	assert.Len(t, cube.Cells, 3)
}

func TestSliceIdempotence(t *testing.T) {
	cube := regionCube()
	once, _ := Slice(cube, "Region", Text("East"))
	twice, _ := Slice(once, "Region", Text("East"))

	assert.Equal(t, once.Cells, twice.Cells)
	assert.Equal(t, once.Metadata.TotalRecords, twice.Metadata.TotalRecords)
}

func TestSliceStrictTypeMismatch(t *testing.T) {
	cube := regionCube()

	// Sales coordinates don't exist; Region is text, so a number never matches
	sliced, op := Slice(cube, "Region", Number(100))
	assert.True(t, op.Applied)
	assert.Empty(t, sliced.Cells)

	sliced, _ = Slice(cube, "NoSuchDimension", Text("East"))
	assert.Empty(t, sliced.Cells)
}

// ============================================================================
// DICE
// ============================================================================

func TestDiceEqualsUnionOfSlices(t *testing.T) {
	cube := regionCube()

	diced, op := Dice(cube, map[string][]Value{"Region": {Text("East"), Text("West")}})
	require.True(t, op.Applied)

	east, _ := Slice(cube, "Region", Text("East"))
	west, _ := Slice(cube, "Region", Text("West"))

	assert.ElementsMatch(t, append(east.Cells, west.Cells...), diced.Cells)
}

func TestDiceConjunctionAcrossDimensions(t *testing.T) {
	cube := regionCube()

	diced, _ := Dice(cube, map[string][]Value{
		"Region":  {Text("East")},
		"Product": {Text("A")},
	})

	require.Len(t, diced.Cells, 1)
	assert.Equal(t, 100.0, diced.Cells[0].Measures["Sales"])
}

func TestDiceEmptyConditionsIsIdentity(t *testing.T) {
	cube := regionCube()
	diced, op := Dice(cube, nil)
	assert.True(t, op.Applied)
	assert.Same(t, cube, diced)
}

// ============================================================================
// DRILL-DOWN
// ============================================================================

func TestDrillDownRejectsWithoutHierarchy(t *testing.T) {
	cube := regionCube()

	same, op := DrillDown(cube, "Region", "Product")
	assert.False(t, op.Applied)
	assert.Contains(t, op.Reason, "no hierarchy")
	assert.Same(t, cube, same)
}

func TestDrillDownRejectsAtFinestLevel(t *testing.T) {
	cube := dateCube() // all coordinates already at day granularity

	same, op := DrillDown(cube, "Date", "Day")
	assert.False(t, op.Applied)
	assert.Contains(t, op.Reason, "no finer-level values")
	assert.Same(t, cube, same)
}

func TestDrillDownExpandsMixedGranularity(t *testing.T) {
	cube := dateCube()

	// mix in a month-level cell so its children (days) are reachable
	monthCell := CubeCell{
		Coordinates: map[string]Value{"Date": Temporal("2024-01"), "Region": Text("East")},
		Measures:    map[string]float64{"Sales": 30},
	}
	mixed := &Cube{
		Dimensions: cube.Dimensions,
		Measures:   cube.Measures,
		Cells:      append([]CubeCell{monthCell}, cube.Cells...),
		Metadata:   cube.Metadata,
	}

	drilled, op := DrillDown(mixed, "Date", "Day")

	require.True(t, op.Applied)
	for _, cell := range drilled.Cells {
		s := cell.Coordinates["Date"].String()
		assert.Regexp(t, `^\d{4}-\d{2}-\d{2}$`, s, "only day-level cells survive")
	}
	// the month-level cell itself is gone
	assert.Len(t, drilled.Cells, 2) // children of 2024-01: the two January days
}

// ============================================================================
// DRILL-UP
// ============================================================================

func TestDrillUpDayToMonth(t *testing.T) {
	cube := dateCube()
	originalTotal := cube.MeasureTotal("Sales")

	monthly, op := DrillUp(cube, "Date", "Day")

	require.True(t, op.Applied)
	// 2024-01 has two days with distinct regions, so they stay separate rows
	require.Len(t, monthly.Cells, 4)
	for _, cell := range monthly.Cells {
		assert.Regexp(t, `^\d{4}-\d{2}$`, cell.Coordinates["Date"].String())
	}

	// aggregation sum invariant: totals reconcile across granularities
	assert.Equal(t, originalTotal, monthly.MeasureTotal("Sales"))

	dim, ok := monthly.Dimension("Date")
	require.True(t, ok)
	assert.ElementsMatch(t,
		[]Value{Temporal("2024-01"), Temporal("2024-02"), Temporal("2025-03")},
		dim.UniqueValues)

	// cube-level measure total recomputed
	assert.Equal(t, originalTotal, monthly.Measures[0].Value)
}

func TestDrillUpReaggregatesAcrossAllDimensions(t *testing.T) {
	cube := dateCube()

	// make both January cells share a region so they collapse into one row
	cube.Cells[1].Coordinates["Region"] = Text("East")

	monthly, _ := DrillUp(cube, "Date", "Day")

	require.Len(t, monthly.Cells, 3)
	assert.Equal(t, 30.0, monthly.Cells[0].Measures["Sales"]) // 10 + 20
}

func TestDrillUpMonthToYearAndStop(t *testing.T) {
	cube := dateCube()
	monthly, _ := DrillUp(cube, "Date", "Day")
	yearly, op := DrillUp(monthly, "Date", "Month")

	require.True(t, op.Applied)
	for _, cell := range yearly.Cells {
		assert.Regexp(t, `^\d{4}$`, cell.Coordinates["Date"].String())
	}
	assert.Equal(t, cube.MeasureTotal("Sales"), yearly.MeasureTotal("Sales"))

	same, op := DrillUp(yearly, "Date", "Year")
	assert.False(t, op.Applied)
	assert.Contains(t, op.Reason, "year granularity")
	assert.Same(t, yearly, same)
}

func TestDrillUpUnknownDimension(t *testing.T) {
	cube := regionCube()
	same, op := DrillUp(cube, "Ghost", "Day")
	assert.False(t, op.Applied)
	assert.Same(t, cube, same)
}

func TestDrillRoundTripDoesNotExceedOriginalTotal(t *testing.T) {
	cube := dateCube()
	originalTotal := cube.MeasureTotal("Sales")

	monthly, _ := DrillUp(cube, "Date", "Day")
	down, _ := DrillDown(monthly, "Date", "Day")

	assert.LessOrEqual(t, down.MeasureTotal("Sales"), originalTotal)
	assert.LessOrEqual(t, len(monthly.Cells), len(cube.Cells))
}

// ============================================================================
// PIVOT
// ============================================================================

func TestPivotReducesDimensions(t *testing.T) {
	cube := dateCube()

	pivoted, op := Pivot(cube, AxisAssignment{X: "Region", Measure: "Sales"})

	require.True(t, op.Applied)
	require.Len(t, pivoted.Dimensions, 1)
	assert.Equal(t, "Region", pivoted.Dimensions[0].Name)
	require.Len(t, pivoted.Measures, 1)
	assert.Equal(t, "Sales", pivoted.Measures[0].Name)

	// the Date dimension's information is summed away
	require.Len(t, pivoted.Cells, 2)
	assert.Equal(t, cube.MeasureTotal("Sales"), pivoted.MeasureTotal("Sales"))
	assert.Equal(t, cube.MeasureTotal("Sales"), pivoted.Measures[0].Value)
}

func TestPivotAxisOrder(t *testing.T) {
	cube := dateCube()

	pivoted, op := Pivot(cube, AxisAssignment{X: "Region", Z: "Date", Measure: "Sales"})

	require.True(t, op.Applied)
	require.Len(t, pivoted.Dimensions, 2)
	assert.Equal(t, "Region", pivoted.Dimensions[0].Name)
	assert.Equal(t, "Date", pivoted.Dimensions[1].Name)

	// axis dimensions keep their kind and hierarchy metadata
	assert.Equal(t, DimTemporal, pivoted.Dimensions[1].Kind)
	assert.NotNil(t, pivoted.Dimensions[1].Hierarchy)
}

func TestPivotDefaultsToFirstMeasure(t *testing.T) {
	cube := regionCube()
	pivoted, op := Pivot(cube, AxisAssignment{X: "Region"})
	require.True(t, op.Applied)
	assert.Equal(t, "Sales", pivoted.Measures[0].Name)
}

func TestPivotRejections(t *testing.T) {
	cube := regionCube()

	same, op := Pivot(cube, AxisAssignment{})
	assert.False(t, op.Applied)
	assert.Contains(t, op.Reason, "no axis dimensions")
	assert.Same(t, cube, same)

	bare := &Cube{Dimensions: cube.Dimensions, Cells: cube.Cells}
	same, op = Pivot(bare, AxisAssignment{X: "Region"})
	assert.False(t, op.Applied)
	assert.Contains(t, op.Reason, "no measure")
	assert.Same(t, bare, same)
}

// ============================================================================
// PURITY
// ============================================================================

func TestOperatorsNeverMutateInput(t *testing.T) {
	cube := dateCube()
	before := len(cube.Cells)
	firstDate := cube.Cells[0].Coordinates["Date"]

	Slice(cube, "Region", Text("East"))
	Dice(cube, map[string][]Value{"Region": {Text("West")}})
	DrillUp(cube, "Date", "Day")
	Pivot(cube, AxisAssignment{X: "Region", Measure: "Sales"})

	assert.Len(t, cube.Cells, before)
	assert.Equal(t, firstDate, cube.Cells[0].Coordinates["Date"])
	assert.Equal(t, 100.0, cube.MeasureTotal("Sales"))
}
