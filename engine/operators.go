package engine

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
)

// ============================================================================
// OLAP OPERATORS — slice / dice / drill-down / drill-up / pivot
// ============================================================================
// Pure functions Cube × params → Cube. The caller applies them to whatever
// cube is "current"; there is no operator-internal state. Each operator also
// returns an Operation descriptor for history display — Applied=false with a
// Reason when a precondition is missing, in which case the input cube comes
// back unchanged.
// ============================================================================

// Slice retains only cells whose coordinate at the dimension equals the given
// value. Equality is strict: a number never matches a numeric string, and a
// mismatch simply yields zero cells. The sliced dimension stays in the schema
// even though it is now constant.
func Slice(cube *Cube, dimension string, value Value) (*Cube, Operation) {
	op := newOperation(OpSlice, map[string]string{
		"dimension": dimension,
		"value":     value.String(),
	})

	cells := make([]CubeCell, 0, len(cube.Cells))
	for _, cell := range cube.Cells {
		if cell.Coordinates[dimension].Equal(value) {
			cells = append(cells, cell)
		}
	}

	log.Printf("🔪 Tessera: Slice %s=%s — %d of %d cells retained",
		dimension, value.String(), len(cells), len(cube.Cells))

	return replaceCells(cube, cells), op
}

// Dice retains cells satisfying every dimension condition: AND across
// dimensions, OR within a dimension's allowed-value set.
func Dice(cube *Cube, conditions map[string][]Value) (*Cube, Operation) {
	op := newOperation(OpDice, diceParams(conditions))

	sets := make(map[string]map[string]bool, len(conditions))
	for dim, allowed := range conditions {
		if len(allowed) == 0 {
			continue
		}
		set := make(map[string]bool, len(allowed))
		for _, v := range allowed {
			set[v.key()] = true
		}
		sets[dim] = set
	}
	if len(sets) == 0 {
		return cube, op
	}

	cells := make([]CubeCell, 0, len(cube.Cells))
	for _, cell := range cube.Cells {
		pass := true
		for dim, set := range sets {
			if !set[cell.Coordinates[dim].key()] {
				pass = false
				break
			}
		}
		if pass {
			cells = append(cells, cell)
		}
	}

	log.Printf("🎲 Tessera: Dice over %d dimensions — %d of %d cells retained",
		len(sets), len(cells), len(cube.Cells))

	return replaceCells(cube, cells), op
}

// DrillDown expands the cube to the finer hierarchy level of a dimension by
// keeping only cells whose coordinate is a direct child of a currently
// represented value. No re-aggregation happens — the finer data already
// exists per cell. Rejected when the dimension lacks a hierarchy or no
// present value has children.
func DrillDown(cube *Cube, dimension string, targetLevel string) (*Cube, Operation) {
	op := newOperation(OpDrillDown, map[string]string{
		"dimension": dimension,
		"level":     targetLevel,
	})

	dim, ok := cube.Dimension(dimension)
	if !ok || dim.Hierarchy == nil {
		return cube, op.rejected(fmt.Sprintf("dimension %q has no hierarchy", dimension))
	}

	children := make(map[string]bool)
	seen := make(map[string]bool)
	for _, cell := range cube.Cells {
		v := cell.Coordinates[dimension].String()
		if seen[v] {
			continue
		}
		seen[v] = true
		for _, child := range dim.Hierarchy.Children(v) {
			children[child] = true
		}
	}
	if len(children) == 0 {
		return cube, op.rejected(fmt.Sprintf("no finer-level values under %q", dimension))
	}

	cells := make([]CubeCell, 0, len(cube.Cells))
	for _, cell := range cube.Cells {
		if children[cell.Coordinates[dimension].String()] {
			cells = append(cells, cell)
		}
	}

	log.Printf("🔽 Tessera: DrillDown %s → %s — %d cells at finer level",
		dimension, targetLevel, len(cells))

	result := replaceCells(cube, cells)
	result.Dimensions = swapDimension(result.Dimensions, rebuildDimension(dim, cells))
	return result, op
}

// temporal granularities, finest first
const (
	granDay   = "day"
	granMonth = "month"
	granYear  = "year"
)

// DrillUp collapses a dimension to the next-coarser temporal granularity and
// re-aggregates the whole cube: every cell's coordinate at the dimension is
// truncated (day → month, month → year), then ALL cells are grouped by the
// full coordinate tuple across ALL dimensions and every measure is summed.
// Rejected when the dimension is unknown or already at year granularity.
func DrillUp(cube *Cube, dimension string, sourceLevel string) (*Cube, Operation) {
	op := newOperation(OpDrillUp, map[string]string{
		"dimension": dimension,
		"level":     sourceLevel,
	})

	dim, ok := cube.Dimension(dimension)
	if !ok {
		return cube, op.rejected(fmt.Sprintf("unknown dimension %q", dimension))
	}

	switch detectGranularity(cube.Cells, dimension) {
	case granYear:
		return cube, op.rejected(fmt.Sprintf("dimension %q is already at year granularity", dimension))
	}

	// Rewrite the drilled coordinate to its next-coarser string form.
	rewritten := make([]CubeCell, len(cube.Cells))
	for i, cell := range cube.Cells {
		coords := make(map[string]Value, len(cell.Coordinates))
		for k, v := range cell.Coordinates {
			coords[k] = v
		}
		v := coords[dimension]
		coords[dimension] = v.withStr(coarsen(v.String()))
		rewritten[i] = CubeCell{Coordinates: coords, Measures: cell.Measures}
	}

	cells := sumByFullCoordinate(rewritten, cube.DimensionNames(), cube.Measures)

	log.Printf("🔼 Tessera: DrillUp %s — re-aggregated %d cells into %d",
		dimension, len(cube.Cells), len(cells))

	result := &Cube{
		Dimensions: swapDimension(append([]Dimension(nil), cube.Dimensions...), rebuildDimension(dim, cells)),
		Measures:   retotalMeasures(cube.Measures, cells),
		Cells:      cells,
		Metadata:   Metadata{TotalRecords: len(cells), LastUpdated: time.Now()},
	}
	return result, op
}

// Pivot re-derives the cube keyed by the axis dimensions of a view binding.
// The entire original cell set is re-aggregated with sum over the chosen
// axes; dimensions not selected as axes are summed away — pivot is lossy
// with respect to them. Rejected when no axis is set or no measure resolves.
func Pivot(cube *Cube, axes AxisAssignment) (*Cube, Operation) {
	op := newOperation(OpPivot, map[string]string{
		"x": axes.X, "y": axes.Y, "z": axes.Z, "measure": axes.Measure,
	})

	axisDims := axes.Axes()
	if len(axisDims) == 0 {
		return cube, op.rejected("no axis dimensions selected")
	}

	measureName := axes.Measure
	if measureName == "" && len(cube.Measures) > 0 {
		measureName = cube.Measures[0].Name
	}
	if measureName == "" {
		return cube, op.rejected("no measure resolvable")
	}

	cells := Aggregate(cube.Cells, axisDims, measureName, AggSum)

	dims := make([]Dimension, 0, len(axisDims))
	for _, name := range axisDims {
		src, ok := cube.Dimension(name)
		if !ok {
			src = Dimension{Name: name, Kind: DimCategorical}
		}
		dims = append(dims, rebuildDimension(src, cells))
	}

	var total float64
	for _, cell := range cells {
		total += cell.Measures[measureName]
	}

	log.Printf("🔄 Tessera: Pivot to axes %v on %s — %d cells", axisDims, measureName, len(cells))

	return &Cube{
		Dimensions: dims,
		Measures:   []Measure{{Name: measureName, Aggregation: AggSum, Value: total}},
		Cells:      cells,
		Metadata:   Metadata{TotalRecords: len(cells), LastUpdated: time.Now()},
	}, op
}

// ============================================================================
// GRANULARITY DETECTION
// ============================================================================

// detectGranularity pattern-matches the current string forms of a dimension's
// coordinates: YYYY-MM-DD → day, YYYY-MM → month, YYYY → year. Unrecognized
// formats default to day, a defensive fallback so drill-up always has a
// coarsening step to attempt.
func detectGranularity(cells []CubeCell, dimension string) string {
	for _, cell := range cells {
		s := cell.Coordinates[dimension].String()
		switch {
		case isoDayRe.MatchString(s):
			return granDay
		case isoMonthRe.MatchString(s):
			return granMonth
		case isoYearRe.MatchString(s):
			return granYear
		}
	}
	return granDay
}

// coarsen truncates a value string one granularity step: "2026-01-15" →
// "2026-01", "2026-01" → "2026". Strings shorter than the truncation point
// pass through unchanged.
func coarsen(s string) string {
	switch {
	case isoDayRe.MatchString(s):
		return s[:7]
	case isoMonthRe.MatchString(s):
		return s[:4]
	case len(s) > 7:
		return s[:7]
	}
	return s
}

// ============================================================================
// INTERNAL HELPERS
// ============================================================================

// replaceCells derives a new cube with the same schema but a filtered cell
// set. Only Cells and Metadata.TotalRecords change.
func replaceCells(cube *Cube, cells []CubeCell) *Cube {
	return &Cube{
		Dimensions: cube.Dimensions,
		Measures:   cube.Measures,
		Cells:      cells,
		Metadata: Metadata{
			TotalRecords: len(cells),
			LastUpdated:  cube.Metadata.LastUpdated,
		},
	}
}

// sumByFullCoordinate groups cells by the tuple of every dimension coordinate
// and sums every measure per group — one row per unique full coordinate.
func sumByFullCoordinate(cells []CubeCell, dimNames []string, measures []Measure) []CubeCell {
	grouped := make(map[string]*CubeCell)
	var order []string

	for _, cell := range cells {
		key := groupKey(cell, dimNames)
		g, ok := grouped[key]
		if !ok {
			coords := make(map[string]Value, len(dimNames))
			for _, d := range dimNames {
				coords[d] = cell.Coordinates[d]
			}
			ms := make(map[string]float64, len(measures))
			g = &CubeCell{Coordinates: coords, Measures: ms}
			grouped[key] = g
			order = append(order, key)
		}
		for _, m := range measures {
			g.Measures[m.Name] += cell.Measures[m.Name]
		}
	}

	out := make([]CubeCell, 0, len(order))
	for _, key := range order {
		out = append(out, *grouped[key])
	}
	return out
}

// retotalMeasures recomputes each measure's cached cube-level total.
func retotalMeasures(measures []Measure, cells []CubeCell) []Measure {
	out := make([]Measure, len(measures))
	for i, m := range measures {
		var total float64
		for _, cell := range cells {
			total += cell.Measures[m.Name]
		}
		m.Value = total
		out[i] = m
	}
	return out
}

// swapDimension replaces the dimension with the same name in a schema list.
func swapDimension(dims []Dimension, replacement Dimension) []Dimension {
	out := append([]Dimension(nil), dims...)
	for i, d := range out {
		if d.Name == replacement.Name {
			out[i] = replacement
		}
	}
	return out
}

func diceParams(conditions map[string][]Value) map[string]string {
	params := make(map[string]string, len(conditions))
	for dim, vals := range conditions {
		strs := make([]string, len(vals))
		for i, v := range vals {
			strs[i] = v.String()
		}
		sort.Strings(strs)
		params[dim] = strings.Join(strs, "|")
	}
	return params
}
