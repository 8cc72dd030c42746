package engine

import "strings"

// ============================================================================
// AGGREGATION ENGINE — Group cells, reduce one measure
// ============================================================================
// Grouping key is the order-sensitive tuple of coordinate values at the group
// dimensions, compared with strict Value equality — temporal values group
// only when their string forms are identical. Output order is the first-seen
// order of distinct group keys, which keeps results deterministic for tests.
// ============================================================================

type cellGroup struct {
	coords  map[string]Value
	present []float64 // measure values found on cells
	size    int       // cells in the group, including those missing the measure
}

// Aggregate groups cells by the tuple of coordinates at groupDims and reduces
// the named measure with the given kind. Two cells land in the same group iff
// every groupDims coordinate compares strictly equal.
//
// Reduction semantics:
//   - sum:     arithmetic total; a cell missing the measure contributes 0
//   - average: total / group size (missing treated as 0)
//   - count:   number of cells in the group
//   - min/max: extremum of the values present; 0 when none are present
func Aggregate(cells []CubeCell, groupDims []string, measureName string, kind AggregationKind) []CubeCell {
	groups := make(map[string]*cellGroup)
	var order []string

	for _, cell := range cells {
		key := groupKey(cell, groupDims)
		g, ok := groups[key]
		if !ok {
			coords := make(map[string]Value, len(groupDims))
			for _, d := range groupDims {
				coords[d] = cell.Coordinates[d]
			}
			g = &cellGroup{coords: coords}
			groups[key] = g
			order = append(order, key)
		}
		g.size++
		if v, ok := cell.Measures[measureName]; ok {
			g.present = append(g.present, v)
		}
	}

	out := make([]CubeCell, 0, len(order))
	for _, key := range order {
		g := groups[key]
		out = append(out, CubeCell{
			Coordinates: g.coords,
			Measures:    map[string]float64{measureName: reduce(g, kind)},
		})
	}
	return out
}

func reduce(g *cellGroup, kind AggregationKind) float64 {
	switch kind {
	case AggCount:
		return float64(g.size)
	case AggAverage:
		if g.size == 0 {
			return 0
		}
		return sumOf(g.present) / float64(g.size)
	case AggMin:
		if len(g.present) == 0 {
			return 0
		}
		m := g.present[0]
		for _, v := range g.present[1:] {
			if v < m {
				m = v
			}
		}
		return m
	case AggMax:
		if len(g.present) == 0 {
			return 0
		}
		m := g.present[0]
		for _, v := range g.present[1:] {
			if v > m {
				m = v
			}
		}
		return m
	default: // sum
		return sumOf(g.present)
	}
}

func sumOf(vals []float64) float64 {
	var total float64
	for _, v := range vals {
		total += v
	}
	return total
}

// groupKey builds the order-sensitive tuple key for a cell at the given
// dimensions. Kind-tagged value keys keep Text("1") and Number(1) apart.
func groupKey(cell CubeCell, groupDims []string) string {
	parts := make([]string, len(groupDims))
	for i, d := range groupDims {
		parts[i] = cell.Coordinates[d].key()
	}
	return strings.Join(parts, "\x1f")
}
