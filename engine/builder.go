package engine

import (
	"log"
	"time"
)

// ============================================================================
// CUBE BUILDER — Flat records + inferred schema → Cube
// ============================================================================
// One cell per source record. Coordinates carry the record's dimension values
// unmodified; measures are coerced to numbers, defaulting to 0 when a value
// does not convert. The build never fails — invalid numerics silently become
// 0, a documented lossy behavior.
// ============================================================================

// BuildCube materializes a Cube from flat records and an inferred schema.
func BuildCube(records []Record, dimensions []Dimension, measures []Measure) *Cube {
	cells := make([]CubeCell, 0, len(records))

	for _, rec := range records {
		cell := CubeCell{
			Coordinates: make(map[string]Value, len(dimensions)),
			Measures:    make(map[string]float64, len(measures)),
		}
		for _, d := range dimensions {
			cell.Coordinates[d.Name] = rec[d.Name]
		}
		for _, m := range measures {
			n, ok := rec[m.Name].AsNumber()
			if !ok {
				n = 0
			}
			cell.Measures[m.Name] = n
		}
		cells = append(cells, cell)
	}

	cube := &Cube{
		Dimensions: dimensions,
		Measures:   measures,
		Cells:      cells,
		Metadata: Metadata{
			TotalRecords: len(records),
			LastUpdated:  time.Now(),
		},
	}

	log.Printf("🧊 Tessera: Built cube — %d cells, %d dimensions, %d measures",
		len(cells), len(dimensions), len(measures))

	return cube
}

// rebuildDimension recomputes a dimension's value sequences from a cell set.
// Kind and hierarchy metadata are carried over unchanged.
func rebuildDimension(dim Dimension, cells []CubeCell) Dimension {
	values := make([]Value, 0, len(cells))
	var unique []Value
	seen := make(map[string]bool)

	for _, cell := range cells {
		v := cell.Coordinates[dim.Name]
		values = append(values, v)
		if k := v.key(); !seen[k] {
			seen[k] = true
			unique = append(unique, v)
		}
	}

	dim.Values = values
	dim.UniqueValues = unique
	return dim
}
