package schema

import (
	"strings"

	"github.com/tessera-org/tessera/engine"
)

// ============================================================================
// HIERARCHY BUILDERS — Pluggable multi-level structure detection
// ============================================================================
// Some dimensions carry an intrinsic multi-level structure discoverable from
// the data. Builders are keyed by dimension role and configured at ingestion
// time (WithHierarchy / Config), instead of hardcoding column names inside
// the inference pass. parentMap and childMap are duals; every builder fills
// both in the same loop so they can never drift apart.
// ============================================================================

// HierarchyBuilder constructs the level structure for one dimension.
type HierarchyBuilder interface {
	// Role names the capability ("temporal", "parent-column").
	Role() string
	// Build derives the hierarchy from the record set. Never fails — values
	// that don't fit the expected shape simply contribute no mapping.
	Build(dimension string, records []engine.Record) *engine.Hierarchy
}

// ============================================================================
// TEMPORAL — Year / Month / Day from ISO-like date strings
// ============================================================================

// TemporalHierarchyBuilder splits ISO-like date strings ("2026-01-15") on
// "-" into a Year/Month/Day hierarchy: "2026" → "2026-01" → "2026-01-15".
type TemporalHierarchyBuilder struct {
	// Levels overrides the level names, top-down. Default Year, Month, Day.
	Levels []string
}

func (TemporalHierarchyBuilder) Role() string { return "temporal" }

// Build walks every record's value for the dimension and links each date
// string to its month and year truncations.
func (b TemporalHierarchyBuilder) Build(dimension string, records []engine.Record) *engine.Hierarchy {
	levels := b.Levels
	if len(levels) == 0 {
		levels = []string{"Year", "Month", "Day"}
	}

	h := &engine.Hierarchy{
		Levels:    levels,
		ParentMap: make(map[string]string),
		ChildMap:  make(map[string][]string),
	}

	for _, rec := range records {
		s := rec[dimension].String()
		parts := strings.SplitN(s, "-", 3)
		if len(parts) < 2 {
			continue
		}
		year := parts[0]
		month := year + "-" + parts[1]
		link(h, year, month)
		if len(parts) == 3 {
			link(h, month, s)
		}
	}
	return h
}

// ============================================================================
// PARENT COLUMN — Two levels joined through another column
// ============================================================================

// ParentColumnHierarchyBuilder builds a two-level hierarchy by joining each
// value of the dimension to the Parent column's value in the same record
// (e.g. Product grouped under Category).
type ParentColumnHierarchyBuilder struct {
	Parent string
	// Levels overrides the level names, top-down. Default Parent column
	// name, then the dimension name.
	Levels []string
}

func (ParentColumnHierarchyBuilder) Role() string { return "parent-column" }

func (b ParentColumnHierarchyBuilder) Build(dimension string, records []engine.Record) *engine.Hierarchy {
	levels := b.Levels
	if len(levels) == 0 {
		levels = []string{b.Parent, dimension}
	}

	h := &engine.Hierarchy{
		Levels:    levels,
		ParentMap: make(map[string]string),
		ChildMap:  make(map[string][]string),
	}

	for _, rec := range records {
		child := rec[dimension].String()
		parent := rec[b.Parent].String()
		if child == "" || parent == "" {
			continue
		}
		link(h, parent, child)
	}
	return h
}

// link records a parent→child edge in both maps, once.
func link(h *engine.Hierarchy, parent, child string) {
	if _, ok := h.ParentMap[child]; ok {
		return
	}
	h.ParentMap[child] = parent
	h.ChildMap[parent] = append(h.ChildMap[parent], child)
}
