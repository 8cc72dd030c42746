package schema

import (
	"log"
	"sort"
	"strings"

	"github.com/tessera-org/tessera/engine"
)

// ============================================================================
// SCHEMA INFERENCE — Heuristic classification of columns
// ============================================================================
// Partitions a record set's columns into dimensions and measures.
//
// Pipeline per column:
//   1. Explicit-measure candidates by name token (sales/revenue/profit/amount,
//      or quantity + all-numeric) are excluded from dimension detection
//   2. Remaining columns become dimensions; kind by numeric ratio then name
//   3. Hierarchy construction via pluggable builders keyed by dimension role
//   4. Second pass picks measures (explicit candidates or all-numeric columns)
//
// Schema ambiguity is never an error — the thresholds just decide.
// ============================================================================

// default name tokens marking a column as an explicit measure candidate
var defaultMeasureTokens = []string{"sales", "revenue", "profit", "amount"}

// Option configures inference via functional options.
type Option func(*config)

type config struct {
	columnOrder      []string
	measureTokens    []string
	numericThreshold float64
	hierarchies      map[string]HierarchyBuilder
	noDefaults       bool
}

// WithColumnOrder fixes the column walk order (normally the CSV header
// order). Without it, columns are walked in sorted-name order so inference
// stays deterministic over Go's randomized map iteration.
func WithColumnOrder(columns []string) Option {
	return func(c *config) { c.columnOrder = columns }
}

// WithMeasureTokens adds extra name tokens that mark explicit measures.
func WithMeasureTokens(tokens ...string) Option {
	return func(c *config) { c.measureTokens = append(c.measureTokens, tokens...) }
}

// WithNumericThreshold overrides the numeric-ratio cutoff for the numerical
// dimension kind. The comparison stays strictly greater-than.
func WithNumericThreshold(t float64) Option {
	return func(c *config) { c.numericThreshold = t }
}

// WithHierarchy binds a hierarchy builder to a dimension, replacing or
// extending the default role bindings.
func WithHierarchy(dimension string, b HierarchyBuilder) Option {
	return func(c *config) { c.hierarchies[dimension] = b }
}

// WithoutDefaultHierarchies disables the built-in Date/Product bindings.
func WithoutDefaultHierarchies() Option {
	return func(c *config) { c.noDefaults = true }
}

func applyOptions(opts []Option) *config {
	cfg := &config{
		measureTokens:    append([]string(nil), defaultMeasureTokens...),
		numericThreshold: 0.8,
		hierarchies:      make(map[string]HierarchyBuilder),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Infer partitions the columns of a record set into dimensions and measures.
// Empty input yields empty lists. Given a fixed record set and options the
// result is deterministic.
func Infer(records []engine.Record, opts ...Option) ([]engine.Dimension, []engine.Measure) {
	if len(records) == 0 {
		return nil, nil
	}
	cfg := applyOptions(opts)

	columns := columnWalk(records[0], cfg.columnOrder)
	stats := make(map[string]columnStats, len(columns))
	for _, col := range columns {
		stats[col] = analyze(col, records)
	}

	// Pass 1: dimensions — explicit measure candidates are excluded.
	var dimensions []engine.Dimension
	dimNames := make(map[string]bool)
	for _, col := range columns {
		st := stats[col]
		if isExplicitMeasure(col, st, cfg.measureTokens) {
			continue
		}
		dim := engine.Dimension{
			Name:         col,
			Kind:         dimensionKind(col, st, cfg.numericThreshold),
			Values:       st.values,
			UniqueValues: st.unique,
		}
		if builder := cfg.builderFor(col, records); builder != nil {
			dim.Hierarchy = builder.Build(col, records)
		}
		dimensions = append(dimensions, dim)
		dimNames[col] = true
	}

	// Pass 2: measures — any non-dimension column that is an explicit
	// candidate or fully numeric. The detected default aggregation is sum
	// and the cached value is the sum over all records.
	var measures []engine.Measure
	for _, col := range columns {
		if dimNames[col] {
			continue
		}
		st := stats[col]
		if !isExplicitMeasure(col, st, cfg.measureTokens) && !st.allNumeric {
			continue
		}
		measures = append(measures, engine.Measure{
			Name:        col,
			Aggregation: engine.AggSum,
			Value:       st.numericSum,
		})
	}

	log.Printf("🔍 Tessera: Inferred schema — %d dimensions, %d measures from %d records",
		len(dimensions), len(measures), len(records))

	return dimensions, measures
}

// builderFor resolves the hierarchy builder for a dimension: explicit
// bindings first, then the default role bindings that mirror the classic
// Date → Year/Month/Day and Product → Category behavior.
func (c *config) builderFor(column string, records []engine.Record) HierarchyBuilder {
	if b, ok := c.hierarchies[column]; ok {
		return b
	}
	if c.noDefaults {
		return nil
	}
	switch column {
	case "Date":
		return TemporalHierarchyBuilder{}
	case "Product":
		if _, ok := records[0]["Category"]; ok {
			return ParentColumnHierarchyBuilder{Parent: "Category", Levels: []string{"Category", "Product"}}
		}
	}
	return nil
}

// ============================================================================
// COLUMN ANALYSIS
// ============================================================================

type columnStats struct {
	values     []engine.Value
	unique     []engine.Value
	numericCnt int
	total      int
	allNumeric bool
	numericSum float64
}

func analyze(column string, records []engine.Record) columnStats {
	st := columnStats{total: len(records), allNumeric: true}
	seen := make(map[string]bool)

	for _, rec := range records {
		v := rec[column]
		st.values = append(st.values, v)

		if n, ok := v.AsNumber(); ok {
			st.numericCnt++
			st.numericSum += n
		} else {
			st.allNumeric = false
		}

		key := v.String()
		if !seen[key] {
			seen[key] = true
			st.unique = append(st.unique, v)
		}
	}
	return st
}

// isExplicitMeasure reports whether the column name marks it as a measure:
// it contains a measure token, or contains "quantity" and every value in the
// column is numeric.
func isExplicitMeasure(column string, st columnStats, tokens []string) bool {
	lower := strings.ToLower(column)
	for _, tok := range tokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return strings.Contains(lower, "quantity") && st.allNumeric
}

// dimensionKind assigns the dimension kind: numerical when strictly more
// than the threshold share of values is numeric (a tie favors categorical),
// else temporal by name, else categorical.
func dimensionKind(column string, st columnStats, threshold float64) engine.DimensionKind {
	if st.total > 0 && float64(st.numericCnt)/float64(st.total) > threshold {
		return engine.DimNumerical
	}
	lower := strings.ToLower(column)
	if strings.Contains(lower, "date") || strings.Contains(lower, "time") {
		return engine.DimTemporal
	}
	return engine.DimCategorical
}

// columnWalk fixes the order columns are visited in. Records are maps, so
// without an explicit order the first record's column names are sorted.
func columnWalk(first engine.Record, order []string) []string {
	if len(order) > 0 {
		columns := make([]string, 0, len(order))
		for _, col := range order {
			if _, ok := first[col]; ok {
				columns = append(columns, col)
			}
		}
		return columns
	}
	columns := make([]string, 0, len(first))
	for col := range first {
		columns = append(columns, col)
	}
	sort.Strings(columns)
	return columns
}

// ============================================================================
// COLUMN PROFILES — Discovery output for the CLI/API
// ============================================================================

// ColumnProfile summarizes one column for schema display.
type ColumnProfile struct {
	Name        string   `json:"name"`
	UniqueCount int      `json:"uniqueCount"`
	Samples     []string `json:"samples"`
	Cardinality string   `json:"cardinality"` // "low", "medium", "high"
}

// Profile reports per-column value statistics in the given walk order.
func Profile(records []engine.Record, opts ...Option) []ColumnProfile {
	if len(records) == 0 {
		return nil
	}
	cfg := applyOptions(opts)

	var profiles []ColumnProfile
	for _, col := range columnWalk(records[0], cfg.columnOrder) {
		st := analyze(col, records)

		samples := make([]string, 0, 10)
		for _, v := range st.unique {
			if len(samples) == 10 {
				break
			}
			samples = append(samples, v.String())
		}

		cardinality := "high"
		switch {
		case len(st.unique) <= 10:
			cardinality = "low"
		case len(st.unique) <= 100:
			cardinality = "medium"
		}

		profiles = append(profiles, ColumnProfile{
			Name:        col,
			UniqueCount: len(st.unique),
			Samples:     samples,
			Cardinality: cardinality,
		})
	}
	return profiles
}
