package engine

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// TESSERA ENGINE TYPES — In-Memory OLAP Cube
// ============================================================================
// The cube is the sole state. Operators are pure functions Cube → Cube; every
// value here is treated as immutable after construction. A Cube is replaced,
// never mutated — the prior Cube stays valid for back-navigation.
// ============================================================================

// ============================================================================
// VALUE — Closed scalar variant (text / number / temporal)
// ============================================================================

// ValueKind tags the variant of a Value.
type ValueKind int

const (
	KindText ValueKind = iota
	KindNumber
	KindTemporal
)

// Value is a single scalar coordinate: text, number, or temporal string.
// Equality is strict — kinds must match, numbers and numeric strings never
// compare equal. This keeps slice/dice/grouping semantics well-defined
// without dynamic coercion.
type Value struct {
	Kind ValueKind
	Str  string  // KindText and KindTemporal
	Num  float64 // KindNumber
}

// Text creates a text Value.
func Text(s string) Value { return Value{Kind: KindText, Str: s} }

// Number creates a numeric Value.
func Number(f float64) Value { return Value{Kind: KindNumber, Num: f} }

// Temporal creates a temporal Value from its string form ("2026-01-15",
// "2026-01", "2026" after drill-up).
func Temporal(s string) Value { return Value{Kind: KindTemporal, Str: s} }

var (
	isoDayRe   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	isoMonthRe = regexp.MustCompile(`^\d{4}-\d{2}$`)
	isoYearRe  = regexp.MustCompile(`^\d{4}$`)
)

// ParseValue classifies a raw string the same way the CSV helper does:
// ISO-like dates become temporal, lossless numbers become numeric, everything
// else stays text. Callers building filter values should use this so their
// values compare equal to parsed coordinates.
func ParseValue(s string) Value {
	s = strings.TrimSpace(s)
	if isoDayRe.MatchString(s) || isoMonthRe.MatchString(s) {
		return Temporal(s)
	}
	if s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return Number(f)
		}
	}
	return Text(s)
}

// Equal reports strict equality: same kind, same payload.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	if v.Kind == KindNumber {
		return v.Num == o.Num
	}
	return v.Str == o.Str
}

// String returns the display form of the value.
func (v Value) String() string {
	if v.Kind == KindNumber {
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	}
	return v.Str
}

// AsNumber attempts a lossless numeric reading of the value.
func (v Value) AsNumber() (float64, bool) {
	switch v.Kind {
	case KindNumber:
		return v.Num, true
	default:
		s := strings.TrimSpace(v.Str)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
}

// key returns a grouping key that never collides across kinds.
func (v Value) key() string {
	switch v.Kind {
	case KindNumber:
		return "n:" + strconv.FormatFloat(v.Num, 'g', -1, 64)
	case KindTemporal:
		return "d:" + v.Str
	default:
		return "t:" + v.Str
	}
}

// withStr keeps the temporal tag when rewriting a coordinate during drill-up.
func (v Value) withStr(s string) Value {
	if v.Kind == KindTemporal {
		return Temporal(s)
	}
	return Text(s)
}

// MarshalJSON emits numbers as JSON numbers and text/temporal as strings.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.Kind == KindNumber {
		return json.Marshal(v.Num)
	}
	return json.Marshal(v.Str)
}

// UnmarshalJSON accepts JSON numbers and strings; strings are classified via
// ParseValue so API filter values align with parsed coordinates.
func (v *Value) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*v = Number(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("value must be a string or number: %w", err)
	}
	*v = ParseValue(s)
	return nil
}

// ============================================================================
// RECORD — One flat source row
// ============================================================================

// Record is a single flat data row: column name → scalar value.
// Records are the source of truth and immutable once loaded.
type Record map[string]Value

// ============================================================================
// DIMENSION / HIERARCHY
// ============================================================================

// DimensionKind classifies a dimension axis.
type DimensionKind string

const (
	DimCategorical DimensionKind = "categorical"
	DimNumerical   DimensionKind = "numerical"
	DimTemporal    DimensionKind = "temporal"
)

// Hierarchy describes the multi-level structure of a dimension's values.
// Levels are ordered top-down (coarsest first). ParentMap maps a value at a
// finer level to its parent at the next coarser level; ChildMap maps a value
// to its direct children. The two maps are duals and are always built
// together so they stay mutually consistent.
type Hierarchy struct {
	Levels    []string            `json:"levels"`
	ParentMap map[string]string   `json:"parentMap"`
	ChildMap  map[string][]string `json:"childMap"`
}

// Children returns the direct children of a value, or nil.
func (h *Hierarchy) Children(value string) []string {
	if h == nil {
		return nil
	}
	return h.ChildMap[value]
}

// Parent returns the parent of a value and whether one exists.
func (h *Hierarchy) Parent(value string) (string, bool) {
	if h == nil {
		return "", false
	}
	p, ok := h.ParentMap[value]
	return p, ok
}

// Dimension is one grouping axis of the cube.
type Dimension struct {
	Name         string        `json:"name"`
	Kind         DimensionKind `json:"kind"`
	Values       []Value       `json:"values"`
	UniqueValues []Value       `json:"uniqueValues"`
	Hierarchy    *Hierarchy    `json:"hierarchy,omitempty"`
}

// ============================================================================
// MEASURE
// ============================================================================

// AggregationKind names a reduction over a group of cells.
type AggregationKind string

const (
	AggSum     AggregationKind = "sum"
	AggAverage AggregationKind = "average"
	AggCount   AggregationKind = "count"
	AggMin     AggregationKind = "min"
	AggMax     AggregationKind = "max"
)

// ParseAggregation resolves a user-supplied aggregation name.
func ParseAggregation(s string) (AggregationKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sum":
		return AggSum, nil
	case "average", "avg":
		return AggAverage, nil
	case "count":
		return AggCount, nil
	case "min":
		return AggMin, nil
	case "max":
		return AggMax, nil
	}
	return "", fmt.Errorf("unknown aggregation %q", s)
}

// Measure is a numeric quantity aggregated over facts. Value caches the
// whole-cube aggregate (always a sum at inference time); per-cell values
// live on CubeCell.
type Measure struct {
	Name        string          `json:"name"`
	Aggregation AggregationKind `json:"aggregation"`
	Value       float64         `json:"value"`
}

// ============================================================================
// CUBE
// ============================================================================

// CubeCell is one fact: dimension coordinates plus measure values. After
// aggregation a cell represents a group rather than a single source record.
type CubeCell struct {
	Coordinates map[string]Value   `json:"coordinates"`
	Measures    map[string]float64 `json:"measures"`
}

// Metadata carries cube-level bookkeeping.
type Metadata struct {
	TotalRecords int       `json:"totalRecords"`
	LastUpdated  time.Time `json:"lastUpdated"`
}

// Cube is the full set of fact cells plus the schema describing them.
// Invariant: every coordinate key on any cell names a dimension in
// Dimensions, and every cell measure key names a measure in Measures.
type Cube struct {
	Dimensions []Dimension `json:"dimensions"`
	Measures   []Measure   `json:"measures"`
	Cells      []CubeCell  `json:"cells"`
	Metadata   Metadata    `json:"metadata"`
}

// Dimension looks up a dimension by name.
func (c *Cube) Dimension(name string) (Dimension, bool) {
	for _, d := range c.Dimensions {
		if d.Name == name {
			return d, true
		}
	}
	return Dimension{}, false
}

// Measure looks up a measure by name.
func (c *Cube) Measure(name string) (Measure, bool) {
	for _, m := range c.Measures {
		if m.Name == name {
			return m, true
		}
	}
	return Measure{}, false
}

// DimensionNames returns the dimension names in schema order.
func (c *Cube) DimensionNames() []string {
	names := make([]string, len(c.Dimensions))
	for i, d := range c.Dimensions {
		names[i] = d.Name
	}
	return names
}

// MeasureTotal sums a named measure across all cells.
func (c *Cube) MeasureTotal(name string) float64 {
	var total float64
	for _, cell := range c.Cells {
		total += cell.Measures[name]
	}
	return total
}

// ============================================================================
// AXIS ASSIGNMENT — View binding consumed by Pivot
// ============================================================================

// AxisAssignment binds up to three dimensions and a measure to view axes.
// It is not part of the cube's own state.
type AxisAssignment struct {
	X       string `json:"x,omitempty"`
	Y       string `json:"y,omitempty"`
	Z       string `json:"z,omitempty"`
	Measure string `json:"measure,omitempty"`
}

// Axes returns the assigned dimension names in x, y, z order, skipping
// unset axes. Duplicates are passed through as supplied.
func (a AxisAssignment) Axes() []string {
	var axes []string
	for _, name := range []string{a.X, a.Y, a.Z} {
		if name != "" {
			axes = append(axes, name)
		}
	}
	return axes
}

// ============================================================================
// OPERATION — Applied-or-rejected descriptor for history/audit
// ============================================================================

// OperationType names an OLAP operator.
type OperationType string

const (
	OpSlice     OperationType = "slice"
	OpDice      OperationType = "dice"
	OpDrillDown OperationType = "drilldown"
	OpDrillUp   OperationType = "drillup"
	OpPivot     OperationType = "pivot"
)

// Operation records one applied operator and its parameters. Operators never
// raise: a rejected operation carries Applied=false and a Reason, and the
// operator returns the input cube unchanged so the caller stays on the last
// good state. Callers decide whether to surface the reason.
type Operation struct {
	ID        string            `json:"id"`
	Type      OperationType     `json:"type"`
	Params    map[string]string `json:"params,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Applied   bool              `json:"applied"`
	Reason    string            `json:"reason,omitempty"`
}

func newOperation(t OperationType, params map[string]string) Operation {
	return Operation{
		ID:        uuid.NewString(),
		Type:      t,
		Params:    params,
		Timestamp: time.Now(),
		Applied:   true,
	}
}

func (op Operation) rejected(reason string) Operation {
	op.Applied = false
	op.Reason = reason
	return op
}
