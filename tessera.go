// Package tessera provides an in-memory OLAP cube engine for flat tabular data.
//
// Usage:
//
//	records, headers, _ := helpers.ParseCSV(data)
//	dims, measures := schema.Infer(records, schema.WithColumnOrder(headers))
//	cube := engine.BuildCube(records, dims, measures)
//
//	sliced, op := engine.Slice(cube, "Region", engine.Text("East"))
//	pivoted, op := engine.Pivot(cube, engine.AxisAssignment{X: "Region", Measure: "Sales"})
//
// Every operator is a pure function from one Cube to a new Cube; the input cube
// is never mutated, so callers can keep prior cubes for back-navigation. Each
// operator also returns an Operation descriptor recording whether it was applied
// or rejected, and why.
//
// The engine never calls any external service — all computation is local and
// synchronous. Rendering, UI state, and storage are the consumer's business.
package tessera
