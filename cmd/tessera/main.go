package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/tessera-org/tessera/engine"
	"github.com/tessera-org/tessera/helpers"
	"github.com/tessera-org/tessera/schema"
	"github.com/tessera-org/tessera/server"
)

// ============================================================================
// TESSERA CLI — OLAP cube exploration for any flat CSV
// ============================================================================

const version = "0.1.0"

type opFlags []string

func (o *opFlags) String() string     { return strings.Join(*o, "; ") }
func (o *opFlags) Set(v string) error { *o = append(*o, v); return nil }

func main() {
	filePath := flag.String("file", "", "Path to CSV data file (required)")
	configPath := flag.String("config", "", "Path to schema config YAML/JSON")
	discover := flag.Bool("discover", false, "Print the inferred schema and exit")
	aggSpec := flag.String("aggregate", "", "Ad-hoc aggregation: \"Dim1,Dim2:Measure:kind\"")
	format := flag.String("format", "json", "Output format: json, pretty, csv, text")
	outFile := flag.String("out", "", "Write output to file instead of stdout")
	serveAddr := flag.String("serve", "", "Serve the cube over HTTP on this address (e.g. :8080)")
	showVersion := flag.Bool("version", false, "Print version and exit")

	var ops opFlags
	flag.Var(&ops, "op", "OLAP operation (repeatable), e.g. slice:Region=East")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Tessera — in-memory OLAP cube engine

Usage:
  tessera --file sales.csv --discover --format pretty
  tessera --file sales.csv --op "slice:Region=East" --format csv
  tessera --file sales.csv --op "drillup:Date=Day" --op "pivot:x=Region,measure=Sales"
  tessera --file sales.csv --aggregate "Region:Sales:sum" --format csv
  tessera --file sales.csv --serve :8080

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Operations:
  slice:Dim=Value              fix one dimension to a single value
  dice:Dim=v1|v2;Dim2=v3       fix dimensions to value sets
  drilldown:Dim=Level          expand to the finer hierarchy level
  drillup:Dim=Level            collapse to the coarser level, re-aggregating
  pivot:x=A,y=B,z=C,measure=M  re-derive the cube by new axis dimensions

Formats:
  json      Full JSON output (default)
  pretty    Pretty-printed JSON
  csv       Cube cells as CSV (ready for Sheets/Excel)
  text      Human-readable summary only
`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("tessera %s\n", version)
		os.Exit(0)
	}
	if *filePath == "" {
		fmt.Fprintln(os.Stderr, "Error: --file is required")
		flag.Usage()
		os.Exit(1)
	}

	// ── Output writer ─────────────────────────────────────────────────────
	writer := os.Stdout
	if *outFile != "" {
		f, err := os.Create(*outFile)
		if err != nil {
			fatalf("Failed to create output file: %v", err)
		}
		defer f.Close()
		writer = f
	}

	// ── Read data ─────────────────────────────────────────────────────────
	data, err := os.ReadFile(*filePath)
	if err != nil {
		fatalf("Failed to read file: %v", err)
	}
	records, headers, err := helpers.ParseCSV(data)
	if err != nil {
		fatalf("Failed to parse CSV: %v", err)
	}
	log.Printf("📊 Parsed %d records", len(records))

	// ── Schema config ─────────────────────────────────────────────────────
	opts := []schema.Option{schema.WithColumnOrder(headers)}
	var cfg *schema.Config
	if *configPath != "" {
		cfgData, err := os.ReadFile(*configPath)
		if err != nil {
			fatalf("Failed to read config: %v", err)
		}
		cfg, err = schema.LoadConfig(cfgData)
		if err != nil {
			fatalf("Invalid config: %v", err)
		}
		opts = append(opts, cfg.Options()...)
		log.Printf("📋 Loaded config: %s", cfg.Name)
	}

	dims, measures := schema.Infer(records, opts...)

	// ── Discover mode ─────────────────────────────────────────────────────
	if *discover {
		out := map[string]interface{}{
			"dimensions": dims,
			"measures":   measures,
			"columns":    schema.Profile(records, opts...),
		}
		writeJSON(writer, out, *format)
		return
	}

	cube := engine.BuildCube(records, dims, measures)

	// ── Serve mode ────────────────────────────────────────────────────────
	if *serveAddr != "" {
		h := server.NewHandler(cfg)
		h.SetCube(cube)
		e := server.NewEcho(h)
		log.Printf("🌐 Tessera serving on %s", *serveAddr)
		log.Fatal(e.Start(*serveAddr))
	}

	// ── Apply operations ──────────────────────────────────────────────────
	var applied []engine.Operation
	for _, spec := range ops {
		next, op, err := applyOp(cube, spec)
		if err != nil {
			fatalf("Invalid operation %q: %v", spec, err)
		}
		if !op.Applied {
			log.Printf("⚠️ Operation %s rejected: %s", op.Type, op.Reason)
		}
		cube = next
		applied = append(applied, op)
	}

	// ── Ad-hoc aggregation ────────────────────────────────────────────────
	if *aggSpec != "" {
		cells, err := runAggregate(cube, *aggSpec)
		if err != nil {
			fatalf("Invalid aggregate spec %q: %v", *aggSpec, err)
		}
		switch *format {
		case "csv":
			writeCellsCSV(writer, cellColumns(cells), cells)
		default:
			writeJSON(writer, map[string]interface{}{"cells": cells}, *format)
		}
		return
	}

	// ── Render output ─────────────────────────────────────────────────────
	switch *format {
	case "csv":
		writeCubeCSV(writer, cube)
	case "text":
		writeText(writer, cube, applied)
	default:
		writeJSON(writer, cliOutput{Cube: cube, Operations: applied}, *format)
	}
}

type cliOutput struct {
	Cube       *engine.Cube       `json:"cube"`
	Operations []engine.Operation `json:"operations,omitempty"`
}

// ============================================================================
// OPERATION PARSING
// ============================================================================

// applyOp parses "type:args" and applies the operator to the cube.
func applyOp(cube *engine.Cube, spec string) (*engine.Cube, engine.Operation, error) {
	kind, args, ok := strings.Cut(spec, ":")
	if !ok {
		return nil, engine.Operation{}, fmt.Errorf("expected \"type:args\"")
	}

	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "slice":
		dim, val, ok := strings.Cut(args, "=")
		if !ok {
			return nil, engine.Operation{}, fmt.Errorf("slice expects Dim=Value")
		}
		next, op := engine.Slice(cube, strings.TrimSpace(dim), engine.ParseValue(val))
		return next, op, nil

	case "dice":
		conditions := make(map[string][]engine.Value)
		for _, clause := range strings.Split(args, ";") {
			dim, vals, ok := strings.Cut(clause, "=")
			if !ok {
				return nil, engine.Operation{}, fmt.Errorf("dice expects Dim=v1|v2")
			}
			dim = strings.TrimSpace(dim)
			for _, v := range strings.Split(vals, "|") {
				conditions[dim] = append(conditions[dim], engine.ParseValue(v))
			}
		}
		next, op := engine.Dice(cube, conditions)
		return next, op, nil

	case "drilldown":
		dim, level, ok := strings.Cut(args, "=")
		if !ok {
			return nil, engine.Operation{}, fmt.Errorf("drilldown expects Dim=Level")
		}
		next, op := engine.DrillDown(cube, strings.TrimSpace(dim), strings.TrimSpace(level))
		return next, op, nil

	case "drillup":
		dim, level, ok := strings.Cut(args, "=")
		if !ok {
			return nil, engine.Operation{}, fmt.Errorf("drillup expects Dim=Level")
		}
		next, op := engine.DrillUp(cube, strings.TrimSpace(dim), strings.TrimSpace(level))
		return next, op, nil

	case "pivot":
		var axes engine.AxisAssignment
		for _, clause := range strings.Split(args, ",") {
			key, val, ok := strings.Cut(clause, "=")
			if !ok {
				continue
			}
			val = strings.TrimSpace(val)
			switch strings.ToLower(strings.TrimSpace(key)) {
			case "x":
				axes.X = val
			case "y":
				axes.Y = val
			case "z":
				axes.Z = val
			case "measure":
				axes.Measure = val
			}
		}
		next, op := engine.Pivot(cube, axes)
		return next, op, nil
	}

	return nil, engine.Operation{}, fmt.Errorf("unknown operation type %q", kind)
}

// runAggregate parses "Dim1,Dim2:Measure:kind" and aggregates the cells.
func runAggregate(cube *engine.Cube, spec string) ([]engine.CubeCell, error) {
	parts := strings.Split(spec, ":")
	if len(parts) != 3 {
		return nil, fmt.Errorf("expected \"dims:measure:kind\"")
	}
	var groupDims []string
	for _, d := range strings.Split(parts[0], ",") {
		if d = strings.TrimSpace(d); d != "" {
			groupDims = append(groupDims, d)
		}
	}
	kind, err := engine.ParseAggregation(parts[2])
	if err != nil {
		return nil, err
	}
	return engine.Aggregate(cube.Cells, groupDims, strings.TrimSpace(parts[1]), kind), nil
}

// ============================================================================
// CSV OUTPUT — cube cells as a flat table
// ============================================================================

func writeCubeCSV(w *os.File, cube *engine.Cube) {
	var cols []string
	for _, d := range cube.Dimensions {
		cols = append(cols, d.Name)
	}
	for _, m := range cube.Measures {
		cols = append(cols, m.Name)
	}
	writeCellsCSV(w, cols, cube.Cells)
}

// cellColumns derives a column list from aggregated cells (coordinates in
// first-cell order are not stable across maps, so sort for determinism).
func cellColumns(cells []engine.CubeCell) []string {
	if len(cells) == 0 {
		return nil
	}
	var cols []string
	for k := range cells[0].Coordinates {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	var meas []string
	for k := range cells[0].Measures {
		meas = append(meas, k)
	}
	sort.Strings(meas)
	return append(cols, meas...)
}

func writeCellsCSV(w *os.File, cols []string, cells []engine.CubeCell) {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	cw.Write(cols)
	for _, cell := range cells {
		row := make([]string, 0, len(cols))
		for _, col := range cols {
			if v, ok := cell.Coordinates[col]; ok {
				row = append(row, v.String())
				continue
			}
			if m, ok := cell.Measures[col]; ok {
				row = append(row, fmtNum(m))
				continue
			}
			row = append(row, "")
		}
		cw.Write(row)
	}
}

// ============================================================================
// TEXT OUTPUT
// ============================================================================

func writeText(w *os.File, cube *engine.Cube, ops []engine.Operation) {
	fmt.Fprintf(w, "Cube: %d cells, %d dimensions, %d measures\n",
		len(cube.Cells), len(cube.Dimensions), len(cube.Measures))
	for _, d := range cube.Dimensions {
		fmt.Fprintf(w, "  dimension %-16s %-12s %d distinct values\n",
			d.Name, d.Kind, len(d.UniqueValues))
	}
	for _, m := range cube.Measures {
		fmt.Fprintf(w, "  measure   %-16s %-12s total %s\n",
			m.Name, m.Aggregation, fmtNum(m.Value))
	}
	for _, op := range ops {
		status := "applied"
		if !op.Applied {
			status = "rejected: " + op.Reason
		}
		fmt.Fprintf(w, "  op %-10s %v — %s\n", op.Type, op.Params, status)
	}
}

// ============================================================================
// HELPERS
// ============================================================================

func writeJSON(w *os.File, v interface{}, format string) {
	var out []byte
	var err error
	if format == "pretty" {
		out, err = json.MarshalIndent(v, "", "  ")
	} else {
		out, err = json.Marshal(v)
	}
	if err != nil {
		fatalf("Failed to marshal output: %v", err)
	}
	fmt.Fprintln(w, string(out))
}

func fmtNum(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
