package helpers

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/tessera-org/tessera/engine"
)

// ============================================================================
// CSV HELPER — Parses CSV data into []engine.Record
// ============================================================================
// The consumer reads the CSV from wherever it lives (file, S3, upload body).
// This helper converts the raw bytes into flat records; each cell is typed
// through engine.ParseValue so schema inference and strict-equality filtering
// see consistent scalars.
// ============================================================================

// ParseCSV parses CSV bytes into records plus the header order. Malformed
// rows are skipped. The returned headers feed schema.WithColumnOrder so the
// inferred dimension list follows the source column order.
func ParseCSV(data []byte) ([]engine.Record, []string, error) {
	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV headers: %w", err)
	}
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}
	if len(headers) == 0 {
		return nil, nil, fmt.Errorf("CSV has no columns")
	}

	var records []engine.Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // skip malformed rows
		}

		rec := make(engine.Record, len(headers))
		for i, h := range headers {
			if i >= len(row) {
				rec[h] = engine.Text("")
				continue
			}
			rec[h] = engine.ParseValue(row[i])
		}
		records = append(records, rec)
	}

	return records, headers, nil
}
