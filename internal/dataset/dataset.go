// Package dataset reads the work-item source table and writes the output
// artifact. The table keeps the input's shape plus per-source result
// columns; snapshot writes are whole-file and atomic so the output can be
// opened mid-run without ever seeing a partial write.
package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Required work-item columns.
const (
	ColDrugA  = "Drug_A_Name"
	ColDrugB  = "Drug_B_Name"
	ColClassA = "Drug_A_Class"
	ColClassB = "Drug_B_Class"
)

// placeholders are result-column values that do not count as a prior
// result. Non-Success statuses stamped into the column by an earlier run
// are re-attemptable once the operator clears the checkpoint (the
// checkpoint, not the input, decides what is done).
var placeholders = map[string]bool{
	"":        true,
	"TBD":     true,
	"Failed":  true,
	"Error":   true,
	"Timeout": true,
}

// Item is one unit of work: an unordered, pre-deduplicated drug pair.
// Immutable once loaded.
type Item struct {
	Index  int
	DrugA  string
	DrugB  string
	ClassA string
	ClassB string
}

// Table is the in-memory dataset, owned exclusively by the pipeline
// driver.
type Table struct {
	header []string
	rows   [][]string
	cols   map[string]int
}

// Load reads the source CSV and validates the required columns.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse source file: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("source file %s is empty", path)
	}

	t := &Table{
		header: records[0],
		rows:   records[1:],
		cols:   make(map[string]int, len(records[0])),
	}
	for i, name := range t.header {
		t.cols[name] = i
	}

	for _, required := range []string{ColDrugA, ColDrugB, ColClassA, ColClassB} {
		if _, ok := t.cols[required]; !ok {
			return nil, fmt.Errorf("source file must contain column %q (found: %s)",
				required, strings.Join(t.header, ", "))
		}
	}

	// Normalize ragged rows so column writes can't go out of bounds.
	for i, row := range t.rows {
		for len(row) < len(t.header) {
			row = append(row, "")
		}
		t.rows[i] = row
	}

	return t, nil
}

// Len returns the number of work items.
func (t *Table) Len() int {
	return len(t.rows)
}

// Item returns the work item at index i.
func (t *Table) Item(i int) Item {
	row := t.rows[i]
	return Item{
		Index:  i,
		DrugA:  strings.TrimSpace(row[t.cols[ColDrugA]]),
		DrugB:  strings.TrimSpace(row[t.cols[ColDrugB]]),
		ClassA: strings.TrimSpace(row[t.cols[ColClassA]]),
		ClassB: strings.TrimSpace(row[t.cols[ColClassB]]),
	}
}

// EnsureColumns appends any missing columns, padding existing rows.
func (t *Table) EnsureColumns(names ...string) {
	for _, name := range names {
		if _, ok := t.cols[name]; ok {
			continue
		}
		t.cols[name] = len(t.header)
		t.header = append(t.header, name)
		for i := range t.rows {
			t.rows[i] = append(t.rows[i], "")
		}
	}
}

// Get returns the value at row i, column name.
func (t *Table) Get(i int, name string) string {
	col, ok := t.cols[name]
	if !ok {
		return ""
	}
	return t.rows[i][col]
}

// Set writes the value at row i, column name.
func (t *Table) Set(i int, name, value string) {
	if col, ok := t.cols[name]; ok {
		t.rows[i][col] = value
	}
}

// HasResult reports whether row i already carries a real result in the
// given column. Rows with prior results are treated as already persisted
// and never reach the browser.
func (t *Table) HasResult(i int, name string) bool {
	return !placeholders[strings.TrimSpace(t.Get(i, name))]
}

// Snapshot writes the whole table to path atomically: a temp file in the
// same directory, synced, then renamed over the target.
func (t *Table) Snapshot(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create snapshot temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := csv.NewWriter(tmp)
	if err := w.Write(t.header); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write snapshot header: %w", err)
	}
	if err := w.WriteAll(t.rows); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write snapshot rows: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to flush snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}
	return nil
}
