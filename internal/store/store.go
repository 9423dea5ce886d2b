// Package store implements the flat tabular record store backing the
// inventory and sales ledgers. Tables are persisted as single-sheet
// xlsx workbooks where every cell is treated as a string.
package store

import (
	"os"
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const sheetName = "Sheet1"

// Table is an in-memory tabular snapshot of a backing file. Cells are
// always strings; numeric interpretation belongs to the callers.
type Table struct {
	Columns []string
	Rows    [][]string
}

// NewTable returns an empty table with the given header
func NewTable(columns []string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// Append adds a row, padding or truncating it to the header width
func (t *Table) Append(row []string) {
	t.Rows = append(t.Rows, fitRow(row, len(t.Columns)))
}

// ColumnIndex returns the index of the named column or -1
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if strings.EqualFold(strings.TrimSpace(c), name) {
			return i
		}
	}
	return -1
}

// Load reads the table at path. A missing file is created empty with
// the expected header; an unparseable file degrades silently to an
// empty table instead of propagating the error.
func Load(path string, columns []string) (*Table, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t := NewTable(columns)
		if err := Save(path, t); err != nil {
			return nil, err
		}
		return t, nil
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return NewTable(columns), nil
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return NewTable(columns), nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil || len(rows) == 0 || len(rows[0]) == 0 {
		return NewTable(columns), nil
	}

	t := &Table{Columns: rows[0]}
	for _, row := range rows[1:] {
		t.Append(row)
	}
	return t, nil
}

// Save overwrites the file at path with the full table. There is no
// atomic rename: a crash mid-write can corrupt the file. Known risk,
// kept to preserve the last-write-wins semantics of the store.
func Save(path string, t *Table) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetRow(sheetName, "A1", &t.Columns); err != nil {
		return errors.Wrap(err, "failed to write header row")
	}
	for i, row := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errors.Wrap(err, "failed to compute cell coordinates")
		}
		r := row
		if err := f.SetSheetRow(sheetName, cell, &r); err != nil {
			return errors.Wrapf(err, "failed to write row %d", i)
		}
	}

	return errors.Wrapf(f.SaveAs(path), "failed to save table to %s", path)
}

// Dedupe keeps the last row per normalized value of keyColumn,
// preserving the original order of the surviving rows. Tables without
// the key column are returned unchanged.
func Dedupe(t *Table, keyColumn string) *Table {
	idx := t.ColumnIndex(keyColumn)
	if idx < 0 {
		out := NewTable(t.Columns)
		out.Rows = append(out.Rows, t.Rows...)
		return out
	}

	last := make(map[string]int, len(t.Rows))
	for i, row := range t.Rows {
		last[NormalizeKey(row[idx])] = i
	}

	out := NewTable(t.Columns)
	for i, row := range t.Rows {
		if last[NormalizeKey(row[idx])] == i {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

var keyTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeKey strips diacritics, trims surrounding whitespace and
// uppercases, so that "  mótor " and "MOTOR" compare equal.
func NormalizeKey(s string) string {
	out, _, err := transform.String(keyTransformer, s)
	if err != nil {
		out = s
	}
	return strings.ToUpper(strings.TrimSpace(out))
}

func fitRow(row []string, width int) []string {
	out := make([]string, width)
	for i := 0; i < width && i < len(row); i++ {
		out[i] = row[i]
	}
	return out
}
