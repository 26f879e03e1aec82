package export

import "fmt"

// Table is an ordered, rectangular report body.
type Table struct {
	Columns []string
	Rows    [][]string
	// Footer is rendered after the rows when present, e.g. totals.
	Footer []string
}

// NewTable starts a table with the given column headings.
func NewTable(columns ...string) *Table {
	return &Table{Columns: columns}
}

// Append adds a row. Missing cells are padded with empty strings; extra cells are an error.
func (t *Table) Append(values ...string) error {
	if len(values) > len(t.Columns) {
		return fmt.Errorf("row has %d cells, table has %d columns", len(values), len(t.Columns))
	}
	row := make([]string, len(t.Columns))
	copy(row, values)
	t.Rows = append(t.Rows, row)
	return nil
}

func (t *Table) validate() error {
	if t == nil || len(t.Columns) == 0 {
		return fmt.Errorf("table requires at least one column")
	}
	if len(t.Footer) > len(t.Columns) {
		return fmt.Errorf("footer has %d cells, table has %d columns", len(t.Footer), len(t.Columns))
	}
	return nil
}
