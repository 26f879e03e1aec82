package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable(t *testing.T) *Table {
	table := NewTable("Student", "Group", "Due date", "Days overdue")
	require.NoError(t, table.Append("Aziz, Jr.", "Math", "2024-05-31", "2"))
	require.NoError(t, table.Append("Bea", "Chess"))
	table.Footer = []string{"Total", "", "", "2"}
	return table
}

func TestTableAppendRejectsExtraCells(t *testing.T) {
	table := NewTable("a")
	assert.Error(t, table.Append("1", "2"))
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleTable(t))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Student,Group,Due date,Days overdue", lines[0])
	assert.Equal(t, `"Aziz, Jr.",Math,2024-05-31,2`, lines[1])
	assert.Equal(t, "Bea,Chess,,", lines[2])
	assert.Equal(t, "Total,,,2", lines[3])
}

func TestCSVExporterRequiresColumns(t *testing.T) {
	_, err := NewCSVExporter().Render(&Table{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleTable(t), "Overdue report", "2024-06-02")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestColumnWidthsFillUsableWidth(t *testing.T) {
	widths := columnWidths(sampleTable(t), 190)
	var sum float64
	for _, w := range widths {
		sum += w
	}
	assert.InDelta(t, 190, sum, 0.01)
}
