package quote

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/elnetongas03/JQ-MOTORS-INVENTARIOS/internal/ledger"
	"github.com/elnetongas03/JQ-MOTORS-INVENTARIOS/internal/store"
)

func TestAddValidatesLines(t *testing.T) {
	q := New()

	require.Error(t, q.Add(Line{Code: "", Quantity: 1, Price: 10}))
	require.Error(t, q.Add(Line{Code: "A001", Quantity: 0, Price: 10}))
	require.Error(t, q.Add(Line{Code: "A001", Quantity: 1, Price: 0}))
	require.Empty(t, q.Lines)

	require.NoError(t, q.Add(Line{Code: "A001", Quantity: 2, Price: 10}))
	require.Len(t, q.Lines, 1)
	require.Equal(t, Available, q.Lines[0].Availability)
}

func TestTotals(t *testing.T) {
	q := New()
	require.NoError(t, q.Add(Line{Code: "A001", Quantity: 2, Price: 100}))
	require.NoError(t, q.Add(Line{Code: "A002", Quantity: 1, Price: 50.5}))

	require.Equal(t, 250.5, q.Total())

	q.Remove(0)
	require.Equal(t, 50.5, q.Total())

	q.Remove(7) // out of range, ignored
	require.Len(t, q.Lines, 1)
}

func TestLineFromItemAvailability(t *testing.T) {
	item := ledger.Item{Code: "A001", Description: "Filtro", Stock: 3, Price: 100}

	line := LineFromItem(item, 2)
	require.Equal(t, Available, line.Availability)
	require.Equal(t, 100.0, line.Price)

	line = LineFromItem(item, 5)
	require.Equal(t, NotAvailable, line.Availability)
}

func TestSaveWritesWorkbook(t *testing.T) {
	q := New()
	require.NoError(t, q.Add(Line{Code: "A001", Description: "Filtro", Quantity: 2, Price: 100}))

	path := filepath.Join(t.TempDir(), "cotizacion.xlsx")
	require.NoError(t, q.Save(path))

	table, err := store.Load(path, Columns)
	require.NoError(t, err)
	require.Equal(t, Columns, table.Columns)
	require.Len(t, table.Rows, 1)
	require.Equal(t, "A001", table.Rows[0][0])
	require.Equal(t, "200.00", table.Rows[0][4])
	require.Equal(t, Available, table.Rows[0][5])
}

func TestSaveEmptyQuoteFails(t *testing.T) {
	q := New()
	err := q.Save(filepath.Join(t.TempDir(), "cotizacion.xlsx"))
	require.ErrorIs(t, err, ledger.ErrInvalidInput)
}
