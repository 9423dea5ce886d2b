package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

var testColumns = []string{"codigo", "descripcion", "ubicacion", "stock", "precio"}

func TestLoadCreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventario.xlsx")

	table, err := Load(path, testColumns)
	require.NoError(t, err)
	require.Equal(t, testColumns, table.Columns)
	require.Empty(t, table.Rows)

	// The file must now exist with the header row
	_, err = os.Stat(path)
	require.NoError(t, err)

	reloaded, err := Load(path, nil)
	require.NoError(t, err)
	require.Equal(t, testColumns, reloaded.Columns)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventario.xlsx")

	table := NewTable(testColumns)
	table.Append([]string{"A001", "Filtro de aceite", "B2", "10", "150.50"})
	table.Append([]string{"A002", "Bujía", "", "3", "80"})
	require.NoError(t, Save(path, table))

	loaded, err := Load(path, testColumns)
	require.NoError(t, err)
	require.Equal(t, table.Columns, loaded.Columns)
	require.Equal(t, table.Rows, loaded.Rows)
}

func TestLoadUnparseableFileDegrades(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roto.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("esto no es un xlsx"), 0o644))

	table, err := Load(path, testColumns)
	require.NoError(t, err)
	require.Equal(t, testColumns, table.Columns)
	require.Empty(t, table.Rows)
}

func TestAppendPadsAndTruncates(t *testing.T) {
	table := NewTable([]string{"a", "b", "c"})
	table.Append([]string{"1"})
	table.Append([]string{"1", "2", "3", "4"})

	require.Equal(t, []string{"1", "", ""}, table.Rows[0])
	require.Equal(t, []string{"1", "2", "3"}, table.Rows[1])
}

func TestDedupeKeepsLastOccurrence(t *testing.T) {
	table := NewTable(testColumns)
	table.Append([]string{"A001", "vieja", "", "1", "10"})
	table.Append([]string{"B001", "otra", "", "2", "20"})
	table.Append([]string{"á001", "nueva", "", "5", "50"})

	deduped := Dedupe(table, "codigo")
	require.Len(t, deduped.Rows, 2)
	require.Equal(t, "B001", deduped.Rows[0][0])
	require.Equal(t, "á001", deduped.Rows[1][0])
	require.Equal(t, "nueva", deduped.Rows[1][1])
}

func TestDedupeIsIdempotent(t *testing.T) {
	table := NewTable(testColumns)
	table.Append([]string{"A001", "uno", "", "1", "10"})
	table.Append([]string{"a001", "dos", "", "2", "20"})
	table.Append([]string{"C003", "tres", "", "3", "30"})

	once := Dedupe(table, "codigo")
	twice := Dedupe(once, "codigo")
	require.Equal(t, once.Rows, twice.Rows)
	require.Equal(t, once.Columns, twice.Columns)
}

func TestDedupeWithoutKeyColumn(t *testing.T) {
	table := NewTable([]string{"x"})
	table.Append([]string{"1"})
	table.Append([]string{"1"})

	deduped := Dedupe(table, "codigo")
	require.Len(t, deduped.Rows, 2)
}

func TestNormalizeKey(t *testing.T) {
	require.Equal(t, "MOTOR", NormalizeKey("  mótor "))
	require.Equal(t, "MOTOR", NormalizeKey("MÓTOR"))
	require.Equal(t, NormalizeKey("JALÓN"), NormalizeKey("jalon"))
	require.Equal(t, "", NormalizeKey("   "))
}
