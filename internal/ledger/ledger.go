// Package ledger holds the authoritative inventory record set of a
// process. Every operation is a load-mutate-save cycle over the
// backing xlsx table, serialized by a per-ledger mutex so concurrent
// callers within the process cannot lose updates. Across processes
// the store remains last-write-wins.
package ledger

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/elnetongas03/JQ-MOTORS-INVENTARIOS/internal/store"
)

// Columns is the persisted inventory table header
var Columns = []string{"codigo", "descripcion", "ubicacion", "stock", "precio"}

var (
	// ErrNotFound indicates no record matches the requested code
	ErrNotFound = errors.New("articulo no encontrado")
	// ErrInvalidInput indicates a blank code or non-positive quantity
	ErrInvalidInput = errors.New("entrada invalida")
)

// Item is a single inventory record. Available and InWorkshop are
// derived on read; the stock column is not split by location, so
// InWorkshop is always zero.
type Item struct {
	Code        string  `json:"codigo"`
	Description string  `json:"descripcion"`
	Location    string  `json:"ubicacion"`
	Stock       int     `json:"stock"`
	Price       float64 `json:"precio"`
	Available   int     `json:"libres"`
	InWorkshop  int     `json:"en_taller"`
	NewEntries  int     `json:"nuevas_entradas"`
}

// Direction selects the sign of a stock adjustment
type Direction int

const (
	Increase Direction = iota
	Decrease
)

// Ledger is bound to one inventory file
type Ledger struct {
	path string
	mu   sync.Mutex
}

// New returns a ledger over the inventory file at path
func New(path string) *Ledger {
	return &Ledger{path: path}
}

// Path returns the backing file path
func (l *Ledger) Path() string {
	return l.path
}

// Items returns the deduplicated current record set
func (l *Ledger) Items() ([]Item, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, err := l.load()
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(t.Rows))
	for _, row := range t.Rows {
		items = append(items, itemFromRow(t, row))
	}
	return items, nil
}

// Snapshot returns the current record set. It matches the snapshot
// contract of the sync publisher; reading the table is fast enough
// that the context is not consulted.
func (l *Ledger) Snapshot(_ context.Context) ([]Item, error) {
	return l.Items()
}

// FindByCode returns the record whose normalized code matches code
// exactly. Substring matches are not considered.
func (l *Ledger) FindByCode(code string) (Item, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, err := l.load()
	if err != nil {
		return Item{}, err
	}
	if i := findRow(t, code); i >= 0 {
		return itemFromRow(t, t.Rows[i]), nil
	}
	return Item{}, errors.Wrapf(ErrNotFound, "codigo %s", store.NormalizeKey(code))
}

// SearchDescription returns every record whose description contains
// the given fragment, compared case- and accent-insensitively.
func (l *Ledger) SearchDescription(fragment string) ([]Item, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, err := l.load()
	if err != nil {
		return nil, err
	}
	needle := store.NormalizeKey(fragment)
	descIdx := t.ColumnIndex("descripcion")
	if descIdx < 0 {
		return nil, nil
	}

	var items []Item
	for _, row := range t.Rows {
		if strings.Contains(store.NormalizeKey(row[descIdx]), needle) {
			items = append(items, itemFromRow(t, row))
		}
	}
	return items, nil
}

// AdjustStock adds or subtracts qty from the matching record's stock.
// Decrements clamp at zero, stock never goes negative.
func (l *Ledger) AdjustStock(code string, qty int, dir Direction) (Item, error) {
	if strings.TrimSpace(code) == "" {
		return Item{}, errors.Wrap(ErrInvalidInput, "codigo requerido")
	}
	if qty <= 0 {
		return Item{}, errors.Wrap(ErrInvalidInput, "cantidad debe ser mayor a cero")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	t, err := l.load()
	if err != nil {
		return Item{}, err
	}
	i := findRow(t, code)
	if i < 0 {
		return Item{}, errors.Wrapf(ErrNotFound, "codigo %s", store.NormalizeKey(code))
	}

	stockIdx := t.ColumnIndex("stock")
	stock := parseInt(t.Rows[i][stockIdx])
	if dir == Increase {
		stock += qty
	} else {
		stock -= qty
		if stock < 0 {
			stock = 0
		}
	}
	t.Rows[i][stockIdx] = strconv.Itoa(stock)

	if err := store.Save(l.path, t); err != nil {
		return Item{}, err
	}
	return itemFromRow(t, t.Rows[i]), nil
}

// Upsert overwrites the record matching item's normalized code in
// place, or appends a new record when none exists
func (l *Ledger) Upsert(item Item) (Item, error) {
	if strings.TrimSpace(item.Code) == "" {
		return Item{}, errors.Wrap(ErrInvalidInput, "codigo requerido")
	}
	if item.Stock < 0 {
		return Item{}, errors.Wrap(ErrInvalidInput, "stock no puede ser negativo")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	t, err := l.load()
	if err != nil {
		return Item{}, err
	}
	row := rowFromItem(t, item)
	if i := findRow(t, item.Code); i >= 0 {
		t.Rows[i] = row
	} else {
		t.Rows = append(t.Rows, row)
	}

	if err := store.Save(l.path, t); err != nil {
		return Item{}, err
	}
	return itemFromRow(t, row), nil
}

// Delete removes every record whose normalized code is in codes.
// Codes that match nothing are silently ignored.
func (l *Ledger) Delete(codes []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, err := l.load()
	if err != nil {
		return err
	}
	wanted := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		wanted[store.NormalizeKey(c)] = struct{}{}
	}

	codeIdx := t.ColumnIndex("codigo")
	kept := t.Rows[:0]
	for _, row := range t.Rows {
		if _, gone := wanted[store.NormalizeKey(row[codeIdx])]; !gone {
			kept = append(kept, row)
		}
	}
	t.Rows = kept

	return store.Save(l.path, t)
}

// Consume decrements stock for a consumption event. Unlike
// AdjustStock, an unknown code is not an error: the event is still
// recorded by the caller and the ledger is left untouched.
func (l *Ledger) Consume(code string, qty int) (Item, bool, error) {
	if strings.TrimSpace(code) == "" || qty <= 0 {
		return Item{}, false, errors.Wrap(ErrInvalidInput, "codigo y cantidad requeridos")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	t, err := l.load()
	if err != nil {
		return Item{}, false, err
	}
	i := findRow(t, code)
	if i < 0 {
		return Item{}, false, nil
	}

	stockIdx := t.ColumnIndex("stock")
	stock := parseInt(t.Rows[i][stockIdx]) - qty
	if stock < 0 {
		stock = 0
	}
	t.Rows[i][stockIdx] = strconv.Itoa(stock)

	if err := store.Save(l.path, t); err != nil {
		return Item{}, false, err
	}
	return itemFromRow(t, t.Rows[i]), true, nil
}

// ImportFile merges the records of another inventory workbook into
// this ledger. Incoming rows win over existing ones with the same
// normalized code. Returns the resulting record count.
func (l *Ledger) ImportFile(path string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, err := l.load()
	if err != nil {
		return 0, err
	}
	incoming, err := store.Load(path, Columns)
	if err != nil {
		return 0, err
	}
	for _, row := range incoming.Rows {
		t.Append(rowFromItem(t, itemFromRow(incoming, row)))
	}
	t = store.Dedupe(t, "codigo")

	if err := store.Save(l.path, t); err != nil {
		return 0, err
	}
	return len(t.Rows), nil
}

// ExportFile writes a copy of the current record set to path
func (l *Ledger) ExportFile(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, err := l.load()
	if err != nil {
		return err
	}
	return store.Save(path, t)
}

// load reads the backing table and applies the single-record-per-code
// invariant: duplicates keep the last occurrence in file order. A
// table missing any required column is reset to an empty one, same as
// an unparseable file.
func (l *Ledger) load() (*store.Table, error) {
	t, err := store.Load(l.path, Columns)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load inventory table")
	}
	for _, col := range Columns {
		if t.ColumnIndex(col) < 0 {
			t = store.NewTable(Columns)
			break
		}
	}
	return store.Dedupe(t, "codigo"), nil
}

func findRow(t *store.Table, code string) int {
	codeIdx := t.ColumnIndex("codigo")
	if codeIdx < 0 {
		return -1
	}
	want := store.NormalizeKey(code)
	for i, row := range t.Rows {
		if store.NormalizeKey(row[codeIdx]) == want {
			return i
		}
	}
	return -1
}

func itemFromRow(t *store.Table, row []string) Item {
	get := func(col string) string {
		if i := t.ColumnIndex(col); i >= 0 && i < len(row) {
			return row[i]
		}
		return ""
	}
	stock := parseInt(get("stock"))
	return Item{
		Code:        strings.TrimSpace(get("codigo")),
		Description: get("descripcion"),
		Location:    get("ubicacion"),
		Stock:       stock,
		Price:       parseFloat(get("precio")),
		Available:   stock,
	}
}

func rowFromItem(t *store.Table, item Item) []string {
	row := make([]string, len(t.Columns))
	set := func(col, val string) {
		if i := t.ColumnIndex(col); i >= 0 {
			row[i] = val
		}
	}
	set("codigo", strings.TrimSpace(item.Code))
	set("descripcion", item.Description)
	set("ubicacion", item.Location)
	set("stock", strconv.Itoa(item.Stock))
	set("precio", strconv.FormatFloat(item.Price, 'f', -1, 64))
	return row
}

func parseInt(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
