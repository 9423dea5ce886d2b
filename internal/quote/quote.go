// Package quote builds customer quotes. A quote captures prices at a
// point in time and never touches inventory stock.
package quote

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/elnetongas03/JQ-MOTORS-INVENTARIOS/internal/ledger"
	"github.com/elnetongas03/JQ-MOTORS-INVENTARIOS/internal/store"
)

// Columns is the exported quote table header
var Columns = []string{"codigo", "descripcion", "precio", "cantidad", "total", "disponibilidad"}

const (
	Available    = "Disponible"
	NotAvailable = "No disponible"
)

// Line is a single quoted article
type Line struct {
	Code         string  `json:"codigo"`
	Description  string  `json:"descripcion"`
	Price        float64 `json:"precio"`
	Quantity     int     `json:"cantidad"`
	Availability string  `json:"disponibilidad"`
}

// Total is quantity times quoted price
func (l Line) Total() float64 {
	return float64(l.Quantity) * l.Price
}

// Quote is an ordered set of quoted lines
type Quote struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"fecha"`
	Lines     []Line    `json:"articulos"`
}

// New returns an empty quote
func New() *Quote {
	return &Quote{ID: uuid.New(), CreatedAt: time.Now()}
}

// Add appends a line after basic validation
func (q *Quote) Add(line Line) error {
	if line.Code == "" || line.Quantity <= 0 || line.Price <= 0 {
		return errors.Wrap(ledger.ErrInvalidInput, "codigo, cantidad y precio deben ser validos")
	}
	if line.Availability == "" {
		line.Availability = Available
	}
	q.Lines = append(q.Lines, line)
	return nil
}

// Remove drops the line at index i, ignoring out-of-range indexes
func (q *Quote) Remove(i int) {
	if i < 0 || i >= len(q.Lines) {
		return
	}
	q.Lines = append(q.Lines[:i], q.Lines[i+1:]...)
}

// Total sums all line totals
func (q *Quote) Total() float64 {
	var total float64
	for _, l := range q.Lines {
		total += l.Total()
	}
	return total
}

// LineFromItem pre-fills a quote line from a ledger record
func LineFromItem(item ledger.Item, quantity int) Line {
	availability := Available
	if item.Stock < quantity {
		availability = NotAvailable
	}
	return Line{
		Code:         item.Code,
		Description:  item.Description,
		Price:        item.Price,
		Quantity:     quantity,
		Availability: availability,
	}
}

// Save writes the quote as a workbook at path
func (q *Quote) Save(path string) error {
	if len(q.Lines) == 0 {
		return errors.Wrap(ledger.ErrInvalidInput, "no hay articulos para guardar")
	}
	t := store.NewTable(Columns)
	for _, l := range q.Lines {
		t.Append([]string{
			l.Code,
			l.Description,
			fmt.Sprintf("%.2f", l.Price),
			strconv.Itoa(l.Quantity),
			fmt.Sprintf("%.2f", l.Total()),
			l.Availability,
		})
	}
	return errors.Wrapf(store.Save(path, t), "failed to save quote to %s", path)
}
