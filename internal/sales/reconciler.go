// Package sales applies consumption events (counter sales, workshop
// jobs) against the inventory ledger and keeps the append-only sales
// log.
package sales

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/elnetongas03/JQ-MOTORS-INVENTARIOS/internal/ledger"
	"github.com/elnetongas03/JQ-MOTORS-INVENTARIOS/internal/store"
)

// Columns is the persisted sales log header
var Columns = []string{"fecha", "forma_pago", "codigo", "cantidad", "p_unitario", "precio", "total"}

const (
	timeLayout = "2006-01-02 15:04:05"
	vatRate    = 1.16
)

// PaymentMethod is the declared payment form of a sale
type PaymentMethod string

const (
	Cash     PaymentMethod = "Efectivo"
	Card     PaymentMethod = "Tarjeta"
	Transfer PaymentMethod = "Transferencia"
)

// paymentPriority orders the persisted log: cash first, then card,
// then transfer; anything unrecognized sorts last.
func paymentPriority(m string) int {
	switch PaymentMethod(m) {
	case Cash:
		return 0
	case Card:
		return 1
	case Transfer:
		return 2
	default:
		return 3
	}
}

// Event is one consumption of stock: a sale line or a workshop part
type Event struct {
	ID            uuid.UUID     `json:"id"`
	Timestamp     time.Time     `json:"fecha"`
	PaymentMethod PaymentMethod `json:"forma_pago"`
	Code          string        `json:"codigo"`
	Description   string        `json:"descripcion"`
	Quantity      int           `json:"cantidad"`
	Price         float64       `json:"precio"`
}

// UnitPriceExVAT derives the unit price without VAT from the listed
// price, rounded to cents
func (e Event) UnitPriceExVAT() float64 {
	return float64(int(e.Price/vatRate*100+0.5)) / 100
}

// Total is quantity times listed price
func (e Event) Total() float64 {
	return float64(e.Quantity) * e.Price
}

// Applied reports the outcome of one event against the ledger
type Applied struct {
	Event Event       `json:"evento"`
	Found bool        `json:"encontrado"`
	Item  ledger.Item `json:"articulo"`
}

// Reconciler couples a ledger with a sales log file
type Reconciler struct {
	ledger  *ledger.Ledger
	logPath string
	mu      sync.Mutex
}

// New returns a reconciler writing its log to logPath
func New(led *ledger.Ledger, logPath string) *Reconciler {
	return &Reconciler{ledger: led, logPath: logPath}
}

// Apply processes events in order, each one independently: the stock
// of a known code is decremented (clamped at zero) and the event is
// appended to the sales log whether or not the code was known. A
// failure on one event does not undo the earlier ones.
func (r *Reconciler) Apply(events []Event) ([]Applied, error) {
	// Invalid input aborts the whole batch before anything is mutated
	for _, e := range events {
		if e.Code == "" || e.Quantity <= 0 {
			return nil, errors.Wrapf(ledger.ErrInvalidInput, "codigo %q cantidad %d", e.Code, e.Quantity)
		}
	}

	results := make([]Applied, 0, len(events))
	var logged []Event
	var applyErr error

	for _, e := range events {
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		if e.Timestamp.IsZero() {
			e.Timestamp = time.Now()
		}

		item, found, err := r.ledger.Consume(e.Code, e.Quantity)
		if err != nil {
			applyErr = errors.Wrap(err, "failed to apply consumption to ledger")
			break
		}
		if !found {
			log.Debug().Str("codigo", e.Code).Msg("consumption for unknown code, recording without stock change")
		}
		results = append(results, Applied{Event: e, Found: found, Item: item})
		logged = append(logged, e)
	}

	// Events already applied stay applied and logged even when a later
	// one failed: there is no batch rollback.
	if len(logged) > 0 {
		if err := r.appendLog(logged); err != nil && applyErr == nil {
			applyErr = err
		}
	}
	return results, applyErr
}

// appendLog concatenates the new events onto the existing log and
// rewrites it grouped by payment priority (stable order otherwise)
func (r *Reconciler) appendLog(events []Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := store.Load(r.logPath, Columns)
	if err != nil {
		return errors.Wrap(err, "failed to load sales log")
	}
	if t.ColumnIndex("forma_pago") < 0 {
		t = store.NewTable(Columns)
	}

	for _, e := range events {
		t.Append([]string{
			e.Timestamp.Format(timeLayout),
			string(e.PaymentMethod),
			e.Code,
			strconv.Itoa(e.Quantity),
			fmt.Sprintf("%.2f", e.UnitPriceExVAT()),
			fmt.Sprintf("%.2f", e.Price),
			fmt.Sprintf("%.2f", e.Total()),
		})
	}

	payIdx := t.ColumnIndex("forma_pago")
	sort.SliceStable(t.Rows, func(i, j int) bool {
		return paymentPriority(t.Rows[i][payIdx]) < paymentPriority(t.Rows[j][payIdx])
	})

	return errors.Wrap(store.Save(r.logPath, t), "failed to save sales log")
}

// LogPath returns the sales log file path
func (r *Reconciler) LogPath() string {
	return r.logPath
}
