// Package workshop keeps per-vehicle part consumption in a single
// workbook, one sheet per vehicle or job. Adding parts to a vehicle
// also consumes stock from the inventory ledger under the same
// clamp-at-zero rules as a sale.
package workshop

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"github.com/elnetongas03/JQ-MOTORS-INVENTARIOS/internal/ledger"
)

// Columns is the per-vehicle sheet header
var Columns = []string{"codigo", "descripcion", "cantidad", "precio", "total"}

// maxSheetName is the xlsx sheet name limit in characters
const maxSheetName = 31

// Part is one consumed part line on a vehicle sheet
type Part struct {
	Code        string  `json:"codigo"`
	Description string  `json:"descripcion"`
	Quantity    int     `json:"cantidad"`
	Price       float64 `json:"precio"`
	Total       float64 `json:"total"`
}

// Book is a workshop workbook bound to one file
type Book struct {
	path   string
	ledger *ledger.Ledger
	mu     sync.Mutex
}

// New returns a workshop book over the workbook at path
func New(path string, led *ledger.Ledger) *Book {
	return &Book{path: path, ledger: led}
}

// AddParts appends parts to the vehicle's sheet and decrements the
// matching ledger stock. Parts referencing unknown codes are still
// recorded on the sheet.
func (b *Book) AddParts(vehicle string, parts []Part) error {
	sheet := sheetName(vehicle)
	if sheet == "" {
		return errors.Wrap(ledger.ErrInvalidInput, "vehiculo requerido")
	}
	for _, p := range parts {
		if p.Code == "" || p.Quantity <= 0 {
			return errors.Wrapf(ledger.ErrInvalidInput, "codigo %q cantidad %d", p.Code, p.Quantity)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	f, err := b.open()
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := ensureSheet(f, sheet)
	if err != nil {
		return err
	}

	next := rows + 1
	for _, p := range parts {
		if p.Total == 0 {
			p.Total = float64(p.Quantity) * p.Price
		}
		cell, err := excelize.CoordinatesToCellName(1, next)
		if err != nil {
			return errors.Wrap(err, "failed to compute cell coordinates")
		}
		row := []interface{}{
			p.Code,
			p.Description,
			strconv.Itoa(p.Quantity),
			fmt.Sprintf("%.2f", p.Price),
			fmt.Sprintf("%.2f", p.Total),
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return errors.Wrapf(err, "failed to write part row for %s", sheet)
		}
		next++

		if _, found, err := b.ledger.Consume(p.Code, p.Quantity); err != nil {
			return errors.Wrap(err, "failed to consume stock for workshop part")
		} else if !found {
			log.Debug().Str("codigo", p.Code).Str("vehiculo", vehicle).Msg("workshop part for unknown code, recording without stock change")
		}
	}

	return errors.Wrapf(f.SaveAs(b.path), "failed to save workshop book to %s", b.path)
}

// Vehicles lists the sheets of the book
func (b *Book) Vehicles() ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := os.Stat(b.path); os.IsNotExist(err) {
		return nil, nil
	}
	f, err := excelize.OpenFile(b.path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open workshop book")
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

// Parts returns the recorded parts for a vehicle
func (b *Book) Parts(vehicle string) ([]Part, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.parts(sheetName(vehicle))
}

// TotalFor sums the total column of a vehicle's sheet
func (b *Book) TotalFor(vehicle string) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	parts, err := b.parts(sheetName(vehicle))
	if err != nil {
		return 0, err
	}
	var total float64
	for _, p := range parts {
		total += p.Total
	}
	return total, nil
}

// RemoveVehicle deletes the vehicle's sheet. Removing the last sheet
// of a workbook is not representable, so the file is removed instead.
func (b *Book) RemoveVehicle(vehicle string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := os.Stat(b.path); os.IsNotExist(err) {
		return nil
	}
	f, err := excelize.OpenFile(b.path)
	if err != nil {
		return errors.Wrap(err, "failed to open workshop book")
	}
	defer f.Close()

	sheet := sheetName(vehicle)
	sheets := f.GetSheetList()
	if len(sheets) == 1 && sheets[0] == sheet {
		return errors.Wrap(os.Remove(b.path), "failed to remove workshop book")
	}
	if err := f.DeleteSheet(sheet); err != nil {
		return errors.Wrapf(err, "failed to delete sheet %s", sheet)
	}
	return errors.Wrap(f.SaveAs(b.path), "failed to save workshop book")
}

// ExportVehicle writes a vehicle's sheet as a standalone workbook
func (b *Book) ExportVehicle(vehicle, destPath string) error {
	b.mu.Lock()
	parts, err := b.parts(sheetName(vehicle))
	b.mu.Unlock()
	if err != nil {
		return err
	}

	out := excelize.NewFile()
	defer out.Close()

	header := []interface{}{}
	for _, c := range Columns {
		header = append(header, c)
	}
	if err := out.SetSheetRow("Sheet1", "A1", &header); err != nil {
		return errors.Wrap(err, "failed to write export header")
	}
	for i, p := range parts {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errors.Wrap(err, "failed to compute cell coordinates")
		}
		row := []interface{}{p.Code, p.Description, strconv.Itoa(p.Quantity), fmt.Sprintf("%.2f", p.Price), fmt.Sprintf("%.2f", p.Total)}
		if err := out.SetSheetRow("Sheet1", cell, &row); err != nil {
			return errors.Wrap(err, "failed to write export row")
		}
	}
	return errors.Wrapf(out.SaveAs(destPath), "failed to export vehicle sheet to %s", destPath)
}

func (b *Book) parts(sheet string) ([]Part, error) {
	if _, err := os.Stat(b.path); os.IsNotExist(err) {
		return nil, nil
	}
	f, err := excelize.OpenFile(b.path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open workshop book")
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		// Unknown sheet reads as empty
		return nil, nil
	}

	var parts []Part
	for i, row := range rows {
		if i == 0 {
			continue
		}
		get := func(idx int) string {
			if idx < len(row) {
				return row[idx]
			}
			return ""
		}
		qty, _ := strconv.Atoi(strings.TrimSpace(get(2)))
		price, _ := strconv.ParseFloat(strings.TrimSpace(get(3)), 64)
		total, _ := strconv.ParseFloat(strings.TrimSpace(get(4)), 64)
		parts = append(parts, Part{
			Code:        get(0),
			Description: get(1),
			Quantity:    qty,
			Price:       price,
			Total:       total,
		})
	}
	return parts, nil
}

// open returns the workbook, creating a fresh one when the file does
// not exist yet
func (b *Book) open() (*excelize.File, error) {
	if _, err := os.Stat(b.path); os.IsNotExist(err) {
		return excelize.NewFile(), nil
	}
	f, err := excelize.OpenFile(b.path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open workshop book")
	}
	return f, nil
}

// ensureSheet makes sure the vehicle sheet exists with its header and
// returns the number of rows already present
func ensureSheet(f *excelize.File, sheet string) (int, error) {
	sheets := f.GetSheetList()
	exists := false
	for _, s := range sheets {
		if s == sheet {
			exists = true
			break
		}
	}

	if !exists {
		// A brand-new workbook carries an unused default sheet: rename
		// it instead of leaving it behind.
		if len(sheets) == 1 && sheets[0] == "Sheet1" {
			rows, err := f.GetRows("Sheet1")
			if err == nil && len(rows) == 0 {
				if err := f.SetSheetName("Sheet1", sheet); err != nil {
					return 0, errors.Wrapf(err, "failed to rename default sheet to %s", sheet)
				}
				exists = true
			}
		}
		if !exists {
			if _, err := f.NewSheet(sheet); err != nil {
				return 0, errors.Wrapf(err, "failed to create sheet %s", sheet)
			}
		}
		header := []interface{}{}
		for _, c := range Columns {
			header = append(header, c)
		}
		if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
			return 0, errors.Wrapf(err, "failed to write header for %s", sheet)
		}
		return 1, nil
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to read sheet %s", sheet)
	}
	if len(rows) == 0 {
		header := []interface{}{}
		for _, c := range Columns {
			header = append(header, c)
		}
		if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
			return 0, errors.Wrapf(err, "failed to write header for %s", sheet)
		}
		return 1, nil
	}
	return len(rows), nil
}

func sheetName(vehicle string) string {
	s := strings.TrimSpace(vehicle)
	if r := []rune(s); len(r) > maxSheetName {
		s = string(r[:maxSheetName])
	}
	return s
}
