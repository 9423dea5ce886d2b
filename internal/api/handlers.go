package api

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/elnetongas03/JQ-MOTORS-INVENTARIOS/internal/ledger"
	"github.com/elnetongas03/JQ-MOTORS-INVENTARIOS/internal/quote"
	"github.com/elnetongas03/JQ-MOTORS-INVENTARIOS/internal/sales"
	"github.com/elnetongas03/JQ-MOTORS-INVENTARIOS/internal/workshop"
)

// UpsertRequest creates or replaces an inventory record
type UpsertRequest struct {
	Code        string  `json:"codigo" binding:"required"`
	Description string  `json:"descripcion"`
	Location    string  `json:"ubicacion"`
	Stock       int     `json:"stock"`
	Price       float64 `json:"precio"`
}

// AdjustRequest increments or decrements stock for one code
type AdjustRequest struct {
	Code      string `json:"codigo" binding:"required"`
	Quantity  int    `json:"cantidad" binding:"required"`
	Operation string `json:"operacion" binding:"required"`
}

// DeleteRequest removes a set of codes
type DeleteRequest struct {
	Codes []string `json:"codigos" binding:"required"`
}

// ImportRequest merges another inventory workbook into the ledger
type ImportRequest struct {
	Path string `json:"ruta" binding:"required"`
}

// ExportRequest writes a copy of the ledger under the export
// directory
type ExportRequest struct {
	File string `json:"archivo"`
}

// SaleLine is one line of a sale batch
type SaleLine struct {
	PaymentMethod string  `json:"forma_pago"`
	Code          string  `json:"codigo" binding:"required"`
	Description   string  `json:"descripcion"`
	Quantity      int     `json:"cantidad" binding:"required"`
	Price         float64 `json:"precio" binding:"required"`
}

// SaleRequest is a batch of sale lines saved together
type SaleRequest struct {
	Lines []SaleLine `json:"ventas" binding:"required,dive"`
}

// PartsRequest adds consumed parts to a vehicle sheet
type PartsRequest struct {
	Parts []workshop.Part `json:"insumos" binding:"required,dive"`
}

// QuoteLineRequest is one requested quote line
type QuoteLineRequest struct {
	Code     string `json:"codigo" binding:"required"`
	Quantity int    `json:"cantidad" binding:"required"`
}

// QuoteRequest builds a quote from ledger records and saves it as a
// workbook under the export directory
type QuoteRequest struct {
	File  string             `json:"archivo"`
	Lines []QuoteLineRequest `json:"articulos" binding:"required,dive"`
}

// handleSnapshot serves the live ledger. With a descripcion query it
// narrows to a case- and accent-insensitive substring search.
func (s *Server) handleSnapshot(c *gin.Context) {
	var items []ledger.Item
	var err error
	if fragment := c.Query("descripcion"); fragment != "" {
		items, err = s.ledger.SearchDescription(fragment)
	} else {
		items, err = s.ledger.Items()
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to read ledger snapshot")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if items == nil {
		items = []ledger.Item{}
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) handleFind(c *gin.Context) {
	item, err := s.ledger.FindByCode(c.Param("codigo"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (s *Server) handleUpsert(c *gin.Context) {
	var req UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, err := s.ledger.Upsert(ledger.Item{
		Code:        req.Code,
		Description: req.Description,
		Location:    req.Location,
		Stock:       req.Stock,
		Price:       req.Price,
	})
	if err != nil {
		s.renderError(c, err)
		return
	}

	s.pushChange(item)
	c.JSON(http.StatusCreated, item)
}

func (s *Server) handleAdjust(c *gin.Context) {
	var req AdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var dir ledger.Direction
	switch req.Operation {
	case "agregar":
		dir = ledger.Increase
	case "descontar":
		dir = ledger.Decrease
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "operacion debe ser agregar o descontar"})
		return
	}

	item, err := s.ledger.AdjustStock(req.Code, req.Quantity, dir)
	if err != nil {
		s.renderError(c, err)
		return
	}

	s.pushChange(item)
	c.JSON(http.StatusOK, item)
}

func (s *Server) handleDelete(c *gin.Context) {
	var req DeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.ledger.Delete(req.Codes); err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleImport(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	count, err := s.ledger.ImportFile(req.Path)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "registros": count})
}

func (s *Server) handleExport(c *gin.Context) {
	var req ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	name := strings.TrimSpace(req.File)
	if name == "" {
		name = fmt.Sprintf("inventario_%s.xlsx", time.Now().Format("20060102_150405"))
	}
	path := filepath.Join(s.exportDir, filepath.Base(name))
	if err := s.ledger.ExportFile(path); err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "archivo": path})
}

func (s *Server) handleSale(c *gin.Context) {
	var req SaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	events := make([]sales.Event, 0, len(req.Lines))
	for _, line := range req.Lines {
		events = append(events, sales.Event{
			PaymentMethod: sales.PaymentMethod(line.PaymentMethod),
			Code:          line.Code,
			Description:   line.Description,
			Quantity:      line.Quantity,
			Price:         line.Price,
		})
	}

	applied, err := s.reconciler.Apply(events)
	if err != nil {
		s.renderError(c, err)
		return
	}

	for _, a := range applied {
		if a.Found {
			s.pushChange(a.Item)
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "aplicados": applied})
}

// handleQuote prices the requested codes from the live ledger and
// writes the quote workbook. Quoting never mutates stock.
func (s *Server) handleQuote(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	q := quote.New()
	for _, line := range req.Lines {
		item, err := s.ledger.FindByCode(line.Code)
		if err != nil {
			s.renderError(c, err)
			return
		}
		if err := q.Add(quote.LineFromItem(item, line.Quantity)); err != nil {
			s.renderError(c, err)
			return
		}
	}

	name := strings.TrimSpace(req.File)
	if name == "" {
		name = fmt.Sprintf("cotizacion_%s.xlsx", q.CreatedAt.Format("20060102_150405"))
	}
	path := filepath.Join(s.exportDir, filepath.Base(name))
	if err := q.Save(path); err != nil {
		s.renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":        q.ID,
		"archivo":   path,
		"articulos": q.Lines,
		"total":     q.Total(),
	})
}

func (s *Server) handleVehicles(c *gin.Context) {
	vehicles, err := s.workshop.Vehicles()
	if err != nil {
		s.renderError(c, err)
		return
	}
	if vehicles == nil {
		vehicles = []string{}
	}
	c.JSON(http.StatusOK, vehicles)
}

func (s *Server) handleVehicleParts(c *gin.Context) {
	vehicle := c.Param("moto")
	parts, err := s.workshop.Parts(vehicle)
	if err != nil {
		s.renderError(c, err)
		return
	}
	if parts == nil {
		parts = []workshop.Part{}
	}
	total, err := s.workshop.TotalFor(vehicle)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"moto": vehicle, "insumos": parts, "total": total})
}

func (s *Server) handleAddParts(c *gin.Context) {
	var req PartsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.workshop.AddParts(c.Param("moto"), req.Parts); err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleRemoveVehicle(c *gin.Context) {
	if err := s.workshop.RemoveVehicle(c.Param("moto")); err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// renderError maps the ledger error taxonomy onto HTTP statuses
func (s *Server) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Msg("Ledger operation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
