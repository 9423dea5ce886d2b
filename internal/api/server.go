// Package api exposes the ledger of a POS instance over HTTP. This is
// the matriz/agency ledger service: its GET /inventario returns the
// live ledger snapshot of this process, which is a different contract
// from the collector's GET /inventario (the accumulated receive log),
// even though the path literal coincides.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/elnetongas03/JQ-MOTORS-INVENTARIOS/internal/ledger"
	"github.com/elnetongas03/JQ-MOTORS-INVENTARIOS/internal/publisher"
	"github.com/elnetongas03/JQ-MOTORS-INVENTARIOS/internal/sales"
	"github.com/elnetongas03/JQ-MOTORS-INVENTARIOS/internal/workshop"
)

// Server is the ledger HTTP service of one POS instance. All
// collaborators are injected at construction time.
type Server struct {
	address    string
	ledger     *ledger.Ledger
	reconciler *sales.Reconciler
	workshop   *workshop.Book
	publisher  *publisher.Publisher
	exportDir  string
	router     *gin.Engine
	httpServer *http.Server
}

// NewServer creates a ledger server. The publisher is optional: when
// present, every successful mutation is pushed to the collector as a
// single record, best effort. Quote workbooks are written under
// exportDir.
func NewServer(address string, led *ledger.Ledger, rec *sales.Reconciler, wb *workshop.Book, pub *publisher.Publisher, exportDir string) *Server {
	server := &Server{
		address:    address,
		ledger:     led,
		reconciler: rec,
		workshop:   wb,
		publisher:  pub,
		exportDir:  exportDir,
	}

	router := server.setupRouter()
	server.router = router
	server.httpServer = &http.Server{
		Addr:    address,
		Handler: router,
	}
	return server
}

func (s *Server) setupRouter() *gin.Engine {
	router := gin.Default()
	router.Use(gin.Recovery())

	router.GET("/salud", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// A descripcion query turns the snapshot into a substring search
	router.GET("/inventario", s.handleSnapshot)
	router.GET("/inventario/:codigo", s.handleFind)
	router.POST("/inventario", s.handleUpsert)
	router.POST("/inventario/ajuste", s.handleAdjust)
	router.DELETE("/inventario", s.handleDelete)
	router.POST("/inventario/importar", s.handleImport)
	router.POST("/inventario/exportar", s.handleExport)

	router.POST("/ventas", s.handleSale)

	router.GET("/taller", s.handleVehicles)
	router.GET("/taller/:moto", s.handleVehicleParts)
	router.POST("/taller/:moto/insumos", s.handleAddParts)
	router.DELETE("/taller/:moto", s.handleRemoveVehicle)

	router.POST("/cotizaciones", s.handleQuote)

	router.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.publisher.Stats().Snapshot())
	})

	return router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Info().Str("address", s.address).Msg("Starting ledger server")

	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "HTTP server error")
	}
	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down ledger server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown error")
	}
	return nil
}

// Router exposes the gin engine for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// pushChange forwards a mutated record to the collector without
// blocking the request path
func (s *Server) pushChange(item ledger.Item) {
	if s.publisher == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.publisher.PublishOne(ctx, item)
	}()
}
