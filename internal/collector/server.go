package collector

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/elnetongas03/JQ-MOTORS-INVENTARIOS/internal/cache"
	"github.com/elnetongas03/JQ-MOTORS-INVENTARIOS/internal/metrics"
)

// Server is the collector HTTP service
type Server struct {
	address    string
	recvLog    *Log
	cache      *cache.RedisCache
	stats      *metrics.Registry
	router     *gin.Engine
	httpServer *http.Server
}

// NewServer creates the collector server over the given receive log.
// The cache may be nil or disabled; reads then always hit the file.
func NewServer(address string, recvLog *Log, c *cache.RedisCache) *Server {
	server := &Server{
		address: address,
		recvLog: recvLog,
		cache:   c,
		stats:   metrics.NewRegistry(),
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

	router.GET("/", s.handleHome)
	router.POST("/inventario", s.handleReceive)
	router.GET("/inventario", s.handleList)
	router.GET("/metrics", s.handleMetrics)
	return router
}

// handleHome is the liveness probe
func (s *Server) handleHome(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"mensaje": "Servidor funcionando :)"})
}

// handleReceive accepts either a single inventory record or an array
// of records, normalizes to a list and appends every one to the log
func (s *Server) handleReceive(c *gin.Context) {
	var payload interface{}
	if err := c.ShouldBindJSON(&payload); err != nil {
		s.stats.Inc(metrics.ReceiptsRejected, 1)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	items, ok := normalizePayload(payload)
	if !ok {
		s.stats.Inc(metrics.ReceiptsRejected, 1)
		c.JSON(http.StatusBadRequest, gin.H{"error": "se esperaba un objeto o una lista de objetos"})
		return
	}

	if err := s.recvLog.Append(items); err != nil {
		log.Error().Err(err).Msg("Failed to append to receive log")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := s.cache.Invalidate(c.Request.Context(), cache.CollectorLogKey); err != nil {
		log.Warn().Err(err).Msg("Failed to invalidate receive log cache")
	}

	s.stats.Inc(metrics.ReceiptsAccepted, 1)
	s.stats.Inc(metrics.RecordsReceived, int64(len(items)))
	c.JSON(http.StatusOK, gin.H{"status": "ok", "mensaje": "recibido"})
}

// handleMetrics reports receipt counters and process vitals
func (s *Server) handleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.stats.Snapshot())
}

// handleList serves the entire accumulated log, oldest first
func (s *Server) handleList(c *gin.Context) {
	ctx := c.Request.Context()

	var entries []Entry
	if err := s.cache.Get(ctx, cache.CollectorLogKey, &entries); err == nil {
		c.JSON(http.StatusOK, entries)
		return
	}

	entries, err := s.recvLog.Entries()
	if err != nil {
		log.Error().Err(err).Msg("Failed to read receive log")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := s.cache.Set(ctx, cache.CollectorLogKey, entries, 5*time.Minute); err == nil {
		log.Debug().Int("entries", len(entries)).Msg("receive log cached")
	}

	c.JSON(http.StatusOK, entries)
}

// normalizePayload turns an object-or-array JSON body into a list of
// entries
func normalizePayload(payload interface{}) ([]Entry, bool) {
	switch v := payload.(type) {
	case map[string]interface{}:
		return []Entry{Entry(v)}, true
	case []interface{}:
		items := make([]Entry, 0, len(v))
		for _, elem := range v {
			obj, ok := elem.(map[string]interface{})
			if !ok {
				return nil, false
			}
			items = append(items, Entry(obj))
		}
		return items, true
	default:
		return nil, false
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Info().Str("address", s.address).Msg("Starting collector server")

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
	log.Info().Msg("Shutting down collector server")

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
