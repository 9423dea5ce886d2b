package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/elnetongas03/JQ-MOTORS-INVENTARIOS/config"
	"github.com/elnetongas03/JQ-MOTORS-INVENTARIOS/internal/cache"
	"github.com/elnetongas03/JQ-MOTORS-INVENTARIOS/internal/collector"
)

var collectorCmd = &cobra.Command{
	Use:   "collector",
	Short: "Start the central inventory collector",
	Long: `Start the collector service: accepts pushed inventory snapshots
from agencies, stamps each record with its receipt time and appends it
to the receive log. The log is append-only and never compacted.`,
	RunE: runCollector,
}

func init() {
	rootCmd.AddCommand(collectorCmd)
}

func runCollector(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	// Configure logging
	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Initialize cache
	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
	}

	recvLog := collector.NewLog(cfg.Collector.LogFile)
	server := collector.NewServer(cfg.Collector.Address, recvLog, redisCache)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		return server.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Collector error")
		return err
	}

	log.Info().Msg("Collector shut down")
	return nil
}
