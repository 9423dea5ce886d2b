package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/elnetongas03/JQ-MOTORS-INVENTARIOS/config"
	"github.com/elnetongas03/JQ-MOTORS-INVENTARIOS/internal/api"
	"github.com/elnetongas03/JQ-MOTORS-INVENTARIOS/internal/ledger"
	"github.com/elnetongas03/JQ-MOTORS-INVENTARIOS/internal/publisher"
	"github.com/elnetongas03/JQ-MOTORS-INVENTARIOS/internal/sales"
	"github.com/elnetongas03/JQ-MOTORS-INVENTARIOS/internal/workshop"
)

var matrizCmd = &cobra.Command{
	Use:   "matriz",
	Short: "Start the central (matriz) POS instance",
	Long: `Start the central instance: serves the live inventory ledger and
the point-of-sale operations over HTTP, and forwards every inventory
change to the collector as a single record, best effort.`,
	RunE: runMatriz,
}

func init() {
	rootCmd.AddCommand(matrizCmd)
}

func runMatriz(cmd *cobra.Command, args []string) error {
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

	excelDir, exportDir, err := cfg.EnsureDataDirs()
	if err != nil {
		return err
	}

	// Wire the ledger, reconciler and workshop over the data files
	led := ledger.New(filepath.Join(excelDir, "inventario.xlsx"))
	rec := sales.New(led, filepath.Join(excelDir, "ventas.xlsx"))
	wb := workshop.New(filepath.Join(excelDir, "motos_insumos.xlsx"), led)

	// The matriz pushes per-change records under its own identity
	agencyCfg := cfg.Agency
	agencyCfg.Name = "MATRIZ"
	pub := publisher.New(agencyCfg, led.Snapshot)

	server := api.NewServer(cfg.Matriz.Address, led, rec, wb, pub, exportDir)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		return server.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Matriz instance error")
		return err
	}

	log.Info().Msg("Matriz instance shut down")
	return nil
}
