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

var agencyName string

var agencyCmd = &cobra.Command{
	Use:   "agencia",
	Short: "Start an agency POS instance",
	Long: `Start an agency instance: serves the local ledger over HTTP and
pushes a full inventory snapshot to the collector on a fixed interval.
A failed push is silently replaced by the next cycle's snapshot.`,
	RunE: runAgency,
}

func init() {
	agencyCmd.Flags().StringVar(&agencyName, "name", "", "agency name tagged onto every pushed record")
	rootCmd.AddCommand(agencyCmd)
}

func runAgency(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}
	if agencyName != "" {
		cfg.Agency.Name = agencyName
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

	led := ledger.New(filepath.Join(excelDir, "inventario.xlsx"))
	rec := sales.New(led, filepath.Join(excelDir, "ventas.xlsx"))
	wb := workshop.New(filepath.Join(excelDir, "motos_insumos.xlsx"), led)

	pub := publisher.New(cfg.Agency, led.Snapshot)
	server := api.NewServer(cfg.Agency.Address, led, rec, wb, pub, exportDir)

	// The publisher and the HTTP server run independently: the sync
	// timer must never block on foreground request latency.
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pub.Run(ctx)
	})
	g.Go(func() error {
		return server.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		return server.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Agency instance error")
		return err
	}

	log.Info().Str("agency", cfg.Agency.Name).Msg("Agency instance shut down")
	return nil
}
