package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "jqmotors",
	Short: "Inventory and point-of-sale system for JQ Motors",
	Long: `Multi-site inventory system for a motorcycle parts business.
Agencies keep a local ledger and push periodic snapshots to a central
collector; the matriz instance serves its live ledger over HTTP.`,
	Run: func(cmd *cobra.Command, args []string) {
		err := cmd.Help()
		if err != nil {
			log.Error().Err(err).Msg("Failed to display help")
		}
	},
}

// Execute executes the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize()
}
