// Package cmd provides the ledgerd CLI commands.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mmynk/splitledger/internal/config"
	"github.com/mmynk/splitledger/pkg/logging"
)

var (
	envFile string
	debug   bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "ledgerd",
	Short: "Shared expense ledger with recurring transactions",
	Long: `ledgerd records personal and group transactions as balanced entries,
projects them into balances and settlement plans, and materializes
recurring transactions on a schedule.

Example:
  ledgerd serve
  ledgerd sheet create --type group --currency EUR --admin alice
  ledgerd token --user alice
  ledgerd process-schedules`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(envFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		level := logging.ParseLevel(cfg.LogLevel)
		if debug {
			level = slog.LevelDebug
		}
		logging.SetupWithLevel(level)
		return nil
	},
}

// Execute runs the root command. It is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "config", "", "env file (default is .env)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(processSchedulesCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(sheetCmd)
}
