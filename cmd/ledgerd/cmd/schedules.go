package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/notify"
	"github.com/mmynk/splitledger/internal/recurrence"
	"github.com/mmynk/splitledger/internal/scheduler"
	"github.com/mmynk/splitledger/internal/storage/sqlite"
)

var processSchedulesCmd = &cobra.Command{
	Use:   "process-schedules",
	Short: "Materialize due recurring transactions once and print the report",
	Long: `Runs a single pass of the schedule processor against the database and
prints the resulting report as JSON. Useful from cron when the server
is not running.`,
	RunE: runProcessSchedules,
}

func runProcessSchedules(cmd *cobra.Command, args []string) error {
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	expander := recurrence.NewExpander(cfg.Schedule.MaxBatch)
	l := ledger.New(store, ledger.WithNotifier(notify.LogSender{}), ledger.WithExpander(expander))
	processor := scheduler.NewProcessor(store, l, expander,
		scheduler.WithConcurrency(cfg.Schedule.Concurrency),
	)

	report, err := processor.ProcessSchedules(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to process schedules: %w", err)
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	if len(report.Failed) > 0 {
		return fmt.Errorf("%d schedule(s) failed", len(report.Failed))
	}
	return nil
}
