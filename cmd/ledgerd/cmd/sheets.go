package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/storage/sqlite"
)

var (
	sheetType     string
	sheetCurrency string
	sheetAdmin    string
)

var sheetCmd = &cobra.Command{
	Use:   "sheet",
	Short: "Manage sheets",
}

var sheetCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a sheet and print its id",
	Long: `Creates a personal or group sheet in a single currency.

Example:
  ledgerd sheet create --type personal --currency EUR --admin alice`,
	RunE: runSheetCreate,
}

func runSheetCreate(cmd *cobra.Command, args []string) error {
	t := models.SheetType(sheetType)
	if t != models.SheetTypePersonal && t != models.SheetTypeGroup {
		return fmt.Errorf("unknown sheet type %q", sheetType)
	}
	if !money.ValidCurrencyCode(sheetCurrency) {
		return fmt.Errorf("invalid currency code %q", sheetCurrency)
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	sheet := &models.Sheet{CurrencyCode: sheetCurrency, Type: t, AdminID: sheetAdmin}
	if err := store.CreateSheet(cmd.Context(), sheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), sheet.ID)
	return nil
}

func init() {
	sheetCreateCmd.Flags().StringVar(&sheetType, "type", string(models.SheetTypePersonal), "personal or group")
	sheetCreateCmd.Flags().StringVar(&sheetCurrency, "currency", "", "ISO 4217 currency code")
	sheetCreateCmd.Flags().StringVar(&sheetAdmin, "admin", "", "user who owns the sheet")
	_ = sheetCreateCmd.MarkFlagRequired("currency")

	sheetCmd.AddCommand(sheetCreateCmd)
}
