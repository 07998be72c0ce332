package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/storage"
)

// DeleteTransaction removes a transaction and its entries from sheet.
// Returns models.ErrNotFound if the transaction is not on that sheet.
func (l *Ledger) DeleteTransaction(ctx context.Context, sheet *models.Sheet, transactionID string) error {
	err := l.store.WithTx(ctx, func(tx storage.Tx) error {
		return tx.DeleteTransaction(ctx, sheet.ID, transactionID)
	})
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}

	slog.Info("Transaction deleted", "sheet_id", sheet.ID, "transaction_id", transactionID)
	return nil
}

// TransactionBalances projects the stored entries of one transaction into
// per-participant balances, debtors first.
func (l *Ledger) TransactionBalances(ctx context.Context, sheet *models.Sheet, transactionID string) (*models.Transaction, []calculator.Balance, error) {
	txn, err := l.store.GetTransaction(ctx, sheet.ID, transactionID)
	if err != nil {
		return nil, nil, err
	}
	entries, err := l.store.ListEntries(ctx, txn.ID)
	if err != nil {
		return nil, nil, err
	}

	balances, err := calculator.CalculateBalances(txn.Type, entries, sheet.CurrencyCode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to calculate balances: %w", err)
	}
	return txn, balances, nil
}

// SheetBalances returns every participant's cumulative net balance on
// sheet. Positive means the participant is owed money. participants are
// included at zero when they have no entries; the sheet admin always is.
func (l *Ledger) SheetBalances(ctx context.Context, sheet *models.Sheet, participants ...string) (map[string]money.Money, error) {
	sums, err := l.store.SumEntriesByUser(ctx, sheet.ID)
	if err != nil {
		return nil, err
	}

	all := make([]string, 0, len(participants)+1)
	if sheet.AdminID != "" {
		all = append(all, sheet.AdminID)
	}
	all = append(all, participants...)
	return calculator.SheetBalances(sums, all, sheet.CurrencyCode)
}

// ParticipantBalance is one row of a settlement plan.
type ParticipantBalance struct {
	UserID  string      `json:"user_id"`
	Balance money.Money `json:"balance"`
}

// SettlementPlan is a sheet's balances together with the transfers that
// settle them.
type SettlementPlan struct {
	Balances  []ParticipantBalance  `json:"balances"`
	Transfers []calculator.Transfer `json:"transfers"`
}

// PlanSettlement computes sheet balances and, on a group sheet, simplifies
// them into transfers. A personal sheet has a single owner and nobody to
// settle with, so its plan carries balances only.
func (l *Ledger) PlanSettlement(ctx context.Context, sheet *models.Sheet, participants ...string) (*SettlementPlan, error) {
	balances, err := l.SheetBalances(ctx, sheet, participants...)
	if err != nil {
		return nil, err
	}

	plan := &SettlementPlan{}
	if sheet.Type == models.SheetTypeGroup {
		plan.Transfers, err = calculator.SimplifyBalances(balances, sheet.CurrencyCode)
		if err != nil {
			slog.Error("PlanSettlement failed", "sheet_id", sheet.ID, "error", err)
			return nil, err
		}
	}

	for userID, b := range balances {
		plan.Balances = append(plan.Balances, ParticipantBalance{UserID: userID, Balance: b})
	}
	sort.Slice(plan.Balances, func(i, j int) bool {
		return plan.Balances[i].UserID < plan.Balances[j].UserID
	})
	return plan, nil
}
