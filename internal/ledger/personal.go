package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/storage"
)

// PersonalTransactionInput describes an expense or income on a personal sheet.
type PersonalTransactionInput struct {
	Type        models.TransactionType
	Category    string
	Description string
	Money       money.Money
	SpentAt     time.Time
}

// personalPosting validates in and builds the transaction with its single
// entry for userID.
func personalPosting(userID string, sheet *models.Sheet, in PersonalTransactionInput) (*models.Transaction, []*models.TransactionEntry, error) {
	if err := checkSheetType(sheet, models.SheetTypePersonal); err != nil {
		return nil, nil, err
	}
	if userID == "" {
		return nil, nil, fmt.Errorf("%w: missing user", models.ErrValidation)
	}
	if err := checkAmount("money", in.Money, sheet); err != nil {
		return nil, nil, err
	}

	var posted money.Money
	switch in.Type {
	case models.TransactionTypeExpense:
		posted = money.Negate(in.Money)
	case models.TransactionTypeIncome:
		posted = in.Money
	default:
		return nil, nil, fmt.Errorf("%w: personal transactions must be EXPENSE or INCOME, got %q",
			models.ErrValidation, in.Type)
	}

	txn := &models.Transaction{
		SheetID:     sheet.ID,
		Type:        in.Type,
		Category:    in.Category,
		Description: in.Description,
		SpentAt:     spentAtOrNow(in.SpentAt),
		Amount:      in.Money.Amount,
		Scale:       in.Money.Scale,
		CreatedByID: userID,
	}
	return txn, []*models.TransactionEntry{entry(userID, posted)}, nil
}

// CreatePersonalTransaction records one transaction with one entry for the
// acting user: negative for an expense, positive for income.
func (l *Ledger) CreatePersonalTransaction(ctx context.Context, userID string, sheet *models.Sheet, in PersonalTransactionInput) (*models.Transaction, error) {
	txn, entries, err := personalPosting(userID, sheet, in)
	if err != nil {
		return nil, err
	}

	err = l.store.WithTx(ctx, func(tx storage.Tx) error {
		return tx.CreateTransaction(ctx, txn, entries)
	})
	if err != nil {
		slog.Error("CreatePersonalTransaction failed", "sheet_id", sheet.ID, "error", err)
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	l.metrics.TransactionPosted(string(txn.Type))
	slog.Info("Personal transaction created", "sheet_id", sheet.ID, "transaction_id", txn.ID, "type", txn.Type)
	return txn, nil
}

// CreatePersonalTransactions records a batch atomically. Every input is
// validated before anything is written; one invalid input rejects the batch.
func (l *Ledger) CreatePersonalTransactions(ctx context.Context, userID string, sheet *models.Sheet, inputs []PersonalTransactionInput) ([]*models.Transaction, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: empty batch", models.ErrValidation)
	}

	txns := make([]*models.Transaction, len(inputs))
	entries := make([][]*models.TransactionEntry, len(inputs))
	for i, in := range inputs {
		txn, e, err := personalPosting(userID, sheet, in)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		txns[i], entries[i] = txn, e
	}

	err := l.store.WithTx(ctx, func(tx storage.Tx) error {
		for i := range txns {
			if err := tx.CreateTransaction(ctx, txns[i], entries[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		slog.Error("CreatePersonalTransactions failed", "sheet_id", sheet.ID, "count", len(txns), "error", err)
		return nil, fmt.Errorf("failed to create transactions: %w", err)
	}

	for _, txn := range txns {
		l.metrics.TransactionPosted(string(txn.Type))
	}
	slog.Info("Personal transactions created", "sheet_id", sheet.ID, "count", len(txns))
	return txns, nil
}

// ReplacePersonalTransaction deletes a personal transaction and records in
// under the same id, keeping the original creation time.
func (l *Ledger) ReplacePersonalTransaction(ctx context.Context, userID string, sheet *models.Sheet, transactionID string, in PersonalTransactionInput) (*models.Transaction, error) {
	txn, entries, err := personalPosting(userID, sheet, in)
	if err != nil {
		return nil, err
	}

	err = l.store.WithTx(ctx, func(tx storage.Tx) error {
		existing, err := tx.GetTransaction(ctx, sheet.ID, transactionID)
		if err != nil {
			return err
		}
		if err := tx.DeleteTransaction(ctx, sheet.ID, transactionID); err != nil {
			return err
		}
		txn.ID = existing.ID
		txn.CreatedAt = existing.CreatedAt
		return tx.CreateTransaction(ctx, txn, entries)
	})
	if err != nil {
		slog.Error("ReplacePersonalTransaction failed", "sheet_id", sheet.ID, "transaction_id", transactionID, "error", err)
		return nil, fmt.Errorf("failed to replace transaction: %w", err)
	}

	slog.Info("Personal transaction replaced", "sheet_id", sheet.ID, "transaction_id", txn.ID)
	return txn, nil
}
