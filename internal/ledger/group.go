package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/notify"
	"github.com/mmynk/splitledger/internal/storage"
)

// GroupTransactionInput describes an expense or income shared on a group
// sheet. PaidOrReceivedByID is the payer of an expense or the receiver of
// income.
type GroupTransactionInput struct {
	Type               models.TransactionType
	Category           string
	Description        string
	Money              money.Money
	PaidOrReceivedByID string
	SpentAt            time.Time
	Splits             []models.Split
}

// SettlementInput describes a payment from one participant to another.
type SettlementInput struct {
	Money  money.Money
	FromID string
	ToID   string
}

// CreateGroupTransaction records a shared transaction.
//
// Each split with a nonzero share becomes two entries: a payer leg and a
// participant leg. For an expense the payer is credited +share and the
// participant debited -share; income flips both signs. The splits must sum
// exactly to the declared total.
//
// Participants other than the acting user are notified of their balance.
func (l *Ledger) CreateGroupTransaction(ctx context.Context, userID string, sheet *models.Sheet, in GroupTransactionInput) (*Posting, error) {
	if err := checkSheetType(sheet, models.SheetTypeGroup); err != nil {
		return nil, err
	}
	if in.Type != models.TransactionTypeExpense && in.Type != models.TransactionTypeIncome {
		return nil, fmt.Errorf("%w: group transactions must be EXPENSE or INCOME, got %q", models.ErrValidation, in.Type)
	}
	if in.PaidOrReceivedByID == "" {
		return nil, fmt.Errorf("%w: missing payer", models.ErrValidation)
	}
	if len(in.Splits) == 0 {
		return nil, fmt.Errorf("%w: must have at least one split", models.ErrValidation)
	}
	if err := checkAmount("money", in.Money, sheet); err != nil {
		return nil, err
	}

	shares := make([]money.Money, 0, len(in.Splits))
	for i, s := range in.Splits {
		if s.ParticipantID == "" {
			return nil, fmt.Errorf("%w: split %d has no participant", models.ErrValidation, i)
		}
		if err := checkAmount(fmt.Sprintf("split %d share", i), s.Share, sheet); err != nil {
			return nil, err
		}
		shares = append(shares, s.Share)
	}

	splitTotal, err := money.Sum(shares, sheet.CurrencyCode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	equal, err := money.Equal(splitTotal, in.Money)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	if !equal {
		return nil, fmt.Errorf("%w: splits sum to %s, total is %s", models.ErrValidation, splitTotal, in.Money)
	}

	payer := in.PaidOrReceivedByID
	var entries []*models.TransactionEntry
	for _, s := range in.Splits {
		if s.Share.IsZero() {
			continue
		}
		payerLeg, participantLeg := s.Share, money.Negate(s.Share)
		if in.Type == models.TransactionTypeIncome {
			payerLeg, participantLeg = participantLeg, payerLeg
		}
		entries = append(entries, entry(payer, payerLeg), entry(s.ParticipantID, participantLeg))
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
	if err := checkZeroSum(txn, entries, sheet.CurrencyCode); err != nil {
		return nil, err
	}

	posting, err := l.post(ctx, txn, entries, sheet.CurrencyCode)
	if err != nil {
		slog.Error("CreateGroupTransaction failed", "sheet_id", sheet.ID, "error", err)
		return nil, err
	}

	recipients := make([]string, 0, len(posting.Balances))
	for _, b := range posting.Balances {
		recipients = append(recipients, b.UserID)
	}
	l.notify(ctx, notify.EventGroupTransaction, userID, posting, recipients)

	slog.Info("Group transaction created",
		"sheet_id", sheet.ID,
		"transaction_id", txn.ID,
		"type", txn.Type,
		"entries", len(entries),
	)
	return posting, nil
}

// CreateSettlement records a transfer: the sender is credited +amount and
// the receiver debited -amount. Both parties except the acting user are
// notified.
func (l *Ledger) CreateSettlement(ctx context.Context, userID string, sheet *models.Sheet, in SettlementInput) (*Posting, error) {
	if err := checkSheetType(sheet, models.SheetTypeGroup); err != nil {
		return nil, err
	}
	if in.FromID == "" || in.ToID == "" {
		return nil, fmt.Errorf("%w: settlement needs a sender and a receiver", models.ErrValidation)
	}
	if in.FromID == in.ToID {
		return nil, fmt.Errorf("%w: cannot settle with yourself", models.ErrValidation)
	}
	if err := checkAmount("money", in.Money, sheet); err != nil {
		return nil, err
	}

	txn := &models.Transaction{
		SheetID:     sheet.ID,
		Type:        models.TransactionTypeTransfer,
		Category:    "settlement",
		SpentAt:     time.Now().UTC(),
		Amount:      in.Money.Amount,
		Scale:       in.Money.Scale,
		CreatedByID: userID,
	}
	entries := []*models.TransactionEntry{
		entry(in.FromID, in.Money),
		entry(in.ToID, money.Negate(in.Money)),
	}
	if err := checkZeroSum(txn, entries, sheet.CurrencyCode); err != nil {
		return nil, err
	}

	posting, err := l.post(ctx, txn, entries, sheet.CurrencyCode)
	if err != nil {
		slog.Error("CreateSettlement failed", "sheet_id", sheet.ID, "error", err)
		return nil, err
	}

	l.notify(ctx, notify.EventSettlement, userID, posting, []string{in.FromID, in.ToID})

	slog.Info("Settlement created",
		"sheet_id", sheet.ID,
		"transaction_id", txn.ID,
		"from", in.FromID,
		"to", in.ToID,
		"amount", in.Money.String(),
	)
	return posting, nil
}

// post writes txn and entries atomically and projects the balances.
func (l *Ledger) post(ctx context.Context, txn *models.Transaction, entries []*models.TransactionEntry, currencyCode string) (*Posting, error) {
	err := l.store.WithTx(ctx, func(tx storage.Tx) error {
		return tx.CreateTransaction(ctx, txn, entries)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	l.metrics.TransactionPosted(string(txn.Type))

	balances, err := calculator.CalculateBalances(txn.Type, entries, currencyCode)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate balances: %w", err)
	}
	return &Posting{Transaction: txn, Entries: entries, Balances: balances}, nil
}
