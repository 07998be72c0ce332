// Package ledger records transactions on sheets using per-split double
// postings and derives balances and settlement plans from the stored entries.
//
// Callers pass an already authorized acting user and sheet. The ledger checks
// inputs against the sheet (currency, sheet type, amounts) but performs no
// membership or role checks.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/metrics"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/notify"
	"github.com/mmynk/splitledger/internal/recurrence"
	"github.com/mmynk/splitledger/internal/storage"
)

// Ledger is the posting model over a store.
type Ledger struct {
	store    storage.Store
	notifier notify.Sender
	expander *recurrence.Expander
	metrics  *metrics.Metrics
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithNotifier sets where notifications go. Defaults to notify.Discard.
func WithNotifier(n notify.Sender) Option {
	return func(l *Ledger) { l.notifier = n }
}

// WithExpander sets the recurrence expander used for new schedules.
func WithExpander(e *recurrence.Expander) Option {
	return func(l *Ledger) { l.expander = e }
}

// WithMetrics enables instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

// New creates a ledger over store.
func New(store storage.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:    store,
		notifier: notify.Discard{},
		expander: recurrence.NewExpander(0),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Posting is a written transaction with its entries and the balances they
// produce.
type Posting struct {
	Transaction *models.Transaction
	Entries     []*models.TransactionEntry
	Balances    []calculator.Balance
}

// checkAmount rejects money that is malformed, negative or in a currency
// other than the sheet's.
func checkAmount(field string, m money.Money, sheet *models.Sheet) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("%w: %s: %v", models.ErrValidation, field, err)
	}
	if m.CurrencyCode != sheet.CurrencyCode {
		return fmt.Errorf("%w: %s: %v: got %s, sheet uses %s",
			models.ErrValidation, field, money.ErrInvalidCurrency, m.CurrencyCode, sheet.CurrencyCode)
	}
	if m.Amount < 0 {
		return fmt.Errorf("%w: %s must not be negative", models.ErrValidation, field)
	}
	return nil
}

func checkSheetType(sheet *models.Sheet, want models.SheetType) error {
	if sheet == nil {
		return fmt.Errorf("%w: missing sheet", models.ErrValidation)
	}
	if sheet.Type != want {
		return fmt.Errorf("%w: sheet %s is %s, operation requires a %s sheet",
			models.ErrValidation, sheet.ID, sheet.Type, want)
	}
	return nil
}

// checkZeroSum asserts that entries cancel out.
func checkZeroSum(txn *models.Transaction, entries []*models.TransactionEntry, currencyCode string) error {
	values := make([]money.Money, len(entries))
	for i, e := range entries {
		values[i] = e.Money(currencyCode)
	}
	total, err := money.Sum(values, currencyCode)
	if err == nil && total.IsZero() {
		return nil
	}

	slog.Error("Posting invariant violated",
		"sheet_id", txn.SheetID,
		"type", txn.Type,
		"entries", len(entries),
		"sum", total.String(),
		"error", err,
	)
	if err != nil {
		return fmt.Errorf("%w: entries are not summable: %v", models.ErrInternalConsistency, err)
	}
	return fmt.Errorf("%w: entries sum to %s", models.ErrInternalConsistency, total)
}

func entry(userID string, m money.Money) *models.TransactionEntry {
	return &models.TransactionEntry{UserID: userID, Amount: m.Amount, Scale: m.Scale}
}

// notify sends each balance to its participant, skipping the actor. The
// outcome is ignored.
func (l *Ledger) notify(ctx context.Context, event notify.Event, actorID string, p *Posting, recipients []string) {
	notifications := make(map[string]notify.Payload)
	byUser := make(map[string]calculator.Balance, len(p.Balances))
	for _, b := range p.Balances {
		byUser[b.UserID] = b
	}

	for _, userID := range recipients {
		if userID == actorID {
			continue
		}
		payload := notify.Payload{
			Event:         event,
			SheetID:       p.Transaction.SheetID,
			TransactionID: p.Transaction.ID,
			ActorID:       actorID,
			Description:   p.Transaction.Description,
		}
		if b, ok := byUser[userID]; ok {
			payload.Balance = &b
		}
		notifications[userID] = payload
	}

	if err := l.notifier.SendNotifications(ctx, notifications); err != nil {
		slog.Debug("Notifications not sent", "transaction_id", p.Transaction.ID, "error", err)
	}
}

func spentAtOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
