package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/notify"
	"github.com/mmynk/splitledger/internal/recurrence"
	"github.com/mmynk/splitledger/internal/storage"
)

// ScheduleInput describes a recurring personal transaction.
type ScheduleInput struct {
	Type           models.TransactionType
	Category       string
	Description    string
	Money          money.Money
	TZID           string
	RecurrenceRule models.RecurrenceRule
}

// CreateSchedule stores a recurring transaction on a personal sheet. Its
// pointer starts at the rule's first occurrence, which may be in the past;
// the processor catches up on the next run.
func (l *Ledger) CreateSchedule(ctx context.Context, userID string, sheet *models.Sheet, in ScheduleInput) (*models.TransactionSchedule, error) {
	if err := checkSheetType(sheet, models.SheetTypePersonal); err != nil {
		return nil, err
	}
	if in.Type != models.TransactionTypeExpense && in.Type != models.TransactionTypeIncome {
		return nil, fmt.Errorf("%w: scheduled transactions must be EXPENSE or INCOME, got %q", models.ErrValidation, in.Type)
	}
	if err := checkAmount("money", in.Money, sheet); err != nil {
		return nil, err
	}

	rule := in.RecurrenceRule
	rule.DTStart = recurrence.Floating(rule.DTStart)
	if rule.Interval == 0 {
		rule.Interval = 1
	}
	first, err := l.expander.First(rule, in.TZID)
	if err != nil {
		return nil, err
	}

	sched := &models.TransactionSchedule{
		SheetID:          sheet.ID,
		RecurrenceRule:   rule,
		TZID:             in.TZID,
		NextOccurrenceAt: first,
		Template: models.TransactionTemplate{
			Type:        in.Type,
			Category:    in.Category,
			Description: in.Description,
			Amount:      in.Money.Amount,
			Scale:       in.Money.Scale,
		},
		CreatedByID: userID,
	}
	if err := l.store.CreateSchedule(ctx, sched); err != nil {
		slog.Error("CreateSchedule failed", "sheet_id", sheet.ID, "error", err)
		return nil, fmt.Errorf("failed to create schedule: %w", err)
	}

	slog.Info("Schedule created",
		"sheet_id", sheet.ID,
		"schedule_id", sched.ID,
		"freq", rule.Freq,
		"next_occurrence_at", first.Format(time.RFC3339),
	)
	return sched, nil
}

// DeleteSchedule removes a schedule from sheet.
func (l *Ledger) DeleteSchedule(ctx context.Context, sheet *models.Sheet, scheduleID string) error {
	if err := l.store.DeleteSchedule(ctx, sheet.ID, scheduleID); err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	slog.Info("Schedule deleted", "sheet_id", sheet.ID, "schedule_id", scheduleID)
	return nil
}

// MaterializeOccurrences creates one transaction per instant, each with a
// single entry for the sheet admin, and advances the schedule pointer to
// next. Everything commits as one unit. A pointer that moved since sched was
// read fails with models.ErrConflict and writes nothing.
//
// After the commit the sheet admin is notified once for the whole batch.
func (l *Ledger) MaterializeOccurrences(ctx context.Context, sheet *models.Sheet, sched *models.TransactionSchedule, instants []time.Time, next time.Time) ([]*models.Transaction, error) {
	if sheet.AdminID == "" {
		return nil, fmt.Errorf("%w: sheet %s has no admin to post to", models.ErrValidation, sheet.ID)
	}
	amount := money.Money{Amount: sched.Template.Amount, Scale: sched.Template.Scale, CurrencyCode: sheet.CurrencyCode}
	if sched.Template.Type == models.TransactionTypeExpense {
		amount = money.Negate(amount)
	}

	txns := make([]*models.Transaction, 0, len(instants))
	err := l.store.WithTx(ctx, func(tx storage.Tx) error {
		for _, at := range instants {
			txn := &models.Transaction{
				SheetID:     sheet.ID,
				Type:        sched.Template.Type,
				Category:    sched.Template.Category,
				Description: sched.Template.Description,
				SpentAt:     at,
				Amount:      sched.Template.Amount,
				Scale:       sched.Template.Scale,
			}
			if err := tx.CreateTransaction(ctx, txn, []*models.TransactionEntry{entry(sheet.AdminID, amount)}); err != nil {
				return err
			}
			txns = append(txns, txn)
		}
		return tx.AdvanceSchedule(ctx, sched.ID, sched.NextOccurrenceAt, next)
	})
	if err != nil {
		return nil, err
	}

	for _, txn := range txns {
		l.metrics.TransactionPosted(string(txn.Type))
	}

	if len(txns) == 0 {
		return txns, nil
	}
	notifications := map[string]notify.Payload{
		sheet.AdminID: {
			Event:            notify.EventScheduledTransactions,
			SheetID:          sheet.ID,
			TransactionID:    txns[len(txns)-1].ID,
			Description:      sched.Template.Description,
			ScheduleID:       sched.ID,
			Count:            len(txns),
			NextOccurrenceAt: &next,
		},
	}
	if err := l.notifier.SendNotifications(ctx, notifications); err != nil {
		slog.Debug("Notifications not sent", "schedule_id", sched.ID, "error", err)
	}
	return txns, nil
}
