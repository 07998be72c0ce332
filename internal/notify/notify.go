// Package notify delivers ledger notifications to participants.
//
// Delivery is fire-and-forget: the ledger hands a batch to a Sender and never
// waits on or reacts to the outcome. Retries belong to the transport behind
// the Sender.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/mmynk/splitledger/internal/calculator"
)

// Event names the ledger change a notification describes.
type Event string

const (
	EventGroupTransaction Event = "group_transaction_created"
	EventSettlement       Event = "settlement_created"

	EventScheduledTransactions Event = "scheduled_transactions_created"
)

// Payload is what one participant is told about a ledger change.
type Payload struct {
	Event         Event               `json:"event"`
	SheetID       string              `json:"sheet_id"`
	TransactionID string              `json:"transaction_id"`
	ActorID       string              `json:"actor_id"`
	Description   string              `json:"description,omitempty"`
	Balance       *calculator.Balance `json:"balance,omitempty"`

	// Set for scheduled transactions only.
	ScheduleID       string     `json:"schedule_id,omitempty"`
	Count            int        `json:"count,omitempty"`
	NextOccurrenceAt *time.Time `json:"next_occurrence_at,omitempty"`
}

// Sender delivers one payload per user ID.
type Sender interface {
	SendNotifications(ctx context.Context, notifications map[string]Payload) error
}

// LogSender writes notifications to the structured log. It is the sender
// used when no push transport is configured.
type LogSender struct{}

func (LogSender) SendNotifications(ctx context.Context, notifications map[string]Payload) error {
	for userID, p := range notifications {
		attrs := []any{
			"user_id", userID,
			"event", p.Event,
			"sheet_id", p.SheetID,
			"transaction_id", p.TransactionID,
			"actor_id", p.ActorID,
		}
		if p.Balance != nil {
			attrs = append(attrs, "actual", p.Balance.Actual.String(), "share", p.Balance.Share.String())
		}
		if p.ScheduleID != "" {
			attrs = append(attrs, "schedule_id", p.ScheduleID, "count", p.Count)
		}
		if p.NextOccurrenceAt != nil {
			attrs = append(attrs, "next_occurrence_at", p.NextOccurrenceAt.Format(time.RFC3339))
		}
		slog.InfoContext(ctx, "Notification", attrs...)
	}
	return nil
}

// Discard drops every notification.
type Discard struct{}

func (Discard) SendNotifications(context.Context, map[string]Payload) error { return nil }
