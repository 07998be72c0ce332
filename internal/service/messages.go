package service

import (
	"time"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/scheduler"
)

// Requests

type PersonalTransaction struct {
	Type        string      `json:"type" validate:"required,oneof=EXPENSE INCOME"`
	Category    string      `json:"category" validate:"max=64"`
	Description string      `json:"description" validate:"max=512"`
	Money       money.Money `json:"money"`
	SpentAt     time.Time   `json:"spent_at"`
}

type CreatePersonalTransactionRequest struct {
	SheetID     string              `json:"sheet_id" validate:"required"`
	Transaction PersonalTransaction `json:"transaction"`
}

type CreatePersonalTransactionsRequest struct {
	SheetID      string                `json:"sheet_id" validate:"required"`
	Transactions []PersonalTransaction `json:"transactions" validate:"required,min=1,max=500,dive"`
}

type ReplacePersonalTransactionRequest struct {
	SheetID       string              `json:"sheet_id" validate:"required"`
	TransactionID string              `json:"transaction_id" validate:"required"`
	Transaction   PersonalTransaction `json:"transaction"`
}

type Split struct {
	ParticipantID string      `json:"participant_id" validate:"required"`
	Share         money.Money `json:"share"`
}

type CreateGroupTransactionRequest struct {
	SheetID            string      `json:"sheet_id" validate:"required"`
	Type               string      `json:"type" validate:"required,oneof=EXPENSE INCOME"`
	Category           string      `json:"category" validate:"max=64"`
	Description        string      `json:"description" validate:"max=512"`
	Money              money.Money `json:"money"`
	PaidOrReceivedByID string      `json:"paid_or_received_by_id" validate:"required"`
	SpentAt            time.Time   `json:"spent_at"`
	Splits             []Split     `json:"splits" validate:"dive"`

	// SplitEqually replaces Splits with an even division among these users.
	SplitEqually []string `json:"split_equally" validate:"dive,required"`
}

type CreateSettlementRequest struct {
	SheetID string      `json:"sheet_id" validate:"required"`
	Money   money.Money `json:"money"`
	FromID  string      `json:"from_id" validate:"required"`
	ToID    string      `json:"to_id" validate:"required,nefield=FromID"`
}

type DeleteTransactionRequest struct {
	SheetID       string `json:"sheet_id" validate:"required"`
	TransactionID string `json:"transaction_id" validate:"required"`
}

type GetTransactionBalancesRequest struct {
	SheetID       string `json:"sheet_id" validate:"required"`
	TransactionID string `json:"transaction_id" validate:"required"`
}

type GetSheetBalancesRequest struct {
	SheetID      string   `json:"sheet_id" validate:"required"`
	Participants []string `json:"participants" validate:"dive,required"`
}

type RecurrenceRule struct {
	Freq     string `json:"freq" validate:"required,oneof=DAILY WEEKLY MONTHLY YEARLY"`
	Interval int    `json:"interval" validate:"gte=0"`

	// DTStart is a floating wall-clock time, "2006-01-02T15:04:05".
	DTStart string `json:"dtstart" validate:"required"`
}

type CreateScheduleRequest struct {
	SheetID        string         `json:"sheet_id" validate:"required"`
	Type           string         `json:"type" validate:"required,oneof=EXPENSE INCOME"`
	Category       string         `json:"category" validate:"max=64"`
	Description    string         `json:"description" validate:"max=512"`
	Money          money.Money    `json:"money"`
	TZID           string         `json:"tz_id" validate:"required"`
	RecurrenceRule RecurrenceRule `json:"recurrence_rule"`
}

type DeleteScheduleRequest struct {
	SheetID    string `json:"sheet_id" validate:"required"`
	ScheduleID string `json:"schedule_id" validate:"required"`
}

type ProcessSchedulesRequest struct{}

// Responses

type Transaction struct {
	ID          string      `json:"id"`
	SheetID     string      `json:"sheet_id"`
	Type        string      `json:"type"`
	Category    string      `json:"category"`
	Description string      `json:"description"`
	SpentAt     time.Time   `json:"spent_at"`
	Money       money.Money `json:"money"`
	CreatedByID string      `json:"created_by_id,omitempty"`
	CreatedAt   int64       `json:"created_at"`
}

type Entry struct {
	ID     string      `json:"id"`
	UserID string      `json:"user_id"`
	Money  money.Money `json:"money"`
}

type TransactionResponse struct {
	Transaction Transaction `json:"transaction"`
}

type TransactionsResponse struct {
	Transactions []Transaction `json:"transactions"`
}

type PostingResponse struct {
	Transaction Transaction          `json:"transaction"`
	Entries     []Entry              `json:"entries"`
	Balances    []calculator.Balance `json:"balances"`
}

type DeleteTransactionResponse struct{}

type GetTransactionBalancesResponse struct {
	Transaction Transaction          `json:"transaction"`
	Balances    []calculator.Balance `json:"balances"`
}

type GetSheetBalancesResponse struct {
	Balances  []ledger.ParticipantBalance `json:"balances"`
	Transfers []calculator.Transfer       `json:"transfers"`
}

type Schedule struct {
	ID               string      `json:"id"`
	SheetID          string      `json:"sheet_id"`
	Freq             string      `json:"freq"`
	Interval         int         `json:"interval"`
	DTStart          string      `json:"dtstart"`
	TZID             string      `json:"tz_id"`
	NextOccurrenceAt time.Time   `json:"next_occurrence_at"`
	Type             string      `json:"type"`
	Category         string      `json:"category"`
	Description      string      `json:"description"`
	Money            money.Money `json:"money"`
}

type ScheduleResponse struct {
	Schedule Schedule `json:"schedule"`
}

type DeleteScheduleResponse struct{}

type ProcessSchedulesResponse struct {
	Report *scheduler.Report `json:"report"`
}

func toTransaction(t *models.Transaction, currencyCode string) Transaction {
	return Transaction{
		ID:          t.ID,
		SheetID:     t.SheetID,
		Type:        string(t.Type),
		Category:    t.Category,
		Description: t.Description,
		SpentAt:     t.SpentAt,
		Money:       t.Money(currencyCode),
		CreatedByID: t.CreatedByID,
		CreatedAt:   t.CreatedAt,
	}
}

func toEntries(entries []*models.TransactionEntry, currencyCode string) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, Entry{ID: e.ID, UserID: e.UserID, Money: e.Money(currencyCode)})
	}
	return out
}

func toSchedule(s *models.TransactionSchedule, currencyCode string) Schedule {
	return Schedule{
		ID:               s.ID,
		SheetID:          s.SheetID,
		Freq:             string(s.RecurrenceRule.Freq),
		Interval:         s.RecurrenceRule.Interval,
		DTStart:          s.RecurrenceRule.DTStart.Format(models.FloatingLayout),
		TZID:             s.TZID,
		NextOccurrenceAt: s.NextOccurrenceAt,
		Type:             string(s.Template.Type),
		Category:         s.Template.Category,
		Description:      s.Template.Description,
		Money: money.Money{
			Amount:       s.Template.Amount,
			Scale:        s.Template.Scale,
			CurrencyCode: currencyCode,
		},
	}
}

func (p PersonalTransaction) input() ledger.PersonalTransactionInput {
	return ledger.PersonalTransactionInput{
		Type:        models.TransactionType(p.Type),
		Category:    p.Category,
		Description: p.Description,
		Money:       p.Money,
		SpentAt:     p.SpentAt,
	}
}
