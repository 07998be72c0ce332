package models

import (
	"time"

	"github.com/mmynk/splitledger/internal/money"
)

// TransactionType is the kind of money movement.
type TransactionType string

const (
	TransactionTypeExpense  TransactionType = "EXPENSE"
	TransactionTypeIncome   TransactionType = "INCOME"
	TransactionTypeTransfer TransactionType = "TRANSFER"
)

// Valid reports whether t is a known type.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeExpense, TransactionTypeIncome, TransactionTypeTransfer:
		return true
	}
	return false
}

// Transaction is one recorded movement on a sheet. Its amount is always
// non-negative; direction lives in the entries.
type Transaction struct {
	ID          string
	SheetID     string
	Type        TransactionType
	Category    string
	Description string
	SpentAt     time.Time
	Amount      int64
	Scale       int

	// CreatedByID is the acting user, or empty for scheduled occurrences.
	CreatedByID string

	// CreatedAt is the Unix timestamp of the first creation. Replacing a
	// personal transaction keeps it.
	CreatedAt int64
}

// Money returns the transaction total in the given sheet currency.
func (t *Transaction) Money(currencyCode string) money.Money {
	return money.Money{Amount: t.Amount, Scale: t.Scale, CurrencyCode: currencyCode}
}

// TransactionEntry is one signed posting against one user.
type TransactionEntry struct {
	ID            string
	TransactionID string
	UserID        string
	Amount        int64
	Scale         int
}

// Money returns the entry amount in the given sheet currency.
func (e *TransactionEntry) Money(currencyCode string) money.Money {
	return money.Money{Amount: e.Amount, Scale: e.Scale, CurrencyCode: currencyCode}
}

// Split is a participant's declared share of a group transaction.
type Split struct {
	ParticipantID string      `json:"participant_id"`
	Share         money.Money `json:"share"`
}

// EntrySum is the sum of one user's entry amounts that share a scale.
type EntrySum struct {
	UserID string
	Scale  int
	Amount int64
}
