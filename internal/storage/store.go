// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"time"

	"github.com/mmynk/splitledger/internal/models"
)

// Queries are the reads and writes available both on the store and inside a
// store transaction.
type Queries interface {
	// GetTransaction retrieves a transaction that belongs to sheetID.
	// Returns models.ErrNotFound if it does not exist on that sheet.
	GetTransaction(ctx context.Context, sheetID, transactionID string) (*models.Transaction, error)

	// ListEntries returns the entries of one transaction in insertion order.
	ListEntries(ctx context.Context, transactionID string) ([]*models.TransactionEntry, error)
}

// Tx groups writes that must commit or fail as one unit.
type Tx interface {
	Queries

	// CreateTransaction persists a transaction and its entries. Empty IDs and
	// CreatedAt are assigned by the store.
	CreateTransaction(ctx context.Context, txn *models.Transaction, entries []*models.TransactionEntry) error

	// DeleteTransaction removes a transaction and its entries.
	// Returns models.ErrNotFound if it does not exist on sheetID.
	DeleteTransaction(ctx context.Context, sheetID, transactionID string) error

	// AdvanceSchedule moves a schedule pointer from prev to next. Returns
	// models.ErrConflict if the pointer no longer equals prev.
	AdvanceSchedule(ctx context.Context, scheduleID string, prev, next time.Time) error
}

// Store defines the ledger storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the ledger or the scheduler.
type Store interface {
	Queries

	// WithTx runs fn inside one store transaction. The transaction commits if
	// fn returns nil and rolls back otherwise. Only tx may be used inside fn.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// CreateSheet persists a new sheet. The sheet.ID field will be populated
	// by the store if empty.
	CreateSheet(ctx context.Context, sheet *models.Sheet) error

	// GetSheet retrieves a sheet by its ID.
	GetSheet(ctx context.Context, sheetID string) (*models.Sheet, error)

	// SumEntriesByUser sums the entries of a sheet grouped by (user, scale).
	SumEntriesByUser(ctx context.Context, sheetID string) ([]models.EntrySum, error)

	// CreateSchedule persists a new schedule.
	CreateSchedule(ctx context.Context, schedule *models.TransactionSchedule) error

	// GetSchedule retrieves a schedule that belongs to sheetID.
	GetSchedule(ctx context.Context, sheetID, scheduleID string) (*models.TransactionSchedule, error)

	// DeleteSchedule removes a schedule from sheetID.
	DeleteSchedule(ctx context.Context, sheetID, scheduleID string) error

	// ListDueSchedules returns schedules whose next occurrence is at or
	// before now, oldest first.
	ListDueSchedules(ctx context.Context, now time.Time) ([]*models.TransactionSchedule, error)

	// Close releases any resources held by the store.
	Close() error
}
