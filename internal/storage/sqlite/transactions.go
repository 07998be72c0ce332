package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitledger/internal/models"
)

// GetTransaction retrieves a transaction by ID within a sheet.
func (q *queries) GetTransaction(ctx context.Context, sheetID, transactionID string) (*models.Transaction, error) {
	txn := &models.Transaction{}
	var txType string
	var spentAt int64
	err := q.db.QueryRowContext(ctx,
		`SELECT id, sheet_id, type, category, description, spent_at, amount, scale, created_by_id, created_at
		 FROM transactions WHERE id = ? AND sheet_id = ?`,
		transactionID, sheetID,
	).Scan(&txn.ID, &txn.SheetID, &txType, &txn.Category, &txn.Description,
		&spentAt, &txn.Amount, &txn.Scale, &txn.CreatedByID, &txn.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transaction %s", models.ErrNotFound, transactionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	txn.Type = models.TransactionType(txType)
	txn.SpentAt = time.Unix(spentAt, 0).UTC()
	return txn, nil
}

// ListEntries retrieves all entries of a transaction in insertion order.
func (q *queries) ListEntries(ctx context.Context, transactionID string) ([]*models.TransactionEntry, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, transaction_id, user_id, amount, scale
		 FROM transaction_entries WHERE transaction_id = ? ORDER BY rowid`,
		transactionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.TransactionEntry
	for rows.Next() {
		e := &models.TransactionEntry{}
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.UserID, &e.Amount, &e.Scale); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
	}

	return entries, nil
}

// SumEntriesByUser sums every entry of a sheet per (user, scale).
func (s *SQLiteStore) SumEntriesByUser(ctx context.Context, sheetID string) ([]models.EntrySum, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT e.user_id, e.scale, SUM(e.amount)
		 FROM transaction_entries e
		 JOIN transactions t ON t.id = e.transaction_id
		 WHERE t.sheet_id = ?
		 GROUP BY e.user_id, e.scale
		 ORDER BY e.user_id, e.scale`,
		sheetID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to sum entries: %w", err)
	}
	defer rows.Close()

	var sums []models.EntrySum
	for rows.Next() {
		var sum models.EntrySum
		if err := rows.Scan(&sum.UserID, &sum.Scale, &sum.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan entry sum: %w", err)
		}
		sums = append(sums, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entry sums: %w", err)
	}

	return sums, nil
}

// CreateTransaction persists a transaction together with its entries.
func (t *sqliteTx) CreateTransaction(ctx context.Context, txn *models.Transaction, entries []*models.TransactionEntry) error {
	// Generate IDs if not set
	if txn.ID == "" {
		txn.ID = uuid.New().String()
	}
	if txn.CreatedAt == 0 {
		txn.CreatedAt = time.Now().Unix()
	}

	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO transactions (id, sheet_id, type, category, description, spent_at, amount, scale, created_by_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.SheetID, string(txn.Type), txn.Category, txn.Description,
		txn.SpentAt.Unix(), txn.Amount, txn.Scale, txn.CreatedByID, txn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	for _, e := range entries {
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		e.TransactionID = txn.ID

		_, err = t.tx.ExecContext(ctx,
			"INSERT INTO transaction_entries (id, transaction_id, user_id, amount, scale) VALUES (?, ?, ?, ?, ?)",
			e.ID, e.TransactionID, e.UserID, e.Amount, e.Scale,
		)
		if err != nil {
			return fmt.Errorf("failed to insert entry: %w", err)
		}
	}

	return nil
}

// DeleteTransaction removes a transaction; its entries cascade.
func (t *sqliteTx) DeleteTransaction(ctx context.Context, sheetID, transactionID string) error {
	res, err := t.tx.ExecContext(ctx,
		"DELETE FROM transactions WHERE id = ? AND sheet_id = ?",
		transactionID, sheetID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: transaction %s", models.ErrNotFound, transactionID)
	}
	return nil
}
