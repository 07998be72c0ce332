// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds the reads shared by the store and its transactions.
type queries struct {
	db dbtx
}

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	queries
	conn *sql.DB
}

// sqliteTx implements storage.Tx on top of a database transaction.
type sqliteTx struct {
	queries
	tx *sql.Tx
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Foreign keys are per connection, so they go in the DSN
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer; serialize through one connection
	conn.SetMaxOpenConns(1)

	if err := runMigrations(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{queries: queries{db: conn}, conn: conn}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

// WithTx runs fn inside a database transaction.
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqliteTx{queries: queries{db: tx}, tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CreateSheet persists a new sheet to the database.
func (s *SQLiteStore) CreateSheet(ctx context.Context, sheet *models.Sheet) error {
	if sheet.ID == "" {
		sheet.ID = uuid.New().String()
	}
	if sheet.CreatedAt == 0 {
		sheet.CreatedAt = time.Now().Unix()
	}

	_, err := s.conn.ExecContext(ctx,
		"INSERT INTO sheets (id, currency_code, type, admin_id, created_at) VALUES (?, ?, ?, ?, ?)",
		sheet.ID, sheet.CurrencyCode, string(sheet.Type), sheet.AdminID, sheet.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert sheet: %w", err)
	}
	return nil
}

// GetSheet retrieves a sheet by ID.
func (s *SQLiteStore) GetSheet(ctx context.Context, sheetID string) (*models.Sheet, error) {
	sheet := &models.Sheet{}
	var sheetType string
	err := s.conn.QueryRowContext(ctx,
		"SELECT id, currency_code, type, admin_id, created_at FROM sheets WHERE id = ?",
		sheetID,
	).Scan(&sheet.ID, &sheet.CurrencyCode, &sheetType, &sheet.AdminID, &sheet.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: sheet %s", models.ErrNotFound, sheetID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sheet: %w", err)
	}
	sheet.Type = models.SheetType(sheetType)
	return sheet, nil
}
