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

const scheduleColumns = `id, sheet_id, freq, freq_interval, dtstart, tz_id, next_occurrence_at,
	type, category, description, amount, scale, created_by_id, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner) (*models.TransactionSchedule, error) {
	sched := &models.TransactionSchedule{}
	var freq, dtstart, txType string
	var next int64
	err := row.Scan(&sched.ID, &sched.SheetID, &freq, &sched.RecurrenceRule.Interval, &dtstart,
		&sched.TZID, &next, &txType, &sched.Template.Category, &sched.Template.Description,
		&sched.Template.Amount, &sched.Template.Scale, &sched.CreatedByID, &sched.CreatedAt)
	if err != nil {
		return nil, err
	}

	start, err := time.Parse(models.FloatingLayout, dtstart)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dtstart %q: %w", dtstart, err)
	}
	sched.RecurrenceRule.Freq = models.Frequency(freq)
	sched.RecurrenceRule.DTStart = start
	sched.NextOccurrenceAt = time.Unix(next, 0).UTC()
	sched.Template.Type = models.TransactionType(txType)
	return sched, nil
}

// CreateSchedule persists a new schedule to the database.
func (s *SQLiteStore) CreateSchedule(ctx context.Context, sched *models.TransactionSchedule) error {
	if sched.ID == "" {
		sched.ID = uuid.New().String()
	}
	if sched.CreatedAt == 0 {
		sched.CreatedAt = time.Now().Unix()
	}

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO transaction_schedules (`+scheduleColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sched.ID, sched.SheetID, string(sched.RecurrenceRule.Freq), sched.RecurrenceRule.Interval,
		sched.RecurrenceRule.DTStart.Format(models.FloatingLayout), sched.TZID,
		sched.NextOccurrenceAt.Unix(), string(sched.Template.Type), sched.Template.Category,
		sched.Template.Description, sched.Template.Amount, sched.Template.Scale,
		sched.CreatedByID, sched.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert schedule: %w", err)
	}
	return nil
}

// GetSchedule retrieves a schedule by ID within a sheet.
func (s *SQLiteStore) GetSchedule(ctx context.Context, sheetID, scheduleID string) (*models.TransactionSchedule, error) {
	row := s.conn.QueryRowContext(ctx,
		"SELECT "+scheduleColumns+" FROM transaction_schedules WHERE id = ? AND sheet_id = ?",
		scheduleID, sheetID,
	)
	sched, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: schedule %s", models.ErrNotFound, scheduleID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	return sched, nil
}

// DeleteSchedule removes a schedule by ID within a sheet.
func (s *SQLiteStore) DeleteSchedule(ctx context.Context, sheetID, scheduleID string) error {
	res, err := s.conn.ExecContext(ctx,
		"DELETE FROM transaction_schedules WHERE id = ? AND sheet_id = ?",
		scheduleID, sheetID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: schedule %s", models.ErrNotFound, scheduleID)
	}
	return nil
}

// ListDueSchedules retrieves schedules with next_occurrence_at <= now.
func (s *SQLiteStore) ListDueSchedules(ctx context.Context, now time.Time) ([]*models.TransactionSchedule, error) {
	rows, err := s.conn.QueryContext(ctx,
		"SELECT "+scheduleColumns+` FROM transaction_schedules
		 WHERE next_occurrence_at <= ? ORDER BY next_occurrence_at, id`,
		now.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list due schedules: %w", err)
	}
	defer rows.Close()

	var schedules []*models.TransactionSchedule
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		schedules = append(schedules, sched)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate schedules: %w", err)
	}

	return schedules, nil
}

// AdvanceSchedule moves the schedule pointer forward if it still equals prev.
func (t *sqliteTx) AdvanceSchedule(ctx context.Context, scheduleID string, prev, next time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE transaction_schedules SET next_occurrence_at = ?
		 WHERE id = ? AND next_occurrence_at = ?`,
		next.Unix(), scheduleID, prev.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to advance schedule: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check updated rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: schedule %s was advanced concurrently", models.ErrConflict, scheduleID)
	}
	return nil
}
