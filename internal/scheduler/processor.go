// Package scheduler materializes due recurring transactions.
//
// Each run lists the schedules whose next occurrence has passed, expands
// every one of them independently and posts the past occurrences through the
// ledger. Creating the occurrences and advancing the schedule pointer commit
// together, so a crash between runs neither duplicates nor loses occurrences.
// Once a batch commits, the ledger notifies the sheet admin.
// A failing schedule is recorded in the report and retried on the next run;
// it never affects its siblings.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/metrics"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/recurrence"
	"github.com/mmynk/splitledger/internal/storage"
)

// Outcome describes a schedule that was processed without error.
type Outcome struct {
	Count            int         `json:"count"`
	Instances        []time.Time `json:"instances"`
	NextOccurrenceAt time.Time   `json:"next_occurrence_at"`
}

// Report is the result of one processing run.
type Report struct {
	mu sync.Mutex

	ProcessedIDs []string           `json:"processed_ids"`
	Succeeded    map[string]Outcome `json:"succeeded"`
	Failed       map[string]string  `json:"failed"`
}

func newReport() *Report {
	return &Report{
		Succeeded: make(map[string]Outcome),
		Failed:    make(map[string]string),
	}
}

func (r *Report) succeed(id string, o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ProcessedIDs = append(r.ProcessedIDs, id)
	r.Succeeded[id] = o
}

func (r *Report) fail(id string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ProcessedIDs = append(r.ProcessedIDs, id)
	r.Failed[id] = err.Error()
}

// Processor runs the schedule materialization loop.
type Processor struct {
	store       storage.Store
	ledger      *ledger.Ledger
	expander    *recurrence.Expander
	metrics     *metrics.Metrics
	concurrency int
	interval    time.Duration
	now         func() time.Time
	trigger     chan struct{}
}

// Option configures a Processor.
type Option func(*Processor)

// WithConcurrency bounds how many schedules are processed at once.
func WithConcurrency(n int) Option {
	return func(p *Processor) { p.concurrency = n }
}

// WithInterval sets the polling period of Run.
func WithInterval(d time.Duration) Option {
	return func(p *Processor) { p.interval = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// WithMetrics enables instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// NewProcessor creates a processor. The expander's batch cap bounds how many
// occurrences one schedule materializes per run.
func NewProcessor(store storage.Store, l *ledger.Ledger, expander *recurrence.Expander, opts ...Option) *Processor {
	p := &Processor{
		store:       store,
		ledger:      l,
		expander:    expander,
		concurrency: 4,
		interval:    time.Hour,
		now:         time.Now,
		trigger:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.concurrency < 1 {
		p.concurrency = 1
	}
	return p
}

// ProcessSchedules handles every schedule due at the current time. The
// returned error covers listing only; per-schedule failures are in the
// report.
func (p *Processor) ProcessSchedules(ctx context.Context) (*Report, error) {
	now := p.now()
	due, err := p.store.ListDueSchedules(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due schedules: %w", err)
	}

	report := newReport()
	if len(due) == 0 {
		slog.Debug("No schedules due", "now", now.Format(time.RFC3339))
		return report, nil
	}
	slog.Info("Processing due schedules", "count", len(due), "now", now.Format(time.RFC3339))

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for _, sched := range due {
		sched := sched
		g.Go(func() error {
			outcome, err := p.processOne(ctx, sched, now)
			if err != nil {
				if errors.Is(err, models.ErrInternalConsistency) {
					slog.Error("Schedule violates an engine invariant", "schedule_id", sched.ID, "error", err)
				} else {
					slog.Warn("Schedule processing failed", "schedule_id", sched.ID, "error", err)
				}
				p.metrics.ScheduleFailed()
				report.fail(sched.ID, err)
				return nil
			}
			p.metrics.ScheduleSucceeded(outcome.Count)
			report.succeed(sched.ID, outcome)
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(report.ProcessedIDs)
	slog.Info("Schedules processed",
		"succeeded", len(report.Succeeded),
		"failed", len(report.Failed),
	)
	return report, nil
}

// processOne expands one schedule and materializes its past occurrences.
func (p *Processor) processOne(ctx context.Context, sched *models.TransactionSchedule, now time.Time) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	exp, err := p.expander.Expand(sched.RecurrenceRule, sched.TZID, sched.NextOccurrenceAt, now)
	if err != nil {
		return Outcome{}, err
	}
	if len(exp.Past) == 0 {
		return Outcome{NextOccurrenceAt: exp.Next}, nil
	}

	sheet, err := p.store.GetSheet(ctx, sched.SheetID)
	if err != nil {
		return Outcome{}, err
	}

	txns, err := p.ledger.MaterializeOccurrences(ctx, sheet, sched, exp.Past, exp.Next)
	if err != nil {
		return Outcome{}, err
	}

	slog.Info("Schedule materialized",
		"schedule_id", sched.ID,
		"sheet_id", sched.SheetID,
		"count", len(txns),
		"next_occurrence_at", exp.Next.Format(time.RFC3339),
	)
	return Outcome{
		Count:            len(txns),
		Instances:        exp.Past,
		NextOccurrenceAt: exp.Next,
	}, nil
}

// Trigger requests an immediate run from Run. It never blocks; a trigger
// that arrives while one is pending is coalesced.
func (p *Processor) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Run processes schedules once at start, then on every tick and trigger,
// until ctx is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	slog.Info("Schedule processor started", "interval", p.interval, "concurrency", p.concurrency)
	p.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Schedule processor stopped")
			return ctx.Err()
		case <-ticker.C:
			p.runOnce(ctx)
		case <-p.trigger:
			p.runOnce(ctx)
		}
	}
}

func (p *Processor) runOnce(ctx context.Context) {
	if _, err := p.ProcessSchedules(ctx); err != nil {
		slog.Error("ProcessSchedules failed", "error", err)
	}
}
