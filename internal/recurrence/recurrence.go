// Package recurrence expands schedule rules into concrete zoned instants.
//
// Rules iterate over floating wall-clock dates, represented as UTC times whose
// zone carries no meaning. Month and week arithmetic therefore never sees a
// DST transition. Each floating date is then given the schedule's IANA zone,
// which resolves the UTC offset valid on that date: the 1st of the month at
// 00:00 Europe/Berlin is +01:00 in winter and +02:00 in summer.
//
// A wall-clock time that does not exist in the zone (inside a spring-forward
// gap) is normalized by time.Date, which moves it past the gap.
package recurrence

import (
	"fmt"
	"log/slog"
	"time"
	_ "time/tzdata"

	"github.com/teambition/rrule-go"

	"github.com/mmynk/splitledger/internal/models"
)

// DefaultMaxIterations bounds a single expansion.
const DefaultMaxIterations = 1_000_000

var frequencies = map[models.Frequency]rrule.Frequency{
	models.FrequencyDaily:   rrule.DAILY,
	models.FrequencyWeekly:  rrule.WEEKLY,
	models.FrequencyMonthly: rrule.MONTHLY,
	models.FrequencyYearly:  rrule.YEARLY,
}

// Expansion is the result of expanding a rule up to a point in time.
type Expansion struct {
	// Past holds the zoned instants to materialize, in order.
	Past []time.Time

	// Next is the first instant not in Past. It is in the future unless the
	// batch limit cut the expansion short.
	Next time.Time
}

// Expander expands recurrence rules. MaxBatch caps len(Expansion.Past);
// zero means no cap. MaxIterations caps the instants generated per
// expansion; zero means DefaultMaxIterations.
type Expander struct {
	MaxBatch      int
	MaxIterations int
}

// NewExpander creates an expander with the given batch cap.
func NewExpander(maxBatch int) *Expander {
	return &Expander{MaxBatch: maxBatch, MaxIterations: DefaultMaxIterations}
}

// Floating drops the zone of t and keeps its wall-clock fields.
func Floating(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

// ParseFloating parses a zone-less "2006-01-02T15:04:05" timestamp.
func ParseFloating(s string) (time.Time, error) {
	t, err := time.Parse(models.FloatingLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid floating date %q", models.ErrValidation, s)
	}
	return t, nil
}

// Localize attaches loc to the wall-clock fields of a floating time.
func Localize(floating time.Time, loc *time.Location) time.Time {
	return time.Date(floating.Year(), floating.Month(), floating.Day(),
		floating.Hour(), floating.Minute(), floating.Second(), 0, loc)
}

// LoadZone resolves an IANA zone name.
func LoadZone(tzID string) (*time.Location, error) {
	if tzID == "" {
		return nil, fmt.Errorf("%w: missing timezone", models.ErrValidation)
	}
	loc, err := time.LoadLocation(tzID)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown timezone %q", models.ErrValidation, tzID)
	}
	return loc, nil
}

// Validate checks that a rule can be expanded.
func Validate(rule models.RecurrenceRule) error {
	if _, ok := frequencies[rule.Freq]; !ok {
		return fmt.Errorf("%w: unsupported frequency %q", models.ErrValidation, rule.Freq)
	}
	if rule.Interval < 0 {
		return fmt.Errorf("%w: interval must be positive", models.ErrValidation)
	}
	if rule.DTStart.IsZero() {
		return fmt.Errorf("%w: missing dtstart", models.ErrValidation)
	}
	return nil
}

// First returns the first zoned occurrence of rule.
func (e *Expander) First(rule models.RecurrenceRule, tzID string) (time.Time, error) {
	exp, err := e.Expand(rule, tzID, time.Time{}, time.Time{})
	if err != nil {
		return time.Time{}, err
	}
	return exp.Next, nil
}

// Expand walks the rule from its start. Instants before from are skipped,
// instants in [from, now) are collected into Past, and the first instant that
// is not collected becomes Next.
//
// An infinite rule always has a next instant; failing to find one is an
// internal consistency error.
func (e *Expander) Expand(rule models.RecurrenceRule, tzID string, from, now time.Time) (*Expansion, error) {
	if err := Validate(rule); err != nil {
		return nil, err
	}
	loc, err := LoadZone(tzID)
	if err != nil {
		return nil, err
	}

	interval := rule.Interval
	if interval == 0 {
		interval = 1
	}
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:     frequencies[rule.Freq],
		Interval: interval,
		Dtstart:  Floating(rule.DTStart),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrValidation, err)
	}

	limit := e.MaxIterations
	if limit <= 0 {
		limit = DefaultMaxIterations
	}

	next := r.Iterator()
	exp := &Expansion{}
	for i := 0; i < limit; i++ {
		floating, ok := next()
		if !ok {
			break
		}
		instant := Localize(floating, loc)
		if instant.Before(from) {
			continue
		}
		if instant.Before(now) && (e.MaxBatch <= 0 || len(exp.Past) < e.MaxBatch) {
			exp.Past = append(exp.Past, instant)
			continue
		}
		exp.Next = instant
		return exp, nil
	}

	slog.Error("Recurrence rule yielded no next occurrence",
		"freq", rule.Freq,
		"dtstart", rule.DTStart.Format(models.FloatingLayout),
		"tz_id", tzID,
	)
	return nil, fmt.Errorf("%w: rule %s from %s yields no next occurrence",
		models.ErrInternalConsistency, rule.Freq, rule.DTStart.Format(models.FloatingLayout))
}
