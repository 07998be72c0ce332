package models

import "time"

// Frequency is the recurrence period of a schedule.
type Frequency string

const (
	FrequencyDaily   Frequency = "DAILY"
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyMonthly Frequency = "MONTHLY"
	FrequencyYearly  Frequency = "YEARLY"
)

// FloatingLayout formats floating (zone-less) wall-clock instants.
const FloatingLayout = "2006-01-02T15:04:05"

// RecurrenceRule describes when a schedule fires.
//
// DTStart is a floating wall-clock time: only its calendar fields matter and
// its location is ignored. The schedule's TZID gives it a real instant.
type RecurrenceRule struct {
	Freq     Frequency
	Interval int
	DTStart  time.Time
}

// TransactionTemplate is copied into every materialized occurrence.
type TransactionTemplate struct {
	Type        TransactionType
	Category    string
	Description string
	Amount      int64
	Scale       int
}

// TransactionSchedule is a recurring transaction. Only the schedule
// processor mutates NextOccurrenceAt, and only forward.
type TransactionSchedule struct {
	ID               string
	SheetID          string
	RecurrenceRule   RecurrenceRule
	TZID             string
	NextOccurrenceAt time.Time
	Template         TransactionTemplate
	CreatedByID      string
	CreatedAt        int64
}
