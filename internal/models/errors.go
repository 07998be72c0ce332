package models

import "errors"

// Sentinel errors shared by the ledger, the scheduler and the store.
var (
	// ErrValidation marks input rejected before any write.
	ErrValidation = errors.New("ledger: validation failed")

	// ErrNotFound marks an id absent from the given sheet.
	ErrNotFound = errors.New("ledger: not found")

	// ErrConflict marks a lost race on a guarded update.
	ErrConflict = errors.New("ledger: conflict")

	// ErrInternalConsistency marks a broken engine invariant. It is never a
	// user-correctable error.
	ErrInternalConsistency = errors.New("ledger: internal consistency violation")
)
