// Package models defines the core domain models for the ledger.
//
// # Models
//
//   - Sheet: a ledger with one currency, either personal or shared by a group
//   - Transaction: one expense, income or transfer recorded on a sheet
//   - TransactionEntry: one signed posting of a transaction against one user
//   - TransactionSchedule: a recurring transaction template with its rule
//
// # Postings
//
// Group transactions are recorded as pairs of entries per split: one leg for
// the payer (or receiver) and one for the participant. The signed sum of all
// entries of a group transaction is exactly zero. Personal transactions carry a
// single entry for the sheet owner.
//
// Balances and settlement transfers are derived on read and never persisted.
//
// # Identifiers
//
// All identifiers are UUID strings assigned by the store when left empty.
// Relationships are expressed by ID strings, never pointers.
package models
