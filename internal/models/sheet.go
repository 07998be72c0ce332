package models

// SheetType distinguishes single-owner sheets from shared ones.
type SheetType string

const (
	SheetTypePersonal SheetType = "personal"
	SheetTypeGroup    SheetType = "group"
)

// Sheet is a ledger in a single currency.
type Sheet struct {
	// ID is the unique identifier for the sheet (UUID format).
	ID string

	// CurrencyCode is the ISO 4217 code every transaction must match.
	CurrencyCode string

	Type SheetType

	// AdminID is the participant scheduled transactions are posted to.
	AdminID string

	// CreatedAt is the Unix timestamp when the sheet was created.
	CreatedAt int64
}
