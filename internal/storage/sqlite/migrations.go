package sqlite

import "database/sql"

// schema contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist.
// Amounts are integer minor units with their scale; times are Unix seconds
// except the floating dtstart, stored as "2006-01-02T15:04:05" text.
const schema = `
CREATE TABLE IF NOT EXISTS sheets (
    id TEXT PRIMARY KEY,
    currency_code TEXT NOT NULL,
    type TEXT NOT NULL CHECK (type IN ('personal', 'group')),
    admin_id TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    sheet_id TEXT NOT NULL,
    type TEXT NOT NULL CHECK (type IN ('EXPENSE', 'INCOME', 'TRANSFER')),
    category TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    spent_at INTEGER NOT NULL,
    amount INTEGER NOT NULL,
    scale INTEGER NOT NULL CHECK (scale >= 0),
    created_by_id TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    FOREIGN KEY (sheet_id) REFERENCES sheets(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS transaction_entries (
    id TEXT PRIMARY KEY,
    transaction_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    amount INTEGER NOT NULL,
    scale INTEGER NOT NULL CHECK (scale >= 0),
    FOREIGN KEY (transaction_id) REFERENCES transactions(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS transaction_schedules (
    id TEXT PRIMARY KEY,
    sheet_id TEXT NOT NULL,
    freq TEXT NOT NULL,
    freq_interval INTEGER NOT NULL DEFAULT 1,
    dtstart TEXT NOT NULL,
    tz_id TEXT NOT NULL,
    next_occurrence_at INTEGER NOT NULL,
    type TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    amount INTEGER NOT NULL,
    scale INTEGER NOT NULL CHECK (scale >= 0),
    created_by_id TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    FOREIGN KEY (sheet_id) REFERENCES sheets(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_transactions_sheet_id ON transactions(sheet_id);
CREATE INDEX IF NOT EXISTS idx_transaction_entries_transaction_id ON transaction_entries(transaction_id);
CREATE INDEX IF NOT EXISTS idx_transaction_entries_user_id ON transaction_entries(user_id);
CREATE INDEX IF NOT EXISTS idx_transaction_schedules_next ON transaction_schedules(next_occurrence_at);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
