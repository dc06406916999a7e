package history

const schema = `
CREATE TABLE IF NOT EXISTS closed_positions (
	id TEXT PRIMARY KEY,
	trade_date TEXT NOT NULL,
	symbol TEXT NOT NULL,
	strategy TEXT NOT NULL,
	qty REAL NOT NULL,
	entry_price REAL NOT NULL,
	exit_price REAL NOT NULL,
	pl REAL NOT NULL,
	pl_percent REAL NOT NULL,
	hold_seconds REAL NOT NULL,
	closed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_closed_positions_date ON closed_positions(trade_date);
`
