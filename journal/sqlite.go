package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS fills (
	fill_id TEXT PRIMARY KEY,
	strategy_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	quantity REAL NOT NULL,
	price REAL NOT NULL,
	realized_pl REAL NOT NULL,
	time DATETIME NOT NULL,
	reason TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS equity (
	time DATETIME NOT NULL,
	cash REAL NOT NULL,
	equity REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fills_strategy ON fills(strategy_id);
CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(time);
`

type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) RecordFill(r FillRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO fills
		(fill_id, strategy_id, symbol, quantity, price, realized_pl, time, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.FillID, r.StrategyID, r.Symbol, r.Quantity,
		r.Price, r.RealizedPL, r.Time, r.Reason,
	)
	return err
}

func (j *SQLiteJournal) RecordEquity(r EquityRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO equity (time, cash, equity) VALUES (?, ?, ?)`,
		r.Time, r.Cash, r.Equity,
	)
	return err
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
