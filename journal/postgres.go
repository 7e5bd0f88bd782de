package journal

import (
	"database/sql"

	_ "github.com/lib/pq"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS fills (
	fill_id TEXT PRIMARY KEY,
	strategy_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	quantity DOUBLE PRECISION NOT NULL,
	price DOUBLE PRECISION NOT NULL,
	realized_pl DOUBLE PRECISION NOT NULL,
	time TIMESTAMPTZ NOT NULL,
	reason TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS equity (
	time TIMESTAMPTZ NOT NULL,
	cash DOUBLE PRECISION NOT NULL,
	equity DOUBLE PRECISION NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fills_strategy ON fills(strategy_id);
CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(time);
`

// PostgresJournal persists through a shared Postgres instance, for
// deployments where several engine hosts feed one ledger.
type PostgresJournal struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*PostgresJournal, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(postgresSchema); err != nil {
		db.Close()
		return nil, err
	}
	return &PostgresJournal{db: db}, nil
}

func (j *PostgresJournal) RecordFill(r FillRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO fills
		(fill_id, strategy_id, symbol, quantity, price, realized_pl, time, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.FillID, r.StrategyID, r.Symbol, r.Quantity,
		r.Price, r.RealizedPL, r.Time, r.Reason,
	)
	return err
}

func (j *PostgresJournal) RecordEquity(r EquityRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO equity (time, cash, equity) VALUES ($1, $2, $3)`,
		r.Time, r.Cash, r.Equity,
	)
	return err
}

func (j *PostgresJournal) Close() error {
	return j.db.Close()
}
