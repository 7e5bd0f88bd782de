package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

type CSVJournal struct {
	fills  *csv.Writer
	equity *csv.Writer
	ff, ef *os.File
}

func NewCSV(fillsPath, equityPath string) (*CSVJournal, error) {
	ff, err := os.Create(fillsPath)
	if err != nil {
		return nil, err
	}
	ef, err := os.Create(equityPath)
	if err != nil {
		ff.Close()
		return nil, err
	}

	fw := csv.NewWriter(ff)
	ew := csv.NewWriter(ef)

	if err := fw.Write([]string{"fill_id", "strategy_id", "symbol", "quantity", "price", "realized_pl", "time", "reason"}); err != nil {
		ff.Close()
		ef.Close()
		return nil, err
	}
	if err := ew.Write([]string{"time", "cash", "equity"}); err != nil {
		ff.Close()
		ef.Close()
		return nil, err
	}

	fw.Flush()
	if err := fw.Error(); err != nil {
		ff.Close()
		ef.Close()
		return nil, err
	}
	ew.Flush()
	if err := ew.Error(); err != nil {
		ff.Close()
		ef.Close()
		return nil, err
	}

	return &CSVJournal{fills: fw, equity: ew, ff: ff, ef: ef}, nil
}

func (j *CSVJournal) RecordFill(r FillRecord) error {
	j.fills.Write([]string{
		r.FillID,
		r.StrategyID,
		r.Symbol,
		f(r.Quantity),
		f(r.Price),
		f(r.RealizedPL),
		r.Time.Format(time.RFC3339Nano),
		r.Reason,
	})
	j.fills.Flush()
	return j.fills.Error()
}

func (j *CSVJournal) RecordEquity(r EquityRecord) error {
	j.equity.Write([]string{
		r.Time.Format(time.RFC3339Nano),
		f(r.Cash),
		f(r.Equity),
	})
	j.equity.Flush()
	return j.equity.Error()
}

func (j *CSVJournal) Close() error {
	j.fills.Flush()
	j.equity.Flush()
	err1 := j.ff.Close()
	err2 := j.ef.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

func f(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
