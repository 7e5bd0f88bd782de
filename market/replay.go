package market

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ReplaySource serves historical quotes from a CSV file. Snapshots are
// resolved by asOf: each symbol gets its latest quote at or before that
// instant, with the usual staleness marking. Combined with a virtual clock
// this replays a recorded session through the engine deterministically.
//
// CSV format, header row optional:
//
//	time,symbol,price[,volume]
//
// with RFC3339 timestamps. Rows may appear in any order.
type ReplaySource struct {
	quotes map[string][]Quote
}

// LoadReplayCSV reads and indexes a quote CSV.
func LoadReplayCSV(path string) (*ReplaySource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	src := &ReplaySource{quotes: make(map[string][]Quote)}
	line := 0
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("replay %s: %w", path, err)
		}
		line++
		if line == 1 && len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), "time") {
			continue
		}
		q, err := parseReplayRow(row)
		if err != nil {
			return nil, fmt.Errorf("replay %s line %d: %w", path, line, err)
		}
		src.quotes[q.Symbol] = append(src.quotes[q.Symbol], q)
	}

	for sym := range src.quotes {
		qs := src.quotes[sym]
		sort.Slice(qs, func(i, j int) bool { return qs[i].Time.Before(qs[j].Time) })
	}
	return src, nil
}

func parseReplayRow(row []string) (Quote, error) {
	if len(row) < 3 {
		return Quote{}, fmt.Errorf("need at least 3 columns time,symbol,price, got %d", len(row))
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(row[0]))
	if err != nil {
		return Quote{}, fmt.Errorf("bad time %q: %w", row[0], err)
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
	if err != nil {
		return Quote{}, fmt.Errorf("bad price %q: %w", row[2], err)
	}
	q := Quote{Symbol: strings.TrimSpace(row[1]), Price: price, Time: t}
	if len(row) >= 4 && strings.TrimSpace(row[3]) != "" {
		if q.Volume, err = strconv.ParseFloat(strings.TrimSpace(row[3]), 64); err != nil {
			return Quote{}, fmt.Errorf("bad volume %q: %w", row[3], err)
		}
	}
	return q, nil
}

// Symbols lists every symbol present in the replay.
func (r *ReplaySource) Symbols() []string {
	syms := make([]string, 0, len(r.quotes))
	for sym := range r.quotes {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	return syms
}

// Span returns the time range covered by the replay.
func (r *ReplaySource) Span() (first, last time.Time) {
	for _, qs := range r.quotes {
		if first.IsZero() || qs[0].Time.Before(first) {
			first = qs[0].Time
		}
		if end := qs[len(qs)-1].Time; end.After(last) {
			last = end
		}
	}
	return first, last
}

// GetSnapshot resolves each symbol to its latest quote at or before asOf.
// The source is read-only after load, so concurrent snapshots are safe.
func (r *ReplaySource) GetSnapshot(ctx context.Context, symbols []string, asOf time.Time, maxAge time.Duration) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		AsOf:   asOf,
		Quotes: make(map[string]Quote, len(symbols)),
		Stale:  make(map[string]bool),
	}
	for _, sym := range symbols {
		qs := r.quotes[sym]
		// First quote strictly after asOf; the one before it is current.
		i := sort.Search(len(qs), func(i int) bool { return qs[i].Time.After(asOf) })
		if i == 0 {
			continue
		}
		q := qs[i-1]
		snap.Quotes[sym] = q
		if maxAge > 0 && asOf.Sub(q.Time) > maxAge {
			snap.Stale[sym] = true
		}
	}
	return snap, nil
}
