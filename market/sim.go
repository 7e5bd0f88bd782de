package market

import (
	"context"
	"time"
)

// SimProvider is an in-memory provider backed by a QuoteStore. Tests and the
// demo command push quotes into it directly; the engine reads snapshots from
// it exactly as it would from a live feed.
type SimProvider struct {
	store *QuoteStore
}

func NewSimProvider() *SimProvider {
	return &SimProvider{store: NewQuoteStore()}
}

// Push records a new last quote for the symbol.
func (p *SimProvider) Push(q Quote) {
	p.store.Set(q)
}

func (p *SimProvider) GetSnapshot(ctx context.Context, symbols []string, asOf time.Time, maxAge time.Duration) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	return p.store.Snapshot(symbols, asOf, maxAge), nil
}
