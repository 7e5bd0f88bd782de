package market

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// StreamProvider consumes a websocket quote feed and serves snapshots from
// the last-known quotes. If the feed stalls, quotes age out through the
// staleness window rather than being invented.
//
// The wire format is one JSON object per message:
//
//	{"symbol":"AAPL","price":187.32,"volume":1200,"ts":"2026-01-02T15:04:05Z"}
type StreamProvider struct {
	url    string
	store  *QuoteStore
	logger *zap.Logger
}

type wireQuote struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	Volume float64   `json:"volume"`
	TS     time.Time `json:"ts"`
}

func NewStreamProvider(url string, logger *zap.Logger) *StreamProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamProvider{
		url:    url,
		store:  NewQuoteStore(),
		logger: logger,
	}
}

// Run dials the feed and pumps quotes into the store until ctx is cancelled.
// Connection failures are retried with a fixed backoff; the provider keeps
// serving the last-known quotes while disconnected.
func (p *StreamProvider) Run(ctx context.Context) error {
	const backoff = 2 * time.Second

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, p.url, nil)
		if err != nil {
			p.logger.Warn("quote feed dial failed",
				zap.String("url", p.url),
				zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			continue
		}

		p.logger.Info("quote feed connected", zap.String("url", p.url))
		p.readLoop(ctx, conn)
		_ = conn.Close()
	}
}

func (p *StreamProvider) readLoop(ctx context.Context, conn *websocket.Conn) {
	// Close the socket when ctx ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Warn("quote feed read failed", zap.Error(err))
			}
			return
		}

		var wq wireQuote
		if err := json.Unmarshal(msg, &wq); err != nil {
			p.logger.Warn("quote feed message unparseable", zap.Error(err))
			continue
		}
		if wq.Symbol == "" || wq.Price <= 0 {
			continue
		}
		p.store.Set(Quote{
			Symbol: wq.Symbol,
			Price:  wq.Price,
			Volume: wq.Volume,
			Time:   wq.TS,
		})
	}
}

func (p *StreamProvider) GetSnapshot(ctx context.Context, symbols []string, asOf time.Time, maxAge time.Duration) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	return p.store.Snapshot(symbols, asOf, maxAge), nil
}
