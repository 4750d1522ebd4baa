package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/smgonzalez118/blue-quantum-be-pub/internal/domain"
	"github.com/smgonzalez118/blue-quantum-be-pub/internal/polygon"
	"github.com/smgonzalez118/blue-quantum-be-pub/internal/store"
)

// RangeSource serves a whole date range of daily bars for one symbol in a
// single call. Used to seed history for symbols that joined the universe
// after the daily pipeline started.
type RangeSource interface {
	RangeBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.PriceBar, error)
}

// Seeder loads per-symbol history through the vendor's range endpoint and
// upserts it, one symbol per call. Unlike the day-wise fetcher it trades
// rate efficiency for coverage: one request per symbol regardless of range
// length.
type Seeder struct {
	source RangeSource
	bars   store.BarStore
	log    *slog.Logger
}

var _ RangeSource = (*polygon.Client)(nil)

func NewSeeder(source RangeSource, bars store.BarStore, log *slog.Logger) *Seeder {
	if log == nil {
		log = slog.Default()
	}
	return &Seeder{source: source, bars: bars, log: log.With("component", "seeder")}
}

// SeedSymbol fetches [start, end] for one symbol and stores it under the
// caller's spelling. Returns the number of bars written.
func (s *Seeder) SeedSymbol(ctx context.Context, symbol string, start, end time.Time) (int, error) {
	norm := NormalizeVendorSymbol(symbol)
	rows, err := s.source.RangeBars(ctx, norm, start, end)
	if err != nil {
		return 0, fmt.Errorf("fetching range for %s: %w", symbol, err)
	}
	for i := range rows {
		rows[i].Symbol = symbol
		if rows[i].AdjClose == 0 {
			rows[i].AdjClose = rows[i].Close
		}
	}
	n, err := s.bars.BulkUpsert(ctx, rows)
	if err != nil {
		return 0, fmt.Errorf("storing range for %s: %w", symbol, err)
	}
	return n, nil
}

// SeedAll seeds every symbol in order, continuing past per-symbol failures.
// Returns total bars written and how many symbols failed.
func (s *Seeder) SeedAll(ctx context.Context, symbols []string, start, end time.Time) (total, failed int) {
	for _, sym := range symbols {
		if ctx.Err() != nil {
			return total, failed
		}
		n, err := s.SeedSymbol(ctx, sym, start, end)
		if err != nil {
			failed++
			s.log.Warn("seeding symbol failed", "symbol", sym, "error", err)
			continue
		}
		total += n
		s.log.Info("seeded symbol", "symbol", sym, "bars", n)
	}
	return total, failed
}
