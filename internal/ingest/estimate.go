package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/smgonzalez118/blue-quantum-be-pub/internal/store"
	"github.com/smgonzalez118/blue-quantum-be-pub/internal/util"
)

// AnchorMode selects how the estimator picks its starting point.
type AnchorMode string

const (
	// AnchorGlobal uses the newest date stored anywhere.
	AnchorGlobal AnchorMode = "global"
	// AnchorPerSymbol uses the oldest last-stored date across a sample of
	// the universe, so one stale symbol widens the window.
	AnchorPerSymbol AnchorMode = "per_symbol"
)

// TradingDaysBetween counts the trading days in (anchor, target], capped at
// cap when cap > 0. An anchor at or past the target means nothing is
// missing and the count is zero.
func TradingDaysBetween(anchor, target time.Time, cap int) int {
	anchor = util.DateOnly(anchor)
	target = util.DateOnly(target)
	if !anchor.Before(target) {
		return 0
	}
	n := 0
	for d := anchor.AddDate(0, 0, 1); !d.After(target); d = d.AddDate(0, 0, 1) {
		if util.IsWeekend(d) {
			continue
		}
		n++
		if cap > 0 && n >= cap {
			break
		}
	}
	return n
}

// Estimator sizes an automatic backfill by asking the store how stale it is.
type Estimator struct {
	bars       store.BarStore
	sampleSize int
	log        *slog.Logger
}

func NewEstimator(bars store.BarStore, sampleSize int, log *slog.Logger) *Estimator {
	if sampleSize <= 0 {
		sampleSize = 40
	}
	if log == nil {
		log = slog.Default()
	}
	return &Estimator{bars: bars, sampleSize: sampleSize, log: log.With("component", "estimator")}
}

// MissingDays estimates how many trading days up to target are absent from
// the store, capped at cap. An empty store anchors at the trading day
// before target, so a fresh database asks for one day, not the whole
// history.
func (e *Estimator) MissingDays(ctx context.Context, mode AnchorMode, symbols []string, target time.Time, cap int) (int, error) {
	target = util.LastTradingDay(target)

	anchor, err := e.anchor(ctx, mode, symbols, target)
	if err != nil {
		return 0, err
	}
	return TradingDaysBetween(anchor, target, cap), nil
}

func (e *Estimator) anchor(ctx context.Context, mode AnchorMode, symbols []string, target time.Time) (time.Time, error) {
	fallback := util.PrevTradingDay(target)

	if mode != AnchorPerSymbol || len(symbols) == 0 {
		last, ok, err := e.bars.LastDate(ctx)
		if err != nil {
			return time.Time{}, err
		}
		if !ok {
			return fallback, nil
		}
		return last, nil
	}

	sample := symbols
	if len(sample) > e.sampleSize {
		sample = sample[:e.sampleSize]
	}

	var oldest time.Time
	found := false
	for _, sym := range sample {
		last, ok, err := e.bars.LastDateFor(ctx, sym)
		if err != nil {
			return time.Time{}, err
		}
		if !ok {
			// No rows yet: a brand-new listing says nothing about how
			// stale the rest of the universe is. Skip it.
			continue
		}
		if !found || last.Before(oldest) {
			oldest = last
			found = true
		}
	}
	if !found {
		return fallback, nil
	}
	return oldest, nil
}
