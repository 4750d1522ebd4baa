// Package store defines storage interfaces for persisting and retrieving
// price bars, dashboard indicator flags, signals, and batch-run checkpoints.
package store

import (
	"context"
	"time"

	"github.com/smgonzalez118/blue-quantum-be-pub/internal/domain"
)

// BarStore persists and retrieves daily OHLCV bars keyed by (symbol, date).
type BarStore interface {
	// BulkUpsert inserts or fully overwrites bars on their (symbol, date)
	// key and returns the number of rows written. Re-running the same batch
	// leaves identical stored state.
	BulkUpsert(ctx context.Context, bars []domain.PriceBar) (int, error)

	// ReadBars returns bars for symbol in ascending date order. Zero start
	// or end leaves that bound open.
	ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.PriceBar, error)

	// ListActiveSymbols returns all symbols marked active, sorted.
	ListActiveSymbols(ctx context.Context) ([]string, error)

	// LastDate returns the most recent bar date across all symbols. ok is
	// false when the store holds no bars.
	LastDate(ctx context.Context) (date time.Time, ok bool, err error)

	// LastDateFor returns the most recent bar date for one symbol. ok is
	// false when the symbol has no bars.
	LastDateFor(ctx context.Context, symbol string) (date time.Time, ok bool, err error)
}

// IndicatorStore persists the per-(ticker, timeframe) dashboard flag rows.
type IndicatorStore interface {
	// UpsertIndicators replaces the flag row for (set.Ticker, set.Timeframe).
	UpsertIndicators(ctx context.Context, set *domain.IndicatorSet) error

	// GetIndicators returns the flag row, or nil when absent.
	GetIndicators(ctx context.Context, ticker string, tf domain.Timeframe) (*domain.IndicatorSet, error)
}

// SignalStore keeps one current signal row per (symbol, timeframe, indicator).
type SignalStore interface {
	// UpsertSignal replaces the current row for the signal's key triple.
	UpsertSignal(ctx context.Context, sig *domain.Signal) error

	// ListSignals returns all current signals for a symbol.
	ListSignals(ctx context.Context, symbol string) ([]domain.Signal, error)
}

// Checkpoint is the persisted cursor of a resumable batch run: the frozen
// symbol order worked through and how far the run has advanced into it.
// Invariant: 0 <= Cursor <= len(Order).
type Checkpoint struct {
	Key    string
	Order  []string
	Cursor int
}

// CheckpointStore persists batch-run progress keyed by a universe
// fingerprint. One active writer per key is assumed, not enforced.
type CheckpointStore interface {
	// Load returns the checkpoint for key, or nil when none exists.
	Load(ctx context.Context, key string) (*Checkpoint, error)

	// Save writes (or overwrites) the checkpoint for cp.Key.
	Save(ctx context.Context, cp *Checkpoint) error

	// Delete removes the checkpoint for key. Deleting an absent key is a
	// no-op.
	Delete(ctx context.Context, key string) error
}
