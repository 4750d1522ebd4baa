package ingest

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/smgonzalez118/blue-quantum-be-pub/internal/domain"
	"github.com/smgonzalez118/blue-quantum-be-pub/internal/polygon"
	"github.com/smgonzalez118/blue-quantum-be-pub/internal/store"
	"github.com/smgonzalez118/blue-quantum-be-pub/internal/universe"
)

// DataSource is the vendor surface the fetcher consumes: one bulk grouped
// request for a whole date, and a single-symbol fallback. Implementations
// signal plan restrictions with polygon.ErrForbidden, unknown symbols with
// polygon.ErrNotFound, and anything transient with any other error.
type DataSource interface {
	GroupedDaily(ctx context.Context, date time.Time, includeOTC bool) ([]domain.PriceBar, error)
	DailyBar(ctx context.Context, symbol string, date time.Time) (domain.PriceBar, error)
}

var _ DataSource = (*polygon.Client)(nil)

// FetchStats is the per-date accounting a fetch run returns instead of ever
// raising. Partial means some requested symbol is still unresolved or the
// time budget ran out first; re-invoking the same date is the correction
// mechanism, since every write is an idempotent upsert.
type FetchStats struct {
	Date              string  `json:"date"`
	Universe          int     `json:"universe"`
	GroupedMatched    int     `json:"grouped_upserted"`
	FallbackAttempted int     `json:"fallback_attempted"`
	FallbackOK        int     `json:"fallback_ok"`
	NotFound          int     `json:"http_404"`
	OtherErrors       int     `json:"http_other"`
	MissingAfter      int     `json:"missing_after"`
	TotalEffective    int     `json:"total_effective"`
	Elapsed           float64 `json:"elapsed"`
	Partial           bool    `json:"partial"`
}

// FetcherConfig bounds one fetch invocation.
type FetcherConfig struct {
	MaxSeconds     float64 // wall-clock budget for the whole invocation
	RequestsPerMin int     // vendor rate ceiling used for budget planning
	FallbackBurst  int     // hard cap on fallback calls per invocation
	SleepBase      float64 // seconds slept (jittered) between fallback calls
}

// Fetcher ingests one date's bars for a universe: a single grouped request
// first, then a budget-bounded per-symbol fallback for whatever the grouped
// response did not cover.
type Fetcher struct {
	source DataSource
	bars   store.BarStore
	cfg    FetcherConfig
	log    *slog.Logger

	// sleepFn is swapped out in tests.
	sleepFn func(ctx context.Context, d time.Duration)
}

// NewFetcher creates a Fetcher.
func NewFetcher(source DataSource, bars store.BarStore, cfg FetcherConfig, log *slog.Logger) *Fetcher {
	if log == nil {
		log = slog.Default()
	}
	return &Fetcher{
		source:  source,
		bars:    bars,
		cfg:     cfg,
		log:     log.With("component", "fetcher"),
		sleepFn: sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// FetchDay runs the grouped-then-fallback pipeline for one date. It never
// returns an error: every external failure lands in a counter and feeds the
// Partial flag.
func (f *Fetcher) FetchDay(ctx context.Context, symbols []string, date time.Time) FetchStats {
	t0 := time.Now()

	uni := universe.DedupeUpper(symbols)
	sort.Strings(uni)

	stats := FetchStats{
		Date:     date.Format("2006-01-02"),
		Universe: len(uni),
	}
	if len(uni) == 0 {
		return stats
	}

	mapping := buildSymbolMapping(uni)
	for _, orig := range mapping.collisions {
		f.log.Warn("symbol collapses to an already-claimed vendor spelling, first seen wins",
			"symbol", orig, "vendor", mapping.origToNorm[orig])
	}

	// -- grouped attempt -----------------------------------------------------
	matched := f.grouped(ctx, date, mapping, &stats)

	missing := make([]string, 0, len(uni))
	for _, sym := range uni {
		if _, ok := matched[sym]; !ok {
			missing = append(missing, sym)
		}
	}

	elapsed := time.Since(t0).Seconds()
	if len(missing) == 0 || elapsed >= f.cfg.MaxSeconds {
		stats.MissingAfter = len(missing)
		stats.TotalEffective = stats.GroupedMatched
		stats.Elapsed = elapsed
		stats.Partial = len(missing) > 0
		return stats
	}

	// -- per-symbol fallback -------------------------------------------------
	budget := FallbackBudget(f.cfg.RequestsPerMin, f.cfg.MaxSeconds-elapsed, f.cfg.SleepBase, f.cfg.FallbackBurst)
	brokeOnTime := f.fallback(ctx, t0, date, missing, budget, mapping, &stats)

	stats.MissingAfter = len(missing) - stats.FallbackOK
	if stats.MissingAfter < 0 {
		stats.MissingAfter = 0
	}
	stats.TotalEffective = stats.GroupedMatched + stats.FallbackOK
	stats.Elapsed = time.Since(t0).Seconds()
	stats.Partial = brokeOnTime || budget < len(missing) || stats.MissingAfter > 0
	return stats
}

// grouped performs the bulk attempt and upserts whatever usable rows belong
// to the universe. Plan-forbidden and empty responses both degrade to zero
// matched; nothing here is fatal. Returns the set of original-spelling
// symbols covered.
func (f *Fetcher) grouped(ctx context.Context, date time.Time, mapping symbolMapping, stats *FetchStats) map[string]struct{} {
	matched := make(map[string]struct{})

	rows, err := f.source.GroupedDaily(ctx, date, false)
	if err != nil {
		if errors.Is(err, polygon.ErrForbidden) {
			f.log.Info("grouped endpoint forbidden on this plan, falling back per symbol")
		} else {
			f.log.Warn("grouped fetch failed", "error", err)
		}
		return matched
	}

	var keep []domain.PriceBar
	for _, row := range rows {
		orig, wanted := mapping.normToOrig[row.Symbol]
		if !wanted || row.Close == 0 {
			continue
		}
		row.Symbol = orig // store under the universe's own spelling
		if row.AdjClose == 0 {
			row.AdjClose = row.Close
		}
		keep = append(keep, row)
	}
	if len(keep) == 0 {
		return matched
	}

	n, err := f.bars.BulkUpsert(ctx, keep)
	if err != nil {
		f.log.Error("bulk upsert of grouped rows failed", "error", err)
		stats.OtherErrors++
		return matched
	}
	stats.GroupedMatched = n
	for _, b := range keep {
		matched[b.Symbol] = struct{}{}
	}
	return matched
}

// fallback walks the missing symbols in universe order, spending at most
// budget calls, re-checking the clock before each one. Returns true when it
// stopped because the time budget ran out.
func (f *Fetcher) fallback(ctx context.Context, t0 time.Time, date time.Time, missing []string, budget int, mapping symbolMapping, stats *FetchStats) bool {
	limit := budget
	if len(missing) < limit {
		limit = len(missing)
	}

	for i := 0; i < limit; i++ {
		if time.Since(t0).Seconds() >= f.cfg.MaxSeconds {
			return true
		}
		orig := missing[i]
		norm := mapping.origToNorm[orig]

		stats.FallbackAttempted++
		bar, err := f.source.DailyBar(ctx, norm, date)
		switch {
		case err == nil:
			f.upsertOne(ctx, orig, bar, stats)

		case errors.Is(err, polygon.ErrForbidden):
			// Plan-level, unfixable by retrying this run. Move on.

		case errors.Is(err, polygon.ErrNotFound):
			stats.NotFound++
			if alt := AltClassSymbol(norm); alt != "" {
				stats.FallbackAttempted++
				if altBar, altErr := f.source.DailyBar(ctx, alt, date); altErr == nil {
					f.upsertOne(ctx, orig, altBar, stats)
				}
			}

		default:
			// Transient: counted here, healed by a later invocation.
			stats.OtherErrors++
		}

		f.sleepFn(ctx, jitteredSleep(f.cfg.SleepBase))
	}
	return false
}

func (f *Fetcher) upsertOne(ctx context.Context, orig string, bar domain.PriceBar, stats *FetchStats) {
	bar.Symbol = orig
	if bar.AdjClose == 0 {
		bar.AdjClose = bar.Close
	}
	if _, err := f.bars.BulkUpsert(ctx, []domain.PriceBar{bar}); err != nil {
		f.log.Error("upserting fallback bar failed", "symbol", orig, "error", err)
		stats.OtherErrors++
		return
	}
	stats.FallbackOK++
}

// jitteredSleep spreads fallback calls out so a burst does not pin the
// worker: base ± 50ms, floored at 50ms.
func jitteredSleep(base float64) time.Duration {
	jitter := (rand.Float64() - 0.5) * 0.1
	s := base + jitter
	if s < minSleepSeconds {
		s = minSleepSeconds
	}
	return time.Duration(s * float64(time.Second))
}
