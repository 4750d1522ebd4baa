package precalc

import (
	"context"
	"fmt"
	"time"

	"github.com/smgonzalez118/blue-quantum-be-pub/internal/domain"
	"github.com/smgonzalez118/blue-quantum-be-pub/internal/store"
)

// indicatorHistoryDays bounds how much daily history the subtasks load. The
// longest window is EMA-100 on the weekly series, so two years of dailies is
// plenty.
const indicatorHistoryDays = 730

// IndicatorTask recomputes the dashboard flag rows for one symbol on the
// daily and weekly timeframes.
type IndicatorTask struct {
	Bars       store.BarStore
	Indicators store.IndicatorStore
}

func (t *IndicatorTask) Name() string { return "indicators" }

func (t *IndicatorTask) Run(ctx context.Context, symbol string) error {
	bars, err := t.loadHistory(ctx, symbol)
	if err != nil {
		return err
	}

	daily := ComputeIndicators(symbol, domain.TimeframeDaily, bars)
	if err := t.Indicators.UpsertIndicators(ctx, daily); err != nil {
		return fmt.Errorf("upserting daily indicators for %s: %w", symbol, err)
	}

	weekly := ComputeIndicators(symbol, domain.TimeframeWeekly, WeeklyBars(bars))
	if err := t.Indicators.UpsertIndicators(ctx, weekly); err != nil {
		return fmt.Errorf("upserting weekly indicators for %s: %w", symbol, err)
	}
	return nil
}

func (t *IndicatorTask) loadHistory(ctx context.Context, symbol string) ([]domain.PriceBar, error) {
	since := time.Now().UTC().AddDate(0, 0, -indicatorHistoryDays)
	bars, err := t.Bars.ReadBars(ctx, symbol, since, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("reading bars for %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no stored bars for %s", symbol)
	}
	return bars, nil
}

// SignalTask recomputes the current crossover signals for one symbol on the
// daily timeframe.
type SignalTask struct {
	Bars    store.BarStore
	Signals store.SignalStore
}

func (t *SignalTask) Name() string { return "signals" }

func (t *SignalTask) Run(ctx context.Context, symbol string) error {
	since := time.Now().UTC().AddDate(0, 0, -indicatorHistoryDays)
	bars, err := t.Bars.ReadBars(ctx, symbol, since, time.Time{})
	if err != nil {
		return fmt.Errorf("reading bars for %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return fmt.Errorf("no stored bars for %s", symbol)
	}

	for _, sig := range ComputeSignals(symbol, domain.TimeframeDaily, bars) {
		if err := t.Signals.UpsertSignal(ctx, &sig); err != nil {
			return fmt.Errorf("upserting %s signal for %s: %w", sig.Indicator, symbol, err)
		}
	}
	return nil
}

var (
	_ Subtask = (*IndicatorTask)(nil)
	_ Subtask = (*SignalTask)(nil)
)
