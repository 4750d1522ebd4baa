// Package precalc computes the dashboard's indicator flags and crossover
// signals for a universe of symbols, driven by a time-boxed, checkpointed
// batch runner that survives being cut off mid-universe.
package precalc

import (
	"github.com/smgonzalez118/blue-quantum-be-pub/internal/domain"
)

// WeeklyBars folds ascending daily bars into ISO-week candles: open from the
// week's first bar, high/low over the week, close and date from the last
// bar, volume summed.
func WeeklyBars(daily []domain.PriceBar) []domain.PriceBar {
	var weeks []domain.PriceBar
	curYear, curWeek := 0, 0

	for _, b := range daily {
		y, w := b.Date.ISOWeek()
		if len(weeks) == 0 || y != curYear || w != curWeek {
			curYear, curWeek = y, w
			weeks = append(weeks, b)
			continue
		}
		last := &weeks[len(weeks)-1]
		if b.High > last.High {
			last.High = b.High
		}
		if b.Low < last.Low {
			last.Low = b.Low
		}
		last.Close = b.Close
		last.AdjClose = b.AdjClose
		last.Date = b.Date
		last.Volume += b.Volume
	}
	return weeks
}
