package precalc

import (
	"math"

	"github.com/smgonzalez118/blue-quantum-be-pub/internal/domain"
	"github.com/smgonzalez118/blue-quantum-be-pub/internal/util"
)

// Crossover pairs tracked by the signals subtask. PRICE pairs compare the
// close itself against one EMA.
const (
	IndEMA5vsEMA10  = "EMA5/EMA10"
	IndEMA10vsEMA20 = "EMA10/EMA20"
	IndPriceVsEMA5  = "PRICE/EMA5"
	IndPriceVsEMA10 = "PRICE/EMA10"
)

type crossPair struct {
	name string
	fast int // 0 means the raw close
	slow int
}

var crossPairs = []crossPair{
	{IndEMA5vsEMA10, 5, 10},
	{IndEMA10vsEMA20, 10, 20},
	{IndPriceVsEMA5, 0, 5},
	{IndPriceVsEMA10, 0, 10},
}

// lastCross finds the most recent index where fast crosses slow. Both series
// are tail-aligned to bars via their offsets. Returns the bar index of the
// cross and the direction; ok is false when the overlap never crosses.
func lastCross(fast []float64, fastOff int, slow []float64, slowOff int, n int) (idx int, buy bool, ok bool) {
	start := fastOff
	if slowOff > start {
		start = slowOff
	}
	diff := func(i int) float64 { return fast[i-fastOff] - slow[i-slowOff] }

	for i := n - 1; i > start; i-- {
		cur, prev := diff(i), diff(i-1)
		if cur > 0 && prev <= 0 {
			return i, true, true
		}
		if cur < 0 && prev >= 0 {
			return i, false, true
		}
	}
	return 0, false, false
}

// ComputeSignals derives the current crossover signal per tracked pair from
// an ascending bar series. Pairs whose overlap never crosses produce no row.
func ComputeSignals(symbol string, tf domain.Timeframe, bars []domain.PriceBar) []domain.Signal {
	if len(bars) < 2 {
		return nil
	}
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	lastPrice := closes[len(closes)-1]

	emaCache := make(map[int]struct {
		vals []float64
		off  int
	})
	series := func(period int) ([]float64, int) {
		if period == 0 {
			return closes, 0
		}
		if c, ok := emaCache[period]; ok {
			return c.vals, c.off
		}
		vals, off := emaSeries(closes, period)
		emaCache[period] = struct {
			vals []float64
			off  int
		}{vals, off}
		return vals, off
	}

	var out []domain.Signal
	for _, pair := range crossPairs {
		fast, fastOff := series(pair.fast)
		slow, slowOff := series(pair.slow)
		if len(fast) == 0 || len(slow) == 0 {
			continue
		}
		idx, buy, ok := lastCross(fast, fastOff, slow, slowOff, len(bars))
		if !ok {
			continue
		}

		// A cross assigned to a weekend bar belongs to the previous session.
		date := bars[idx].Date
		for util.IsWeekend(date) && idx > 0 {
			idx--
			date = bars[idx].Date
		}
		signalPrice := bars[idx].Close

		sig := domain.Signal{
			Symbol:      symbol,
			Timeframe:   tf,
			Indicator:   pair.name,
			Date:        date,
			SignalPrice: signalPrice,
			LastPrice:   lastPrice,
		}
		if buy {
			sig.Type = domain.SignalBuy
			if signalPrice != 0 {
				sig.ReturnPct = round2(100 * (lastPrice/signalPrice - 1))
			}
		} else {
			sig.Type = domain.SignalSell
			if lastPrice != 0 {
				sig.ReturnPct = round2(100 * (signalPrice/lastPrice - 1))
			}
		}
		out = append(out, sig)
	}
	return out
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
