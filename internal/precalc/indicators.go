package precalc

import (
	"math"
	"time"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"

	"github.com/smgonzalez118/blue-quantum-be-pub/internal/domain"
)

const (
	rsiPeriod  = 14
	dmiPeriod  = 14
	adxStrong  = 25.0
	macdFast   = 12
	macdSlow   = 26
	macdSignal = 9
)

var emaPeriods = []int{5, 10, 20, 30, 100}

// emaTail returns the latest EMA value for the period, aligning the
// indicator's shorter output against the tail of the input. ok is false when
// the series is too short to produce any value.
func emaTail(closes []float64, period int) (float64, bool) {
	if len(closes) < period {
		return 0, false
	}
	ema := trend.NewEmaWithPeriod[float64](period)
	out := helper.ChanToSlice(ema.Compute(helper.SliceToChan(closes)))
	if len(out) == 0 {
		return 0, false
	}
	return out[len(out)-1], true
}

// emaSeries returns the full EMA series tail-aligned to closes: result[i]
// corresponds to closes[i+offset]. Used by signal cross detection.
func emaSeries(closes []float64, period int) (values []float64, offset int) {
	if len(closes) < period {
		return nil, 0
	}
	ema := trend.NewEmaWithPeriod[float64](period)
	values = helper.ChanToSlice(ema.Compute(helper.SliceToChan(closes)))
	return values, len(closes) - len(values)
}

func rsiTail(closes []float64) (float64, bool) {
	if len(closes) <= rsiPeriod {
		return 0, false
	}
	rsi := momentum.NewRsiWithPeriod[float64](rsiPeriod)
	out := helper.ChanToSlice(rsi.Compute(helper.SliceToChan(closes)))
	if len(out) == 0 {
		return 0, false
	}
	return out[len(out)-1], true
}

func macdTail(closes []float64) (macd, signal float64, ok bool) {
	if len(closes) < macdSlow+macdSignal {
		return 0, 0, false
	}
	m := trend.NewMacdWithPeriod[float64](macdFast, macdSlow, macdSignal)
	macdCh, signalCh := m.Compute(helper.SliceToChan(closes))
	// Both outputs come from one shared pipeline; drain them concurrently or
	// the library's internal channel sends block and Compute never finishes.
	signalDone := make(chan []float64, 1)
	go func() { signalDone <- helper.ChanToSlice(signalCh) }()
	macdOut := helper.ChanToSlice(macdCh)
	signalOut := <-signalDone
	if len(macdOut) == 0 || len(signalOut) == 0 {
		return 0, 0, false
	}
	// The two outputs shrink by different warm-ups; compare latest values.
	return macdOut[len(macdOut)-1], signalOut[len(signalOut)-1], true
}

// wilderDMI computes +DI, -DI and ADX with Wilder's rolling smoothing. The
// cinar trend package exposes no DI pair, so this stays hand-rolled. ok is
// false when the series cannot fill two smoothing windows.
func wilderDMI(bars []domain.PriceBar) (plusDI, minusDI, adx float64, ok bool) {
	if len(bars) < 2*dmiPeriod+1 {
		return 0, 0, 0, false
	}

	var smTR, smPlusDM, smMinusDM float64
	var dxs []float64

	for i := 1; i < len(bars); i++ {
		cur, prev := bars[i], bars[i-1]

		upMove := cur.High - prev.High
		downMove := prev.Low - cur.Low
		var plusDM, minusDM float64
		if upMove > downMove && upMove > 0 {
			plusDM = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM = downMove
		}
		tr := math.Max(cur.High-cur.Low,
			math.Max(math.Abs(cur.High-prev.Close), math.Abs(cur.Low-prev.Close)))

		if i <= dmiPeriod {
			smTR += tr
			smPlusDM += plusDM
			smMinusDM += minusDM
			if i < dmiPeriod {
				continue
			}
		} else {
			smTR = smTR - smTR/dmiPeriod + tr
			smPlusDM = smPlusDM - smPlusDM/dmiPeriod + plusDM
			smMinusDM = smMinusDM - smMinusDM/dmiPeriod + minusDM
		}

		if smTR == 0 {
			dxs = append(dxs, 0)
			continue
		}
		plusDI = 100 * smPlusDM / smTR
		minusDI = 100 * smMinusDM / smTR
		if sum := plusDI + minusDI; sum > 0 {
			dxs = append(dxs, 100*math.Abs(plusDI-minusDI)/sum)
		} else {
			dxs = append(dxs, 0)
		}
	}

	if len(dxs) < dmiPeriod {
		return 0, 0, 0, false
	}
	for i, dx := range dxs {
		if i < dmiPeriod {
			adx += dx
			if i == dmiPeriod-1 {
				adx /= dmiPeriod
			}
			continue
		}
		adx = (adx*(dmiPeriod-1) + dx) / dmiPeriod
	}
	return plusDI, minusDI, adx, true
}

func bullBear(cond bool) string {
	if cond {
		return domain.FlagBull
	}
	return domain.FlagBear
}

// ComputeIndicators derives the full flag row for one symbol and timeframe
// from its ascending bar series. Too-short series degrade flag by flag, not
// all at once.
func ComputeIndicators(ticker string, tf domain.Timeframe, bars []domain.PriceBar) *domain.IndicatorSet {
	set := &domain.IndicatorSet{
		Ticker:    ticker,
		Timeframe: tf,
		Label:     ticker,
		MACD:      domain.FlagNone,
		RSI:       domain.FlagNone,
		DMI:       domain.FlagNone,
		ADX:       domain.FlagNoneADX,
		UpdatedAt: time.Now().UTC(),
	}
	emaFlags := []*string{&set.PriceEMA5, &set.PriceEMA10, &set.PriceEMA20, &set.PriceEMA30, &set.PriceEMA100}
	for _, f := range emaFlags {
		*f = domain.FlagNone
	}
	set.EMA5vs10 = domain.FlagNone
	set.EMA10vs20 = domain.FlagNone
	set.TripleCross = domain.FlagNone
	if len(bars) == 0 {
		return set
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	last := closes[len(closes)-1]
	set.Price = math.Round(last*100) / 100

	emaVals := make(map[int]float64, len(emaPeriods))
	for i, period := range emaPeriods {
		v, ok := emaTail(closes, period)
		if !ok {
			continue
		}
		emaVals[period] = v
		*emaFlags[i] = bullBear(last > v)
	}

	if e5, ok5 := emaVals[5]; ok5 {
		if e10, ok10 := emaVals[10]; ok10 {
			set.EMA5vs10 = bullBear(e5 > e10)
			if e20, ok20 := emaVals[20]; ok20 {
				set.EMA10vs20 = bullBear(e10 > e20)
				set.TripleCross = bullBear(e5 > e10 && e10 > e20)
			}
		}
	}

	if rsi, ok := rsiTail(closes); ok {
		set.RSI = bullBear(rsi > 50)
	}
	if macd, signal, ok := macdTail(closes); ok {
		set.MACD = bullBear(macd > signal)
	}
	if plusDI, minusDI, adx, ok := wilderDMI(bars); ok {
		set.DMI = bullBear(plusDI > minusDI)
		if adx >= adxStrong {
			set.ADX = domain.FlagStrong
		} else {
			set.ADX = domain.FlagWeak
		}
	}
	return set
}
