// Package domain defines the value types shared across the ingestion and
// precompute pipelines: daily price bars, indicator flag rows, and signals.
package domain

import "time"

// Timeframe identifies the bar aggregation level.
type Timeframe string

const (
	TimeframeDaily  Timeframe = "D"
	TimeframeWeekly Timeframe = "W"
)

// ParseTimeframe maps "daily"/"weekly" (any case) to a Timeframe code.
// Anything unrecognised is treated as daily.
func ParseTimeframe(s string) Timeframe {
	switch s {
	case "weekly", "Weekly", "WEEKLY", "W", "w":
		return TimeframeWeekly
	default:
		return TimeframeDaily
	}
}

// PriceBar is one daily OHLCV candle, identified by (Symbol, Date).
// Upserting the same key overwrites every price field (last write wins).
type PriceBar struct {
	Symbol   string
	Date     time.Time // calendar date, midnight UTC
	Open     float64
	High     float64
	Low      float64
	Close    float64
	AdjClose float64
	Volume   int64
}

// Trend flag values stored for dashboard indicators.
const (
	FlagBull    = "BULL"
	FlagBear    = "BEAR"
	FlagStrong  = "STRONG"
	FlagWeak    = "WEAK"
	FlagNone    = "-"
	FlagNoneADX = "--"
)

// IndicatorSet is the per-(ticker, timeframe) row of BULL/BEAR flags shown on
// the dashboard. Only flags are stored, never the underlying numeric values.
type IndicatorSet struct {
	Ticker    string
	Timeframe Timeframe
	Label     string  // display label, e.g. "AAPL (Apple Inc.)"
	Price     float64 // last close, rounded to 2 decimals

	MACD        string
	PriceEMA5   string
	PriceEMA10  string
	PriceEMA20  string
	PriceEMA30  string
	PriceEMA100 string
	EMA5vs10    string
	EMA10vs20   string
	TripleCross string
	RSI         string
	DMI         string
	ADX         string

	UpdatedAt time.Time
}

// SignalType is the direction of a crossover signal.
type SignalType string

const (
	SignalBuy  SignalType = "BUY"
	SignalSell SignalType = "SELL"
)

// Signal is the most recent crossover for one (Symbol, Timeframe, Indicator)
// triple. Exactly one current row is kept per triple.
type Signal struct {
	Symbol      string
	Timeframe   Timeframe
	Indicator   string // e.g. "EMA5/EMA10", "PRICE/EMA10 (W)"
	Type        SignalType
	Date        time.Time // bar date the cross is assigned to
	SignalPrice float64
	LastPrice   float64
	ReturnPct   float64
}
