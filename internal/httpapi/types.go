package httpapi

import (
	"github.com/smgonzalez118/blue-quantum-be-pub/internal/domain"
	"github.com/smgonzalez118/blue-quantum-be-pub/internal/ingest"
	"github.com/smgonzalez118/blue-quantum-be-pub/internal/precalc"
)

// UniverseRequest is the symbol-selection part shared by every trigger body.
// Precedence: Symbols, then AllActive, then UniverseMode.
type UniverseRequest struct {
	Symbols      []string `json:"symbols,omitempty"`
	AllActive    bool     `json:"all_active,omitempty"`
	UniverseMode string   `json:"universe_mode,omitempty"`
}

// UpdateRequest triggers the daily candle update, optionally reaching back.
type UpdateRequest struct {
	UniverseRequest
	Date         string `json:"date,omitempty"` // YYYY-MM-DD, default last finished trading day
	BackfillDays int    `json:"backfill_days,omitempty"`
	AutoBackfill bool   `json:"auto_backfill,omitempty"`
	AutoMode     string `json:"auto_mode,omitempty"` // "global" (default) or "per_symbol"
}

// UpdateResponse reports one update-last-candle run.
type UpdateResponse struct {
	OK       bool                `json:"ok"`
	Partial  bool                `json:"partial"`
	Date     string              `json:"date"`
	Universe int                 `json:"universe"`
	DaysBack int                 `json:"days_back"`
	Stats    *ingest.FetchStats  `json:"stats,omitempty"` // target date's final attempt
	Days     []ingest.DayResult  `json:"days"`
}

// RangeRequest triggers a backfill over [Start, End].
type RangeRequest struct {
	UniverseRequest
	Start string `json:"start"`
	End   string `json:"end"`
}

// RangeResponse reports one backfill-range run.
type RangeResponse struct {
	OK       bool               `json:"ok"`
	Partial  bool               `json:"partial"`
	Start    string             `json:"start"`
	End      string             `json:"end"`
	Universe int                `json:"universe"`
	Days     []ingest.DayResult `json:"days"`
}

// PrecalcRequest triggers the indicator/signal batch runner.
type PrecalcRequest struct {
	UniverseRequest
}

// PrecalcResponse wraps the runner's report.
type PrecalcResponse struct {
	precalc.Report
}

// IndicatorsResponse is one dashboard flag row for a (symbol, timeframe).
type IndicatorsResponse struct {
	Timeframe  string               `json:"timeframe"`
	Indicators *domain.IndicatorSet `json:"indicators"`
}

// SignalsResponse lists the current crossover signals for a symbol.
type SignalsResponse struct {
	Symbol  string          `json:"symbol"`
	Signals []domain.Signal `json:"signals"`
}

// HealthResponse is the healthz payload.
type HealthResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}
