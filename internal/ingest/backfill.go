package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/smgonzalez118/blue-quantum-be-pub/internal/util"
)

// DayFetcher is what the orchestrator drives; *Fetcher satisfies it.
type DayFetcher interface {
	FetchDay(ctx context.Context, symbols []string, date time.Time) FetchStats
}

var _ DayFetcher = (*Fetcher)(nil)

// DayResult is one date's audit record inside a range run: the first
// attempt's stats plus every in-place retry, in order.
type DayResult struct {
	Date    string       `json:"date"`
	Stats   FetchStats   `json:"stats"`
	Retries []FetchStats `json:"retries,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// StillPartial reports whether every attempt for the day came back partial.
func (r DayResult) StillPartial() bool {
	if r.Error != "" {
		return true
	}
	if len(r.Retries) > 0 {
		return r.Retries[len(r.Retries)-1].Partial
	}
	return r.Stats.Partial
}

// RangeReport aggregates a whole backfill range.
type RangeReport struct {
	Days    []DayResult `json:"days"`
	Partial bool        `json:"partial"`
}

// Orchestrator walks a date range oldest-first, fetching each day and
// re-invoking days that come back partial. One broken day does not stop the
// range. Weekday filtering is the caller's concern: the range is taken
// literally, calendar day by calendar day.
type Orchestrator struct {
	fetcher DayFetcher
	retry   util.RetryPolicy
	log     *slog.Logger
}

func NewOrchestrator(fetcher DayFetcher, retries int, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	if retries < 0 {
		retries = 0
	}
	// No inter-retry backoff: the fetcher already sleeps internally.
	return &Orchestrator{
		fetcher: fetcher,
		retry:   util.RetryPolicy{MaxRetries: retries},
		log:     log.With("component", "backfill"),
	}
}

// TradingDaysInRange lists the weekday dates in [start, end] ascending,
// capped at limit entries when limit > 0. Callers use it to pre-filter a
// range before handing it to FetchRange.
func TradingDaysInRange(start, end time.Time, limit int) []time.Time {
	start = util.DateOnly(start)
	end = util.DateOnly(end)
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if util.IsWeekend(d) {
			continue
		}
		days = append(days, d)
		if limit > 0 && len(days) >= limit {
			break
		}
	}
	return days
}

// TradingDaysBack lists the n most recent trading days ending at the last
// trading day on or before ref, oldest first.
func TradingDaysBack(ref time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	days := make([]time.Time, n)
	d := util.LastTradingDay(ref)
	for i := n - 1; i >= 0; i-- {
		days[i] = d
		d = util.PrevTradingDay(d)
	}
	return days
}

// FetchRange runs every calendar day in [start, end] through the fetcher.
// Ctx cancellation stops between days, never mid-day.
func (o *Orchestrator) FetchRange(ctx context.Context, symbols []string, start, end time.Time) RangeReport {
	start = util.DateOnly(start)
	end = util.DateOnly(end)

	var report RangeReport
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if ctx.Err() != nil {
			report.Partial = true
			break
		}
		res := o.fetchDayResilient(ctx, symbols, d)
		if res.StillPartial() {
			report.Partial = true
		}
		report.Days = append(report.Days, res)
	}
	return report
}

// FetchDates runs an explicit date list (already filtered by the caller)
// with the same per-day resilience as FetchRange.
func (o *Orchestrator) FetchDates(ctx context.Context, symbols []string, dates []time.Time) RangeReport {
	var report RangeReport
	for _, d := range dates {
		if ctx.Err() != nil {
			report.Partial = true
			break
		}
		res := o.fetchDayResilient(ctx, symbols, d)
		if res.StillPartial() {
			report.Partial = true
		}
		report.Days = append(report.Days, res)
	}
	return report
}

// fetchDayResilient fetches one day, re-invoking in place while partial and
// absorbing panics so a poisoned date cannot take the range down.
func (o *Orchestrator) fetchDayResilient(ctx context.Context, symbols []string, day time.Time) (res DayResult) {
	res.Date = day.Format("2006-01-02")
	defer func() {
		if r := recover(); r != nil {
			res.Error = fmt.Sprintf("panic: %v", r)
			o.log.Error("day fetch panicked", "date", res.Date, "panic", r)
		}
	}()

	res.Stats = o.fetcher.FetchDay(ctx, symbols, day)
	last := res.Stats
	for attempt := 1; last.Partial && attempt <= o.retry.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			break
		}
		o.log.Info("day partial, retrying in place", "date", res.Date,
			"attempt", attempt, "missing", last.MissingAfter)
		last = o.fetcher.FetchDay(ctx, symbols, day)
		res.Retries = append(res.Retries, last)
	}
	return res
}
