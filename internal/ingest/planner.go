// Package ingest implements the EOD ingestion core: the grouped-bulk-fetch
// with per-symbol fallback for one date, the backfill orchestration across a
// date range, and the trading-day gap estimator that sizes automatic
// backfills.
package ingest

import "math"

// minSleepSeconds floors the planning interval so a misconfigured sleep of
// zero cannot produce an unbounded budget.
const minSleepSeconds = 0.05

// FallbackBudget returns how many per-symbol vendor calls are affordable
// given the remaining wall-clock time, the vendor's requests-per-minute
// ceiling, the sleep inserted between calls, and the configured burst cap.
// Pure arithmetic, never negative.
func FallbackBudget(rpm int, secondsRemaining, sleepInterval float64, burstCap int) int {
	if burstCap <= 0 || secondsRemaining <= 0 {
		return 0
	}
	if sleepInterval < minSleepSeconds {
		sleepInterval = minSleepSeconds
	}

	byRate := int(math.Floor(float64(rpm) * secondsRemaining / 60.0))
	bySleep := int(math.Floor(secondsRemaining / sleepInterval))

	budget := burstCap
	if byRate < budget {
		budget = byRate
	}
	if bySleep < budget {
		budget = bySleep
	}
	if budget < 0 {
		return 0
	}
	return budget
}
