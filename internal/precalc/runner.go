package precalc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/smgonzalez118/blue-quantum-be-pub/internal/store"
	"github.com/smgonzalez118/blue-quantum-be-pub/internal/universe"
)

// Subtask is one per-symbol computation step. Subtasks must be idempotent
// upserts: the runner gives at-least-once delivery across invocations, never
// exactly-once.
type Subtask interface {
	Name() string
	Run(ctx context.Context, symbol string) error
}

// RunnerConfig bounds one runner invocation.
type RunnerConfig struct {
	MaxSeconds float64 `json:"max_seconds"`
	Burst      int     `json:"burst"`
	SleepSecs  float64 `json:"sleep"`
}

// Report is the outcome of one runner invocation. Partial means the
// universe was not finished and a checkpoint holds the remaining work.
type Report struct {
	OK           bool         `json:"ok"`
	Partial      bool         `json:"partial"`
	UniverseKey  string       `json:"universe_key"`
	CountSymbols int          `json:"count_symbols"`
	Processed    int          `json:"processed"`
	Errors       int          `json:"errors"`
	Remaining    int          `json:"remaining"`
	Elapsed      float64      `json:"elapsed"`
	Config       RunnerConfig `json:"config"`
	Err          string       `json:"error,omitempty"`
}

// Runner works through a universe symbol by symbol inside a wall-clock
// budget, checkpointing its cursor so the next invocation picks up where
// this one stopped. One writer per universe key is assumed.
type Runner struct {
	resolver    *universe.Resolver
	checkpoints store.CheckpointStore
	subtasks    []Subtask
	cfg         RunnerConfig
	log         *slog.Logger

	// swapped out in tests
	nowFn   func() time.Time
	sleepFn func(ctx context.Context, d time.Duration)
}

func NewRunner(resolver *universe.Resolver, checkpoints store.CheckpointStore, subtasks []Subtask, cfg RunnerConfig, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	return &Runner{
		resolver:    resolver,
		checkpoints: checkpoints,
		subtasks:    subtasks,
		cfg:         cfg,
		log:         log.With("component", "precalc"),
		nowFn:       time.Now,
		sleepFn: func(ctx context.Context, d time.Duration) {
			select {
			case <-ctx.Done():
			case <-time.After(d):
			}
		},
	}
}

// Run executes one time-boxed pass over the selected universe. It never
// returns an error and never panics: every failure lands in the report.
func (r *Runner) Run(ctx context.Context, sel universe.Selection) (report Report) {
	start := r.nowFn()
	key := universe.Key(sel)
	report = Report{UniverseKey: key, Config: r.cfg}

	var order []string
	cursor := 0

	defer func() {
		if rec := recover(); rec != nil {
			report.OK = false
			report.Partial = true
			report.Err = fmt.Sprintf("panic: %v", rec)
			r.log.Error("precalc run panicked", "key", key, "panic", rec)
			if len(order) > 0 && cursor < len(order) {
				// Best effort: keep whatever progress was made.
				_ = r.checkpoints.Save(ctx, &store.Checkpoint{Key: key, Order: order, Cursor: cursor})
			}
		}
		report.Elapsed = r.nowFn().Sub(start).Seconds()
	}()

	symbols, err := r.resolver.Resolve(ctx, sel)
	if err != nil {
		report.Partial = true
		report.Err = fmt.Sprintf("resolving universe: %v", err)
		return report
	}
	if len(symbols) == 0 {
		report.Partial = true
		report.Err = "universe_empty"
		return report
	}

	order, cursor = r.restore(ctx, key, symbols)
	report.CountSymbols = len(order)

	elapsed := func() float64 { return r.nowFn().Sub(start).Seconds() }

	for cursor < len(order) && elapsed() < r.cfg.MaxSeconds && ctx.Err() == nil {
		burstEnd := cursor + r.cfg.Burst
		if burstEnd > len(order) {
			burstEnd = len(order)
		}

		for cursor < burstEnd {
			sym := order[cursor]
			for _, task := range r.subtasks {
				if err := task.Run(ctx, sym); err != nil {
					report.Errors++
					r.log.Warn("subtask failed", "task", task.Name(), "symbol", sym, "error", err)
				}
			}
			cursor++
			report.Processed++
			if elapsed() >= r.cfg.MaxSeconds {
				break
			}
		}

		if cursor < len(order) && elapsed() < r.cfg.MaxSeconds {
			r.sleepFn(ctx, time.Duration(r.cfg.SleepSecs*float64(time.Second)))
		}
	}

	report.Remaining = len(order) - cursor
	if report.Remaining > 0 {
		report.Partial = true
		report.OK = true
		if err := r.checkpoints.Save(ctx, &store.Checkpoint{Key: key, Order: order, Cursor: cursor}); err != nil {
			report.OK = false
			report.Err = fmt.Sprintf("saving checkpoint: %v", err)
		}
		return report
	}

	report.OK = true
	if err := r.checkpoints.Delete(ctx, key); err != nil {
		r.log.Warn("deleting finished checkpoint failed", "key", key, "error", err)
	}
	return report
}

// restore loads the checkpoint for key and keeps it only when its symbol set
// matches the fresh resolution. Any mismatch restarts from zero with the
// fresh order.
func (r *Runner) restore(ctx context.Context, key string, fresh []string) ([]string, int) {
	cp, err := r.checkpoints.Load(ctx, key)
	if err != nil {
		r.log.Warn("loading checkpoint failed, starting over", "key", key, "error", err)
		return fresh, 0
	}
	if cp == nil {
		return fresh, 0
	}
	if !sameSet(cp.Order, fresh) {
		r.log.Info("universe changed since checkpoint, restarting", "key", key)
		return fresh, 0
	}
	cursor := cp.Cursor
	if cursor < 0 {
		cursor = 0
	}
	if cursor > len(cp.Order) {
		cursor = len(cp.Order)
	}
	return cp.Order, cursor
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]struct{}, len(a))
	for _, s := range a {
		seen[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := seen[s]; !ok {
			return false
		}
	}
	return true
}
