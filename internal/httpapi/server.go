// Package httpapi exposes the internal job-trigger surface: candle updates,
// range backfills, the precompute runner, and a health probe. Every endpoint
// requires the shared internal token and answers JSON, 206 when the job ran
// but left work behind.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/smgonzalez118/blue-quantum-be-pub/internal/domain"
	"github.com/smgonzalez118/blue-quantum-be-pub/internal/ingest"
	"github.com/smgonzalez118/blue-quantum-be-pub/internal/precalc"
	"github.com/smgonzalez118/blue-quantum-be-pub/internal/store"
	"github.com/smgonzalez118/blue-quantum-be-pub/internal/universe"
	"github.com/smgonzalez118/blue-quantum-be-pub/internal/util"
)

const dateLayout = "2006-01-02"

// ServerConfig carries the knobs the handlers need beyond their
// collaborators.
type ServerConfig struct {
	InternalToken   string
	MaxBackfillDays int
	Retries         int
}

// Server wires the trigger endpoints to the ingestion and precompute cores.
type Server struct {
	cfg        ServerConfig
	resolver   *universe.Resolver
	bars       store.BarStore
	indicators store.IndicatorStore
	signals    store.SignalStore
	orch       *ingest.Orchestrator
	estimator  *ingest.Estimator
	runner     *precalc.Runner
	log        *slog.Logger

	// now is swapped out in tests to pin "today".
	now func() time.Time
}

// NewServer creates the trigger server.
func NewServer(cfg ServerConfig, resolver *universe.Resolver, bars store.BarStore, indicators store.IndicatorStore, signals store.SignalStore, orch *ingest.Orchestrator, estimator *ingest.Estimator, runner *precalc.Runner, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		cfg:        cfg,
		resolver:   resolver,
		bars:       bars,
		indicators: indicators,
		signals:    signals,
		orch:       orch,
		estimator:  estimator,
		runner:     runner,
		log:        log.With("component", "httpapi"),
		now:        time.Now,
	}
}

// RegisterRoutes registers all trigger routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /internal/update-last-candle", s.requireToken(s.handleUpdateLastCandle))
	mux.HandleFunc("POST /internal/backfill-range", s.requireToken(s.handleBackfillRange))
	mux.HandleFunc("POST /internal/precalc", s.requireToken(s.handlePrecalc))
	mux.HandleFunc("GET /internal/precalc", s.requireToken(s.handlePrecalc))
	mux.HandleFunc("GET /internal/indicators/{symbol}", s.requireToken(s.handleIndicators))
	mux.HandleFunc("GET /internal/signals/{symbol}", s.requireToken(s.handleSignals))
	mux.HandleFunc("GET /internal/healthz", s.requireToken(s.handleHealthz))
}

// Handler returns the routed handler wrapped in panic recovery.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return s.recoverMiddleware(mux)
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("handler panicked", "path", r.URL.Path, "panic", rec)
				writeError(w, http.StatusInternalServerError, fmt.Sprintf("internal error: %v", rec))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// requireToken gates a handler on the shared internal token, taken from the
// X-Internal-Token header or a token query parameter.
func (s *Server) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.InternalToken == "" {
			writeError(w, http.StatusForbidden, "internal token not configured")
			return
		}
		token := r.Header.Get("X-Internal-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token != s.cfg.InternalToken {
			writeError(w, http.StatusForbidden, "invalid token")
			return
		}
		next(w, r)
	}
}

// ---------- handlers ----------

func (s *Server) handleUpdateLastCandle(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	symbols, err := s.resolveUniverse(r.Context(), req.UniverseRequest)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(symbols) == 0 {
		writeError(w, http.StatusBadRequest, "universe_empty")
		return
	}

	target, err := s.targetDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	daysBack := req.BackfillDays
	if req.AutoBackfill {
		mode := ingest.AnchorGlobal
		if req.AutoMode == string(ingest.AnchorPerSymbol) {
			mode = ingest.AnchorPerSymbol
		}
		missing, err := s.estimator.MissingDays(r.Context(), mode, symbols, target, s.cfg.MaxBackfillDays)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("estimating backfill: %v", err))
			return
		}
		// The target day itself is always fetched; extra days reach past it.
		if extra := missing - 1; extra > daysBack {
			daysBack = extra
		}
	}
	if daysBack > s.cfg.MaxBackfillDays {
		daysBack = s.cfg.MaxBackfillDays
	}
	if daysBack < 0 {
		daysBack = 0
	}

	dates := ingest.TradingDaysBack(target, daysBack+1)
	report := s.orch.FetchDates(r.Context(), symbols, dates)

	resp := UpdateResponse{
		OK:       true,
		Partial:  report.Partial,
		Date:     target.Format(dateLayout),
		Universe: len(symbols),
		DaysBack: daysBack,
		Days:     report.Days,
	}
	if n := len(report.Days); n > 0 {
		last := report.Days[n-1]
		stats := last.Stats
		if len(last.Retries) > 0 {
			stats = last.Retries[len(last.Retries)-1]
		}
		resp.Stats = &stats
	}
	writeJSONStatus(w, statusFor(report.Partial), resp)
}

func (s *Server) handleBackfillRange(w http.ResponseWriter, r *http.Request) {
	var req RangeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	start, err := time.Parse(dateLayout, req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start date")
		return
	}
	end, err := time.Parse(dateLayout, req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end date")
		return
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "end before start")
		return
	}

	symbols, err := s.resolveUniverse(r.Context(), req.UniverseRequest)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(symbols) == 0 {
		writeError(w, http.StatusBadRequest, "universe_empty")
		return
	}

	// The fetch layer takes dates literally; weekday filtering is ours.
	dates := ingest.TradingDaysInRange(start, end, 0)
	report := s.orch.FetchDates(r.Context(), symbols, dates)

	resp := RangeResponse{
		OK:       true,
		Partial:  report.Partial,
		Start:    req.Start,
		End:      req.End,
		Universe: len(symbols),
		Days:     report.Days,
	}
	writeJSONStatus(w, statusFor(report.Partial), resp)
}

func (s *Server) handlePrecalc(w http.ResponseWriter, r *http.Request) {
	var req PrecalcRequest
	if r.Method == http.MethodPost {
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	} else {
		req.UniverseMode = r.URL.Query().Get("universe_mode")
		req.AllActive = r.URL.Query().Get("all_active") == "1"
	}

	report := s.runner.Run(r.Context(), universe.Selection{
		Symbols:   req.Symbols,
		AllActive: req.AllActive,
		Mode:      req.UniverseMode,
	})
	writeJSONStatus(w, statusFor(report.Partial), PrecalcResponse{Report: report})
}

func (s *Server) handleIndicators(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "missing symbol")
		return
	}
	tf := domain.ParseTimeframe(r.URL.Query().Get("timeframe"))
	set, err := s.indicators.GetIndicators(r.Context(), symbol, tf)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("loading indicators: %v", err))
		return
	}
	if set == nil {
		writeError(w, http.StatusNotFound, "no indicators for symbol")
		return
	}
	writeJSONStatus(w, http.StatusOK, IndicatorsResponse{Timeframe: string(tf), Indicators: set})
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "missing symbol")
		return
	}
	sigs, err := s.signals.ListSignals(r.Context(), symbol)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("loading signals: %v", err))
		return
	}
	if tf := r.URL.Query().Get("timeframe"); tf != "" {
		want := domain.ParseTimeframe(tf)
		kept := make([]domain.Signal, 0, len(sigs))
		for _, sig := range sigs {
			if sig.Timeframe == want {
				kept = append(kept, sig)
			}
		}
		sigs = kept
	}
	writeJSONStatus(w, http.StatusOK, SignalsResponse{Symbol: symbol, Signals: sigs})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if _, _, err := s.bars.LastDate(r.Context()); err != nil {
		writeJSONStatus(w, http.StatusServiceUnavailable, HealthResponse{Error: err.Error()})
		return
	}
	writeJSONStatus(w, http.StatusOK, HealthResponse{OK: true})
}

// ---------- helpers ----------

func (s *Server) resolveUniverse(ctx context.Context, req UniverseRequest) ([]string, error) {
	return s.resolver.Resolve(ctx, universe.Selection{
		Symbols:   req.Symbols,
		AllActive: req.AllActive,
		Mode:      req.UniverseMode,
	})
}

// targetDate parses the requested date, defaulting to and never exceeding
// the last finished trading day: today's candle is not final until the
// session closes, so today and future dates snap back.
func (s *Server) targetDate(raw string) (time.Time, error) {
	today := util.DateOnly(s.now().UTC())
	lastFinished := util.PrevTradingDay(today)

	if raw == "" {
		return lastFinished, nil
	}
	d, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", raw)
	}
	if !d.Before(today) {
		return lastFinished, nil
	}
	return util.LastTradingDay(d), nil
}

func statusFor(partial bool) int {
	if partial {
		return http.StatusPartialContent
	}
	return http.StatusOK
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %v", err)
	}
	return nil
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": msg})
}
