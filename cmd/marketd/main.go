package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smgonzalez118/blue-quantum-be-pub/internal/config"
	"github.com/smgonzalez118/blue-quantum-be-pub/internal/httpapi"
	"github.com/smgonzalez118/blue-quantum-be-pub/internal/ingest"
	"github.com/smgonzalez118/blue-quantum-be-pub/internal/polygon"
	"github.com/smgonzalez118/blue-quantum-be-pub/internal/precalc"
	"github.com/smgonzalez118/blue-quantum-be-pub/internal/store"
	"github.com/smgonzalez118/blue-quantum-be-pub/internal/universe"
	"github.com/smgonzalez118/blue-quantum-be-pub/internal/util"
)

func main() {
	cfgPath := "config/market.yaml"
	if p := os.Getenv("MARKET_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("opening sqlite store: %v", err)
	}
	defer db.Close()

	client := polygon.NewClient(cfg.Polygon.BaseURL, cfg.Polygon.APIKey,
		polygon.WithTimeout(time.Duration(cfg.Polygon.TimeoutSeconds)*time.Second),
		polygon.WithRateLimiter(util.NewRateLimiter(cfg.Polygon.RequestsPerMin)),
		polygon.WithLogger(logger),
	)

	fetcher := ingest.NewFetcher(client, db, ingest.FetcherConfig{
		MaxSeconds:     cfg.Jobs.MaxSeconds,
		RequestsPerMin: cfg.Polygon.RequestsPerMin,
		FallbackBurst:  cfg.Jobs.FallbackBurst,
		SleepBase:      cfg.Jobs.SleepBase,
	}, logger)

	resolver := universe.NewResolver(cfg.Storage.DataDir, db)
	runner := precalc.NewRunner(resolver, db,
		[]precalc.Subtask{
			&precalc.IndicatorTask{Bars: db, Indicators: db},
			&precalc.SignalTask{Bars: db, Signals: db},
		},
		precalc.RunnerConfig{
			MaxSeconds: cfg.Jobs.MaxSeconds,
			Burst:      cfg.Jobs.PrecalcBurst,
			SleepSecs:  cfg.Jobs.BurstSleep,
		}, logger)

	srv := httpapi.NewServer(
		httpapi.ServerConfig{
			InternalToken:   cfg.Server.InternalToken,
			MaxBackfillDays: cfg.Jobs.MaxBackfillDays,
			Retries:         cfg.Jobs.BackfillRetries,
		},
		resolver,
		db,
		db,
		db,
		ingest.NewOrchestrator(fetcher, cfg.Jobs.BackfillRetries, logger),
		ingest.NewEstimator(db, cfg.Jobs.AutoAnchorSample, logger),
		runner,
		logger,
	)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("marketd listening", "addr", addr)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("http server: %v", err)
	}
	logger.Info("marketd stopped")
}
