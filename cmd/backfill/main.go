package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/smgonzalez118/blue-quantum-be-pub/internal/config"
	"github.com/smgonzalez118/blue-quantum-be-pub/internal/ingest"
	"github.com/smgonzalez118/blue-quantum-be-pub/internal/polygon"
	"github.com/smgonzalez118/blue-quantum-be-pub/internal/store"
	"github.com/smgonzalez118/blue-quantum-be-pub/internal/universe"
	"github.com/smgonzalez118/blue-quantum-be-pub/internal/util"
)

func main() {
	var (
		startStr  = flag.String("start", "", "first date (YYYY-MM-DD)")
		endStr    = flag.String("end", "", "last date inclusive (YYYY-MM-DD, default start)")
		symbols   = flag.String("symbols", "", "comma-separated symbol list")
		mode      = flag.String("mode", "", "named universe (sp100, adrs, etfs, ...)")
		allActive = flag.Bool("all", false, "use every active symbol in the store")
		seed      = flag.Bool("seed", false, "fetch per-symbol history ranges instead of day-wise grouped updates")
	)
	flag.Parse()

	if *startStr == "" {
		fmt.Fprintln(os.Stderr, "usage: backfill -start YYYY-MM-DD [-end YYYY-MM-DD] [-symbols A,B | -mode name | -all]")
		os.Exit(2)
	}
	start, err := time.Parse("2006-01-02", *startStr)
	if err != nil {
		log.Fatalf("invalid -start: %v", err)
	}
	end := start
	if *endStr != "" {
		if end, err = time.Parse("2006-01-02", *endStr); err != nil {
			log.Fatalf("invalid -end: %v", err)
		}
	}
	if end.Before(start) {
		log.Fatal("-end is before -start")
	}

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

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sel := universe.Selection{AllActive: *allActive, Mode: *mode}
	if *symbols != "" {
		sel.Symbols = strings.Split(*symbols, ",")
	}
	uni, err := universe.NewResolver(cfg.Storage.DataDir, db).Resolve(ctx, sel)
	if err != nil {
		log.Fatalf("resolving universe: %v", err)
	}
	if len(uni) == 0 {
		log.Fatal("universe is empty")
	}

	client := polygon.NewClient(cfg.Polygon.BaseURL, cfg.Polygon.APIKey,
		polygon.WithTimeout(time.Duration(cfg.Polygon.TimeoutSeconds)*time.Second),
		polygon.WithRateLimiter(util.NewRateLimiter(cfg.Polygon.RequestsPerMin)),
		polygon.WithLogger(logger),
	)
	if *seed {
		total, failed := ingest.NewSeeder(client, db, logger).SeedAll(ctx, uni, start, end)
		fmt.Printf("seeded %d bars across %d symbols (%d failed)\n", total, len(uni)-failed, failed)
		if failed > 0 {
			os.Exit(1)
		}
		return
	}

	fetcher := ingest.NewFetcher(client, db, ingest.FetcherConfig{
		MaxSeconds:     cfg.Jobs.MaxSeconds,
		RequestsPerMin: cfg.Polygon.RequestsPerMin,
		FallbackBurst:  cfg.Jobs.FallbackBurst,
		SleepBase:      cfg.Jobs.SleepBase,
	}, logger)
	orch := ingest.NewOrchestrator(fetcher, cfg.Jobs.BackfillRetries, logger)

	dates := ingest.TradingDaysInRange(start, end, 0)
	logger.Info("backfill starting", "symbols", len(uni), "days", len(dates))

	report := orch.FetchDates(ctx, uni, dates)

	out, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(out))
	if report.Partial {
		os.Exit(1)
	}
}
