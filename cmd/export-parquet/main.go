package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/smgonzalez118/blue-quantum-be-pub/internal/config"
	"github.com/smgonzalez118/blue-quantum-be-pub/internal/store"
	"github.com/smgonzalez118/blue-quantum-be-pub/internal/universe"
	"github.com/smgonzalez118/blue-quantum-be-pub/internal/util"
)

func main() {
	var (
		symbol = flag.String("symbol", "", "export one symbol (default: every active symbol)")
		outDir = flag.String("out", "", "output directory (default: <data_dir>/parquet)")
	)
	flag.Parse()

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

	dir := *outDir
	if dir == "" {
		dir = filepath.Join(cfg.Storage.DataDir, "parquet")
	}
	exporter := store.NewParquetExporter(db, dir)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *symbol != "" {
		sym := universe.SanitizeSymbol(*symbol)
		n, err := exporter.ExportSymbol(ctx, sym)
		if err != nil {
			log.Fatalf("exporting %s: %v", sym, err)
		}
		fmt.Printf("wrote %d bars for %s to %s\n", n, sym, dir)
		return
	}

	n, err := exporter.ExportActive(ctx)
	if err != nil {
		log.Fatalf("exporting active symbols: %v", err)
	}
	fmt.Printf("wrote %d bars to %s\n", n, dir)
}
