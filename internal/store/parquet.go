package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/smgonzalez118/blue-quantum-be-pub/internal/domain"
)

var zeroTime time.Time

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

// BarRecord is the Parquet schema for exported daily bars.
type BarRecord struct {
	Symbol   string  `parquet:"symbol"`
	Date     string  `parquet:"date"` // YYYY-MM-DD
	Open     float64 `parquet:"open"`
	High     float64 `parquet:"high"`
	Low      float64 `parquet:"low"`
	Close    float64 `parquet:"close"`
	AdjClose float64 `parquet:"adj_close"`
	Volume   int64   `parquet:"volume"`
}

// ParquetExporter writes per-symbol snapshots of stored daily bars to
// Parquet files for offline analysis. It reads through a BarStore, so
// SQLite stays the single source of truth.
type ParquetExporter struct {
	bars   BarStore
	outDir string
}

// NewParquetExporter creates an exporter writing under outDir.
func NewParquetExporter(bars BarStore, outDir string) *ParquetExporter {
	return &ParquetExporter{bars: bars, outDir: outDir}
}

// ExportSymbol writes all stored bars for one symbol to
// <outDir>/<SYMBOL>.parquet and returns the number of rows written. The
// file is fully rewritten on every export.
func (e *ParquetExporter) ExportSymbol(ctx context.Context, symbol string) (int, error) {
	bars, err := e.bars.ReadBars(ctx, symbol, zeroTime, zeroTime)
	if err != nil {
		return 0, fmt.Errorf("reading bars for %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return 0, nil
	}

	if err := os.MkdirAll(e.outDir, 0o755); err != nil {
		return 0, fmt.Errorf("creating export dir: %w", err)
	}

	records := make([]BarRecord, len(bars))
	for i, b := range bars {
		records[i] = BarRecord{
			Symbol:   b.Symbol,
			Date:     b.Date.Format(dateLayout),
			Open:     b.Open,
			High:     b.High,
			Low:      b.Low,
			Close:    b.Close,
			AdjClose: b.AdjClose,
			Volume:   b.Volume,
		}
	}

	path := filepath.Join(e.outDir, symbol+".parquet")
	if err := parquet.WriteFile(path, records); err != nil {
		return 0, fmt.Errorf("writing %s: %w", path, err)
	}
	return len(records), nil
}

// ExportActive exports every active symbol and returns the total row count.
// A symbol with no bars is skipped silently.
func (e *ParquetExporter) ExportActive(ctx context.Context) (int, error) {
	symbols, err := e.bars.ListActiveSymbols(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing symbols: %w", err)
	}
	total := 0
	for _, sym := range symbols {
		n, err := e.ExportSymbol(ctx, sym)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// ReadExport reads back an exported symbol file, mainly for verification.
func (e *ParquetExporter) ReadExport(symbol string) ([]domain.PriceBar, error) {
	path := filepath.Join(e.outDir, symbol+".parquet")
	records, err := parquet.ReadFile[BarRecord](path)
	if err != nil {
		return nil, err
	}
	bars := make([]domain.PriceBar, 0, len(records))
	for _, r := range records {
		b := domain.PriceBar{
			Symbol:   r.Symbol,
			Open:     r.Open,
			High:     r.High,
			Low:      r.Low,
			Close:    r.Close,
			AdjClose: r.AdjClose,
			Volume:   r.Volume,
		}
		if d, err := parseDate(r.Date); err == nil {
			b.Date = d
		}
		bars = append(bars, b)
	}
	return bars, nil
}
