package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/smgonzalez118/blue-quantum-be-pub/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "market.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBulkUpsertIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	bar := domain.PriceBar{
		Symbol: "AAPL", Date: day(2024, 6, 14),
		Open: 185, High: 187, Low: 184, Close: 186, AdjClose: 186, Volume: 5000000,
	}

	if _, err := s.BulkUpsert(ctx, []domain.PriceBar{bar}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	// Same bar again: state must not change.
	if _, err := s.BulkUpsert(ctx, []domain.PriceBar{bar}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	bars, err := s.ReadBars(ctx, "AAPL", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(bars) != 1 {
		t.Fatalf("got %d bars after double upsert, want 1", len(bars))
	}
	if bars[0].Close != 186 {
		t.Errorf("Close = %v, want 186", bars[0].Close)
	}
}

func TestBulkUpsertLastWriteWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := domain.PriceBar{Symbol: "MSFT", Date: day(2024, 6, 14), Close: 440, AdjClose: 440, Volume: 100}
	second := first
	second.Close = 442
	second.AdjClose = 442
	second.Volume = 200

	if _, err := s.BulkUpsert(ctx, []domain.PriceBar{first}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := s.BulkUpsert(ctx, []domain.PriceBar{second}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	bars, err := s.ReadBars(ctx, "MSFT", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(bars) != 1 {
		t.Fatalf("got %d bars, want 1", len(bars))
	}
	if bars[0].Close != 442 || bars[0].Volume != 200 {
		t.Errorf("bar = %+v, want overwritten close/volume", bars[0])
	}
}

func TestBulkUpsertDefaultsAdjClose(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	bar := domain.PriceBar{Symbol: "XOM", Date: day(2024, 6, 14), Close: 110}
	if _, err := s.BulkUpsert(ctx, []domain.PriceBar{bar}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	bars, _ := s.ReadBars(ctx, "XOM", time.Time{}, time.Time{})
	if len(bars) != 1 || bars[0].AdjClose != 110 {
		t.Errorf("AdjClose should default to close, got %+v", bars)
	}
}

func TestReadBarsRange(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var batch []domain.PriceBar
	for d := 10; d <= 14; d++ {
		batch = append(batch, domain.PriceBar{
			Symbol: "AAPL", Date: day(2024, 6, d), Close: float64(d),
		})
	}
	if _, err := s.BulkUpsert(ctx, batch); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	bars, err := s.ReadBars(ctx, "AAPL", day(2024, 6, 11), day(2024, 6, 13))
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(bars) != 3 {
		t.Fatalf("got %d bars in range, want 3", len(bars))
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i].Date.After(bars[i-1].Date) {
			t.Fatal("bars not in ascending date order")
		}
	}
}

func TestLastDate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.LastDate(ctx); err != nil || ok {
		t.Fatalf("empty store LastDate = ok %v err %v, want absent", ok, err)
	}

	s.BulkUpsert(ctx, []domain.PriceBar{
		{Symbol: "AAPL", Date: day(2024, 6, 12), Close: 1},
		{Symbol: "MSFT", Date: day(2024, 6, 14), Close: 1},
	})

	d, ok, err := s.LastDate(ctx)
	if err != nil || !ok {
		t.Fatalf("LastDate: ok %v err %v", ok, err)
	}
	if !d.Equal(day(2024, 6, 14)) {
		t.Errorf("LastDate = %v, want 2024-06-14", d)
	}

	d, ok, _ = s.LastDateFor(ctx, "AAPL")
	if !ok || !d.Equal(day(2024, 6, 12)) {
		t.Errorf("LastDateFor(AAPL) = %v ok=%v, want 2024-06-12", d, ok)
	}
	if _, ok, _ := s.LastDateFor(ctx, "ZZZZ"); ok {
		t.Error("LastDateFor on unknown symbol should report absent")
	}
}

func TestListActiveSymbols(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.BulkUpsert(ctx, []domain.PriceBar{
		{Symbol: "MSFT", Date: day(2024, 6, 14), Close: 1},
		{Symbol: "AAPL", Date: day(2024, 6, 14), Close: 1},
	})

	symbols, err := s.ListActiveSymbols(ctx)
	if err != nil {
		t.Fatalf("ListActiveSymbols: %v", err)
	}
	if len(symbols) != 2 || symbols[0] != "AAPL" || symbols[1] != "MSFT" {
		t.Errorf("symbols = %v, want [AAPL MSFT]", symbols)
	}
}

func TestIndicatorUpsertAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	set := &domain.IndicatorSet{
		Ticker: "AAPL", Timeframe: domain.TimeframeDaily,
		Label: "AAPL (Apple Inc.)", Price: 186.12,
		MACD: domain.FlagBull, PriceEMA5: domain.FlagBull, RSI: domain.FlagBear,
		DMI: domain.FlagBull, ADX: domain.FlagStrong,
		UpdatedAt: time.Now(),
	}
	if err := s.UpsertIndicators(ctx, set); err != nil {
		t.Fatalf("UpsertIndicators: %v", err)
	}

	// Overwrite with a flipped flag.
	set.MACD = domain.FlagBear
	if err := s.UpsertIndicators(ctx, set); err != nil {
		t.Fatalf("UpsertIndicators overwrite: %v", err)
	}

	got, err := s.GetIndicators(ctx, "AAPL", domain.TimeframeDaily)
	if err != nil {
		t.Fatalf("GetIndicators: %v", err)
	}
	if got == nil {
		t.Fatal("GetIndicators returned nil for existing row")
	}
	if got.MACD != domain.FlagBear {
		t.Errorf("MACD = %q, want overwritten BEAR", got.MACD)
	}
	if got.ADX != domain.FlagStrong {
		t.Errorf("ADX = %q, want STRONG", got.ADX)
	}

	if missing, _ := s.GetIndicators(ctx, "AAPL", domain.TimeframeWeekly); missing != nil {
		t.Error("GetIndicators for absent timeframe should return nil")
	}
}

func TestSignalOneCurrentRowPerKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sig := &domain.Signal{
		Symbol: "AAPL", Timeframe: domain.TimeframeDaily, Indicator: "EMA5/EMA10",
		Type: domain.SignalBuy, Date: day(2024, 6, 10), SignalPrice: 180, LastPrice: 186, ReturnPct: 3.33,
	}
	if err := s.UpsertSignal(ctx, sig); err != nil {
		t.Fatalf("UpsertSignal: %v", err)
	}

	sig.Type = domain.SignalSell
	sig.Date = day(2024, 6, 13)
	if err := s.UpsertSignal(ctx, sig); err != nil {
		t.Fatalf("UpsertSignal overwrite: %v", err)
	}

	sigs, err := s.ListSignals(ctx, "AAPL")
	if err != nil {
		t.Fatalf("ListSignals: %v", err)
	}
	if len(sigs) != 1 {
		t.Fatalf("got %d signal rows, want 1 current row per key", len(sigs))
	}
	if sigs[0].Type != domain.SignalSell || !sigs[0].Date.Equal(day(2024, 6, 13)) {
		t.Errorf("signal = %+v, want overwritten SELL@2024-06-13", sigs[0])
	}
}

func TestCheckpointLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Absent key loads as nil, deleting it is a no-op.
	if cp, err := s.Load(ctx, "sp100"); err != nil || cp != nil {
		t.Fatalf("Load absent = %v, %v; want nil, nil", cp, err)
	}
	if err := s.Delete(ctx, "sp100"); err != nil {
		t.Fatalf("Delete of absent key: %v", err)
	}

	cp := &Checkpoint{Key: "sp100", Order: []string{"AAPL", "MSFT", "GOOG"}, Cursor: 2}
	if err := s.Save(ctx, cp); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load(ctx, "sp100")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil || got.Cursor != 2 || len(got.Order) != 3 || got.Order[1] != "MSFT" {
		t.Fatalf("Load = %+v, want saved checkpoint", got)
	}

	// Overwrite advances the cursor.
	cp.Cursor = 3
	if err := s.Save(ctx, cp); err != nil {
		t.Fatalf("Save overwrite: %v", err)
	}
	got, _ = s.Load(ctx, "sp100")
	if got.Cursor != 3 {
		t.Errorf("Cursor = %d after overwrite, want 3", got.Cursor)
	}

	if err := s.Delete(ctx, "sp100"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if cp, _ := s.Load(ctx, "sp100"); cp != nil {
		t.Error("checkpoint still present after Delete")
	}
}

func TestParquetExportRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.BulkUpsert(ctx, []domain.PriceBar{
		{Symbol: "AAPL", Date: day(2024, 6, 13), Open: 184, High: 186, Low: 183, Close: 185, AdjClose: 185, Volume: 100},
		{Symbol: "AAPL", Date: day(2024, 6, 14), Open: 185, High: 187, Low: 184, Close: 186, AdjClose: 186, Volume: 200},
	})

	exp := NewParquetExporter(s, filepath.Join(t.TempDir(), "export"))
	n, err := exp.ExportSymbol(ctx, "AAPL")
	if err != nil {
		t.Fatalf("ExportSymbol: %v", err)
	}
	if n != 2 {
		t.Fatalf("exported %d rows, want 2", n)
	}

	bars, err := exp.ReadExport("AAPL")
	if err != nil {
		t.Fatalf("ReadExport: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("read back %d bars, want 2", len(bars))
	}
	if bars[1].Close != 186 || !bars[1].Date.Equal(day(2024, 6, 14)) {
		t.Errorf("second bar = %+v", bars[1])
	}
}

func TestParquetExportSkipsEmptySymbol(t *testing.T) {
	s := newTestStore(t)
	exp := NewParquetExporter(s, filepath.Join(t.TempDir(), "export"))

	n, err := exp.ExportSymbol(context.Background(), "NONE")
	if err != nil {
		t.Fatalf("ExportSymbol: %v", err)
	}
	if n != 0 {
		t.Errorf("exported %d rows for empty symbol, want 0", n)
	}
}
