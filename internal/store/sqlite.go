package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/smgonzalez118/blue-quantum-be-pub/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ BarStore = (*SQLiteStore)(nil)
var _ IndicatorStore = (*SQLiteStore)(nil)
var _ SignalStore = (*SQLiteStore)(nil)
var _ CheckpointStore = (*SQLiteStore)(nil)

const dateLayout = "2006-01-02"

// SQLiteStore implements every store interface backed by a single SQLite
// database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, runs the
// schema migration, and returns a ready-to-use store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tickers (
			symbol    TEXT PRIMARY KEY,
			is_active INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS price_daily (
			symbol    TEXT    NOT NULL,
			date      TEXT    NOT NULL,
			open      REAL, high REAL, low REAL, close REAL,
			adj_close REAL,
			volume    INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (symbol, date)
		)`,
		`CREATE TABLE IF NOT EXISTS dashboard_indicators (
			ticker TEXT NOT NULL, timeframe TEXT NOT NULL,
			label TEXT, price REAL,
			macd TEXT, pmm5 TEXT, pmm10 TEXT, pmm20 TEXT, pmm30 TEXT,
			pmm100 TEXT, mm5_10 TEXT, mm10_20 TEXT, triple_cross TEXT,
			rsi TEXT, dmi TEXT, adx TEXT,
			updated_at TEXT,
			PRIMARY KEY (ticker, timeframe)
		)`,
		`CREATE TABLE IF NOT EXISTS signals (
			symbol TEXT NOT NULL, timeframe TEXT NOT NULL, indicator TEXT NOT NULL,
			type TEXT NOT NULL, date TEXT NOT NULL,
			signal_price REAL, last_price REAL, return_pct REAL,
			PRIMARY KEY (symbol, timeframe, indicator)
		)`,
		`CREATE TABLE IF NOT EXISTS checkpoints (
			key          TEXT PRIMARY KEY,
			symbol_order TEXT NOT NULL,
			cursor       INTEGER NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// BarStore implementation
// ---------------------------------------------------------------------------

// BulkUpsert writes bars inside one transaction. The conflict target is
// (symbol, date); every OHLCV field is overwritten, last write wins. Ticker
// rows are created on first sight so the symbol shows up as active.
func (s *SQLiteStore) BulkUpsert(ctx context.Context, bars []domain.PriceBar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	tickerStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO tickers (symbol, is_active) VALUES (?, 1)
		 ON CONFLICT(symbol) DO NOTHING`)
	if err != nil {
		return 0, err
	}
	defer tickerStmt.Close()

	barStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO price_daily (symbol, date, open, high, low, close, adj_close, volume)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(symbol, date) DO UPDATE SET
			open = excluded.open, high = excluded.high, low = excluded.low,
			close = excluded.close, adj_close = excluded.adj_close,
			volume = excluded.volume`)
	if err != nil {
		return 0, err
	}
	defer barStmt.Close()

	count := 0
	for _, b := range bars {
		if b.Symbol == "" {
			continue
		}
		if _, err := tickerStmt.ExecContext(ctx, b.Symbol); err != nil {
			return count, fmt.Errorf("upserting ticker %s: %w", b.Symbol, err)
		}
		adj := b.AdjClose
		if adj == 0 {
			adj = b.Close
		}
		if _, err := barStmt.ExecContext(ctx,
			b.Symbol, b.Date.Format(dateLayout),
			b.Open, b.High, b.Low, b.Close, adj, b.Volume,
		); err != nil {
			return count, fmt.Errorf("upserting bar %s@%s: %w", b.Symbol, b.Date.Format(dateLayout), err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}

// ReadBars returns bars for symbol in ascending date order.
func (s *SQLiteStore) ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.PriceBar, error) {
	query := `SELECT symbol, date, open, high, low, close, adj_close, volume
		FROM price_daily WHERE symbol = ?`
	args := []any{symbol}
	if !start.IsZero() {
		query += ` AND date >= ?`
		args = append(args, start.Format(dateLayout))
	}
	if !end.IsZero() {
		query += ` AND date <= ?`
		args = append(args, end.Format(dateLayout))
	}
	query += ` ORDER BY date ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bars []domain.PriceBar
	for rows.Next() {
		var b domain.PriceBar
		var dateStr string
		if err := rows.Scan(&b.Symbol, &dateStr, &b.Open, &b.High, &b.Low, &b.Close, &b.AdjClose, &b.Volume); err != nil {
			return nil, err
		}
		d, err := time.Parse(dateLayout, dateStr)
		if err != nil {
			return nil, fmt.Errorf("parsing stored date %q: %w", dateStr, err)
		}
		b.Date = d
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// ListActiveSymbols returns all active ticker symbols, sorted.
func (s *SQLiteStore) ListActiveSymbols(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol FROM tickers WHERE is_active = 1 ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

// LastDate returns the most recent bar date across all symbols.
func (s *SQLiteStore) LastDate(ctx context.Context) (time.Time, bool, error) {
	return s.scanMaxDate(ctx, `SELECT MAX(date) FROM price_daily`)
}

// LastDateFor returns the most recent bar date for one symbol.
func (s *SQLiteStore) LastDateFor(ctx context.Context, symbol string) (time.Time, bool, error) {
	return s.scanMaxDate(ctx, `SELECT MAX(date) FROM price_daily WHERE symbol = ?`, symbol)
}

func (s *SQLiteStore) scanMaxDate(ctx context.Context, query string, args ...any) (time.Time, bool, error) {
	var dateStr sql.NullString
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&dateStr); err != nil {
		return time.Time{}, false, err
	}
	if !dateStr.Valid || dateStr.String == "" {
		return time.Time{}, false, nil
	}
	d, err := time.Parse(dateLayout, dateStr.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parsing stored date %q: %w", dateStr.String, err)
	}
	return d, true, nil
}

// ---------------------------------------------------------------------------
// IndicatorStore implementation
// ---------------------------------------------------------------------------

// UpsertIndicators replaces the dashboard flag row for (ticker, timeframe).
func (s *SQLiteStore) UpsertIndicators(ctx context.Context, set *domain.IndicatorSet) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dashboard_indicators
			(ticker, timeframe, label, price, macd, pmm5, pmm10, pmm20, pmm30,
			 pmm100, mm5_10, mm10_20, triple_cross, rsi, dmi, adx, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(ticker, timeframe) DO UPDATE SET
			label = excluded.label, price = excluded.price,
			macd = excluded.macd, pmm5 = excluded.pmm5, pmm10 = excluded.pmm10,
			pmm20 = excluded.pmm20, pmm30 = excluded.pmm30, pmm100 = excluded.pmm100,
			mm5_10 = excluded.mm5_10, mm10_20 = excluded.mm10_20,
			triple_cross = excluded.triple_cross, rsi = excluded.rsi,
			dmi = excluded.dmi, adx = excluded.adx, updated_at = excluded.updated_at`,
		set.Ticker, string(set.Timeframe), set.Label, set.Price,
		set.MACD, set.PriceEMA5, set.PriceEMA10, set.PriceEMA20, set.PriceEMA30,
		set.PriceEMA100, set.EMA5vs10, set.EMA10vs20, set.TripleCross,
		set.RSI, set.DMI, set.ADX,
		set.UpdatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// GetIndicators returns the flag row for (ticker, timeframe), or nil.
func (s *SQLiteStore) GetIndicators(ctx context.Context, ticker string, tf domain.Timeframe) (*domain.IndicatorSet, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT ticker, timeframe, label, price, macd, pmm5, pmm10, pmm20, pmm30,
			pmm100, mm5_10, mm10_20, triple_cross, rsi, dmi, adx, updated_at
		 FROM dashboard_indicators WHERE ticker = ? AND timeframe = ?`,
		ticker, string(tf))

	var set domain.IndicatorSet
	var tfStr, updatedAt string
	err := row.Scan(&set.Ticker, &tfStr, &set.Label, &set.Price,
		&set.MACD, &set.PriceEMA5, &set.PriceEMA10, &set.PriceEMA20, &set.PriceEMA30,
		&set.PriceEMA100, &set.EMA5vs10, &set.EMA10vs20, &set.TripleCross,
		&set.RSI, &set.DMI, &set.ADX, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	set.Timeframe = domain.Timeframe(tfStr)
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		set.UpdatedAt = t
	}
	return &set, nil
}

// ---------------------------------------------------------------------------
// SignalStore implementation
// ---------------------------------------------------------------------------

// UpsertSignal replaces the current signal row for the key triple.
func (s *SQLiteStore) UpsertSignal(ctx context.Context, sig *domain.Signal) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO signals
			(symbol, timeframe, indicator, type, date, signal_price, last_price, return_pct)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(symbol, timeframe, indicator) DO UPDATE SET
			type = excluded.type, date = excluded.date,
			signal_price = excluded.signal_price, last_price = excluded.last_price,
			return_pct = excluded.return_pct`,
		sig.Symbol, string(sig.Timeframe), sig.Indicator, string(sig.Type),
		sig.Date.Format(dateLayout), sig.SignalPrice, sig.LastPrice, sig.ReturnPct,
	)
	return err
}

// ListSignals returns all current signals for a symbol.
func (s *SQLiteStore) ListSignals(ctx context.Context, symbol string) ([]domain.Signal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, timeframe, indicator, type, date, signal_price, last_price, return_pct
		 FROM signals WHERE symbol = ? ORDER BY timeframe, indicator`, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Signal
	for rows.Next() {
		var sig domain.Signal
		var tfStr, typeStr, dateStr string
		if err := rows.Scan(&sig.Symbol, &tfStr, &sig.Indicator, &typeStr, &dateStr,
			&sig.SignalPrice, &sig.LastPrice, &sig.ReturnPct); err != nil {
			return nil, err
		}
		sig.Timeframe = domain.Timeframe(tfStr)
		sig.Type = domain.SignalType(typeStr)
		if d, err := time.Parse(dateLayout, dateStr); err == nil {
			sig.Date = d
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// CheckpointStore implementation
// ---------------------------------------------------------------------------

// Load returns the checkpoint for key, or nil when none exists.
func (s *SQLiteStore) Load(ctx context.Context, key string) (*Checkpoint, error) {
	var orderJSON string
	var cursor int
	err := s.db.QueryRowContext(ctx,
		`SELECT symbol_order, cursor FROM checkpoints WHERE key = ?`, key).
		Scan(&orderJSON, &cursor)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var order []string
	if err := json.Unmarshal([]byte(orderJSON), &order); err != nil {
		return nil, fmt.Errorf("decoding checkpoint order for %q: %w", key, err)
	}
	return &Checkpoint{Key: key, Order: order, Cursor: cursor}, nil
}

// Save writes (or overwrites) the checkpoint for cp.Key.
func (s *SQLiteStore) Save(ctx context.Context, cp *Checkpoint) error {
	orderJSON, err := json.Marshal(cp.Order)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (key, symbol_order, cursor) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			symbol_order = excluded.symbol_order, cursor = excluded.cursor`,
		cp.Key, string(orderJSON), cp.Cursor)
	return err
}

// Delete removes the checkpoint for key. Absent keys are a no-op.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE key = ?`, key)
	return err
}
