// Package store provides the sqlite-backed persistence layer: holdings,
// daily quote snapshots, exchange-rate history, declared assets and the
// transaction/dividend ledger.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"shisan/internal/domain"
)

// Store wraps the portfolio database
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// New creates a store over an open database connection
func New(db *sql.DB, log zerolog.Logger) *Store {
	return &Store{
		db:  db,
		log: log.With().Str("service", "store").Logger(),
	}
}

// EnsureSchema creates all tables if they do not exist
func (s *Store) EnsureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS holdings (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL,
			currency TEXT NOT NULL,
			account_type TEXT NOT NULL DEFAULT 'taxable',
			quantity REAL NOT NULL CHECK (quantity >= 0),
			avg_cost REAL NOT NULL CHECK (avg_cost >= 0),
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS quote_snapshots (
			symbol TEXT NOT NULL,
			price REAL NOT NULL,
			currency TEXT NOT NULL,
			date TEXT NOT NULL,
			PRIMARY KEY (symbol, date)
		)`,
		`CREATE TABLE IF NOT EXISTS exchange_rates (
			date TEXT PRIMARY KEY,
			rate REAL NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS other_assets (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			category TEXT NOT NULL,
			currency TEXT NOT NULL DEFAULT 'JPY',
			value REAL NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			currency TEXT NOT NULL,
			quantity REAL NOT NULL,
			price REAL NOT NULL,
			realized_pl REAL NOT NULL DEFAULT 0,
			date TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS dividends (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			currency TEXT NOT NULL,
			amount REAL NOT NULL,
			date TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS fund_code_mappings (
			symbol TEXT PRIMARY KEY,
			fund_code TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_quote_snapshots_symbol_date
			ON quote_snapshots (symbol, date DESC)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// ReadHoldings returns all portfolio holdings
func (s *Store) ReadHoldings(ctx context.Context) ([]domain.Holding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, name, category, currency, account_type, quantity, avg_cost, created_at
		FROM holdings ORDER BY created_at, symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to read holdings: %w", err)
	}
	defer rows.Close()

	var holdings []domain.Holding
	for rows.Next() {
		var h domain.Holding
		var createdAt string
		if err := rows.Scan(&h.ID, &h.Symbol, &h.Name, &h.Category, &h.Currency, &h.AccountType, &h.Quantity, &h.AvgCost, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		h.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

// InsertHolding records a holding. Used by the transaction layer and
// tests; the valuation pipeline itself only reads.
func (s *Store) InsertHolding(ctx context.Context, h domain.Holding) (string, error) {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO holdings (id, symbol, name, category, currency, account_type, quantity, avg_cost, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.Symbol, h.Name, h.Category, h.Currency, h.AccountType, h.Quantity, h.AvgCost, h.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("failed to insert holding %s: %w", h.Symbol, err)
	}
	return h.ID, nil
}

// ReadLatestQuotes returns the most recent persisted price per symbol
func (s *Store) ReadLatestQuotes(ctx context.Context) (map[string]domain.Quote, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT q.symbol, q.price, q.currency
		FROM quote_snapshots q
		JOIN (
			SELECT symbol, MAX(date) AS max_date
			FROM quote_snapshots GROUP BY symbol
		) latest ON q.symbol = latest.symbol AND q.date = latest.max_date`)
	if err != nil {
		return nil, fmt.Errorf("failed to read latest quotes: %w", err)
	}
	defer rows.Close()

	quotes := make(map[string]domain.Quote)
	for rows.Next() {
		var q domain.Quote
		if err := rows.Scan(&q.Symbol, &q.Price, &q.Currency); err != nil {
			return nil, fmt.Errorf("failed to scan quote snapshot: %w", err)
		}
		q.Source = domain.QuoteSourceCache
		quotes[q.Symbol] = q
	}
	return quotes, rows.Err()
}

// AppendQuoteSnapshot upserts the price for a symbol on a given day.
// History is daily granularity: a second snapshot on the same day
// replaces the first.
func (s *Store) AppendQuoteSnapshot(ctx context.Context, symbol string, price float64, currency domain.Currency, date time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO quote_snapshots (symbol, price, currency, date)
		VALUES (?, ?, ?, ?)`,
		symbol, price, currency, date.Format("2006-01-02"))
	if err != nil {
		return fmt.Errorf("failed to append quote snapshot for %s: %w", symbol, err)
	}
	return nil
}

// AppendExchangeRate upserts the USD/JPY rate for a given day
func (s *Store) AppendExchangeRate(ctx context.Context, rate float64, date time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO exchange_rates (date, rate) VALUES (?, ?)`,
		date.Format("2006-01-02"), rate)
	if err != nil {
		return fmt.Errorf("failed to append exchange rate: %w", err)
	}
	return nil
}

// ReadOtherAssets returns all declared non-tradable assets
func (s *Store) ReadOtherAssets(ctx context.Context) ([]domain.OtherAsset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, currency, value FROM other_assets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to read other assets: %w", err)
	}
	defer rows.Close()

	var assets []domain.OtherAsset
	for rows.Next() {
		var a domain.OtherAsset
		if err := rows.Scan(&a.ID, &a.Name, &a.Category, &a.Currency, &a.Value); err != nil {
			return nil, fmt.Errorf("failed to scan other asset: %w", err)
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// InsertOtherAsset records a declared asset
func (s *Store) InsertOtherAsset(ctx context.Context, a domain.OtherAsset) (string, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO other_assets (id, name, category, currency, value)
		VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Category, a.Currency, a.Value)
	if err != nil {
		return "", fmt.Errorf("failed to insert other asset %s: %w", a.Name, err)
	}
	return a.ID, nil
}

// ReadTransactionsSince returns transactions recorded on or after the
// given time
func (s *Store) ReadTransactionsSince(ctx context.Context, since time.Time) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, side, currency, quantity, price, realized_pl, date
		FROM transactions WHERE date >= ? ORDER BY date`,
		since.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to read transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var date string
		if err := rows.Scan(&t.ID, &t.Symbol, &t.Side, &t.Currency, &t.Quantity, &t.Price, &t.RealizedPL, &date); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		t.Date, _ = time.Parse(time.RFC3339, date)
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// InsertTransaction records a trade
func (s *Store) InsertTransaction(ctx context.Context, t domain.Transaction) (string, error) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (id, symbol, side, currency, quantity, price, realized_pl, date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Symbol, t.Side, t.Currency, t.Quantity, t.Price, t.RealizedPL, t.Date.Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("failed to insert transaction for %s: %w", t.Symbol, err)
	}
	return t.ID, nil
}

// ReadDividendsSince returns dividends recorded on or after the given time
func (s *Store) ReadDividendsSince(ctx context.Context, since time.Time) ([]domain.Dividend, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, currency, amount, date
		FROM dividends WHERE date >= ? ORDER BY date`,
		since.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to read dividends: %w", err)
	}
	defer rows.Close()

	var dividends []domain.Dividend
	for rows.Next() {
		var d domain.Dividend
		var date string
		if err := rows.Scan(&d.ID, &d.Symbol, &d.Currency, &d.Amount, &date); err != nil {
			return nil, fmt.Errorf("failed to scan dividend: %w", err)
		}
		d.Date, _ = time.Parse(time.RFC3339, date)
		dividends = append(dividends, d)
	}
	return dividends, rows.Err()
}

// InsertDividend records a dividend payment
func (s *Store) InsertDividend(ctx context.Context, d domain.Dividend) (string, error) {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dividends (id, symbol, currency, amount, date)
		VALUES (?, ?, ?, ?, ?)`,
		d.ID, d.Symbol, d.Currency, d.Amount, d.Date.Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("failed to insert dividend for %s: %w", d.Symbol, err)
	}
	return d.ID, nil
}

// ReadFundCodeMappings returns the static holding-symbol to fund-code
// mapping table
func (s *Store) ReadFundCodeMappings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT symbol, fund_code FROM fund_code_mappings`)
	if err != nil {
		return nil, fmt.Errorf("failed to read fund code mappings: %w", err)
	}
	defer rows.Close()

	mappings := make(map[string]string)
	for rows.Next() {
		var symbol, code string
		if err := rows.Scan(&symbol, &code); err != nil {
			return nil, fmt.Errorf("failed to scan fund code mapping: %w", err)
		}
		mappings[symbol] = code
	}
	return mappings, rows.Err()
}

// SeedFundCodeMappings upserts the given mappings. Called once at startup
// from the configured mapping file; the table is read-only afterwards.
func (s *Store) SeedFundCodeMappings(ctx context.Context, mappings map[string]string) error {
	for symbol, code := range mappings {
		_, err := s.db.ExecContext(ctx, `
			INSERT OR REPLACE INTO fund_code_mappings (symbol, fund_code) VALUES (?, ?)`,
			symbol, code)
		if err != nil {
			return fmt.Errorf("failed to seed fund code mapping %s: %w", symbol, err)
		}
	}
	return nil
}
