package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"marketdw/internal/model"
)

// ErrNotConfigured indicates the store was built without a database pool.
var ErrNotConfigured = errors.New("storage: database not configured")

const (
	dateFormat = "2006-01-02"
	timeFormat = "15:04:05"
)

const (
	selectDateSQL = `SELECT date_id FROM dim_date_t
        WHERE date = $1 AND day = $2 AND week = $3 AND month = $4 AND quarter = $5 AND year = $6;`
	insertDateSQL = `INSERT INTO dim_date_t (date, day, week, month, quarter, year)
        VALUES ($1, $2, $3, $4, $5, $6) RETURNING date_id;`

	selectTimeSQL = `SELECT time_id FROM dim_time_t
        WHERE time = $1 AND hour = $2 AND minute = $3 AND second = $4;`
	insertTimeSQL = `INSERT INTO dim_time_t (time, hour, minute, second)
        VALUES ($1, $2, $3, $4) RETURNING time_id;`

	selectCoinSQL = `SELECT uuid FROM dim_coin_t
        WHERE uuid = $1 AND name = $2 AND symbol = $3 AND icon_url = $4;`
	insertCoinSQL = `INSERT INTO dim_coin_t (uuid, name, symbol, icon_url)
        VALUES ($1, $2, $3, $4) RETURNING uuid;`

	selectStockSQL = `SELECT symbol FROM dim_stock_t
        WHERE symbol = $1 AND company_name = $2 AND icon_url = $3 AND exchange = $4 AND industry = $5;`
	insertStockSQL = `INSERT INTO dim_stock_t (symbol, company_name, icon_url, exchange, industry)
        VALUES ($1, $2, $3, $4, $5) RETURNING symbol;`

	coinFactExistsSQL = `SELECT EXISTS (
        SELECT 1 FROM ft_coin_price_t WHERE uuid = $1 AND time_id = $2 AND date_id = $3);`
	insertCoinFactSQL = `INSERT INTO ft_coin_price_t (uuid, time_id, date_id, price, change, rank)
        VALUES ($1, $2, $3, $4, $5, $6);`

	stockFactExistsSQL = `SELECT EXISTS (
        SELECT 1 FROM ft_stock_price_t WHERE symbol = $1 AND time_id = $2 AND date_id = $3);`
	insertStockFactSQL = `INSERT INTO ft_stock_price_t (symbol, time_id, date_id, open, high, low, close)
        VALUES ($1, $2, $3, $4, $5, $6, $7);`

	truncatePredictionsSQL = `TRUNCATE TABLE predictions_t;`
	insertPredictionSQL    = `INSERT INTO predictions_t (entity, datetime, predicted_values)
        VALUES ($1, $2, $3);`
)

// Store persists snapshots and forecasts into the dimensional schema.
type Store struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

func NewStore(pool *pgxpool.Pool, logger zerolog.Logger) *Store {
	return &Store{
		pool:   pool,
		logger: logger.With().Str("component", "storage").Logger(),
	}
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// SaveCoinPrices writes one coin snapshot batch in a single transaction.
// Dimension rows are created on first sight and facts already present
// under the same (uuid, time_id, date_id) key are skipped.
func (s *Store) SaveCoinPrices(ctx context.Context, rows []model.CoinPrice) error {
	if len(rows) == 0 {
		return nil
	}
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin coin snapshot tx: %w", err)
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for _, row := range rows {
		dateID, err := s.getOrCreateDate(ctx, tx, row.Date)
		if err != nil {
			return err
		}
		timeID, err := s.getOrCreateTime(ctx, tx, row.Time)
		if err != nil {
			return err
		}
		if err := s.getOrCreateCoin(ctx, tx, row); err != nil {
			return err
		}

		var exists bool
		if err := tx.QueryRow(ctx, coinFactExistsSQL, row.UUID, timeID, dateID).Scan(&exists); err != nil {
			return fmt.Errorf("check coin fact %s: %w", row.UUID, err)
		}
		if exists {
			continue
		}
		if _, err := tx.Exec(ctx, insertCoinFactSQL,
			row.UUID, timeID, dateID, row.Price, row.Change, row.Rank); err != nil {
			return fmt.Errorf("insert coin fact %s: %w", row.UUID, err)
		}
		inserted++
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit coin snapshot tx: %w", err)
	}

	s.logger.Info().Int("rows", len(rows)).Int("inserted", inserted).Msg("coin snapshot persisted")
	return nil
}

// SaveStockPrices writes one stock snapshot batch in a single transaction.
func (s *Store) SaveStockPrices(ctx context.Context, rows []model.StockPrice) error {
	if len(rows) == 0 {
		return nil
	}
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin stock snapshot tx: %w", err)
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for _, row := range rows {
		dateID, err := s.getOrCreateDate(ctx, tx, row.Date)
		if err != nil {
			return err
		}
		timeID, err := s.getOrCreateTime(ctx, tx, row.Time)
		if err != nil {
			return err
		}
		if err := s.getOrCreateStock(ctx, tx, row); err != nil {
			return err
		}

		var exists bool
		if err := tx.QueryRow(ctx, stockFactExistsSQL, row.Symbol, timeID, dateID).Scan(&exists); err != nil {
			return fmt.Errorf("check stock fact %s: %w", row.Symbol, err)
		}
		if exists {
			continue
		}
		if _, err := tx.Exec(ctx, insertStockFactSQL,
			row.Symbol, timeID, dateID, row.Open, row.High, row.Low, row.Close); err != nil {
			return fmt.Errorf("insert stock fact %s: %w", row.Symbol, err)
		}
		inserted++
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit stock snapshot tx: %w", err)
	}

	s.logger.Info().Int("rows", len(rows)).Int("inserted", inserted).Msg("stock snapshot persisted")
	return nil
}

// ReplacePredictions truncates predictions_t and writes the new forecast
// set in the same transaction, so readers never see a partial table.
func (s *Store) ReplacePredictions(ctx context.Context, rows []model.Prediction) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin predictions tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, truncatePredictionsSQL); err != nil {
		return fmt.Errorf("truncate predictions: %w", err)
	}
	for _, row := range rows {
		if _, err := tx.Exec(ctx, insertPredictionSQL, row.Entity, row.Datetime, row.Value); err != nil {
			return fmt.Errorf("insert prediction %s: %w", row.Entity, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit predictions tx: %w", err)
	}

	s.logger.Info().Int("rows", len(rows)).Msg("predictions replaced")
	return nil
}

// getOrCreateDate matches on every dim_date_t attribute, not just the
// calendar date, so conflicting derivations surface as new rows instead
// of silently reusing a wrong one.
func (s *Store) getOrCreateDate(ctx context.Context, tx pgx.Tx, parts model.DateParts) (int, error) {
	date := parts.Date.Format(dateFormat)

	var id int
	err := tx.QueryRow(ctx, selectDateSQL,
		date, parts.Day, parts.Week, parts.Month, parts.Quarter, parts.Year).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("select date dim %s: %w", date, err)
	}

	err = tx.QueryRow(ctx, insertDateSQL,
		date, parts.Day, parts.Week, parts.Month, parts.Quarter, parts.Year).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert date dim %s: %w", date, err)
	}
	return id, nil
}

func (s *Store) getOrCreateTime(ctx context.Context, tx pgx.Tx, parts model.TimeParts) (int, error) {
	clock := parts.Time.Format(timeFormat)

	var id int
	err := tx.QueryRow(ctx, selectTimeSQL,
		clock, parts.Hour, parts.Minute, parts.Second).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("select time dim %s: %w", clock, err)
	}

	err = tx.QueryRow(ctx, insertTimeSQL,
		clock, parts.Hour, parts.Minute, parts.Second).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert time dim %s: %w", clock, err)
	}
	return id, nil
}

func (s *Store) getOrCreateCoin(ctx context.Context, tx pgx.Tx, row model.CoinPrice) error {
	var uuid string
	err := tx.QueryRow(ctx, selectCoinSQL,
		row.UUID, row.Name, row.Symbol, row.IconURL).Scan(&uuid)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("select coin dim %s: %w", row.UUID, err)
	}

	err = tx.QueryRow(ctx, insertCoinSQL,
		row.UUID, row.Name, row.Symbol, row.IconURL).Scan(&uuid)
	if err != nil {
		return fmt.Errorf("insert coin dim %s: %w", row.UUID, err)
	}
	return nil
}

func (s *Store) getOrCreateStock(ctx context.Context, tx pgx.Tx, row model.StockPrice) error {
	var symbol string
	err := tx.QueryRow(ctx, selectStockSQL,
		row.Symbol, row.CompanyName, row.IconURL, row.Exchange, row.Industry).Scan(&symbol)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("select stock dim %s: %w", row.Symbol, err)
	}

	err = tx.QueryRow(ctx, insertStockSQL,
		row.Symbol, row.CompanyName, row.IconURL, row.Exchange, row.Industry).Scan(&symbol)
	if err != nil {
		return fmt.Errorf("insert stock dim %s: %w", row.Symbol, err)
	}
	return nil
}

// CoinPriceStore persists coin snapshot batches.
type CoinPriceStore interface {
	SaveCoinPrices(ctx context.Context, rows []model.CoinPrice) error
}

// StockPriceStore persists stock snapshot batches.
type StockPriceStore interface {
	SaveStockPrices(ctx context.Context, rows []model.StockPrice) error
}

// PredictionStore swaps the forecast table for a fresh set.
type PredictionStore interface {
	ReplacePredictions(ctx context.Context, rows []model.Prediction) error
}

var (
	_ CoinPriceStore  = (*Store)(nil)
	_ StockPriceStore = (*Store)(nil)
	_ PredictionStore = (*Store)(nil)
)

// Close releases the underlying connection pool.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}
