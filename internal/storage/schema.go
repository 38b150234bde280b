package storage

import (
	"context"
	"fmt"
	"time"
)

// Schema DDL. Table names and check constraints are fixed identifiers
// shared with every consumer of the warehouse.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS dim_coin_t (
        uuid     VARCHAR(255) PRIMARY KEY,
        name     VARCHAR(255) NOT NULL,
        symbol   VARCHAR(2083),
        icon_url VARCHAR(2083)
    );`,
	`CREATE TABLE IF NOT EXISTS dim_time_t (
        time_id SERIAL PRIMARY KEY,
        time    TIME NOT NULL,
        hour    INTEGER NOT NULL CONSTRAINT hour_check CHECK (hour < 24 AND hour >= 0),
        minute  INTEGER NOT NULL CONSTRAINT minute_check CHECK (minute < 60 AND minute >= 0),
        second  INTEGER NOT NULL CONSTRAINT second_check CHECK (second < 60 AND second >= 0)
    );`,
	`CREATE TABLE IF NOT EXISTS dim_date_t (
        date_id SERIAL PRIMARY KEY,
        date    DATE NOT NULL,
        day     INTEGER NOT NULL CONSTRAINT day_check CHECK (day <= 31 AND day >= 0),
        week    INTEGER NOT NULL CONSTRAINT week_check CHECK (week <= 52 AND week >= 0),
        month   INTEGER NOT NULL CONSTRAINT month_check CHECK (month <= 12 AND month >= 0),
        quarter INTEGER NOT NULL CONSTRAINT quarter_check CHECK (quarter <= 4 AND quarter >= 0),
        year    INTEGER NOT NULL CONSTRAINT year_check CHECK (year >= 0)
    );`,
	`CREATE TABLE IF NOT EXISTS dim_stock_t (
        symbol       VARCHAR(255) PRIMARY KEY,
        company_name VARCHAR(255),
        icon_url     VARCHAR(2083),
        exchange     VARCHAR(255),
        industry     VARCHAR(255)
    );`,
	`CREATE TABLE IF NOT EXISTS ft_coin_price_t (
        uuid    VARCHAR(255) NOT NULL REFERENCES dim_coin_t (uuid),
        time_id INTEGER NOT NULL REFERENCES dim_time_t (time_id),
        date_id INTEGER NOT NULL REFERENCES dim_date_t (date_id),
        price   DOUBLE PRECISION NOT NULL,
        change  DOUBLE PRECISION NOT NULL,
        rank    INTEGER NOT NULL,
        PRIMARY KEY (uuid, time_id, date_id)
    );`,
	`CREATE TABLE IF NOT EXISTS ft_stock_price_t (
        symbol  VARCHAR(255) NOT NULL REFERENCES dim_stock_t (symbol),
        time_id INTEGER NOT NULL REFERENCES dim_time_t (time_id),
        date_id INTEGER NOT NULL REFERENCES dim_date_t (date_id),
        open    DOUBLE PRECISION NOT NULL,
        high    DOUBLE PRECISION NOT NULL,
        low     DOUBLE PRECISION NOT NULL,
        close   DOUBLE PRECISION NOT NULL,
        PRIMARY KEY (symbol, time_id, date_id)
    );`,
	`CREATE TABLE IF NOT EXISTS predictions_t (
        entity           VARCHAR(255) NOT NULL,
        datetime         TIMESTAMP NOT NULL,
        predicted_values DOUBLE PRECISION,
        PRIMARY KEY (entity, datetime)
    );`,
}

// Init ensures the warehouse schema exists, retrying a bounded number of
// times with a fixed delay. Exhausting the budget is fatal for the run.
func (s *Store) Init(ctx context.Context, maxRetries int, delay time.Duration) error {
	if maxRetries <= 0 {
		maxRetries = 3
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := s.ensureSchema(ctx); err != nil {
			lastErr = err
			s.logger.Warn().Err(err).Int("attempt", attempt).Int("max_retries", maxRetries).
				Msg("schema initialization failed")
			if attempt == maxRetries {
				break
			}
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			continue
		}
		return nil
	}

	return fmt.Errorf("initialize schema after %d attempts: %w", maxRetries, lastErr)
}

func (s *Store) ensureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	for _, statement := range schemaStatements {
		if _, err := pool.Exec(ctx, statement); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
