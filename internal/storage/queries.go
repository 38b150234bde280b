package storage

import (
	"context"
	"fmt"
)

const (
	recentCoinPricesSQL = `SELECT f.uuid, c.symbol, c.name, f.price, f.change, f.rank,
            d.date + t.time AS observed_at
        FROM ft_coin_price_t f
        JOIN dim_coin_t c ON c.uuid = f.uuid
        JOIN dim_date_t d ON d.date_id = f.date_id
        JOIN dim_time_t t ON t.time_id = f.time_id
        ORDER BY observed_at DESC, f.rank ASC
        LIMIT $1;`

	coinPriceHistorySQL = `SELECT f.uuid, c.symbol, c.name, f.price, f.change, f.rank,
            d.date + t.time AS observed_at
        FROM ft_coin_price_t f
        JOIN dim_coin_t c ON c.uuid = f.uuid
        JOIN dim_date_t d ON d.date_id = f.date_id
        JOIN dim_time_t t ON t.time_id = f.time_id
        WHERE c.symbol = $1
        ORDER BY observed_at ASC
        LIMIT $2;`

	recentStockPricesSQL = `SELECT f.symbol, f.open, f.high, f.low, f.close,
            d.date + t.time AS observed_at
        FROM ft_stock_price_t f
        JOIN dim_date_t d ON d.date_id = f.date_id
        JOIN dim_time_t t ON t.time_id = f.time_id
        ORDER BY observed_at DESC, f.symbol ASC
        LIMIT $1;`

	recentPredictionsSQL = `SELECT entity, datetime, predicted_values
        FROM predictions_t
        ORDER BY entity ASC, datetime ASC
        LIMIT $1;`
)

// ListRecentCoinPrices returns the newest coin facts joined with their
// dimensions, newest first.
func (s *Store) ListRecentCoinPrices(ctx context.Context, limit int) ([]CoinPriceSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, recentCoinPricesSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent coin prices: %w", err)
	}
	defer rows.Close()

	var samples []CoinPriceSample
	for rows.Next() {
		var sample CoinPriceSample
		if err := rows.Scan(&sample.UUID, &sample.Symbol, &sample.Name,
			&sample.Price, &sample.Change, &sample.Rank, &sample.ObservedAt); err != nil {
			return nil, fmt.Errorf("scan coin price row: %w", err)
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

// ListCoinPriceHistory returns the persisted price series of one coin
// symbol, oldest first.
func (s *Store) ListCoinPriceHistory(ctx context.Context, symbol string, limit int) ([]CoinPriceSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, coinPriceHistorySQL, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query coin price history: %w", err)
	}
	defer rows.Close()

	var samples []CoinPriceSample
	for rows.Next() {
		var sample CoinPriceSample
		if err := rows.Scan(&sample.UUID, &sample.Symbol, &sample.Name,
			&sample.Price, &sample.Change, &sample.Rank, &sample.ObservedAt); err != nil {
			return nil, fmt.Errorf("scan coin history row: %w", err)
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

// ListRecentStockPrices returns the newest stock facts, newest first.
func (s *Store) ListRecentStockPrices(ctx context.Context, limit int) ([]StockPriceSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, recentStockPricesSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent stock prices: %w", err)
	}
	defer rows.Close()

	var samples []StockPriceSample
	for rows.Next() {
		var sample StockPriceSample
		if err := rows.Scan(&sample.Symbol, &sample.Open, &sample.High,
			&sample.Low, &sample.Close, &sample.ObservedAt); err != nil {
			return nil, fmt.Errorf("scan stock price row: %w", err)
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

// ListRecentPredictions returns the current forecast table ordered by
// entity then timestamp.
func (s *Store) ListRecentPredictions(ctx context.Context, limit int) ([]PredictionSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, recentPredictionsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}
	defer rows.Close()

	var samples []PredictionSample
	for rows.Next() {
		var sample PredictionSample
		if err := rows.Scan(&sample.Entity, &sample.Datetime, &sample.Value); err != nil {
			return nil, fmt.Errorf("scan prediction row: %w", err)
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}
