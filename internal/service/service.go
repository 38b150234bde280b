package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"marketdw/internal/alerting"
	"marketdw/internal/model"
	"marketdw/internal/storage"
)

// CoinTransformer produces one coin snapshot batch.
type CoinTransformer interface {
	Transform(ctx context.Context) ([]model.CoinPrice, error)
}

// StockTransformer produces one stock snapshot batch.
type StockTransformer interface {
	Transform(ctx context.Context) ([]model.StockPrice, error)
}

// PredictionTransformer produces the full forecast set.
type PredictionTransformer interface {
	Transform(ctx context.Context) ([]model.Prediction, error)
}

// Service orchestrates the three pipelines: extract and transform through
// the configured transformers, persist through the store, and raise an
// alert when a run fails.
type Service struct {
	coins       CoinTransformer
	stocks      StockTransformer
	predictions PredictionTransformer

	coinStore  storage.CoinPriceStore
	stockStore storage.StockPriceStore
	predStore  storage.PredictionStore

	notifier alerting.Notifier
	alertsOn bool
	logger   zerolog.Logger
}

// Options wires the service dependencies.
type Options struct {
	Coins       CoinTransformer
	Stocks      StockTransformer
	Predictions PredictionTransformer

	CoinStore  storage.CoinPriceStore
	StockStore storage.StockPriceStore
	PredStore  storage.PredictionStore

	Notifier      alerting.Notifier
	AlertsEnabled bool
}

// New constructs the pipeline service.
func New(opts Options, logger zerolog.Logger) *Service {
	return &Service{
		coins:       opts.Coins,
		stocks:      opts.Stocks,
		predictions: opts.Predictions,
		coinStore:   opts.CoinStore,
		stockStore:  opts.StockStore,
		predStore:   opts.PredStore,
		notifier:    opts.Notifier,
		alertsOn:    opts.AlertsEnabled,
		logger:      logger.With().Str("component", "service").Logger(),
	}
}

// RunCoinSnapshot 执行一次币种快照管道。
func (s *Service) RunCoinSnapshot(ctx context.Context, bucket time.Time) error {
	runID := uuid.NewString()
	logger := s.logger.With().Str("job", "coin_snapshot").Str("run_id", runID).Logger()
	start := time.Now()
	logger.Info().Time("bucket", bucket).Msg("coin snapshot started")

	rows, err := s.coins.Transform(ctx)
	if err != nil {
		return s.fail(ctx, logger, "coin_snapshot", runID, bucket, fmt.Errorf("transform coin snapshot: %w", err))
	}
	if len(rows) == 0 {
		logger.Warn().Msg("coin snapshot produced no rows, nothing persisted")
		return nil
	}

	if err := s.coinStore.SaveCoinPrices(ctx, rows); err != nil {
		return s.fail(ctx, logger, "coin_snapshot", runID, bucket, fmt.Errorf("persist coin snapshot: %w", err))
	}

	logger.Info().Int("rows", len(rows)).Dur("duration", time.Since(start)).Msg("coin snapshot completed")
	return nil
}

// RunStockSnapshot 执行一次股票快照管道。
func (s *Service) RunStockSnapshot(ctx context.Context, bucket time.Time) error {
	runID := uuid.NewString()
	logger := s.logger.With().Str("job", "stock_snapshot").Str("run_id", runID).Logger()
	start := time.Now()
	logger.Info().Time("bucket", bucket).Msg("stock snapshot started")

	rows, err := s.stocks.Transform(ctx)
	if err != nil {
		return s.fail(ctx, logger, "stock_snapshot", runID, bucket, fmt.Errorf("transform stock snapshot: %w", err))
	}
	if len(rows) == 0 {
		logger.Warn().Msg("stock snapshot produced no rows, nothing persisted")
		return nil
	}

	if err := s.stockStore.SaveStockPrices(ctx, rows); err != nil {
		return s.fail(ctx, logger, "stock_snapshot", runID, bucket, fmt.Errorf("persist stock snapshot: %w", err))
	}

	logger.Info().Int("rows", len(rows)).Dur("duration", time.Since(start)).Msg("stock snapshot completed")
	return nil
}

// RunPricePrediction 执行一次预测管道并整表替换 predictions_t。
func (s *Service) RunPricePrediction(ctx context.Context, bucket time.Time) error {
	runID := uuid.NewString()
	logger := s.logger.With().Str("job", "price_prediction").Str("run_id", runID).Logger()
	start := time.Now()
	logger.Info().Time("bucket", bucket).Msg("price prediction started")

	rows, err := s.predictions.Transform(ctx)
	if err != nil {
		return s.fail(ctx, logger, "price_prediction", runID, bucket, fmt.Errorf("transform predictions: %w", err))
	}
	if len(rows) == 0 {
		logger.Warn().Msg("no forecasts produced, predictions table left untouched")
		return nil
	}

	if err := s.predStore.ReplacePredictions(ctx, rows); err != nil {
		return s.fail(ctx, logger, "price_prediction", runID, bucket, fmt.Errorf("persist predictions: %w", err))
	}

	logger.Info().Int("rows", len(rows)).Dur("duration", time.Since(start)).Msg("price prediction completed")
	return nil
}

// Forecast computes the forecast set without touching the database.
func (s *Service) Forecast(ctx context.Context) ([]model.Prediction, error) {
	return s.predictions.Transform(ctx)
}

func (s *Service) fail(ctx context.Context, logger zerolog.Logger, job, runID string, bucket time.Time, err error) error {
	logger.Error().Err(err).Msg("pipeline run failed")

	if s.alertsOn && s.notifier != nil {
		note := alerting.Notification{
			Job:    job,
			RunID:  runID,
			Bucket: bucket,
			Err:    err,
		}
		if notifyErr := s.notifier.Notify(ctx, note); notifyErr != nil {
			logger.Error().Err(notifyErr).Msg("failed to dispatch alert")
		}
	}
	return err
}
