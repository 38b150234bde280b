package transform

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"marketdw/internal/dimension"
	"marketdw/internal/fetcher"
	"marketdw/internal/model"
)

// StockTrainingOptions tune the stock training-set pipeline.
type StockTrainingOptions struct {
	LookbackYears int
	StocksToTrain int
}

// StockTraining assembles the historical per-symbol price series used for
// model fitting.
type StockTraining struct {
	scraper fetcher.TableFetcher
	history fetcher.HistoryFetcher
	opts    StockTrainingOptions
	logger  zerolog.Logger
}

// NewStockTraining constructs the stock training-set transformer.
func NewStockTraining(scraper fetcher.TableFetcher, history fetcher.HistoryFetcher, opts StockTrainingOptions, logger zerolog.Logger) *StockTraining {
	if opts.LookbackYears <= 0 {
		opts.LookbackYears = 1
	}
	if opts.StocksToTrain <= 0 {
		opts.StocksToTrain = 5
	}
	return &StockTraining{
		scraper: scraper,
		history: history,
		opts:    opts,
		logger:  logger.With().Str("component", "stock_training").Logger(),
	}
}

// Transform scrapes the top-stocks table for symbols and pulls each
// symbol's daily close series over the lookback window.
func (t *StockTraining) Transform(ctx context.Context) ([]model.TrainingPoint, error) {
	table, err := t.scraper.FetchTable(ctx)
	if err != nil {
		return nil, err
	}

	var symbols []string
	for i := range table.Rows {
		if len(symbols) == t.opts.StocksToTrain {
			break
		}
		if symbol := table.Cell(i, "Symbol"); symbol != "" {
			symbols = append(symbols, symbol)
		}
	}
	if len(symbols) == 0 {
		t.logger.Warn().Msg("no symbols scraped for training")
		return nil, nil
	}

	rows, err := t.history.FetchHistory(ctx, symbols, t.opts.LookbackYears)
	if err != nil {
		return nil, err
	}

	points := make([]model.TrainingPoint, 0, len(rows))
	for _, row := range rows {
		ts := row.Timestamp
		points = append(points, model.TrainingPoint{
			Entity:   row.Symbol,
			Datetime: ts,
			Price:    row.Close,
			Year:     ts.Year(),
			Month:    int(ts.Month()),
			Day:      ts.Day(),
		})
	}

	t.logger.Info().Int("rows", len(points)).Int("symbols", len(symbols)).Msg("stock training set transformed")
	return points, nil
}

// CoinTrainingOptions tune the coin training-set pipeline.
type CoinTrainingOptions struct {
	LookbackYears int
}

// CoinTraining pulls coin identifiers and their price histories into a
// training series keyed by uuid.
type CoinTraining struct {
	uuids   fetcher.JSONFetcher
	history fetcher.SymbolFetcher
	deriver dimension.Deriver
	opts    CoinTrainingOptions
	logger  zerolog.Logger
}

// NewCoinTraining constructs the coin training-set transformer.
func NewCoinTraining(uuids fetcher.JSONFetcher, history fetcher.SymbolFetcher, deriver dimension.Deriver, opts CoinTrainingOptions, logger zerolog.Logger) *CoinTraining {
	if opts.LookbackYears <= 0 {
		opts.LookbackYears = 1
	}
	return &CoinTraining{
		uuids:   uuids,
		history: history,
		deriver: deriver,
		opts:    opts,
		logger:  logger.With().Str("component", "coin_training").Logger(),
	}
}

type coinHistoryPayload struct {
	Data struct {
		History []struct {
			Price     string `json:"price"`
			Timestamp int64  `json:"timestamp"`
		} `json:"history"`
	} `json:"data"`
}

// Transform pulls the uuid set, then each coin's price history, tagging
// every row with its uuid as the entity.
func (t *CoinTraining) Transform(ctx context.Context) ([]model.TrainingPoint, error) {
	payload, err := t.uuids.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		t.logger.Warn().Msg("uuid source returned no data")
		return nil, nil
	}

	var ranking rankingPayload
	if err := json.Unmarshal(payload, &ranking); err != nil {
		return nil, fmt.Errorf("decode uuid payload: %w", err)
	}

	var points []model.TrainingPoint
	for _, coin := range ranking.Data.Coins {
		coinPoints, err := t.coinHistory(ctx, coin.UUID)
		if err != nil {
			return nil, err
		}
		points = append(points, coinPoints...)
	}

	t.logger.Info().Int("rows", len(points)).Msg("coin training set transformed")
	return points, nil
}

func (t *CoinTraining) coinHistory(ctx context.Context, uuid string) ([]model.TrainingPoint, error) {
	payload, err := t.history.FetchSymbol(ctx, uuid)
	if err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		t.logger.Warn().Str("uuid", uuid).Msg("no history returned, skipping coin")
		return nil, nil
	}

	var parsed coinHistoryPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("decode history for %s: %w", uuid, err)
	}

	points := make([]model.TrainingPoint, 0, len(parsed.Data.History))
	for _, bar := range parsed.Data.History {
		price, err := decimal.NewFromString(bar.Price)
		if err != nil {
			// Null or malformed observations shrink the series.
			continue
		}
		ts := time.Unix(bar.Timestamp, 0).In(t.deriver.Location())
		points = append(points, model.TrainingPoint{
			Entity:   uuid,
			Datetime: ts,
			Price:    price.InexactFloat64(),
			Year:     ts.Year(),
			Month:    int(ts.Month()),
			Day:      ts.Day(),
		})
	}
	return points, nil
}

// TrainingSet concatenates the coin and stock training frames into one
// long frame keyed by entity.
type TrainingSet struct {
	coins  *CoinTraining
	stocks *StockTraining
	logger zerolog.Logger
}

// NewTrainingSet constructs the combined training-set transformer.
func NewTrainingSet(coins *CoinTraining, stocks *StockTraining, logger zerolog.Logger) *TrainingSet {
	return &TrainingSet{
		coins:  coins,
		stocks: stocks,
		logger: logger.With().Str("component", "training_set").Logger(),
	}
}

// Transform concatenates both series and drops incomplete rows.
func (t *TrainingSet) Transform(ctx context.Context) ([]model.TrainingPoint, error) {
	coinPoints, err := t.coins.Transform(ctx)
	if err != nil {
		return nil, err
	}
	stockPoints, err := t.stocks.Transform(ctx)
	if err != nil {
		return nil, err
	}

	combined := make([]model.TrainingPoint, 0, len(coinPoints)+len(stockPoints))
	for _, point := range append(coinPoints, stockPoints...) {
		if point.Entity == "" || point.Datetime.IsZero() {
			continue
		}
		combined = append(combined, point)
	}

	t.logger.Info().Int("rows", len(combined)).Msg("training set combined")
	return combined, nil
}
