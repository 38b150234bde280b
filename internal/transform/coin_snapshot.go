package transform

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"marketdw/internal/dimension"
	"marketdw/internal/fetcher"
	"marketdw/internal/model"
)

// CoinSnapshotOptions tune the daily coin pipeline.
type CoinSnapshotOptions struct {
	CoinsToHold int
}

// CoinSnapshot turns a coin ranking payload into dimensionally-keyed
// coin price rows.
type CoinSnapshot struct {
	source  fetcher.JSONFetcher
	deriver dimension.Deriver
	opts    CoinSnapshotOptions
	logger  zerolog.Logger
}

// NewCoinSnapshot constructs the coin snapshot transformer.
func NewCoinSnapshot(source fetcher.JSONFetcher, deriver dimension.Deriver, opts CoinSnapshotOptions, logger zerolog.Logger) *CoinSnapshot {
	if opts.CoinsToHold <= 0 {
		opts.CoinsToHold = 5
	}
	return &CoinSnapshot{
		source:  source,
		deriver: deriver,
		opts:    opts,
		logger:  logger.With().Str("component", "coin_snapshot").Logger(),
	}
}

type rankingPayload struct {
	Data struct {
		Coins []struct {
			UUID    string `json:"uuid"`
			Symbol  string `json:"symbol"`
			Name    string `json:"name"`
			IconURL string `json:"iconUrl"`
			Price   string `json:"price"`
			Change  string `json:"change"`
			Rank    int    `json:"rank"`
		} `json:"coins"`
	} `json:"data"`
}

// Transform fetches the ranking, keeps the configured head, coerces price
// and change to two-decimal floats, and stamps the current time and date.
func (t *CoinSnapshot) Transform(ctx context.Context) ([]model.CoinPrice, error) {
	payload, err := t.source.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		t.logger.Warn().Msg("ranking source returned no data")
		return nil, nil
	}

	var ranking rankingPayload
	if err := json.Unmarshal(payload, &ranking); err != nil {
		return nil, fmt.Errorf("decode ranking payload: %w", err)
	}

	coins := ranking.Data.Coins
	if len(coins) > t.opts.CoinsToHold {
		coins = coins[:t.opts.CoinsToHold]
	}

	timeParts := t.deriver.TimeParts(zeroTime)
	dateParts := t.deriver.DateParts(zeroTime)

	rows := make([]model.CoinPrice, 0, len(coins))
	for _, coin := range coins {
		price, err := roundTo2(coin.Price)
		if err != nil {
			return nil, fmt.Errorf("parse price for %s: %w", coin.UUID, err)
		}
		change, err := roundTo2(coin.Change)
		if err != nil {
			return nil, fmt.Errorf("parse change for %s: %w", coin.UUID, err)
		}

		rows = append(rows, model.CoinPrice{
			UUID:    coin.UUID,
			Name:    coin.Name,
			Symbol:  coin.Symbol,
			IconURL: coin.IconURL,
			Price:   price,
			Change:  change,
			Rank:    coin.Rank,
			Time:    timeParts,
			Date:    dateParts,
		})
	}

	t.logger.Info().Int("rows", len(rows)).Msg("coin snapshot transformed")
	return rows, nil
}
