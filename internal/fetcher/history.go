package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// HistoryRow is one daily OHLC observation of a symbol.
type HistoryRow struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
}

// DailyHistoryOptions parameterise the bulk history provider.
type DailyHistoryOptions struct {
	BaseURL string
	Timeout time.Duration
}

// DailyHistory fetches per-symbol daily price series from the chart API
// and concatenates them. Symbols without data are skipped.
type DailyHistory struct {
	opts   DailyHistoryOptions
	logger zerolog.Logger
	client *http.Client
	now    func() time.Time
}

// NewDailyHistory constructs a bulk history fetcher.
func NewDailyHistory(opts DailyHistoryOptions, logger zerolog.Logger) *DailyHistory {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://query1.finance.yahoo.com"
	}
	opts.BaseURL = baseURL

	return &DailyHistory{
		opts:   opts,
		logger: logger.With().Str("component", "history_fetcher").Logger(),
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

// FetchHistory pulls each symbol's daily series over the past years and
// tags every row with its symbol.
func (d *DailyHistory) FetchHistory(ctx context.Context, symbols []string, years int) ([]HistoryRow, error) {
	if years <= 0 {
		years = 1
	}
	end := d.now().UTC()
	start := end.AddDate(-years, 0, 0)

	var rows []HistoryRow
	for _, symbol := range symbols {
		symbolRows, err := d.fetchSymbol(ctx, symbol, start, end)
		if err != nil {
			return nil, err
		}
		if len(symbolRows) == 0 {
			d.logger.Warn().Str("symbol", symbol).Msg("no history returned, skipping symbol")
			continue
		}
		rows = append(rows, symbolRows...)
	}
	return rows, nil
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open  []*float64 `json:"open"`
					High  []*float64 `json:"high"`
					Low   []*float64 `json:"low"`
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
	} `json:"chart"`
}

func (d *DailyHistory) fetchSymbol(ctx context.Context, symbol string, start, end time.Time) ([]HistoryRow, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=1d",
		d.opts.BaseURL, url.PathEscape(symbol), start.Unix(), end.Unix())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		d.logger.Error().Err(err).Str("symbol", symbol).Msg("history request failed")
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		d.logger.Error().Int("status", resp.StatusCode).Str("symbol", symbol).Msg("history http error")
		return nil, nil
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		d.logger.Error().Err(err).Str("symbol", symbol).Msg("read history body failed")
		return nil, nil
	}

	var parsed chartResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		d.logger.Error().Err(err).Str("symbol", symbol).Msg("decode history payload failed")
		return nil, nil
	}
	if len(parsed.Chart.Result) == 0 || len(parsed.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}

	result := parsed.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	rows := make([]HistoryRow, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		open := at(quote.Open, i)
		high := at(quote.High, i)
		low := at(quote.Low, i)
		closePrice := at(quote.Close, i)
		if open == nil || high == nil || low == nil || closePrice == nil {
			continue
		}
		rows = append(rows, HistoryRow{
			Symbol:    symbol,
			Timestamp: time.Unix(ts, 0).UTC(),
			Open:      *open,
			High:      *high,
			Low:       *low,
			Close:     *closePrice,
		})
	}
	return rows, nil
}

func at(values []*float64, i int) *float64 {
	if i < 0 || i >= len(values) {
		return nil
	}
	return values[i]
}

var _ HistoryFetcher = (*DailyHistory)(nil)
