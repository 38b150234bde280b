package transform

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"marketdw/internal/dimension"
	"marketdw/internal/fetcher"
	"marketdw/internal/model"
)

// Placeholder for M-suffixed revenue values.
// TODO: parse the magnitude and divide by 1000 instead of this constant.
const millionRevenuePlaceholder = "39.48"

// StockSnapshotOptions tune the daily stock pipeline.
type StockSnapshotOptions struct {
	StocksToFetch int
}

// StockSnapshot scrapes the top-stocks table, selects the largest symbols
// by market capitalization, and merges per-symbol company info and quotes
// into dimensionally-keyed stock price rows.
type StockSnapshot struct {
	scraper fetcher.TableFetcher
	info    fetcher.SymbolFetcher
	quote   fetcher.SymbolFetcher
	deriver dimension.Deriver
	opts    StockSnapshotOptions
	logger  zerolog.Logger
}

// NewStockSnapshot constructs the stock snapshot transformer.
func NewStockSnapshot(scraper fetcher.TableFetcher, info, quote fetcher.SymbolFetcher, deriver dimension.Deriver, opts StockSnapshotOptions, logger zerolog.Logger) *StockSnapshot {
	if opts.StocksToFetch <= 0 {
		opts.StocksToFetch = 5
	}
	return &StockSnapshot{
		scraper: scraper,
		info:    info,
		quote:   quote,
		deriver: deriver,
		opts:    opts,
		logger:  logger.With().Str("component", "stock_snapshot").Logger(),
	}
}

type companyInfoPayload struct {
	Symbol      string `json:"symbol"`
	CompanyName string `json:"companyName"`
	Exchange    string `json:"exchangeShortName"`
	Image       string `json:"image"`
	Industry    string `json:"industry"`
}

type quotePayload struct {
	Current   float64 `json:"c"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Open      float64 `json:"o"`
	Timestamp int64   `json:"t"`
}

// Transform produces one row per selected symbol with both responses
// present; symbols missing either response are dropped.
func (t *StockSnapshot) Transform(ctx context.Context) ([]model.StockPrice, error) {
	table, err := t.scraper.FetchTable(ctx)
	if err != nil {
		return nil, err
	}
	if table.Empty() {
		t.logger.Warn().Msg("top stocks table empty")
		return nil, nil
	}

	symbols := t.topSymbols(table)

	rows := make([]model.StockPrice, 0, len(symbols))
	for _, symbol := range symbols {
		infoPayload, err := t.info.FetchSymbol(ctx, symbol)
		if err != nil {
			return nil, err
		}
		quotePayload, err := t.quote.FetchSymbol(ctx, symbol)
		if err != nil {
			return nil, err
		}
		if len(infoPayload) == 0 || len(quotePayload) == 0 {
			t.logger.Warn().Str("symbol", symbol).Msg("incomplete responses, dropping symbol")
			continue
		}

		row, err := t.buildRow(symbol, infoPayload, quotePayload)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	t.logger.Info().Int("rows", len(rows)).Msg("stock snapshot transformed")
	return rows, nil
}

func (t *StockSnapshot) buildRow(symbol string, infoRaw, quoteRaw json.RawMessage) (model.StockPrice, error) {
	var info companyInfoPayload
	if err := json.Unmarshal(infoRaw, &info); err != nil {
		return model.StockPrice{}, fmt.Errorf("decode company info for %s: %w", symbol, err)
	}
	var quote quotePayload
	if err := json.Unmarshal(quoteRaw, &quote); err != nil {
		return model.StockPrice{}, fmt.Errorf("decode quote for %s: %w", symbol, err)
	}

	observed := time.Unix(quote.Timestamp, 0).In(t.deriver.Location())

	return model.StockPrice{
		Symbol:      info.Symbol,
		CompanyName: info.CompanyName,
		IconURL:     info.Image,
		Exchange:    info.Exchange,
		Industry:    info.Industry,
		Open:        quote.Open,
		High:        quote.High,
		Low:         quote.Low,
		Close:       quote.Current,
		Time:        t.deriver.TimeParts(observed),
		Date:        t.deriver.DateParts(observed),
	}, nil
}

type rankedStock struct {
	symbol    string
	marketCap float64
}

// topSymbols cleans the scraped numeric columns, sorts by market cap
// descending, and returns the configured head of symbols.
func (t *StockSnapshot) topSymbols(table fetcher.Table) []string {
	ranked := make([]rankedStock, 0, len(table.Rows))
	for i := range table.Rows {
		symbol := table.Cell(i, "Symbol")
		if symbol == "" {
			continue
		}

		capValue, ok := cleanScrapedNumber(table.Cell(i, "Market Cap"), false)
		if !ok {
			t.logger.Warn().Str("symbol", symbol).Msg("unparsable market cap, dropping row")
			continue
		}
		if _, ok := cleanScrapedNumber(table.Cell(i, "Stock Price"), false); !ok {
			t.logger.Warn().Str("symbol", symbol).Msg("unparsable stock price, dropping row")
			continue
		}
		if _, ok := cleanScrapedNumber(table.Cell(i, "Revenue"), true); !ok {
			t.logger.Warn().Str("symbol", symbol).Msg("unparsable revenue, dropping row")
			continue
		}
		_ = cleanPercent(table.Cell(i, "% Change"))

		ranked = append(ranked, rankedStock{symbol: symbol, marketCap: capValue})
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].marketCap > ranked[j].marketCap })

	count := t.opts.StocksToFetch
	if count > len(ranked) {
		count = len(ranked)
	}
	symbols := make([]string, count)
	for i := 0; i < count; i++ {
		symbols[i] = ranked[i].symbol
	}
	return symbols
}

// cleanScrapedNumber normalizes a human-formatted cell: thousands
// separators and the B-for-billions suffix are stripped. When revenue is
// true, a literal "-" maps to zero and M-suffixed values collapse to the
// placeholder constant.
func cleanScrapedNumber(value string, revenue bool) (float64, bool) {
	cleaned := stripThousands(strings.TrimSpace(value))
	cleaned = strings.TrimSuffix(cleaned, "B")
	if revenue {
		if cleaned == "-" {
			cleaned = "0"
		}
		if strings.HasSuffix(cleaned, "M") {
			cleaned = millionRevenuePlaceholder
		}
	}

	parsed, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, false
	}
	return parsed.InexactFloat64(), true
}
