package fetcher

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"
)

const (
	symbolPlaceholder = "<symbol>"
	uuidPlaceholder   = "<uuid>"
)

// CompanyInfo fetches per-symbol company profiles. The upstream responds
// with a single-element JSON array; the first element is unwrapped.
type CompanyInfo struct {
	api *API
}

// NewCompanyInfo constructs a company info fetcher.
func NewCompanyInfo(opts APIOptions, logger zerolog.Logger) *CompanyInfo {
	return &CompanyInfo{api: NewAPI(opts, logger)}
}

// FetchSymbol retrieves the profile of one stock symbol.
func (c *CompanyInfo) FetchSymbol(ctx context.Context, symbol string) (json.RawMessage, error) {
	url := strings.ReplaceAll(c.api.opts.URL, symbolPlaceholder, symbol)
	payload, err := c.api.FetchURL(ctx, url)
	if err != nil || len(payload) == 0 {
		return nil, err
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(payload, &elements); err != nil || len(elements) == 0 {
		return nil, nil
	}
	return elements[0], nil
}

// Quote fetches the real-time quote of one stock symbol.
type Quote struct {
	api *API
}

// NewQuote constructs a quote fetcher.
func NewQuote(opts APIOptions, logger zerolog.Logger) *Quote {
	return &Quote{api: NewAPI(opts, logger)}
}

// FetchSymbol retrieves the current quote of one stock symbol.
func (q *Quote) FetchSymbol(ctx context.Context, symbol string) (json.RawMessage, error) {
	url := strings.ReplaceAll(q.api.opts.URL, symbolPlaceholder, symbol)
	return q.api.FetchURL(ctx, url)
}

// CoinHistory fetches one coin's historical price series.
type CoinHistory struct {
	api *API
}

// NewCoinHistory constructs a coin history fetcher.
func NewCoinHistory(opts APIOptions, logger zerolog.Logger) *CoinHistory {
	return &CoinHistory{api: NewAPI(opts, logger)}
}

// FetchSymbol retrieves the price history of one coin uuid.
func (c *CoinHistory) FetchSymbol(ctx context.Context, uuid string) (json.RawMessage, error) {
	url := strings.ReplaceAll(c.api.opts.URL, uuidPlaceholder, uuid)
	return c.api.FetchURL(ctx, url)
}

var (
	_ SymbolFetcher = (*CompanyInfo)(nil)
	_ SymbolFetcher = (*Quote)(nil)
	_ SymbolFetcher = (*CoinHistory)(nil)
)
