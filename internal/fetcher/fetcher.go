package fetcher

import (
	"context"
	"encoding/json"
)

// JSONFetcher retrieves a raw JSON payload from a fixed remote endpoint.
// Ordinary remote failures degrade to an empty payload, not an error.
type JSONFetcher interface {
	Fetch(ctx context.Context) (json.RawMessage, error)
}

// SymbolFetcher retrieves a JSON payload for one entity identifier.
type SymbolFetcher interface {
	FetchSymbol(ctx context.Context, symbol string) (json.RawMessage, error)
}

// TableFetcher extracts the first HTML table of a page.
type TableFetcher interface {
	FetchTable(ctx context.Context) (Table, error)
}

// HistoryFetcher pulls per-symbol daily price series over a lookback window.
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, symbols []string, years int) ([]HistoryRow, error)
}
