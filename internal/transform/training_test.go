package transform

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"marketdw/internal/fetcher"
)

type stubHistory struct {
	rows    []fetcher.HistoryRow
	symbols []string
	years   int
}

func (s *stubHistory) FetchHistory(ctx context.Context, symbols []string, years int) ([]fetcher.HistoryRow, error) {
	s.symbols = symbols
	s.years = years
	return s.rows, nil
}

type stubSymbolHistory struct {
	payloads map[string]string
}

func (s stubSymbolHistory) FetchSymbol(ctx context.Context, uuid string) (json.RawMessage, error) {
	payload, ok := s.payloads[uuid]
	if !ok {
		return nil, nil
	}
	return json.RawMessage(payload), nil
}

func TestStockTrainingShape(t *testing.T) {
	ts := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	history := &stubHistory{rows: []fetcher.HistoryRow{
		{Symbol: "AAPL", Timestamp: ts, Open: 1, High: 2, Low: 0.5, Close: 190.12},
		{Symbol: "MSFT", Timestamp: ts.AddDate(0, 0, 1), Open: 1, High: 2, Low: 0.5, Close: 330.10},
	}}

	transformer := NewStockTraining(stubTable{table: topStocksTable()}, history,
		StockTrainingOptions{LookbackYears: 2, StocksToTrain: 3}, zerolog.Nop())

	points, err := transformer.Transform(context.Background())
	if err != nil {
		t.Fatalf("Transform 不应报错: %v", err)
	}

	// Symbols are taken in scrape order, not by market cap.
	if len(history.symbols) != 3 || history.symbols[0] != "MSFT" || history.symbols[1] != "AAPL" {
		t.Fatalf("应按抓取顺序取前 3 个 symbol, 实际 %v", history.symbols)
	}
	if history.years != 2 {
		t.Fatalf("回溯年数应传递给 history source, 实际 %d", history.years)
	}

	if len(points) != 2 {
		t.Fatalf("应产出 2 行, 实际 %d", len(points))
	}
	point := points[0]
	if point.Entity != "AAPL" || point.Price != 190.12 {
		t.Fatalf("实体与价格映射不正确: %+v", point)
	}
	if point.Year != 2025 || point.Month != 3 || point.Day != 10 {
		t.Fatalf("年月日应来自时间戳: %+v", point)
	}
}

func TestStockTrainingEmptyScrape(t *testing.T) {
	history := &stubHistory{}
	transformer := NewStockTraining(stubTable{}, history,
		StockTrainingOptions{}, zerolog.Nop())

	points, err := transformer.Transform(context.Background())
	if err != nil {
		t.Fatalf("空抓取不应报错: %v", err)
	}
	if points != nil {
		t.Fatalf("空抓取应产出空数据集, 实际 %d 行", len(points))
	}
}

func TestCoinTrainingTagsEntities(t *testing.T) {
	uuids := stubJSON{payload: json.RawMessage(`{"data":{"coins":[{"uuid":"btc-uuid"},{"uuid":"eth-uuid"},{"uuid":"dead-uuid"}]}}`)}
	epoch := time.Date(2025, time.January, 2, 12, 0, 0, 0, time.UTC).Unix()
	history := stubSymbolHistory{payloads: map[string]string{
		"btc-uuid": `{"data":{"history":[{"price":"42000.5","timestamp":` + itoa(epoch) + `},{"price":"invalid","timestamp":` + itoa(epoch) + `}]}}`,
		"eth-uuid": `{"data":{"history":[{"price":"2200.1","timestamp":` + itoa(epoch) + `}]}}`,
	}}

	transformer := NewCoinTraining(uuids, history, fixedDeriver(),
		CoinTrainingOptions{LookbackYears: 1}, zerolog.Nop())

	points, err := transformer.Transform(context.Background())
	if err != nil {
		t.Fatalf("Transform 不应报错: %v", err)
	}
	// dead-uuid returns nothing and is skipped; the invalid price row shrinks btc to 1.
	if len(points) != 2 {
		t.Fatalf("应产出 2 行, 实际 %d", len(points))
	}
	if points[0].Entity != "btc-uuid" || points[1].Entity != "eth-uuid" {
		t.Fatalf("行应以 uuid 作为实体标记: %+v", points)
	}
	if points[0].Year != 2025 || points[0].Month != 1 || points[0].Day != 2 {
		t.Fatalf("年月日应来自重建时间戳: %+v", points[0])
	}
}

func TestTrainingSetConcatAndFilter(t *testing.T) {
	uuids := stubJSON{payload: json.RawMessage(`{"data":{"coins":[{"uuid":"btc-uuid"}]}}`)}
	epoch := time.Date(2025, time.January, 2, 12, 0, 0, 0, time.UTC).Unix()
	coinHistory := stubSymbolHistory{payloads: map[string]string{
		"btc-uuid": `{"data":{"history":[{"price":"42000.5","timestamp":` + itoa(epoch) + `}]}}`,
	}}
	coins := NewCoinTraining(uuids, coinHistory, fixedDeriver(), CoinTrainingOptions{}, zerolog.Nop())

	stockHistory := &stubHistory{rows: []fetcher.HistoryRow{
		{Symbol: "AAPL", Timestamp: time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC), Close: 190.12},
	}}
	stocks := NewStockTraining(stubTable{table: topStocksTable()}, stockHistory, StockTrainingOptions{}, zerolog.Nop())

	combined := NewTrainingSet(coins, stocks, zerolog.Nop())
	points, err := combined.Transform(context.Background())
	if err != nil {
		t.Fatalf("Transform 不应报错: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("应拼接 2 行, 实际 %d", len(points))
	}
	// Coin rows come first, as the coin frame is transformed first.
	if points[0].Entity != "btc-uuid" || points[1].Entity != "AAPL" {
		t.Fatalf("拼接顺序不正确: %+v", points)
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
