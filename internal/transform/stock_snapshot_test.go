package transform

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"marketdw/internal/fetcher"
)

type stubTable struct {
	table fetcher.Table
}

func (s stubTable) FetchTable(ctx context.Context) (fetcher.Table, error) {
	return s.table, nil
}

type stubSymbol struct {
	payloads map[string]string
	calls    []string
}

func (s *stubSymbol) FetchSymbol(ctx context.Context, symbol string) (json.RawMessage, error) {
	s.calls = append(s.calls, symbol)
	payload, ok := s.payloads[symbol]
	if !ok {
		return nil, nil
	}
	return json.RawMessage(payload), nil
}

func topStocksTable() fetcher.Table {
	return fetcher.Table{
		Headers: []string{"No.", "Symbol", "Market Cap", "Stock Price", "% Change", "Revenue"},
		Rows: [][]string{
			{"1", "MSFT", "2,800B", "330.10", "-0.40%", "211.92B"},
			{"2", "AAPL", "2,900B", "190.12", "1.25%", "383.93B"},
			{"3", "NVDA", "1,100B", "450.00", "2.10%", "44.87M"},
			{"4", "TSLA", "800B", "250.55", "-", "-"},
		},
	}
}

func infoJSON(symbol string) string {
	return fmt.Sprintf(`{"symbol":%q,"companyName":"%s Inc.","exchangeShortName":"NASDAQ","image":"https://icons/%s.png","industry":"Tech"}`, symbol, symbol, symbol)
}

func quoteJSON(epoch int64) string {
	return fmt.Sprintf(`{"c":101.5,"h":102.0,"l":99.0,"o":100.0,"t":%d}`, epoch)
}

func TestStockSnapshotSortsAndMerges(t *testing.T) {
	epoch := time.Date(2025, time.August, 31, 14, 45, 0, 0, time.UTC).Unix()
	info := &stubSymbol{payloads: map[string]string{
		"AAPL": infoJSON("AAPL"),
		"MSFT": infoJSON("MSFT"),
	}}
	quote := &stubSymbol{payloads: map[string]string{
		"AAPL": quoteJSON(epoch),
		"MSFT": quoteJSON(epoch),
	}}

	transformer := NewStockSnapshot(stubTable{table: topStocksTable()}, info, quote,
		fixedDeriver(), StockSnapshotOptions{StocksToFetch: 2}, zerolog.Nop())

	rows, err := transformer.Transform(context.Background())
	if err != nil {
		t.Fatalf("Transform 不应报错: %v", err)
	}

	// Market cap descending: AAPL (2900) before MSFT (2800).
	if len(info.calls) != 2 || info.calls[0] != "AAPL" || info.calls[1] != "MSFT" {
		t.Fatalf("应按市值降序选取前 2 个 symbol, 实际 %v", info.calls)
	}
	if len(rows) != 2 {
		t.Fatalf("应产出 2 行, 实际 %d", len(rows))
	}

	row := rows[0]
	if row.Symbol != "AAPL" || row.CompanyName != "AAPL Inc." || row.Exchange != "NASDAQ" {
		t.Fatalf("company info 合并不正确: %+v", row)
	}
	if row.Open != 100.0 || row.High != 102.0 || row.Low != 99.0 || row.Close != 101.5 {
		t.Fatalf("quote 合并不正确: %+v", row)
	}
	if row.Time.Hour != 14 || row.Time.Minute != 45 {
		t.Fatalf("epoch 时间戳应换算为日历时刻: %+v", row.Time)
	}
	if row.Date.Day != 31 || row.Date.Month != 8 {
		t.Fatalf("日期维度应来自报价时间戳: %+v", row.Date)
	}
}

func TestStockSnapshotDropsIncompleteSymbols(t *testing.T) {
	epoch := time.Now().Unix()
	info := &stubSymbol{payloads: map[string]string{
		"AAPL": infoJSON("AAPL"),
		"MSFT": infoJSON("MSFT"),
	}}
	// MSFT has no quote response.
	quote := &stubSymbol{payloads: map[string]string{
		"AAPL": quoteJSON(epoch),
	}}

	transformer := NewStockSnapshot(stubTable{table: topStocksTable()}, info, quote,
		fixedDeriver(), StockSnapshotOptions{StocksToFetch: 2}, zerolog.Nop())

	rows, err := transformer.Transform(context.Background())
	if err != nil {
		t.Fatalf("Transform 不应报错: %v", err)
	}
	if len(rows) != 1 || rows[0].Symbol != "AAPL" {
		t.Fatalf("缺失响应的 symbol 应被丢弃: %+v", rows)
	}
}

func TestStockSnapshotEmptyScrape(t *testing.T) {
	info := &stubSymbol{}
	quote := &stubSymbol{}
	transformer := NewStockSnapshot(stubTable{}, info, quote,
		fixedDeriver(), StockSnapshotOptions{StocksToFetch: 2}, zerolog.Nop())

	rows, err := transformer.Transform(context.Background())
	if err != nil {
		t.Fatalf("空抓取不应报错: %v", err)
	}
	if rows != nil {
		t.Fatalf("空抓取应产出空数据集, 实际 %d 行", len(rows))
	}
	if len(info.calls) != 0 {
		t.Fatal("空抓取不应触发 API 调用")
	}
}

func TestCleanPercent(t *testing.T) {
	if got := cleanPercent("12.5%"); got != 12.5 {
		t.Fatalf(`"12.5%%" 应解析为 12.5, 实际 %v`, got)
	}
	if got := cleanPercent("-0.40%"); got != -0.4 {
		t.Fatalf(`"-0.40%%" 应解析为 -0.4, 实际 %v`, got)
	}
	if got := cleanPercent("-"); got != 0 {
		t.Fatalf(`无法解析的值应取 0, 实际 %v`, got)
	}
}

func TestCleanScrapedNumber(t *testing.T) {
	cases := []struct {
		value   string
		revenue bool
		want    float64
		ok      bool
	}{
		{"1.2B", false, 1.2, true},
		{"2,800B", false, 2800, true},
		{"-", true, 0.0, true},
		{"44.87M", true, 39.48, true},
		{"383.93B", true, 383.93, true},
		{"garbage", false, 0, false},
	}
	for _, tc := range cases {
		got, ok := cleanScrapedNumber(tc.value, tc.revenue)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("cleanScrapedNumber(%q, %v) = (%v, %v), 期望 (%v, %v)", tc.value, tc.revenue, got, ok, tc.want, tc.ok)
		}
	}
}
