package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func chartPayload(timestamps []int64, closes []string) string {
	ts := make([]string, len(timestamps))
	for i, v := range timestamps {
		ts[i] = fmt.Sprintf("%d", v)
	}
	quote := fmt.Sprintf(`{"open":[%[1]s],"high":[%[1]s],"low":[%[1]s],"close":[%[1]s]}`, strings.Join(closes, ","))
	return fmt.Sprintf(`{"chart":{"result":[{"timestamp":[%s],"indicators":{"quote":[%s]}}]}}`,
		strings.Join(ts, ","), quote)
}

func TestDailyHistoryConcatenatesSymbols(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "AAPL"):
			_, _ = w.Write([]byte(chartPayload([]int64{1700000000, 1700086400}, []string{"190.1", "191.2"})))
		case strings.Contains(r.URL.Path, "MSFT"):
			_, _ = w.Write([]byte(chartPayload([]int64{1700000000}, []string{"330.5"})))
		default:
			_, _ = w.Write([]byte(`{"chart":{"result":[]}}`))
		}
	}))
	defer srv.Close()

	history := NewDailyHistory(DailyHistoryOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())

	rows, err := history.FetchHistory(context.Background(), []string{"AAPL", "MSFT", "EMPTY"}, 1)
	if err != nil {
		t.Fatalf("FetchHistory 不应报错: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("应拼接 3 行, 实际 %d", len(rows))
	}
	if rows[0].Symbol != "AAPL" || rows[2].Symbol != "MSFT" {
		t.Fatalf("行应按 symbol 标记: %+v", rows)
	}
	if rows[2].Close != 330.5 {
		t.Fatalf("收盘价解析不正确: %v", rows[2].Close)
	}
}

func TestDailyHistorySkipsNullBars(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := `{"chart":{"result":[{"timestamp":[1700000000,1700086400],` +
			`"indicators":{"quote":[{"open":[1.0,null],"high":[1.0,null],"low":[1.0,null],"close":[1.0,null]}]}}]}}`
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()

	history := NewDailyHistory(DailyHistoryOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())

	rows, err := history.FetchHistory(context.Background(), []string{"AAPL"}, 1)
	if err != nil {
		t.Fatalf("FetchHistory 不应报错: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("null K 线应被跳过, 实际 %d 行", len(rows))
	}
}

func TestDailyHistoryAllSymbolsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	history := NewDailyHistory(DailyHistoryOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())

	rows, err := history.FetchHistory(context.Background(), []string{"AAPL", "MSFT"}, 1)
	if err != nil {
		t.Fatalf("全部为空不应报错: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("应返回空帧, 实际 %d 行", len(rows))
	}
}
