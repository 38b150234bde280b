package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

// silenceSleep replaces the backoff sleep with a counter.
func silenceSleep(api *API, count *int) {
	api.sleep = func(ctx context.Context, d time.Duration) error {
		*count++
		return nil
	}
}

func TestAPIFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "5" {
			t.Fatalf("查询参数应包含 limit=5, 实际 %s", r.URL.RawQuery)
		}
		if r.Header.Get("X-Api-Key") != "secret" {
			t.Fatalf("请求头应包含 X-Api-Key")
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "success"})
	}))
	defer srv.Close()

	api := NewAPI(APIOptions{
		URL:     srv.URL,
		Headers: map[string]string{"X-Api-Key": "secret"},
		Params:  map[string]string{"limit": "5"},
		Timeout: time.Second,
	}, noopLogger())

	payload, err := api.Fetch(context.Background())
	if err != nil {
		t.Fatalf("成功响应不应报错: %v", err)
	}
	if len(payload) == 0 {
		t.Fatal("应返回响应体")
	}
}

func TestAPIFetchServerErrorDegradesToEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	api := NewAPI(APIOptions{URL: srv.URL, Timeout: time.Second}, noopLogger())

	payload, err := api.Fetch(context.Background())
	if err != nil {
		t.Fatalf("HTTP 500 不应返回错误: %v", err)
	}
	if payload != nil {
		t.Fatalf("HTTP 500 应降级为空结果, 实际 %q", payload)
	}
}

func TestAPIFetchTransportErrorDegradesToEmpty(t *testing.T) {
	api := NewAPI(APIOptions{URL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond}, noopLogger())

	payload, err := api.Fetch(context.Background())
	if err != nil {
		t.Fatalf("传输错误不应上抛: %v", err)
	}
	if payload != nil {
		t.Fatal("传输错误应降级为空结果")
	}
}

func TestAPIFetchRateLimitBackoff(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	api := NewAPI(APIOptions{URL: srv.URL, MaxRetries: 3, Timeout: time.Second}, noopLogger())
	sleeps := 0
	silenceSleep(api, &sleeps)

	payload, err := api.Fetch(context.Background())
	if err != nil {
		t.Fatalf("限流耗尽重试不应报错: %v", err)
	}
	if payload != nil {
		t.Fatal("限流耗尽重试应返回空结果")
	}
	if sleeps != 3 {
		t.Fatalf("应恰好退避 3 次, 实际 %d", sleeps)
	}
	if got := atomic.LoadInt32(&requests); got != 3 {
		t.Fatalf("应恰好请求 3 次, 实际 %d", got)
	}
}

func TestAPIFetchRateLimitBudgetPerCall(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	api := NewAPI(APIOptions{URL: srv.URL, MaxRetries: 2, Timeout: time.Second}, noopLogger())
	sleeps := 0
	silenceSleep(api, &sleeps)

	// Two independent calls each get a fresh budget.
	_, _ = api.Fetch(context.Background())
	_, _ = api.Fetch(context.Background())

	if sleeps != 4 {
		t.Fatalf("两次调用应各自退避 2 次, 实际共 %d", sleeps)
	}
}

func TestAPIFetchRateLimitThenSuccess(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "success"})
	}))
	defer srv.Close()

	api := NewAPI(APIOptions{URL: srv.URL, MaxRetries: 3, Timeout: time.Second}, noopLogger())
	sleeps := 0
	silenceSleep(api, &sleeps)

	payload, err := api.Fetch(context.Background())
	if err != nil {
		t.Fatalf("限流后恢复不应报错: %v", err)
	}
	if len(payload) == 0 {
		t.Fatal("恢复后应返回响应体")
	}
	if sleeps != 1 {
		t.Fatalf("应退避 1 次, 实际 %d", sleeps)
	}
}

func TestCompanyInfoUnwrapsFirstElement(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/profile/AAPL" {
			t.Fatalf("symbol 占位符应被替换, 实际路径 %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`[{"symbol":"AAPL","companyName":"Apple Inc."}]`))
	}))
	defer srv.Close()

	info := NewCompanyInfo(APIOptions{URL: srv.URL + "/profile/<symbol>", Timeout: time.Second}, noopLogger())

	payload, err := info.FetchSymbol(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("FetchSymbol 不应报错: %v", err)
	}

	var decoded map[string]string
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("应返回数组首个元素: %v", err)
	}
	if decoded["companyName"] != "Apple Inc." {
		t.Fatalf("解包结果不正确: %#v", decoded)
	}
}

func TestCompanyInfoEmptyArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	info := NewCompanyInfo(APIOptions{URL: srv.URL + "/profile/<symbol>", Timeout: time.Second}, noopLogger())

	payload, err := info.FetchSymbol(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("空数组不应报错: %v", err)
	}
	if payload != nil {
		t.Fatal("空数组应返回空结果")
	}
}

func TestCoinHistoryReplacesUUID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coin/Qwsogvtv82FCd/history" {
			t.Fatalf("uuid 占位符应被替换, 实际路径 %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"status":"success"}`))
	}))
	defer srv.Close()

	history := NewCoinHistory(APIOptions{URL: srv.URL + "/coin/<uuid>/history", Timeout: time.Second}, noopLogger())

	payload, err := history.FetchSymbol(context.Background(), "Qwsogvtv82FCd")
	if err != nil {
		t.Fatalf("FetchSymbol 不应报错: %v", err)
	}
	if len(payload) == 0 {
		t.Fatal("应返回响应体")
	}
}
