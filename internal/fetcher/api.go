package fetcher

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// APIOptions parameterise a remote JSON endpoint.
type APIOptions struct {
	URL        string
	Method     string
	Headers    map[string]string
	Params     map[string]string
	Timeout    time.Duration
	RetryWait  time.Duration
	MaxRetries int
}

// API issues JSON requests against one endpoint. Transport and server
// errors are logged and degrade to an empty payload; only rate limiting is
// retried, with a budget scoped to the individual call.
type API struct {
	opts   APIOptions
	logger zerolog.Logger
	client *http.Client
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewAPI constructs an API fetcher.
func NewAPI(opts APIOptions, logger zerolog.Logger) *API {
	if opts.Method == "" {
		opts.Method = http.MethodGet
	}
	opts.Method = strings.ToUpper(opts.Method)

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = 30 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}

	return &API{
		opts:   opts,
		logger: logger.With().Str("component", "api_fetcher").Logger(),
		client: &http.Client{Timeout: timeout},
		sleep:  sleepContext,
	}
}

// Fetch retrieves the configured endpoint.
func (a *API) Fetch(ctx context.Context) (json.RawMessage, error) {
	return a.FetchURL(ctx, a.opts.URL)
}

// FetchURL retrieves url with the configured method, headers and params.
func (a *API) FetchURL(ctx context.Context, url string) (json.RawMessage, error) {
	for retries := 0; retries < a.opts.MaxRetries; {
		payload, status, err := a.doRequest(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			a.logger.Error().Err(err).Str("url", url).Msg("request failed")
			return nil, nil
		}

		if status == http.StatusTooManyRequests {
			a.logger.Warn().
				Str("url", url).
				Dur("wait", a.opts.RetryWait).
				Msg("rate limit exceeded, backing off")
			if err := a.sleep(ctx, a.opts.RetryWait); err != nil {
				return nil, err
			}
			retries++
			continue
		}

		if status < 200 || status >= 300 {
			a.logger.Error().Int("status", status).Str("url", url).Msg("http error fetching data")
			return nil, nil
		}

		return payload, nil
	}

	a.logger.Warn().Str("url", url).Int("retries", a.opts.MaxRetries).Msg("rate limit retry budget exhausted")
	return nil, nil
}

func (a *API) doRequest(ctx context.Context, url string) (json.RawMessage, int, error) {
	req, err := http.NewRequestWithContext(ctx, a.opts.Method, url, nil)
	if err != nil {
		return nil, 0, err
	}

	if len(a.opts.Params) > 0 {
		query := req.URL.Query()
		for key, value := range a.opts.Params {
			query.Set(key, value)
		}
		req.URL.RawQuery = query.Encode()
	}

	req.Header.Set("Accept", "application/json")
	for key, value := range a.opts.Headers {
		req.Header.Set(key, value)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}

	return payload, resp.StatusCode, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ JSONFetcher = (*API)(nil)
