package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"marketdw/internal/alerting"
	"marketdw/internal/config"
	"marketdw/internal/dimension"
	"marketdw/internal/fetcher"
	"marketdw/internal/forecast"
	"marketdw/internal/scheduler"
	"marketdw/internal/service"
	"marketdw/internal/storage"
	"marketdw/internal/transform"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// ExportOptions hold parameters for exporting a persisted coin series.
type ExportOptions struct {
	Symbol    string
	CSVPath   string
	PNGPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// PredictOptions configure the predict command.
type PredictOptions struct {
	DryRun bool
}

func (a *App) newDeriver() (dimension.Deriver, error) {
	loc, err := time.LoadLocation(a.Config.Timezone)
	if err != nil {
		return dimension.Deriver{}, fmt.Errorf("load timezone %q: %w", a.Config.Timezone, err)
	}
	return dimension.New(loc), nil
}

func apiOptions(cfg config.APISourceConfig) fetcher.APIOptions {
	return fetcher.APIOptions{
		URL:        cfg.URL,
		Method:     cfg.Method,
		Headers:    cfg.Headers,
		Params:     cfg.Params,
		Timeout:    cfg.Timeout,
		RetryWait:  cfg.RetryWait,
		MaxRetries: cfg.MaxRetries,
	}
}

func (a *App) newCoinSnapshot(deriver dimension.Deriver) *transform.CoinSnapshot {
	ranking := fetcher.NewAPI(apiOptions(a.Config.Sources.CoinRanking), a.Logger)
	return transform.NewCoinSnapshot(ranking, deriver, transform.CoinSnapshotOptions{
		CoinsToHold: a.Config.Pipelines.CoinSnapshot.CoinsToHold,
	}, a.Logger)
}

func (a *App) newStockSnapshot(deriver dimension.Deriver) *transform.StockSnapshot {
	scraper := fetcher.NewScraper(fetcher.ScraperOptions{
		URL:     a.Config.Sources.TopStocks.URL,
		Timeout: a.Config.Sources.TopStocks.Timeout,
	}, a.Logger)
	info := fetcher.NewCompanyInfo(apiOptions(a.Config.Sources.StockInfo), a.Logger)
	quote := fetcher.NewQuote(apiOptions(a.Config.Sources.StockQuote), a.Logger)

	return transform.NewStockSnapshot(scraper, info, quote, deriver, transform.StockSnapshotOptions{
		StocksToFetch: a.Config.Pipelines.StockSnapshot.StocksToFetch,
	}, a.Logger)
}

func (a *App) newPredictions(deriver dimension.Deriver) *transform.Predictions {
	cfg := a.Config.Pipelines.Prediction

	ranking := fetcher.NewAPI(apiOptions(a.Config.Sources.CoinRanking), a.Logger)
	coinHistory := fetcher.NewCoinHistory(apiOptions(a.Config.Sources.CoinHistory), a.Logger)
	coins := transform.NewCoinTraining(ranking, coinHistory, deriver, transform.CoinTrainingOptions{
		LookbackYears: cfg.CoinLookbackYears,
	}, a.Logger)

	scraper := fetcher.NewScraper(fetcher.ScraperOptions{
		URL:     a.Config.Sources.TopStocks.URL,
		Timeout: a.Config.Sources.TopStocks.Timeout,
	}, a.Logger)
	stockHistory := fetcher.NewDailyHistory(fetcher.DailyHistoryOptions{
		BaseURL: a.Config.Sources.PriceHistory.BaseURL,
		Timeout: a.Config.Sources.PriceHistory.Timeout,
	}, a.Logger)
	stocks := transform.NewStockTraining(scraper, stockHistory, transform.StockTrainingOptions{
		LookbackYears: cfg.StockLookbackYears,
		StocksToTrain: cfg.StocksToTrain,
	}, a.Logger)

	training := transform.NewTrainingSet(coins, stocks, a.Logger)
	trainer := forecast.New(forecast.Options{HorizonDays: cfg.HorizonDays}, a.Logger)

	return transform.NewPredictions(training, trainer, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, errors.New("database.dsn is required")
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool, a.Logger)
	if err := store.Init(ctx, a.Config.Database.InitMaxRetries, a.Config.Database.InitRetryDelay); err != nil {
		store.Close()
		return nil, nil, err
	}

	return store, store.Close, nil
}

func (a *App) newService(store *storage.Store, deriver dimension.Deriver) *service.Service {
	return service.New(service.Options{
		Coins:         a.newCoinSnapshot(deriver),
		Stocks:        a.newStockSnapshot(deriver),
		Predictions:   a.newPredictions(deriver),
		CoinStore:     store,
		StockStore:    store,
		PredStore:     store,
		Notifier:      a.newNotifier(),
		AlertsEnabled: a.Config.Alerting.Enabled,
	}, a.Logger)
}

// Run executes the long-running pipeline service with one scheduler per job.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	deriver, err := a.newDeriver()
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := a.newService(store, deriver)

	jobs := []struct {
		name     string
		interval time.Duration
		run      scheduler.JobFunc
	}{
		{"coin_snapshot", a.Config.Scheduler.CoinInterval, svc.RunCoinSnapshot},
		{"stock_snapshot", a.Config.Scheduler.StockInterval, svc.RunStockSnapshot},
		{"price_prediction", a.Config.Scheduler.PredictionInterval, svc.RunPricePrediction},
	}

	a.Logger.Info().Msg("starting pipeline service")

	var wg sync.WaitGroup
	for _, job := range jobs {
		sched := scheduler.New(scheduler.Options{
			Name:            job.name,
			Interval:        job.interval,
			AlignToInterval: a.Config.Scheduler.AlignToInterval,
			StartupDelay:    a.Config.Scheduler.StartupDelay,
		}, a.Logger)

		wg.Add(1)
		go func(run scheduler.JobFunc) {
			defer wg.Done()
			if err := sched.Run(ctx, run); err != nil && !errors.Is(err, context.Canceled) {
				a.Logger.Error().Err(err).Msg("scheduler terminated with error")
			}
		}(job.run)
	}
	wg.Wait()

	a.Logger.Info().Msg("pipeline service stopped")
	return nil
}

// RunCoinSnapshot executes the coin pipeline once and exits.
func (a *App) RunCoinSnapshot(ctx context.Context) error {
	return a.runOnce(ctx, func(ctx context.Context, svc *service.Service) error {
		return svc.RunCoinSnapshot(ctx, time.Now().UTC())
	})
}

// RunStockSnapshot executes the stock pipeline once and exits.
func (a *App) RunStockSnapshot(ctx context.Context) error {
	return a.runOnce(ctx, func(ctx context.Context, svc *service.Service) error {
		return svc.RunStockSnapshot(ctx, time.Now().UTC())
	})
}

// RunPrediction executes the forecast pipeline once. With DryRun the
// forecasts are printed instead of replacing the predictions table.
func (a *App) RunPrediction(ctx context.Context, opts PredictOptions) error {
	if opts.DryRun {
		deriver, err := a.newDeriver()
		if err != nil {
			return err
		}
		svc := a.newService(nil, deriver)
		rows, err := svc.Forecast(ctx)
		if err != nil {
			return err
		}
		return printPredictions(rows)
	}

	return a.runOnce(ctx, func(ctx context.Context, svc *service.Service) error {
		return svc.RunPricePrediction(ctx, time.Now().UTC())
	})
}

func (a *App) runOnce(ctx context.Context, fn func(context.Context, *service.Service) error) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	deriver, err := a.newDeriver()
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	return fn(ctx, a.newService(store, deriver))
}
