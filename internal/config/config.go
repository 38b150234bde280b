package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"marketdw/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Timezone  string          `mapstructure:"timezone"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Pipelines PipelinesConfig `mapstructure:"pipelines"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InitMaxRetries  int           `mapstructure:"init_max_retries"`
	InitRetryDelay  time.Duration `mapstructure:"init_retry_delay"`
}

// SchedulerConfig governs job cadence for the long-running mode.
type SchedulerConfig struct {
	CoinInterval       time.Duration `mapstructure:"coin_interval"`
	StockInterval      time.Duration `mapstructure:"stock_interval"`
	PredictionInterval time.Duration `mapstructure:"prediction_interval"`
	AlignToInterval    bool          `mapstructure:"align_to_interval"`
	StartupDelay       time.Duration `mapstructure:"startup_delay"`
}

// APISourceConfig parameterises one remote JSON endpoint.
type APISourceConfig struct {
	URL        string            `mapstructure:"url"`
	Method     string            `mapstructure:"method"`
	Headers    map[string]string `mapstructure:"headers"`
	Params     map[string]string `mapstructure:"params"`
	Timeout    time.Duration     `mapstructure:"timeout"`
	RetryWait  time.Duration     `mapstructure:"retry_wait"`
	MaxRetries int               `mapstructure:"max_retries"`
}

// ScrapeSourceConfig parameterises one scraped page.
type ScrapeSourceConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// HistorySourceConfig parameterises the bulk daily price history provider.
type HistorySourceConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SourcesConfig groups every external origin.
type SourcesConfig struct {
	CoinRanking  APISourceConfig     `mapstructure:"coin_ranking"`
	CoinHistory  APISourceConfig     `mapstructure:"coin_history"`
	StockInfo    APISourceConfig     `mapstructure:"stock_info"`
	StockQuote   APISourceConfig     `mapstructure:"stock_quote"`
	TopStocks    ScrapeSourceConfig  `mapstructure:"top_stocks"`
	PriceHistory HistorySourceConfig `mapstructure:"price_history"`
}

// PipelinesConfig holds per-pipeline tunables.
type PipelinesConfig struct {
	CoinSnapshot  CoinSnapshotConfig  `mapstructure:"coin_snapshot"`
	StockSnapshot StockSnapshotConfig `mapstructure:"stock_snapshot"`
	Prediction    PredictionConfig    `mapstructure:"prediction"`
}

// CoinSnapshotConfig tunes the daily coin job.
type CoinSnapshotConfig struct {
	CoinsToHold int `mapstructure:"coins_to_hold"`
}

// StockSnapshotConfig tunes the daily stock job.
type StockSnapshotConfig struct {
	StocksToFetch int `mapstructure:"stocks_to_fetch"`
}

// PredictionConfig tunes the weekly retrain job.
type PredictionConfig struct {
	StockLookbackYears int `mapstructure:"stock_lookback_years"`
	CoinLookbackYears  int `mapstructure:"coin_lookback_years"`
	StocksToTrain      int `mapstructure:"stocks_to_train"`
	HorizonDays        int `mapstructure:"horizon_days"`
}

// AlertingConfig defines failure notification routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MARKETDW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "marketdw")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("timezone", "Europe/Istanbul")

	v.SetDefault("scheduler.coin_interval", "24h")
	v.SetDefault("scheduler.stock_interval", "24h")
	v.SetDefault("scheduler.prediction_interval", "168h")
	v.SetDefault("scheduler.align_to_interval", true)
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("sources.coin_ranking.method", "GET")
	v.SetDefault("sources.coin_history.method", "GET")
	v.SetDefault("sources.stock_info.method", "GET")
	v.SetDefault("sources.stock_quote.method", "GET")
	for _, source := range []string{"coin_ranking", "coin_history", "stock_info", "stock_quote"} {
		v.SetDefault("sources."+source+".timeout", "10s")
		v.SetDefault("sources."+source+".retry_wait", "30s")
		v.SetDefault("sources."+source+".max_retries", 3)
	}
	v.SetDefault("sources.top_stocks.timeout", "15s")
	v.SetDefault("sources.price_history.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("sources.price_history.timeout", "15s")

	v.SetDefault("pipelines.coin_snapshot.coins_to_hold", 5)
	v.SetDefault("pipelines.stock_snapshot.stocks_to_fetch", 5)
	v.SetDefault("pipelines.prediction.stock_lookback_years", 1)
	v.SetDefault("pipelines.prediction.coin_lookback_years", 1)
	v.SetDefault("pipelines.prediction.stocks_to_train", 5)
	v.SetDefault("pipelines.prediction.horizon_days", 14)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.init_max_retries", 3)
	v.SetDefault("database.init_retry_delay", "30s")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Timezone == "" {
		return fmt.Errorf("timezone must be configured")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Scheduler.CoinInterval <= 0 || c.Scheduler.StockInterval <= 0 || c.Scheduler.PredictionInterval <= 0 {
		return fmt.Errorf("scheduler intervals must be greater than zero")
	}
	if c.Pipelines.CoinSnapshot.CoinsToHold <= 0 {
		return fmt.Errorf("pipelines.coin_snapshot.coins_to_hold must be greater than zero")
	}
	if c.Pipelines.StockSnapshot.StocksToFetch <= 0 {
		return fmt.Errorf("pipelines.stock_snapshot.stocks_to_fetch must be greater than zero")
	}
	if c.Pipelines.Prediction.HorizonDays <= 0 {
		return fmt.Errorf("pipelines.prediction.horizon_days must be greater than zero")
	}
	if c.Database.InitMaxRetries <= 0 {
		return fmt.Errorf("database.init_max_retries must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
