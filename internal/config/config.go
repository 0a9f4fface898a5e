package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"stratlab/internal/domain"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for stratlab.
type Config struct {
	Storage   Storage         `yaml:"storage"`
	Alpaca    Alpaca          `yaml:"alpaca"`
	Logging   Logging         `yaml:"logging"`
	Data      DataConfig      `yaml:"data"`
	Risk      RiskConfig      `yaml:"risk"`
	Screening ScreeningConfig `yaml:"screening"`
	Broker    BrokerConfig    `yaml:"broker"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Server    ServerConfig    `yaml:"server"`
}

// Storage holds paths for data persistence. Results selects the screening
// result backend: "sqlite", "postgres" or "none".
type Storage struct {
	DataDir     string `yaml:"data_dir"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
	Results     string `yaml:"results"`
}

// Alpaca holds credentials and endpoints for the Alpaca APIs. Credentials
// are normally supplied through the environment.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
	Feed      string `yaml:"feed"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DataConfig controls where historical bars come from and how upstream
// calls are retried and throttled.
type DataConfig struct {
	Source          string        `yaml:"source"` // alpaca | csv | parquet
	CSVDir          string        `yaml:"csv_dir"`
	Cache           bool          `yaml:"cache"`
	CacheMaxAge     time.Duration `yaml:"cache_max_age"`
	Lookback        int           `yaml:"lookback"`
	MaxRetries      int           `yaml:"max_retries"`
	RetryBaseDelay  time.Duration `yaml:"retry_base_delay"`
	RateLimitPerMin int           `yaml:"rate_limit_per_min"`
	MaxWorkers      int           `yaml:"max_workers"`
}

// RiskConfig defines sizing parameters and default instrument metadata.
type RiskConfig struct {
	AccountSize    float64 `yaml:"account_size"`
	RiskFraction   float64 `yaml:"risk_fraction"`
	TradingFee     float64 `yaml:"trading_fee"`
	MinSize        float64 `yaml:"min_size"`
	DefaultSize    float64 `yaml:"default_size"`
	PricePrecision int32   `yaml:"price_precision"`
	SizePrecision  int32   `yaml:"size_precision"`
	Compound       bool    `yaml:"compound"`
}

// ScreeningConfig describes the combination grid and output options.
type ScreeningConfig struct {
	Symbols     []string                `yaml:"symbols"`
	Timeframes  []string                `yaml:"timeframes"`
	Strategies  []domain.StrategyConfig `yaml:"strategies"`
	StopLosses  []domain.FinderConfig   `yaml:"stop_losses"`
	TakeProfits []domain.FinderConfig   `yaml:"take_profits"`
	Workers     int                     `yaml:"workers"`
	SortBy      string                  `yaml:"sort_by"`
	TopN        int                     `yaml:"top_n"`
	OutputCSV   string                  `yaml:"output_csv"`
}

// BrokerConfig enables reading account equity and instrument metadata from
// the broker before a run.
type BrokerConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsConfig configures the Prometheus listener. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// ServerConfig configures the results HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides (including any
// .env file in the working directory) and fills defaults.
func Load(path string) (*Config, error) {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports configuration values that would make a run meaningless.
func (c *Config) Validate() error {
	if c.Risk.RiskFraction <= 0 || c.Risk.RiskFraction > 1 {
		return fmt.Errorf("risk.risk_fraction must be in (0, 1], got %v", c.Risk.RiskFraction)
	}
	if c.Risk.TradingFee < 0 {
		return fmt.Errorf("risk.trading_fee must be non-negative, got %v", c.Risk.TradingFee)
	}
	for _, tf := range c.Screening.Timeframes {
		if _, err := domain.ParseTimeframe(tf); err != nil {
			return fmt.Errorf("screening.timeframes: %w", err)
		}
	}
	switch c.Storage.Results {
	case "sqlite", "postgres", "none":
	default:
		return fmt.Errorf("storage.results must be sqlite, postgres or none, got %q", c.Storage.Results)
	}
	switch c.Data.Source {
	case "alpaca", "csv", "parquet":
	default:
		return fmt.Errorf("data.source must be alpaca, csv or parquet, got %q", c.Data.Source)
	}
	return nil
}

// Instrument returns the configured default instrument metadata for symbol.
func (c *Config) Instrument(symbol string) domain.Instrument {
	return domain.Instrument{
		Symbol:         symbol,
		PricePrecision: c.Risk.PricePrecision,
		SizePrecision:  c.Risk.SizePrecision,
		TradingFee:     c.Risk.TradingFee,
		MinSize:        c.Risk.MinSize,
	}
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Storage.PostgresDSN = v
	}
	if v := os.Getenv("RESULTS_BACKEND"); v != "" {
		cfg.Storage.Results = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}
	if v := os.Getenv("ALPACA_FEED"); v != "" {
		cfg.Alpaca.Feed = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("ACCOUNT_SIZE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Risk.AccountSize = f
		}
	}
	if v := os.Getenv("SCREENING_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Screening.Workers = n
		}
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}

	// Standard Alpaca env vars (highest priority, canonical names used by SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}

// setDefaults fills zero values that have a sensible default.
func setDefaults(cfg *Config) {
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "data/stratlab.db"
	}
	if cfg.Storage.Results == "" {
		cfg.Storage.Results = "sqlite"
	}

	if cfg.Alpaca.Feed == "" {
		cfg.Alpaca.Feed = "iex"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Data.Source == "" {
		cfg.Data.Source = "alpaca"
	}
	if cfg.Data.Lookback <= 0 {
		cfg.Data.Lookback = 1000
	}
	if cfg.Data.MaxRetries <= 0 {
		cfg.Data.MaxRetries = 5
	}
	if cfg.Data.RetryBaseDelay <= 0 {
		cfg.Data.RetryBaseDelay = time.Second
	}
	if cfg.Data.RateLimitPerMin == 0 {
		cfg.Data.RateLimitPerMin = 200
	}
	if cfg.Data.MaxWorkers <= 0 {
		cfg.Data.MaxWorkers = 4
	}

	if cfg.Risk.AccountSize <= 0 {
		cfg.Risk.AccountSize = 10000
	}
	if cfg.Risk.RiskFraction == 0 {
		cfg.Risk.RiskFraction = 0.01
	}
	if cfg.Risk.DefaultSize <= 0 {
		cfg.Risk.DefaultSize = 1
	}
	if cfg.Risk.PricePrecision == 0 {
		cfg.Risk.PricePrecision = 2
	}
	if cfg.Risk.SizePrecision == 0 {
		cfg.Risk.SizePrecision = 4
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}

	if cfg.Screening.SortBy == "" {
		cfg.Screening.SortBy = "total_pnl"
	}
	if cfg.Screening.TopN <= 0 {
		cfg.Screening.TopN = 20
	}
}
