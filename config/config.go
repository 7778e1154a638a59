package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"weathertrader/internal/engine"
)

// Config is the full CLI configuration.
type Config struct {
	Backtest BacktestConfig `yaml:"backtest"`
	Data     DataConfig     `yaml:"data"`
	Sources  SourcesConfig  `yaml:"sources"`
	Strategy StrategyConfig `yaml:"strategy"`
	Log      LogConfig      `yaml:"log"`
}

// BacktestConfig mirrors engine.Config in YAML-friendly form.
type BacktestConfig struct {
	Start           string  `yaml:"start"` // 2006-01-02
	End             string  `yaml:"end"`
	InitialCapital  float64 `yaml:"initial_capital"`
	CommissionRate  float64 `yaml:"commission_rate"`
	MaxPositionSize float64 `yaml:"max_position_size"`
	MaxPositions    int     `yaml:"max_positions"`
	Frequency       string  `yaml:"frequency"` // 1h | 1d | 1w
	RiskFreeRate    float64 `yaml:"risk_free_rate"`
	AllowShort      bool    `yaml:"allow_short"`
}

// DataConfig controls the store and the provider join.
type DataConfig struct {
	DSN            string `yaml:"dsn"` // SQLite path, or ":memory:"
	MaxSkewMinutes int    `yaml:"max_skew_minutes"`
	Lookback       int    `yaml:"lookback"`
}

// SourcesConfig lists the remote series the fetch modes backfill.
// The base URLs default to the production APIs when empty.
type SourcesConfig struct {
	PolymarketBase  string           `yaml:"polymarket_base"`
	WeatherBase     string           `yaml:"weather_base"`
	FidelityMinutes int              `yaml:"fidelity_minutes"`
	Markets         []MarketSource   `yaml:"markets"`
	Locations       []LocationSource `yaml:"locations"`
}

// MarketSource maps one CLOB token onto a (market, outcome) pair.
type MarketSource struct {
	MarketID string `yaml:"market_id"`
	Outcome  string `yaml:"outcome"`
	TokenID  string `yaml:"token_id"`
}

// LocationSource names a coordinate pair for the weather archive.
type LocationSource struct {
	Name      string  `yaml:"name"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// StrategyConfig selects and parameterizes a strategy family.
type StrategyConfig struct {
	Name     string             `yaml:"name"`
	Location string             `yaml:"location"`
	Params   map[string]float64 `yaml:"params"`
}

// LogConfig controls logging format and level.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load reads the YAML config and the .env file if present. Environment
// variables override the matching YAML keys.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// EngineConfig converts the YAML block into a validated engine config.
func (c *Config) EngineConfig() (engine.Config, error) {
	start, err := time.Parse("2006-01-02", c.Backtest.Start)
	if err != nil {
		return engine.Config{}, fmt.Errorf("config: start date %q: %w", c.Backtest.Start, err)
	}
	end, err := time.Parse("2006-01-02", c.Backtest.End)
	if err != nil {
		return engine.Config{}, fmt.Errorf("config: end date %q: %w", c.Backtest.End, err)
	}

	ec := engine.Config{
		Start:           start.UTC(),
		End:             end.UTC(),
		InitialCapital:  decimal.NewFromFloat(c.Backtest.InitialCapital),
		CommissionRate:  decimal.NewFromFloat(c.Backtest.CommissionRate),
		MaxPositionSize: decimal.NewFromFloat(c.Backtest.MaxPositionSize),
		MaxPositions:    c.Backtest.MaxPositions,
		Frequency:       engine.Frequency(c.Backtest.Frequency),
		RiskFreeRate:    decimal.NewFromFloat(c.Backtest.RiskFreeRate),
		AllowShort:      c.Backtest.AllowShort,
	}
	if err := ec.Validate(); err != nil {
		return engine.Config{}, err
	}
	return ec, nil
}

// MaxSkew returns the provider join tolerance as a duration.
func (c *Config) MaxSkew() time.Duration {
	return time.Duration(c.Data.MaxSkewMinutes) * time.Minute
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("WEATHERTRADER_DSN"); v != "" {
		cfg.Data.DSN = v
	}
}

func setDefaults(cfg *Config) {
	if cfg.Backtest.InitialCapital <= 0 {
		cfg.Backtest.InitialCapital = 10000
	}
	if cfg.Backtest.MaxPositionSize <= 0 {
		cfg.Backtest.MaxPositionSize = 0.1
	}
	if cfg.Backtest.MaxPositions <= 0 {
		cfg.Backtest.MaxPositions = 5
	}
	if cfg.Backtest.Frequency == "" {
		cfg.Backtest.Frequency = string(engine.Daily)
	}
	if cfg.Data.DSN == "" {
		cfg.Data.DSN = "weathertrader.db"
	}
	if cfg.Data.MaxSkewMinutes <= 0 {
		cfg.Data.MaxSkewMinutes = 90
	}
	if cfg.Data.Lookback <= 0 {
		cfg.Data.Lookback = 24
	}
	if cfg.Sources.FidelityMinutes <= 0 {
		cfg.Sources.FidelityMinutes = 60
	}
	if cfg.Strategy.Name == "" {
		cfg.Strategy.Name = "temperature"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
