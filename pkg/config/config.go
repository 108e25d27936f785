package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Postgres struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port" default:"5432"`
		Database string `yaml:"database"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		SSLMode  string `yaml:"ssl_mode" default:"disable"`
		MaxOpen  int    `yaml:"max_open" default:"10"`
		MaxIdle  int    `yaml:"max_idle" default:"5"`
	} `yaml:"postgres"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		SignalsTopic string   `yaml:"signals_topic" default:"levelscan.signals"`
		CandlesTopic string   `yaml:"candles_topic" default:"levelscan.candles"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression" default:"gzip"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"levelscan"`
			Workers    int           `yaml:"workers" default:"4"`
			BufferSize int           `yaml:"buffer_size" default:"1024"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Binance struct {
		RestURL        string        `yaml:"rest_url" default:"https://api.binance.com"`
		FuturesURL     string        `yaml:"futures_url" default:"https://fapi.binance.com"`
		WebSocketURL   string        `yaml:"websocket_url" default:"wss://stream.binance.com:9443/ws"`
		Quote          string        `yaml:"quote" default:"USDT"`
		CandleLimit    int           `yaml:"candle_limit" default:"500"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
		StreamSymbols  []string      `yaml:"stream_symbols"`
		FetchRPS       float64       `yaml:"fetch_rps" default:"8"`
	} `yaml:"binance"`
	MarketCap struct {
		URL      string        `yaml:"url" default:"https://api.coingecko.com/api/v3/global"`
		Days     int           `yaml:"days" default:"30"`
		CacheTTL time.Duration `yaml:"cache_ttl"`
	} `yaml:"market_cap"`
	Analysis AnalysisConfig `yaml:"analysis"`
}

// LevelRules is the per-timeframe level detection configuration.
type LevelRules struct {
	PivotPeriod        int     `yaml:"pivot_period" validate:"gte=1"`
	MinStrength        int     `yaml:"min_strength" validate:"gte=1"`
	MaxPivotPoints     int     `yaml:"max_pivot_points" validate:"gte=1"`
	MaxChannelWidthPct float64 `yaml:"max_channel_width_percent" validate:"gt=0"`
}

// ScoringWeights holds every scoring heuristic as explicit configuration so
// tests can override them. The values are fixed heuristics carried over from
// the original strategy, not a validated trading edge.
type ScoringWeights struct {
	TrendAlignment    int     `yaml:"trend_alignment" default:"20"`
	LevelProximity    int     `yaml:"level_proximity" default:"15"`
	LevelProximityPct float64 `yaml:"level_proximity_pct" default:"0.005"`
	FiboProximity     int     `yaml:"fibo_proximity" default:"10"`
	FiboProximityPct  float64 `yaml:"fibo_proximity_pct" default:"0.008"`
	RSIExtreme        int     `yaml:"rsi_extreme" default:"10"`
	RSILongBelow      float64 `yaml:"rsi_long_below" default:"30"`
	RSIShortAbove     float64 `yaml:"rsi_short_above" default:"70"`
	MACDHistogram     int     `yaml:"macd_histogram" default:"8"`
	FundingRate       int     `yaml:"funding_rate" default:"4"`
	FundingRateAbs    float64 `yaml:"funding_rate_abs" default:"0.0005"`
	ADXTrend          int     `yaml:"adx_trend" default:"5"`
	ADXThreshold      float64 `yaml:"adx_threshold" default:"20"`
	Supertrend        int     `yaml:"supertrend" default:"6"`
	EMASide           int     `yaml:"ema_side" default:"5"`
	Stochastic        int     `yaml:"stochastic" default:"6"`
	StochLongBelow    float64 `yaml:"stoch_long_below" default:"20"`
	StochShortAbove   float64 `yaml:"stoch_short_above" default:"80"`
	MarketCapTrend    int     `yaml:"market_cap_trend" default:"3"`
	MarketCapPct      float64 `yaml:"market_cap_pct" default:"2.0"`
	StrongAt          int     `yaml:"strong_at" default:"40"`
	ModerateAt        int     `yaml:"moderate_at" default:"25"`
}

// AnalysisConfig drives the sweep pipeline.
type AnalysisConfig struct {
	Workers           int                   `yaml:"workers" default:"12" validate:"gte=1,lte=64"`
	MinScore          int                   `yaml:"min_score" default:"30"`
	AlertThresholdPct float64               `yaml:"alert_threshold_pct" default:"1.0" validate:"gt=0"`
	CandleRetention   int                   `yaml:"candle_retention" default:"900"`
	SweepInterval     time.Duration         `yaml:"sweep_interval"`
	CollectInterval   time.Duration         `yaml:"collect_interval"`
	Stablecoins       []string              `yaml:"stablecoins"`
	Levels            map[string]LevelRules `yaml:"levels"`
	Scoring           ScoringWeights        `yaml:"scoring"`
}

var validate = validator.New()

// DefaultLevelRules returns the per-timeframe level configuration the
// original strategy shipped with.
func DefaultLevelRules() map[string]LevelRules {
	return map[string]LevelRules{
		"15m": {PivotPeriod: 3, MinStrength: 2, MaxPivotPoints: 50, MaxChannelWidthPct: 8},
		"1h":  {PivotPeriod: 5, MinStrength: 3, MaxPivotPoints: 40, MaxChannelWidthPct: 6},
		"4h":  {PivotPeriod: 7, MinStrength: 4, MaxPivotPoints: 30, MaxChannelWidthPct: 5},
		"1d":  {PivotPeriod: 10, MinStrength: 5, MaxPivotPoints: 20, MaxChannelWidthPct: 4},
	}
}

// DefaultStablecoins is the sweep denylist: pairs whose base asset is itself
// a dollar proxy never produce directional signals.
func DefaultStablecoins() []string {
	return []string{
		"USDCUSDT", "BUSDUSDT", "TUSDUSDT", "USDPUSDT",
		"FDUSDUSDT", "DAIUSDT", "EURUSDT", "AEURUSDT",
	}
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Fill defaults before validating
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	c.applyAnalysisDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("PG_HOST"); v != "" {
		c.Postgres.Host = v
	}
	if v := os.Getenv("PG_PASSWORD"); v != "" {
		c.Postgres.Password = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("STREAM_SYMBOLS"); v != "" {
		c.Binance.StreamSymbols = strings.Split(v, ",")
	}

	return c, nil
}

func (c *Config) applyAnalysisDefaults() {
	if len(c.Analysis.Levels) == 0 {
		c.Analysis.Levels = DefaultLevelRules()
	}
	if len(c.Analysis.Stablecoins) == 0 {
		c.Analysis.Stablecoins = DefaultStablecoins()
	}
	if c.Analysis.SweepInterval <= 0 {
		c.Analysis.SweepInterval = 15 * time.Minute
	}
	if c.Analysis.CollectInterval <= 0 {
		c.Analysis.CollectInterval = 10 * time.Minute
	}
	if c.Binance.RequestTimeout <= 0 {
		c.Binance.RequestTimeout = 10 * time.Second
	}
	if c.Binance.ReconnectDelay <= 0 {
		c.Binance.ReconnectDelay = 5 * time.Second
	}
	if c.Binance.PingInterval <= 0 {
		c.Binance.PingInterval = 30 * time.Second
	}
	if c.MarketCap.CacheTTL <= 0 {
		c.MarketCap.CacheTTL = 10 * time.Minute
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Postgres.Host == "" {
		return fmt.Errorf("postgres.host is required")
	}
	if c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required")
	}
	if err := validate.Struct(&c.Analysis); err != nil {
		return fmt.Errorf("analysis: %w", err)
	}
	for tf, rules := range c.Analysis.Levels {
		if err := validate.Struct(&rules); err != nil {
			return fmt.Errorf("analysis.levels[%s]: %w", tf, err)
		}
	}
	return nil
}
