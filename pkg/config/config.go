package config

import (
	"fmt"
	"os"
	"strings"
	"time"

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
	Backend struct {
		Type string `yaml:"type"` // "memory" or "clickhouse"
	} `yaml:"backend"`
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
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		PointsTopic  string   `yaml:"points_topic"`
		AlertsTopic  string   `yaml:"alerts_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Sentiment struct {
			Topic      string        `yaml:"topic"`
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"sentiment"`
	} `yaml:"kafka"`
	Cache struct {
		SnapshotTTL time.Duration `yaml:"snapshot_ttl"`
		Redis       struct {
			Enabled  bool   `yaml:"enabled"`
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Queue struct {
		// Redis-backed redelivery of alert events that failed to publish.
		// Shares the cache redis connection settings.
		Enabled    bool          `yaml:"enabled"`
		Workers    int           `yaml:"workers"`
		RetryLimit int           `yaml:"retry_limit"`
		RetryDelay time.Duration `yaml:"retry_delay"`
	} `yaml:"queue"`
	Sources struct {
		Timeout       time.Duration `yaml:"timeout"`
		RatePerSecond float64       `yaml:"rate_per_second"`
		MarketPrice   struct {
			BaseURL string `yaml:"base_url"`
			APIKey  string `yaml:"api_key"`
		} `yaml:"market_price"`
		Weather struct {
			BaseURL string `yaml:"base_url"`
			APIKey  string `yaml:"api_key"`
		} `yaml:"weather"`
		MacroStat struct {
			BaseURL string `yaml:"base_url"`
			APIKey  string `yaml:"api_key"`
		} `yaml:"macro_stat"`
	} `yaml:"sources"`
	Feed struct {
		Enabled        bool          `yaml:"enabled"`
		WebSocketURL   string        `yaml:"websocket_url"`
		APIKey         string        `yaml:"api_key"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"feed"`
	Markets struct {
		// Commodity/mandi universe the pipeline tracks.
		Commodities []string `yaml:"commodities"`
		Mandis      []string `yaml:"mandis"`
		// mandi -> state, for the regional heatmap.
		MandiStates map[string]string `yaml:"mandi_states"`
		// mandi -> weather location; many mandis may share one location.
		MandiLocations map[string]string `yaml:"mandi_locations"`
	} `yaml:"markets"`
	Reconcile struct {
		MaxGapDays           int           `yaml:"max_gap_days"`
		ConfidenceHalfLife   time.Duration `yaml:"confidence_half_life"`
		ConflictThresholdPct float64       `yaml:"conflict_threshold_pct"`
		FreshnessWindow      time.Duration `yaml:"freshness_window"`
		MacroWeight          float64       `yaml:"macro_weight"`
	} `yaml:"reconcile"`
	Forecast struct {
		MinHistory        int           `yaml:"min_history"`
		SentimentDays     int           `yaml:"sentiment_days"`
		WeatherDays       int           `yaml:"weather_days"`
		AdjustmentURL     string        `yaml:"adjustment_url"` // external scorer; empty = built-in
		AdjustmentTimeout time.Duration `yaml:"adjustment_timeout"`
	} `yaml:"forecast"`
	Sync struct {
		Interval     time.Duration `yaml:"interval"`
		LookbackDays int           `yaml:"lookback_days"`
	} `yaml:"sync"`
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

	c.applyDefaults()

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

	if v := os.Getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("MARKET_PRICE_API_KEY"); v != "" {
		c.Sources.MarketPrice.APIKey = v
	}
	if v := os.Getenv("WEATHER_API_KEY"); v != "" {
		c.Sources.Weather.APIKey = v
	}
	if v := os.Getenv("MACRO_STAT_API_KEY"); v != "" {
		c.Sources.MacroStat.APIKey = v
	}
	if v := os.Getenv("FEED_API_KEY"); v != "" {
		c.Feed.APIKey = v
	}
	if v := os.Getenv("COMMODITIES"); v != "" {
		c.Markets.Commodities = strings.Split(v, ",")
	}
	if v := os.Getenv("MANDIS"); v != "" {
		c.Markets.Mandis = strings.Split(v, ",")
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Sources.Timeout <= 0 {
		c.Sources.Timeout = 15 * time.Second
	}
	if c.Reconcile.MaxGapDays <= 0 {
		c.Reconcile.MaxGapDays = 3
	}
	if c.Reconcile.ConfidenceHalfLife <= 0 {
		c.Reconcile.ConfidenceHalfLife = 24 * time.Hour
	}
	if c.Reconcile.ConflictThresholdPct <= 0 {
		c.Reconcile.ConflictThresholdPct = 10
	}
	if c.Reconcile.FreshnessWindow <= 0 {
		c.Reconcile.FreshnessWindow = 72 * time.Hour
	}
	if c.Reconcile.MacroWeight <= 0 {
		c.Reconcile.MacroWeight = 0.25
	}
	if c.Forecast.MinHistory <= 0 {
		c.Forecast.MinHistory = 30
	}
	if c.Forecast.SentimentDays <= 0 {
		c.Forecast.SentimentDays = 14
	}
	if c.Forecast.WeatherDays <= 0 {
		c.Forecast.WeatherDays = 14
	}
	if c.Sync.LookbackDays <= 0 {
		c.Sync.LookbackDays = 30
	}
	if c.Cache.SnapshotTTL <= 0 {
		c.Cache.SnapshotTTL = 5 * time.Minute
	}
	if c.Queue.Workers <= 0 {
		c.Queue.Workers = 1
	}
	if c.Queue.RetryLimit <= 0 {
		c.Queue.RetryLimit = 5
	}
	if c.Queue.RetryDelay <= 0 {
		c.Queue.RetryDelay = 30 * time.Second
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Backend.Type == "" {
		return fmt.Errorf("backend.type is required")
	}
	if c.Backend.Type != "memory" && c.Backend.Type != "clickhouse" {
		return fmt.Errorf("backend.type must be 'memory' or 'clickhouse', got '%s'", c.Backend.Type)
	}
	if len(c.Markets.Commodities) == 0 {
		return fmt.Errorf("markets.commodities cannot be empty")
	}
	if len(c.Markets.Mandis) == 0 {
		return fmt.Errorf("markets.mandis cannot be empty")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers required when kafka is enabled")
	}
	if c.Queue.Enabled && !c.Cache.Redis.Enabled {
		return fmt.Errorf("queue requires cache.redis to be enabled")
	}
	return nil
}
