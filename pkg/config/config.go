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
	Log         struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
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
		Brokers      []string `yaml:"brokers"`
		TradesTopic  string   `yaml:"trades_topic"`
		PricesTopic  string   `yaml:"prices_topic"`
		Compression  string   `yaml:"compression"`
		RequiredAcks int      `yaml:"required_acks"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	MarketData struct {
		WebSocketURL   string        `yaml:"websocket_url"`
		APIKey         string        `yaml:"api_key"`
		Markets        []string      `yaml:"markets"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"marketdata"`
	Swarm struct {
		BaseURL     string        `yaml:"base_url"`
		APIKey      string        `yaml:"api_key"`
		Models      []string      `yaml:"models"`
		MaxInFlight int           `yaml:"max_in_flight"`
		CallTimeout time.Duration `yaml:"call_timeout"`
		Retry       struct {
			MaxRetries int           `yaml:"max_retries"`
			BaseDelay  time.Duration `yaml:"base_delay"`
			Multiplier float64       `yaml:"multiplier"`
			MaxDelay   time.Duration `yaml:"max_delay"`
		} `yaml:"retry"`
		Rate struct {
			Capacity     float64 `yaml:"capacity"`
			RefillPerSec float64 `yaml:"refill_per_sec"`
		} `yaml:"rate"`
		Synthesis struct {
			Enabled bool   `yaml:"enabled"`
			Model   string `yaml:"model"`
		} `yaml:"synthesis"`
	} `yaml:"swarm"`
	Signals struct {
		DedupWindow     time.Duration `yaml:"dedup_window"`
		MinConsensusPct float64       `yaml:"min_consensus_pct"`
		WhaleMinSizeUSD float64       `yaml:"whale_min_size_usd"`
		Confidence      struct {
			HighMin   float64 `yaml:"high_min"`
			MediumMin float64 `yaml:"medium_min"`
		} `yaml:"confidence"`
	} `yaml:"signals"`
	Triggers struct {
		PriceMoveThreshold float64       `yaml:"price_move_threshold"`
		PriceWindow        time.Duration `yaml:"price_window"`
		MovementExpiry     time.Duration `yaml:"movement_expiry"`
		ContrarianWindow   time.Duration `yaml:"contrarian_window"`
		ContrarianExpiry   time.Duration `yaml:"contrarian_expiry"`
		ProximityExpiry    time.Duration `yaml:"proximity_expiry"`
		ProximityDays      int           `yaml:"proximity_days"`
		SmartWinRate       float64       `yaml:"smart_win_rate"`
		StrongWinRate      float64       `yaml:"strong_win_rate"`
		SizeForMaxBonusUSD float64       `yaml:"size_for_max_bonus_usd"`
		SweepInterval      time.Duration `yaml:"sweep_interval"`
	} `yaml:"triggers"`
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

	if v := os.Getenv("SWARM_API_KEY"); v != "" {
		c.Swarm.APIKey = v
	}
	if v := os.Getenv("SWARM_MODELS"); v != "" {
		c.Swarm.Models = strings.Split(v, ",")
	}
	if v := os.Getenv("MARKETDATA_API_KEY"); v != "" {
		c.MarketData.APIKey = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}

	return c, nil
}

// applyDefaults fills service defaults for anything the file omits.
func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Swarm.MaxInFlight <= 0 {
		c.Swarm.MaxInFlight = 4
	}
	if c.Swarm.CallTimeout <= 0 {
		c.Swarm.CallTimeout = 30 * time.Second
	}
	if c.Swarm.Retry.MaxRetries <= 0 {
		c.Swarm.Retry.MaxRetries = 3
	}
	if c.Swarm.Retry.BaseDelay <= 0 {
		c.Swarm.Retry.BaseDelay = time.Second
	}
	if c.Swarm.Retry.Multiplier <= 0 {
		c.Swarm.Retry.Multiplier = 2
	}
	if c.Signals.DedupWindow <= 0 {
		c.Signals.DedupWindow = 60 * time.Second
	}
	if c.Signals.MinConsensusPct <= 0 {
		c.Signals.MinConsensusPct = 60
	}
	if c.Signals.Confidence.HighMin <= 0 {
		c.Signals.Confidence.HighMin = 80
	}
	if c.Signals.Confidence.MediumMin <= 0 {
		c.Signals.Confidence.MediumMin = 60
	}
	if c.Triggers.PriceMoveThreshold <= 0 {
		c.Triggers.PriceMoveThreshold = 0.10
	}
	if c.Triggers.PriceWindow <= 0 {
		c.Triggers.PriceWindow = 4 * time.Hour
	}
	if c.Triggers.MovementExpiry <= 0 {
		c.Triggers.MovementExpiry = 24 * time.Hour
	}
	if c.Triggers.ContrarianWindow <= 0 {
		c.Triggers.ContrarianWindow = 24 * time.Hour
	}
	if c.Triggers.ContrarianExpiry <= 0 {
		c.Triggers.ContrarianExpiry = 24 * time.Hour
	}
	if c.Triggers.ProximityExpiry <= 0 {
		c.Triggers.ProximityExpiry = 72 * time.Hour
	}
	if c.Triggers.ProximityDays <= 0 {
		c.Triggers.ProximityDays = 7
	}
	if c.Triggers.SmartWinRate <= 0 {
		c.Triggers.SmartWinRate = 0.55
	}
	if c.Triggers.StrongWinRate <= 0 {
		c.Triggers.StrongWinRate = 0.60
	}
	if c.Triggers.SizeForMaxBonusUSD <= 0 {
		c.Triggers.SizeForMaxBonusUSD = 50_000
	}
	if c.Triggers.SweepInterval <= 0 {
		c.Triggers.SweepInterval = time.Minute
	}
}

// Validate checks if the configuration is valid. An empty model list is a
// valid zero-result state, not an error.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty")
	}
	if c.Kafka.TradesTopic == "" || c.Kafka.PricesTopic == "" {
		return fmt.Errorf("kafka trades_topic and prices_topic are required")
	}
	if len(c.Swarm.Models) > 0 && c.Swarm.BaseURL == "" {
		return fmt.Errorf("swarm.base_url is required when models are configured")
	}
	return nil
}
