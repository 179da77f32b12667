package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"PortPulse/internal/domain/models"
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
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Risk struct {
		BlacklistEnforced         bool     `yaml:"blacklist_enforced"`
		Blacklist                 []string `yaml:"blacklist"`
		MinimumThresholds         bool     `yaml:"minimum_thresholds"`
		MinPrice                  float64  `yaml:"min_price"`
		MinQuantity               float64  `yaml:"min_quantity"`
		ConcentrationLimitEnabled bool     `yaml:"concentration_limit_enabled"`
		ConcentrationCap          float64  `yaml:"concentration_cap"`
		SoftPullEnabled           bool     `yaml:"soft_pull_enabled"`
		HardPullEnabled           bool     `yaml:"hard_pull_enabled"`
		DailyDrawdownGuard        bool     `yaml:"daily_drawdown_guard"`
		MaxDailyLoss              float64  `yaml:"max_daily_loss"`
	} `yaml:"risk"`
	Aggregation struct {
		ConcentrationAlertThreshold float64 `yaml:"concentration_alert_threshold"`
		LossAlertPct                float64 `yaml:"loss_alert_pct"`
		GainAlertPct                float64 `yaml:"gain_alert_pct"`
	} `yaml:"aggregation"`
	Storage struct {
		SweepInterval      time.Duration                `yaml:"sweep_interval"`
		CompressionWorkers int                          `yaml:"compression_workers"`
		Categories         map[string]models.TierPolicy `yaml:"categories"`
	} `yaml:"storage"`
	Feed struct {
		Enabled        bool          `yaml:"enabled"`
		WebSocketURL   string        `yaml:"websocket_url"`
		APIKey         string        `yaml:"api_key"`
		Symbols        []string      `yaml:"symbols"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
		MaxRPS         int           `yaml:"max_rps"`
		BufferSize     int           `yaml:"buffer_size"`
	} `yaml:"feed"`
	Bridge struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic"`
		RequiredAcks int           `yaml:"required_acks"`
		Compression  string        `yaml:"compression"`
		BatchSize    int           `yaml:"batch_size"`
		Linger       time.Duration `yaml:"linger"`
		Async        bool          `yaml:"async"`
	} `yaml:"bridge"`
	Archive struct {
		Enabled      bool          `yaml:"enabled"`
		Host         string        `yaml:"host"`
		Port         int           `yaml:"port"`
		Database     string        `yaml:"database"`
		User         string        `yaml:"user"`
		Password     string        `yaml:"password"`
		AsyncInsert  bool          `yaml:"async_insert"`
		WaitForAsync bool          `yaml:"wait_for_async_insert"`
		DialTimeout  time.Duration `yaml:"dial_timeout"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
	} `yaml:"archive"`
	TickCache struct {
		Enabled  bool          `yaml:"enabled"`
		Addr     string        `yaml:"addr"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		TTL      time.Duration `yaml:"ttl"`
	} `yaml:"tick_cache"`
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

	// Validate required fields
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

	// Override with environment variables
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("FEED_URL"); v != "" {
		c.Feed.WebSocketURL = v
	}
	if v := os.Getenv("FEED_API_KEY"); v != "" {
		c.Feed.APIKey = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Feed.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Bridge.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Bridge.Topic = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.Archive.Host = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.TickCache.Addr = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Storage.Categories) == 0 {
		return fmt.Errorf("storage.categories cannot be empty")
	}
	for name, p := range c.Storage.Categories {
		if p.HotDays <= 0 {
			return fmt.Errorf("storage.categories.%s: hot_days must be positive", name)
		}
		if p.WarmDays < 0 {
			return fmt.Errorf("storage.categories.%s: warm_days cannot be negative", name)
		}
		if p.DeletionDays > 0 && p.DeletionDays <= p.HotDays+p.WarmDays {
			return fmt.Errorf("storage.categories.%s: deletion_days must exceed hot_days+warm_days", name)
		}
	}
	if c.Feed.Enabled {
		if c.Feed.WebSocketURL == "" {
			return fmt.Errorf("feed.websocket_url is required when feed is enabled")
		}
		if len(c.Feed.Symbols) == 0 {
			return fmt.Errorf("feed.symbols cannot be empty when feed is enabled")
		}
	}
	if c.Bridge.Enabled {
		if len(c.Bridge.Brokers) == 0 {
			return fmt.Errorf("bridge.brokers cannot be empty when bridge is enabled")
		}
		if c.Bridge.Topic == "" {
			return fmt.Errorf("bridge.topic is required when bridge is enabled")
		}
	}
	if c.Archive.Enabled {
		if c.Archive.Host == "" {
			return fmt.Errorf("archive.host is required when archive sink is enabled")
		}
		if c.Archive.Database == "" {
			return fmt.Errorf("archive.database is required when archive sink is enabled")
		}
	}
	if c.TickCache.Enabled && c.TickCache.Addr == "" {
		return fmt.Errorf("tick_cache.addr is required when tick cache is enabled")
	}
	return nil
}
