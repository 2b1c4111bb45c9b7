package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`

	HTTP struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"http"`

	Engine struct {
		Shards int `mapstructure:"shards"`
	} `mapstructure:"engine"`

	Store struct {
		Backend string `mapstructure:"backend"` // memory | pebble
		Dir     string `mapstructure:"dir"`
	} `mapstructure:"store"`

	Journal struct {
		Dir         string `mapstructure:"dir"`
		SegmentSize int64  `mapstructure:"segment_size"`
	} `mapstructure:"journal"`

	Kafka struct {
		Brokers     []string `mapstructure:"brokers"`
		OrdersTopic string   `mapstructure:"orders_topic"`
		TradesTopic string   `mapstructure:"trades_topic"`
		GroupID     string   `mapstructure:"group_id"`
	} `mapstructure:"kafka"`

	Publisher struct {
		Interval    time.Duration `mapstructure:"interval"`
		BaseBackoff time.Duration `mapstructure:"base_backoff"`
		MaxBackoff  time.Duration `mapstructure:"max_backoff"`
		OutboxDir   string        `mapstructure:"outbox_dir"`
	} `mapstructure:"publisher"`
}

// Load reads an optional config file and MATCHD_* environment overrides on
// top of local-development defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("log.level", "info")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("engine.shards", 8)
	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.dir", "./data/book")
	v.SetDefault("journal.dir", "./data/journal")
	v.SetDefault("journal.segment_size", 4<<20)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.orders_topic", "orders.submitted")
	v.SetDefault("kafka.trades_topic", "trades.executed")
	v.SetDefault("kafka.group_id", "matchd")
	v.SetDefault("publisher.interval", 250*time.Millisecond)
	v.SetDefault("publisher.base_backoff", 500*time.Millisecond)
	v.SetDefault("publisher.max_backoff", 30*time.Second)
	v.SetDefault("publisher.outbox_dir", "./data/outbox")

	v.SetEnvPrefix("MATCHD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Store.Backend != "memory" && cfg.Store.Backend != "pebble" {
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	return &cfg, nil
}
