package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds the UDP engine settings.
type ServerConfig struct {
	ListenAddr      string `yaml:"listen_addr"`
	NodeTTL         string `yaml:"node_ttl"`
	EdgeTTL         string `yaml:"edge_ttl"`
	CleanupInterval string `yaml:"cleanup_interval"`
	PollTimeout     string `yaml:"poll_timeout"`
}

// NATSConfig configures the snapshot publisher / subscriber pair.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// ClickHouseConfig holds the connection settings for the history writer.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// WriterDef defines a single snapshot writer from the config file.
type WriterDef struct {
	Type       string           `yaml:"type"`
	Enabled    bool             `yaml:"enabled"`
	RootPath   string           `yaml:"root_path"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

// ExportConfig paces the periodic snapshot export and lists its sinks.
type ExportConfig struct {
	Interval string      `yaml:"interval"`
	NATS     NATSConfig  `yaml:"nats"`
	Writers  []WriterDef `yaml:"writers"`
}

// AlerterRule is one threshold over an exported edge metric.
type AlerterRule struct {
	Name      string  `yaml:"name"`
	Metric    string  `yaml:"metric"` // loss_rate | ewma_latency_us | ewma_jitter_us
	Threshold float64 `yaml:"threshold"`
}

// SMTPConfig holds the email notifier settings.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

// AlerterConfig enables threshold alerting over exported snapshots.
type AlerterConfig struct {
	Enabled       bool          `yaml:"enabled"`
	CheckInterval string        `yaml:"check_interval"`
	Rules         []AlerterRule `yaml:"rules"`
}

// APIConfig holds the HTTP topology API settings.
type APIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Export  ExportConfig  `yaml:"export"`
	Alerter AlerterConfig `yaml:"alerter"`
	SMTP    SMTPConfig    `yaml:"smtp"`
	API     APIConfig     `yaml:"api"`
}

// LoadConfig reads the configuration from a YAML file and returns a Config
// struct with defaults applied.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = "127.0.0.1:8080"
	}
	if c.Server.NodeTTL == "" {
		c.Server.NodeTTL = "60s"
	}
	if c.Server.EdgeTTL == "" {
		c.Server.EdgeTTL = "30s"
	}
	if c.Server.CleanupInterval == "" {
		c.Server.CleanupInterval = "1s"
	}
	if c.Server.PollTimeout == "" {
		c.Server.PollTimeout = "250ms"
	}
	if c.Export.Interval == "" {
		c.Export.Interval = "1s"
	}
	if c.API.ListenAddr == "" {
		c.API.ListenAddr = "127.0.0.1:9090"
	}
}

// Duration parses a duration field, rejecting non-positive values.
func Duration(field, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", field, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration", field)
	}
	return d, nil
}
