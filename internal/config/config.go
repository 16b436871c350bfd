package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
)

// Data source kinds
const (
	DataSourceInflux = "influx"
	DataSourceSQLite = "sqlite"
)

// Environment variable names for configuration overrides
const (
	EnvPort                  = "AQT_PORT"
	EnvDataSource            = "AQT_DATA_SOURCE"
	EnvInfluxHost            = "AQT_INFLUX_HOST"
	EnvInfluxToken           = "AQT_INFLUX_TOKEN"
	EnvInfluxDatabase        = "AQT_INFLUX_DATABASE"
	EnvInfluxRetentionPolicy = "AQT_INFLUX_RETENTION_POLICY"
	EnvDBPath                = "AQT_DB_PATH"
	EnvWidgetsPath           = "AQT_WIDGETS_PATH"
	EnvLogLevel              = "AQT_LOG_LEVEL"
	EnvKafkaBrokers          = "AQT_KAFKA_BROKERS"
	EnvMaxConcurrency        = "AQT_MAX_CONCURRENCY"
	EnvQueryTimeout          = "AQT_QUERY_TIMEOUT"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig    `json:"server"`
	DataSource string          `json:"data_source"`
	Influx     InfluxConfig    `json:"influx"`
	Database   DatabaseConfig  `json:"database"`
	Widgets    WidgetsConfig   `json:"widgets"`
	Dashboard  DashboardConfig `json:"dashboard"`
	Aquariums  AquariumsConfig `json:"aquariums"`
	Breaker    BreakerConfig   `json:"breaker"`
	Kafka      KafkaConfig     `json:"kafka"`
	Log        LogConfig       `json:"log"`
	Data       DataConfig      `json:"data"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port            string   `json:"port"`
	Host            string   `json:"host"`
	ReadTimeout     Duration `json:"read_timeout"`
	WriteTimeout    Duration `json:"write_timeout"`
	ShutdownTimeout Duration `json:"shutdown_timeout"`
}

// InfluxConfig represents the InfluxDB connection
type InfluxConfig struct {
	Host            string   `json:"host"`
	Token           string   `json:"token"`
	Database        string   `json:"database"`
	RetentionPolicy string   `json:"retention_policy"`
	Timeout         Duration `json:"timeout"`
}

// DatabaseConfig represents the local SQLite store
type DatabaseConfig struct {
	Path string `json:"path"`
}

// WidgetsConfig locates the widget catalog
type WidgetsConfig struct {
	Path string `json:"path"`
}

// DashboardConfig controls dashboard assembly
type DashboardConfig struct {
	DefaultHours   int      `json:"default_hours"`
	MaxHours       int      `json:"max_hours"`
	MaxPoints      int      `json:"max_points"`
	MaxConcurrency int      `json:"max_concurrency"`
	QueryTimeout   Duration `json:"query_timeout"`
	RequestTimeout Duration `json:"request_timeout"`
}

// AquariumsConfig lists aquariums or how to discover them
type AquariumsConfig struct {
	IDs            []string `json:"ids"`
	DiscoveryQuery string   `json:"discovery_query"`
	DiscoveryTTL   Duration `json:"discovery_ttl"`
}

// BreakerConfig configures the data source circuit breaker
type BreakerConfig struct {
	Enabled     bool     `json:"enabled"`
	MaxFailures uint32   `json:"max_failures"`
	OpenTimeout Duration `json:"open_timeout"`
}

// KafkaConfig configures degraded-widget event publishing
type KafkaConfig struct {
	Brokers []string `json:"brokers"`
	Topic   string   `json:"topic"`
}

// LogConfig configures logging
type LogConfig struct {
	Level string `json:"level"`
	File  string `json:"file"`
}

// DataConfig represents local data loading and generation
type DataConfig struct {
	RawDataFolder string          `json:"raw_data_folder"`
	Generator     GeneratorConfig `json:"generator"`
}

// GeneratorConfig controls synthetic reading generation
type GeneratorConfig struct {
	Hours      int          `json:"hours"`
	Interval   Duration     `json:"interval"`
	Sequential bool         `json:"sequential"`
	Probes     []ProbeRange `json:"probes"`
}

// ProbeRange represents the range for random value generation of one probe
type ProbeRange struct {
	ProbeType string  `json:"probe_type"`
	Name      string  `json:"name"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
}

// Duration is a time.Duration written as a string like "10s" in JSON
type Duration struct {
	time.Duration
}

// UnmarshalJSON accepts "1m30s" style strings or a number of seconds
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		d.Duration = parsed
		return nil
	}
	var secs float64
	if err := json.Unmarshal(b, &secs); err != nil {
		return fmt.Errorf("invalid duration %s", b)
	}
	d.Duration = time.Duration(secs * float64(time.Second))
	return nil
}

// MarshalJSON writes the duration as a string
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Default returns a Config with all default values
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			Host:            "0.0.0.0",
			ReadTimeout:     Duration{10 * time.Second},
			WriteTimeout:    Duration{60 * time.Second},
			ShutdownTimeout: Duration{15 * time.Second},
		},
		DataSource: DataSourceInflux,
		Influx: InfluxConfig{
			Host:     "http://localhost:8086",
			Database: "apex",
			Timeout:  Duration{10 * time.Second},
		},
		Database: DatabaseConfig{
			Path: "aq-telemetry.db",
		},
		Widgets: WidgetsConfig{
			Path: "config/widgets",
		},
		Dashboard: DashboardConfig{
			DefaultHours:   6,
			MaxHours:       720,
			MaxPoints:      150,
			MaxConcurrency: 8,
			QueryTimeout:   Duration{10 * time.Second},
			RequestTimeout: Duration{30 * time.Second},
		},
		Aquariums: AquariumsConfig{
			DiscoveryTTL: Duration{time.Minute},
		},
		Breaker: BreakerConfig{
			Enabled:     true,
			MaxFailures: 5,
			OpenTimeout: Duration{30 * time.Second},
		},
		Kafka: KafkaConfig{
			Topic: "aquarium.widget-degraded",
		},
		Log: LogConfig{
			Level: "info",
		},
		Data: DataConfig{
			RawDataFolder: "raw_data",
			Generator: GeneratorConfig{
				Hours:      24,
				Interval:   Duration{time.Minute},
				Sequential: true,
				Probes: []ProbeRange{
					{ProbeType: "Temp", Name: "Tmp", Min: 76, Max: 80},
					{ProbeType: "pH", Name: "pH", Min: 7.9, Max: 8.4},
					{ProbeType: "ORP", Name: "ORP", Min: 300, Max: 420},
					{ProbeType: "Cond", Name: "Salt", Min: 33, Max: 36},
				},
			},
		},
	}
}

// LoadConfig loads configuration from a JSON file over the defaults, then
// applies environment overrides and validates the result
func LoadConfig(configPath string) (*Config, error) {
	// Default config path
	if configPath == "" {
		configPath = "config.json"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.ApplyEnv()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadConfigWithDefaults loads config with fallback to defaults if the file doesn't exist
func LoadConfigWithDefaults(configPath string) (*Config, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			config = Default()
			config.ApplyEnv()
			if err := config.Validate(); err != nil {
				return nil, err
			}
			return config, nil
		}
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides fields from environment variables
func (c *Config) ApplyEnv() {
	setString := func(env string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			*dst = v
		}
	}

	setString(EnvPort, &c.Server.Port)
	setString(EnvDataSource, &c.DataSource)
	setString(EnvInfluxHost, &c.Influx.Host)
	setString(EnvInfluxToken, &c.Influx.Token)
	setString(EnvInfluxDatabase, &c.Influx.Database)
	setString(EnvInfluxRetentionPolicy, &c.Influx.RetentionPolicy)
	setString(EnvDBPath, &c.Database.Path)
	setString(EnvWidgetsPath, &c.Widgets.Path)
	setString(EnvLogLevel, &c.Log.Level)

	if v := os.Getenv(EnvKafkaBrokers); v != "" {
		var brokers []string
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
		c.Kafka.Brokers = brokers
	}

	if v := os.Getenv(EnvMaxConcurrency); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Dashboard.MaxConcurrency = n
		}
	}

	if v := os.Getenv(EnvQueryTimeout); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Dashboard.QueryTimeout = Duration{d}
		}
	}
}

// Validate checks the configuration for values the service cannot run with
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Port == "" {
		problems = append(problems, "server.port must be set")
	}

	switch c.DataSource {
	case DataSourceInflux:
		if c.Influx.Host == "" {
			problems = append(problems, "influx.host must be set")
		}
		if c.Influx.Database == "" {
			problems = append(problems, "influx.database must be set")
		}
	case DataSourceSQLite:
		if c.Database.Path == "" {
			problems = append(problems, "database.path must be set")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown data_source %q (expected %q or %q)", c.DataSource, DataSourceInflux, DataSourceSQLite))
	}

	if c.Widgets.Path == "" {
		problems = append(problems, "widgets.path must be set")
	}
	if c.Dashboard.DefaultHours < 1 {
		problems = append(problems, "dashboard.default_hours must be at least 1")
	}
	if c.Dashboard.MaxHours < c.Dashboard.DefaultHours {
		problems = append(problems, "dashboard.max_hours must not be less than default_hours")
	}
	if c.Dashboard.MaxConcurrency < 1 {
		problems = append(problems, "dashboard.max_concurrency must be at least 1")
	}
	if c.Dashboard.MaxPoints < 0 {
		problems = append(problems, "dashboard.max_points must not be negative")
	}

	for _, p := range c.Data.Generator.Probes {
		if p.Min >= p.Max {
			problems = append(problems, fmt.Sprintf("invalid value range for probe %s: min (%f) must be less than max (%f)", p.Name, p.Min, p.Max))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
