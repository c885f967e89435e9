package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	toml "github.com/pelletier/go-toml/v2"
)

// Config is the civitas runtime configuration loaded from TOML.
type Config struct {
	Database   DatabaseConfig   `toml:"database"`
	Server     ServerConfig     `toml:"server"`
	Logging    LoggingConfig    `toml:"logging"`
	Tracking   TrackingConfig   `toml:"tracking"`
	Listing    ListingConfig    `toml:"listing"`
	Escalation EscalationConfig `toml:"escalation"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type ServerConfig struct {
	HTTPBind    string `toml:"http_bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
	MetricsPath string `toml:"metrics_path"`
	// EnableMetrics mounts the Prometheus endpoint and HTTP counters.
	EnableMetrics bool `toml:"enable_metrics"`
}

type LoggingConfig struct {
	Level string `toml:"level"` // debug | info | warn | error | fatal
	// DevFile enables an additional logfmt sink next to the database.
	DevFile bool `toml:"dev_file"`
}

type TrackingConfig struct {
	CodeLength  int `toml:"code_length"`
	MaxAttempts int `toml:"max_attempts"`
}

type ListingConfig struct {
	DefaultPageSize int `toml:"default_page_size"`
	MaxPageSize     int `toml:"max_page_size"`
}

type EscalationConfig struct {
	// SweepInterval is a Go duration; "0" or "" disables the background sweep.
	SweepInterval string `toml:"sweep_interval"`
}

// Default returns the baseline configuration for one database path.
func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Server: ServerConfig{
			HTTPBind:      "127.0.0.1:8080",
			APIEndpoint:   "/api/v1",
			MCPEndpoint:   "/mcp",
			MetricsPath:   "/metrics",
			EnableMetrics: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Tracking: TrackingConfig{
			CodeLength:  8,
			MaxAttempts: 10,
		},
		Listing: ListingConfig{
			DefaultPageSize: 20,
			MaxPageSize:     100,
		},
		Escalation: EscalationConfig{
			SweepInterval: "1m",
		},
	}
}

// Load overlays the TOML file at path onto defaults. A missing file yields defaults.
func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	decoder := toml.NewDecoder(bytes.NewReader(content))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate rejects configurations the runtime cannot honor.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}
	if strings.TrimSpace(c.Server.HTTPBind) == "" {
		return errors.New("server.http_bind is required")
	}
	if _, err := log.ParseLevel(strings.TrimSpace(strings.ToLower(c.Logging.Level))); err != nil {
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}
	if c.Tracking.CodeLength < 6 || c.Tracking.CodeLength > 16 {
		return fmt.Errorf("tracking.code_length must be between 6 and 16, got %d", c.Tracking.CodeLength)
	}
	if c.Tracking.MaxAttempts < 1 {
		return fmt.Errorf("tracking.max_attempts must be >= 1, got %d", c.Tracking.MaxAttempts)
	}
	if c.Listing.MaxPageSize < 1 || c.Listing.MaxPageSize > 100 {
		return fmt.Errorf("listing.max_page_size must be between 1 and 100, got %d", c.Listing.MaxPageSize)
	}
	if c.Listing.DefaultPageSize < 1 || c.Listing.DefaultPageSize > c.Listing.MaxPageSize {
		return fmt.Errorf("listing.default_page_size must be between 1 and %d, got %d", c.Listing.MaxPageSize, c.Listing.DefaultPageSize)
	}
	if _, err := c.Escalation.Interval(); err != nil {
		return err
	}
	return nil
}

// Interval parses the sweep interval. Zero means disabled.
func (e EscalationConfig) Interval() (time.Duration, error) {
	raw := strings.TrimSpace(e.SweepInterval)
	if raw == "" || raw == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid escalation.sweep_interval %q: %w", e.SweepInterval, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("escalation.sweep_interval must be >= 0, got %s", d)
	}
	return d, nil
}

// LogLevel returns the configured level, falling back to info.
func (l LoggingConfig) LogLevel() log.Level {
	level, err := log.ParseLevel(strings.TrimSpace(strings.ToLower(l.Level)))
	if err != nil {
		return log.InfoLevel
	}
	return level
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
