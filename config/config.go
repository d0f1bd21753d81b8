package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/ohlcv/internal/kraken"
	"github.com/rustyeddy/ohlcv/market"
)

// Config is everything the ohlcv commands read from a config file.
type Config struct {
	Resample ResampleConfig `json:"resample" yaml:"resample"`
	Input    InputConfig    `json:"input" yaml:"input"`
	Output   OutputConfig   `json:"output" yaml:"output"`
	Kraken   KrakenConfig   `json:"kraken" yaml:"kraken"`
	Log      LogConfig      `json:"log" yaml:"log"`
}

// ResampleConfig controls candle aggregation.
type ResampleConfig struct {
	Granularity   string `json:"granularity" yaml:"granularity"` // M1, M5, M30, H1, H5, D1, D10
	Interpolate   bool   `json:"interpolate" yaml:"interpolate"`
	FlushTrailing bool   `json:"flush_trailing" yaml:"flush_trailing"`
}

// Window parses Granularity.
func (r ResampleConfig) Window() (market.Granularity, error) {
	return market.ParseGranularity(r.Granularity)
}

// InputConfig names the trade history to read.
type InputConfig struct {
	Path string `json:"path" yaml:"path"` // .xz and .lzma are decompressed
	Pair string `json:"pair" yaml:"pair"`
}

// OutputConfig selects the candle sink.
type OutputConfig struct {
	Type string `json:"type" yaml:"type"` // "csv", "sqlite" or "postgres"
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	DSN  string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

// KrakenConfig contains exchange client parameters.
type KrakenConfig struct {
	BaseURL        string   `json:"base_url" yaml:"base_url"`
	Pairs          []string `json:"pairs" yaml:"pairs"`
	CallsPerWindow int      `json:"calls_per_window" yaml:"calls_per_window"`
	Decay          string   `json:"decay" yaml:"decay"`     // e.g. "3s"
	Backoff        string   `json:"backoff" yaml:"backoff"` // wait after a rate limit
	DepthCount     int      `json:"depth_count,omitempty" yaml:"depth_count,omitempty"`
	PollInterval   string   `json:"poll_interval" yaml:"poll_interval"`
	KeyFile        string   `json:"key_file,omitempty" yaml:"key_file,omitempty"`
}

// Durations parses Decay, Backoff and PollInterval; empty values parse as 0.
func (k KrakenConfig) Durations() (decay, backoff, poll time.Duration, err error) {
	parse := func(name, s string) (time.Duration, error) {
		if s == "" {
			return 0, nil
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("kraken.%s: %w", name, err)
		}
		return d, nil
	}
	if decay, err = parse("decay", k.Decay); err != nil {
		return
	}
	if backoff, err = parse("backoff", k.Backoff); err != nil {
		return
	}
	poll, err = parse("poll_interval", k.PollInterval)
	return
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // "text" or "json"
}

// LoadFromFile reads a YAML or JSON config. Keys missing from the file keep
// their Default values.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes YAML for .yaml/.yml paths and indented JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks the config. An unsupported granularity is reported here so
// that a bad config fails before any input is read.
func (c *Config) Validate() error {
	if _, err := c.Resample.Window(); err != nil {
		return fmt.Errorf("resample.granularity: %w", err)
	}

	switch c.Output.Type {
	case "csv", "sqlite":
		if c.Output.Path == "" {
			return fmt.Errorf("output.path required for %s output", c.Output.Type)
		}
	case "postgres":
		if c.Output.DSN == "" {
			return fmt.Errorf("output.dsn required for postgres output")
		}
	default:
		return fmt.Errorf("output.type must be 'csv', 'sqlite' or 'postgres'")
	}

	if c.Kraken.CallsPerWindow <= 0 {
		return fmt.Errorf("kraken.calls_per_window must be positive")
	}
	if c.Kraken.DepthCount < 0 {
		return fmt.Errorf("kraken.depth_count must not be negative")
	}
	decay, backoff, poll, err := c.Kraken.Durations()
	if err != nil {
		return err
	}
	if decay <= 0 {
		return fmt.Errorf("kraken.decay must be positive")
	}
	if backoff < 0 || poll < 0 {
		return fmt.Errorf("kraken durations must not be negative")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be 'text' or 'json'")
	}
	return nil
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Resample: ResampleConfig{
			Granularity: "M1",
			Interpolate: true,
		},
		Input: InputConfig{
			Path: "./trades.csv",
			Pair: "XXBTZUSD",
		},
		Output: OutputConfig{
			Type: "csv",
			Path: "./candles.csv",
		},
		Kraken: KrakenConfig{
			BaseURL:        kraken.DefaultBaseURL,
			Pairs:          []string{"XXBTZUSD"},
			CallsPerWindow: kraken.DefaultMaxCalls,
			Decay:          kraken.DefaultCallDecay.String(),
			Backoff:        kraken.DefaultBackoff.String(),
			PollInterval:   "1m0s",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
