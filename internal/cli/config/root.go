// Package config holds the state shared by every ohlcv subcommand: the
// loaded config file and the process logger.
package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	appconfig "github.com/rustyeddy/ohlcv/config"
)

type RootConfig struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string

	// Set by Load.
	Cfg *appconfig.Config
	Log *logrus.Logger
}

// Load reads ConfigPath (or the defaults when it is empty), applies the log
// flags on top and builds the logger writing to w.
func (rc *RootConfig) Load(w io.Writer) error {
	cfg := appconfig.Default()
	if rc.ConfigPath != "" {
		loaded, err := appconfig.LoadFromFile(rc.ConfigPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if rc.LogLevel != "" {
		cfg.Log.Level = rc.LogLevel
	}
	if rc.LogFormat != "" {
		cfg.Log.Format = rc.LogFormat
	}

	log, err := NewLogger(cfg.Log, w)
	if err != nil {
		return err
	}
	rc.Cfg, rc.Log = cfg, log
	return nil
}

// NewLogger builds a logrus logger from the log section of the config.
func NewLogger(lc appconfig.LogConfig, w io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(strings.ToLower(lc.Level))
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	log := logrus.New()
	log.SetOutput(w)
	log.SetLevel(level)
	switch lc.Format {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unknown log format %q", lc.Format)
	}
	return log, nil
}
