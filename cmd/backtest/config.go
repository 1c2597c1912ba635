package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/peter-kozarec/candlestep/pkg/simulation"
)

const (
	EnvConfig   = "CANDLESTEP_CONFIG"
	EnvLogLevel = "CANDLESTEP_LOG_LEVEL"
	EnvFile     = ".env"
)

type options struct {
	configPath string
	eventLog   string
	logLevel   string
	dev        bool
}

// parseOptions reads .env when present, then lets flags override the environment.
func parseOptions(args []string) (options, error) {
	if err := godotenv.Load(EnvFile); err != nil && !os.IsNotExist(err) {
		return options{}, fmt.Errorf("unable to load %s: %w", EnvFile, err)
	}

	fs := flag.NewFlagSet("backtest", flag.ContinueOnError)
	var opts options
	fs.StringVar(&opts.configPath, "config", os.Getenv(EnvConfig), "path to the YAML configuration")
	fs.StringVar(&opts.eventLog, "event-log", "", "write the event log to this file, overrides event_log")
	fs.StringVar(&opts.logLevel, "log-level", os.Getenv(EnvLogLevel), "debug, info, warn or error, overrides log_level")
	fs.BoolVar(&opts.dev, "dev", false, "human readable console logs")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return opts, nil
}

func loadConfiguration(opts options) (simulation.Configuration, error) {
	cfg := simulation.DefaultConfiguration()
	if opts.configPath != "" {
		var err error
		if cfg, err = simulation.LoadConfiguration(opts.configPath); err != nil {
			return cfg, err
		}
	}

	if opts.eventLog != "" {
		cfg.EventLog = opts.eventLog
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	return cfg, cfg.Validate()
}
