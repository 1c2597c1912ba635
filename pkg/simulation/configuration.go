package simulation

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/peter-kozarec/candlestep/pkg/utility/fixed"
)

const (
	SourceHistorical = "historical"
	SourceDuckDB     = "duckdb"
	SourceSynthetic  = "synthetic"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type SourceConfig struct {
	Kind     string        `yaml:"kind"`
	Path     string        `yaml:"path"`
	Resample time.Duration `yaml:"resample"`

	Seed       int64         `yaml:"seed"`
	StartPrice fixed.Point   `yaml:"start_price"`
	Interval   time.Duration `yaml:"interval"`
	Volatility float64       `yaml:"volatility"`
	MaxCandles int           `yaml:"max_candles"`
}

type LiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type Configuration struct {
	InitialBalance fixed.Point  `yaml:"initial_balance"`
	Symbol         string       `yaml:"symbol"`
	Timeframe      string       `yaml:"timeframe"`
	Start          time.Time    `yaml:"start"`
	End            time.Time    `yaml:"end"`
	Source         SourceConfig `yaml:"source"`
	Live           LiveConfig   `yaml:"live"`
	EventLog       string       `yaml:"event_log"`
	LogLevel       string       `yaml:"log_level"`
	Monitor        []string     `yaml:"monitor"`
}

func DefaultConfiguration() Configuration {
	return Configuration{
		InitialBalance: fixed.FromInt(10_000, 0),
		Symbol:         "BNBUSDT",
		Timeframe:      "1m",
		Source: SourceConfig{
			Kind:       SourceSynthetic,
			Seed:       1,
			StartPrice: fixed.FromInt(500, 0),
			Interval:   time.Minute,
			Volatility: 0.8,
			MaxCandles: 1440,
		},
		Live: LiveConfig{
			Addr: "127.0.0.1:8765",
		},
		LogLevel: "info",
	}
}

// LoadConfiguration reads a YAML file on top of DefaultConfiguration and validates the result.
func LoadConfiguration(path string) (Configuration, error) {
	cfg := DefaultConfiguration()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("unable to read configuration %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("unable to parse configuration %q: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Configuration) Validate() error {
	if !c.InitialBalance.IsPos() {
		return fmt.Errorf("%w: initial_balance must be positive", ErrInvalidConfig)
	}
	if c.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidConfig)
	}
	if c.Timeframe == "" {
		return fmt.Errorf("%w: timeframe is required", ErrInvalidConfig)
	}
	if !c.Start.IsZero() && !c.End.IsZero() && !c.End.After(c.Start) {
		return fmt.Errorf("%w: end must be after start", ErrInvalidConfig)
	}

	if c.Source.Resample < 0 {
		return fmt.Errorf("%w: source.resample must not be negative", ErrInvalidConfig)
	}

	switch c.Source.Kind {
	case SourceHistorical, SourceDuckDB:
		if c.Source.Path == "" {
			return fmt.Errorf("%w: %s source needs a path", ErrInvalidConfig, c.Source.Kind)
		}
	case SourceSynthetic:
		if c.Source.Interval <= 0 {
			return fmt.Errorf("%w: synthetic source needs a positive interval", ErrInvalidConfig)
		}
		if !c.Source.StartPrice.IsPos() {
			return fmt.Errorf("%w: synthetic source needs a positive start_price", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown source kind %q", ErrInvalidConfig, c.Source.Kind)
	}

	if c.Live.Enabled && c.Live.Addr == "" {
		return fmt.Errorf("%w: live.addr is required when live updates are enabled", ErrInvalidConfig)
	}
	return nil
}
