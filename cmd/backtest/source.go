package main

import (
	"fmt"

	"github.com/peter-kozarec/candlestep/pkg/datasource"
	"github.com/peter-kozarec/candlestep/pkg/datasource/duckdb"
	"github.com/peter-kozarec/candlestep/pkg/datasource/historical"
	"github.com/peter-kozarec/candlestep/pkg/datasource/synthetic"
	"github.com/peter-kozarec/candlestep/pkg/simulation"
)

// newLoader returns the candle loader named by the configuration and a function releasing it.
func newLoader(cfg simulation.SourceConfig) (datasource.Loader, func() error, error) {
	loader, release, err := newSourceLoader(cfg)
	if err != nil || cfg.Resample == 0 {
		return loader, release, err
	}
	return datasource.NewResampler(loader, cfg.Resample), release, nil
}

func newSourceLoader(cfg simulation.SourceConfig) (datasource.Loader, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Kind {
	case simulation.SourceHistorical:
		return historical.NewReader(cfg.Path), noop, nil
	case simulation.SourceDuckDB:
		reader := duckdb.NewReader(cfg.Path)
		if err := reader.Connect(); err != nil {
			return nil, noop, err
		}
		return reader, reader.Close, nil
	case simulation.SourceSynthetic:
		var options []synthetic.Option
		if cfg.Volatility > 0 {
			options = append(options, synthetic.WithVolatility(cfg.Volatility))
		}
		if cfg.MaxCandles > 0 {
			options = append(options, synthetic.WithMaxCandles(cfg.MaxCandles))
		}
		return synthetic.NewCandleGenerator(cfg.Seed, cfg.StartPrice, cfg.Interval, options...), noop, nil
	default:
		return nil, noop, fmt.Errorf("%w: unknown source kind %q", simulation.ErrInvalidConfig, cfg.Kind)
	}
}
