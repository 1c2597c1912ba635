package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/candlestep/internal/dbg"
	"github.com/peter-kozarec/candlestep/pkg/datasource"
	"github.com/peter-kozarec/candlestep/pkg/middleware"
	"github.com/peter-kozarec/candlestep/pkg/simulation"
	"github.com/peter-kozarec/candlestep/pkg/transport/ws"
)

const Version = "0.1.0"

func main() {
	if err := run(os.Args[1:]); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	opts, err := parseOptions(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfiguration(opts)
	if err != nil {
		return err
	}

	newLogger := dbg.NewProdLogger
	if opts.dev {
		newLogger = dbg.NewDevLogger
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	logger.Info(fmt.Sprintf("candlestep backtest %s", Version))
	defer logger.Info("done")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	loader, release, err := newLoader(cfg.Source)
	if err != nil {
		logger.Error("unable to open data source", zap.Error(err))
		return err
	}
	defer func() {
		if err := release(); err != nil {
			logger.Warn("unable to release data source", zap.Error(err))
		}
	}()

	candles, err := loader.Load(ctx, datasource.Selection{
		Symbol:    cfg.Symbol,
		Timeframe: cfg.Timeframe,
		From:      cfg.Start,
		To:        cfg.End,
	})
	if err != nil {
		logger.Error("unable to load candles", zap.Error(err))
		return err
	}

	flags, err := middleware.ParseMonitorFlags(cfg.Monitor)
	if err != nil {
		return err
	}

	var simOptions []simulation.Option
	var gate *simulation.ChannelGate
	if cfg.Live.Enabled {
		gate = simulation.NewChannelGate()
		simOptions = append(simOptions, simulation.WithGate(gate))
	}

	simulator := simulation.NewSimulator(logger, cfg, datasource.NewCursor(candles), NewBracket(logger), simOptions...)
	simulator.PrintDetails()

	monitor := middleware.NewMonitor(logger, flags)
	telemetry := middleware.NewTelemetry(logger)
	performance := middleware.NewPerformance(logger)
	middleware.Observe(simulator.Bus(), middleware.Noop, telemetry.WithEvent, performance.WithEvent, monitor.WithEvent)
	defer performance.PrintStatistics()
	defer telemetry.PrintStatistics()

	if gate != nil {
		hub := ws.NewHub(logger, gate)
		hub.Attach(simulator.Bus())
		defer hub.Close()

		server := &http.Server{Addr: cfg.Live.Addr, Handler: hub, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("waiting for live clients", zap.String("addr", cfg.Live.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("live server failed", zap.Error(err))
				cancel()
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	report, err := simulator.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("simulation interrupted")
			return nil
		}
		logger.Error("error during simulation", zap.Error(err))
		return err
	}
	report.Print(logger)
	simulator.Bus().Statistics().Print(logger)

	if cfg.EventLog != "" {
		if err := simulator.Log().SaveFile(cfg.EventLog); err != nil {
			logger.Error("unable to save event log", zap.Error(err))
			return err
		}
		logger.Info("event log saved", zap.String("path", cfg.EventLog), zap.Int("events", simulator.Log().Len()))
	}
	return nil
}
