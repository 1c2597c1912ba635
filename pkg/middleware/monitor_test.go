package middleware

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/peter-kozarec/candlestep/pkg/bus"
)

func setupTestLogger(_ *testing.T) (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.InfoLevel)
	return zap.New(core), logs
}

func TestMiddlewareMonitor_ParseMonitorFlags(t *testing.T) {
	flags, err := ParseMonitorFlags([]string{"order.filled", " Position.Updated "})
	if err != nil {
		t.Fatalf("Unexpected error %v", err)
	}
	if flags&MonitorOrdersFilled == 0 || flags&MonitorPositions == 0 {
		t.Errorf("Expected filled and positions flags, got %d", flags)
	}
	if flags&MonitorPriceTicks != 0 {
		t.Errorf("Unexpected price tick flag in %d", flags)
	}

	if _, err := ParseMonitorFlags([]string{"bars"}); err == nil {
		t.Error("Expected error for unknown topic")
	}
}

func TestMiddlewareMonitor_WithEvent(t *testing.T) {
	logger, logs := setupTestLogger(t)

	var handlerCalled bool
	handler := func(bus.Event) error {
		handlerCalled = true
		return nil
	}

	m := NewMonitor(logger, MonitorOrdersFilled)
	wrapped := m.WithEvent(handler)

	if err := wrapped(bus.Event{Type: bus.TopicOrderFilled, ID: "1-ABCD-1"}); err != nil {
		t.Fatalf("Unexpected error %v", err)
	}
	if err := wrapped(bus.Event{Type: bus.TopicPriceTick, ID: "1-EFAB-1"}); err != nil {
		t.Fatalf("Unexpected error %v", err)
	}

	if !handlerCalled {
		t.Error("Handler not called")
	}
	if logs.Len() != 1 {
		t.Fatalf("Expected 1 log entry, got %d", logs.Len())
	}
	if got := logs.All()[0].ContextMap()["type"]; got != bus.TopicOrderFilled {
		t.Errorf("Expected %s, got %v", bus.TopicOrderFilled, got)
	}
}

func TestMiddlewareMonitor_WithEventMonitorAll(t *testing.T) {
	logger, logs := setupTestLogger(t)

	wrapped := NewMonitor(logger, MonitorAll).WithEvent(Noop)
	_ = wrapped(bus.Event{Type: "custom.topic"})

	if logs.Len() != 1 {
		t.Error("Log entry not found with MonitorAll")
	}
}

func TestMiddlewareMonitor_WithEventNoMonitor(t *testing.T) {
	logger, logs := setupTestLogger(t)

	wrapped := NewMonitor(logger, MonitorNone).WithEvent(Noop)
	_ = wrapped(bus.Event{Type: bus.TopicOrderFilled})

	if logs.Len() != 0 {
		t.Error("Unexpected log entry")
	}
}

func TestMiddlewareTelemetry_WithEvent(t *testing.T) {
	logger, logs := setupTestLogger(t)

	telemetry := NewTelemetry(logger)
	failing := telemetry.WithEvent(func(bus.Event) error { return errors.New("boom") })
	passing := telemetry.WithEvent(Noop)

	_ = passing(bus.Event{Type: bus.TopicPriceTick})
	_ = passing(bus.Event{Type: bus.TopicPriceTick})
	if err := failing(bus.Event{Type: bus.TopicOrderFilled}); err == nil {
		t.Error("Expected handler error to pass through")
	}

	if telemetry.Count(bus.TopicPriceTick) != 2 || telemetry.Count(bus.TopicOrderFilled) != 1 {
		t.Errorf("Unexpected counts %d %d", telemetry.Count(bus.TopicPriceTick), telemetry.Count(bus.TopicOrderFilled))
	}

	telemetry.PrintStatistics()
	fields := logs.All()[0].ContextMap()
	if fields["total"] != int64(3) || fields["failures"] != int64(1) {
		t.Errorf("Unexpected statistics %v", fields)
	}
}

func TestMiddlewarePerformance_WithEvent(t *testing.T) {
	logger, logs := setupTestLogger(t)

	performance := NewPerformance(logger)
	wrapped := performance.WithEvent(Noop)
	_ = wrapped(bus.Event{Type: bus.TopicAccountPnL})

	if performance.calls[bus.TopicAccountPnL] != 1 {
		t.Error("Call not recorded")
	}

	performance.PrintStatistics()
	if logs.Len() != 1 {
		t.Error("Statistics not logged")
	}
}
