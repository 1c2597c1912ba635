package simulation

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peter-kozarec/candlestep/pkg/utility/fixed"
)

func TestConfiguration_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backtest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
initial_balance: 2500.5
symbol: ETHUSDT
timeframe: 1h
start: 2024-01-01T00:00:00Z
end: 2024-02-01T00:00:00Z
source:
  kind: historical
  path: data
live:
  enabled: true
  addr: 0.0.0.0:9000
event_log: events.jsonl
monitor: [order.filled, position.updated]
`), 0o600))

	cfg, err := LoadConfiguration(path)
	require.NoError(t, err)

	assert.True(t, cfg.InitialBalance.Eq(fixed.MustParse("2500.5")))
	assert.Equal(t, "ETHUSDT", cfg.Symbol)
	assert.Equal(t, "1h", cfg.Timeframe)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), cfg.Start.UTC())
	assert.Equal(t, SourceHistorical, cfg.Source.Kind)
	assert.Equal(t, "data", cfg.Source.Path)
	assert.True(t, cfg.Live.Enabled)
	assert.Equal(t, "0.0.0.0:9000", cfg.Live.Addr)
	assert.Equal(t, "events.jsonl", cfg.EventLog)
	assert.Equal(t, []string{"order.filled", "position.updated"}, cfg.Monitor)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, time.Minute, cfg.Source.Interval)
}

func TestConfiguration_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Configuration)
	}{
		{"zero balance", func(c *Configuration) { c.InitialBalance = fixed.Zero }},
		{"missing symbol", func(c *Configuration) { c.Symbol = "" }},
		{"missing timeframe", func(c *Configuration) { c.Timeframe = "" }},
		{"end before start", func(c *Configuration) {
			c.Start = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
			c.End = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		}},
		{"unknown source", func(c *Configuration) { c.Source.Kind = "csv" }},
		{"historical without path", func(c *Configuration) { c.Source.Kind = SourceHistorical }},
		{"synthetic without interval", func(c *Configuration) { c.Source.Interval = 0 }},
		{"live without addr", func(c *Configuration) {
			c.Live.Enabled = true
			c.Live.Addr = ""
		}},
	}

	assert.NoError(t, DefaultConfiguration().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfiguration()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestConfiguration_LoadMissingFile(t *testing.T) {
	_, err := LoadConfiguration(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
