package simulation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestChannelGate_ContinueBeforeWait(t *testing.T) {
	gate := NewChannelGate()
	gate.Continue()
	gate.Continue()

	assert.NoError(t, gate.Wait(context.Background()))
	assert.Equal(t, GateReady, gate.State())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, gate.Wait(ctx), context.DeadlineExceeded)
	assert.Equal(t, int64(2), gate.Waits())
}

func TestFreeRunning_Wait(t *testing.T) {
	assert.NoError(t, FreeRunning{}.Wait(context.Background()))
}
