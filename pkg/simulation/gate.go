package simulation

import (
	"context"
	"sync/atomic"
)

// Gate is consulted at the end of every tick before the next candle is taken.
type Gate interface {
	Wait(ctx context.Context) error
}

type GateState int32

const (
	GateReady GateState = iota
	GateAwaiting
)

func (s GateState) String() string {
	if s == GateAwaiting {
		return "Awaiting"
	}
	return "Ready"
}

// FreeRunning never blocks.
type FreeRunning struct{}

func (FreeRunning) Wait(context.Context) error {
	return nil
}

// ChannelGate holds the tick loop in the Awaiting state until an external Continue arrives.
// One Continue sent ahead of time is remembered.
type ChannelGate struct {
	resume chan struct{}
	state  atomic.Int32
	waits  atomic.Int64
}

func NewChannelGate() *ChannelGate {
	return &ChannelGate{
		resume: make(chan struct{}, 1),
	}
}

func (g *ChannelGate) Wait(ctx context.Context) error {
	g.waits.Add(1)
	g.state.Store(int32(GateAwaiting))
	defer g.state.Store(int32(GateReady))

	select {
	case <-g.resume:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *ChannelGate) Continue() {
	select {
	case g.resume <- struct{}{}:
	default:
	}
}

func (g *ChannelGate) State() GateState {
	return GateState(g.state.Load())
}

// Waits counts how many times the loop has entered the Awaiting state.
func (g *ChannelGate) Waits() int64 {
	return g.waits.Load()
}
