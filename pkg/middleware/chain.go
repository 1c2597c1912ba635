package middleware

import (
	"github.com/peter-kozarec/candlestep/pkg/bus"
)

type Middleware func(bus.Handler) bus.Handler

// Chain wraps handler so that the first wrapper runs outermost.
func Chain[T any](wrappers ...func(T) T) func(T) T {
	return func(handler T) T {
		for i := len(wrappers) - 1; i >= 0; i-- {
			handler = wrappers[i](handler)
		}
		return handler
	}
}

// Observe subscribes handler wrapped by middlewares to every topic of b.
func Observe(b *bus.Bus, handler bus.Handler, middlewares ...Middleware) bus.Token {
	wrappers := make([]func(bus.Handler) bus.Handler, 0, len(middlewares))
	for _, m := range middlewares {
		wrappers = append(wrappers, m)
	}
	return b.Subscribe(bus.Wildcard, Chain(wrappers...)(handler))
}
