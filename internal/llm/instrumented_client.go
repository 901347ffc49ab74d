package llm

import (
	"context"
	"time"
)

// Observer records completion latency and outcome per provider.
type Observer interface {
	ObserveCompletion(provider string, err error, elapsed time.Duration)
}

// InstrumentedClient reports every completion to an Observer.
type InstrumentedClient struct {
	provider string
	next     Client
	observer Observer
}

func NewInstrumentedClient(provider string, next Client, observer Observer) *InstrumentedClient {
	if next == nil {
		panic("llm: client required")
	}
	return &InstrumentedClient{provider: provider, next: next, observer: observer}
}

func (c *InstrumentedClient) Complete(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	resp, err := c.next.Complete(ctx, req)
	if c.observer != nil {
		c.observer.ObserveCompletion(c.provider, err, time.Since(start))
	}
	return resp, err
}
