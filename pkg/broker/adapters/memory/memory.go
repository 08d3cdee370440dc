// Package memory provides an in-process Broker implementation for tests
// and the example command: Connect is a no-op, Subscribe registers a
// handler per subject, and a Publish helper (test-only surface, not
// part of the broker.Broker contract) drives delivery synchronously.
package memory

import (
	"context"
	"sync"

	"github.com/nova-pipeline/joinbus/pkg/broker"
)

// Broker is an in-memory pub/sub broker. Deliveries are synchronous:
// Publish invokes every matching subscriber's handler on the caller's
// goroutine before returning.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[string][]broker.FrameHandler
	connected   bool
	closed      bool
}

// New creates an unconnected in-memory broker.
func New() *Broker {
	return &Broker{subscribers: make(map[string][]broker.FrameHandler)}
}

func (b *Broker) Connect(ctx context.Context, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = true
	return nil
}

func (b *Broker) Subscribe(ctx context.Context, subject string, handler broker.FrameHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[subject] = append(b.subscribers[subject], handler)
	return nil
}

func (b *Broker) Flush(ctx context.Context) error {
	return nil
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Publish delivers data to every handler subscribed to subject. It is a
// test/demo driver, not part of the Broker interface: real adapters
// receive frames from their backend rather than from a local caller.
func (b *Broker) Publish(ctx context.Context, subject string, data []byte) {
	b.mu.RLock()
	handlers := append([]broker.FrameHandler(nil), b.subscribers[subject]...)
	b.mu.RUnlock()

	frame := broker.Frame{Subject: subject, Data: data}
	for _, h := range handlers {
		h(ctx, frame)
	}
}
