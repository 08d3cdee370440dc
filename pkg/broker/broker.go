// Package broker defines the minimal capability surface a pub/sub
// backend must satisfy for the Pipeline to run against it: connect,
// subscribe, and flush. It intentionally mirrors the teacher's
// Producer/Consumer/Broker interfaces narrowed to the three verbs the
// pipeline actually needs, plus Close for cancellation.
package broker

import "context"

// Frame is an opaque binary message as delivered by the broker, along
// with the subject it arrived on.
type Frame struct {
	Subject string
	Data    []byte
}

// FrameHandler receives one delivered frame. It must not block the
// broker's delivery goroutine longer than necessary; long-running work
// belongs in the caller's own dispatch queue.
type FrameHandler func(ctx context.Context, frame Frame)

// Broker is the capability surface a Pipeline depends on. Implementations
// live under adapters/<name> and are interchangeable.
type Broker interface {
	// Connect establishes the connection to url. Called once per Pipeline
	// run. Connection failure is fatal to the Pipeline.
	Connect(ctx context.Context, url string) error

	// Subscribe registers handler to be invoked for every frame delivered
	// on subject. May be called multiple times for different subjects on
	// the same connection.
	Subscribe(ctx context.Context, subject string, handler FrameHandler) error

	// Flush ensures subscription acknowledgements (and any buffered
	// publishes) are in flight before the caller proceeds to its idle-wait.
	Flush(ctx context.Context) error

	// Close releases the connection. Safe to call more than once.
	Close() error
}
