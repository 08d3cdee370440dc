package broker

import (
	"context"
	"time"

	"github.com/nova-pipeline/joinbus/pkg/resilience"
)

// ResilientConfig configures the resilient broker wrapper. Only Connect
// is guarded: spec-level ConnectFailure is fatal on the final attempt,
// but transient failures during a reconnect storm are exactly what a
// breaker and a bounded retry are for.
type ResilientConfig struct {
	CircuitBreakerEnabled   bool          `env:"BROKER_CB_ENABLED" env-default:"true"`
	CircuitBreakerThreshold int64         `env:"BROKER_CB_THRESHOLD" env-default:"5"`
	CircuitBreakerTimeout   time.Duration `env:"BROKER_CB_TIMEOUT" env-default:"30s"`

	RetryEnabled     bool          `env:"BROKER_RETRY_ENABLED" env-default:"true"`
	RetryMaxAttempts int           `env:"BROKER_RETRY_MAX" env-default:"3"`
	RetryBackoff     time.Duration `env:"BROKER_RETRY_BACKOFF" env-default:"200ms"`
}

// Resilient wraps a Broker's Connect call with circuit breaker and retry.
type Resilient struct {
	next     Broker
	cb       *resilience.CircuitBreaker
	retryCfg resilience.RetryConfig
}

// NewResilient wraps next with resilience features configured by cfg.
func NewResilient(next Broker, cfg ResilientConfig) *Resilient {
	r := &Resilient{next: next}

	if cfg.CircuitBreakerEnabled {
		r.cb = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:             "broker-connect",
			FailureThreshold: cfg.CircuitBreakerThreshold,
			SuccessThreshold: 2,
			Timeout:          cfg.CircuitBreakerTimeout,
		})
	}

	if cfg.RetryEnabled {
		r.retryCfg = resilience.RetryConfig{
			MaxAttempts:    cfg.RetryMaxAttempts,
			InitialBackoff: cfg.RetryBackoff,
			MaxBackoff:     5 * time.Second,
			Multiplier:     2.0,
		}
	}

	return r
}

func (r *Resilient) Connect(ctx context.Context, url string) error {
	operation := func(ctx context.Context) error {
		return r.next.Connect(ctx, url)
	}

	if r.cb != nil {
		cbFn := operation
		operation = func(ctx context.Context) error {
			return r.cb.Execute(ctx, cbFn)
		}
	}

	if r.retryCfg.MaxAttempts > 0 {
		return resilience.Retry(ctx, r.retryCfg, operation)
	}

	return operation(ctx)
}

func (r *Resilient) Subscribe(ctx context.Context, subject string, handler FrameHandler) error {
	return r.next.Subscribe(ctx, subject, handler)
}

func (r *Resilient) Flush(ctx context.Context) error {
	return r.next.Flush(ctx)
}

func (r *Resilient) Close() error {
	return r.next.Close()
}
