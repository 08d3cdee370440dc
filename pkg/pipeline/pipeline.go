// Package pipeline binds N source subjects to one broker connection,
// owns the single-writer join state, invokes the user's validator and
// handler, and isolates per-message failures so a single poisoned
// message never tears the pipeline down.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nova-pipeline/joinbus/pkg/broker"
	"github.com/nova-pipeline/joinbus/pkg/concurrency"
	"github.com/nova-pipeline/joinbus/pkg/errors"
	"github.com/nova-pipeline/joinbus/pkg/join"
	"github.com/nova-pipeline/joinbus/pkg/join/clock"
	"github.com/nova-pipeline/joinbus/pkg/logger"
	"github.com/nova-pipeline/joinbus/pkg/payload"
	"github.com/nova-pipeline/joinbus/pkg/topic"
)

// Validator maps a decoded payload to a typed value T, or rejects it.
// Must be pure and synchronous: no suspension point is reserved for it.
type Validator func(payload.Payload) (interface{}, error)

// Handler receives the validated, possibly merged, value. May block; the
// Pipeline serializes handler invocations through a single worker, so a
// slow handler stalls delivery for this pipeline only.
type Handler func(ctx context.Context, value interface{}) error

// SourceSpec names one source and the ordered topics contributing to it.
// The slice order across sources is part of the pipeline's identity: it
// determines merge-conflict precedence (later source wins).
type SourceSpec struct {
	Name   string
	Topics []topic.Topic
}

// State is a Pipeline lifecycle state.
type State string

const (
	StateUnstarted   State = "unstarted"
	StateConnecting  State = "connecting"
	StateSubscribing State = "subscribing"
	StateRunning     State = "running"
	StateDraining    State = "draining"
	StateTerminated  State = "terminated"
)

// Option configures optional Pipeline construction parameters.
type Option func(*Pipeline)

// WithMaxAge sets the defragmenter's TTL (default 60s). <= 0 disables eviction.
func WithMaxAge(d time.Duration) Option {
	return func(p *Pipeline) { p.maxAge = d }
}

// WithClock overrides the defragmenter's time source (for tests).
func WithClock(c clock.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// Pipeline binds one or more named sources to a single broker connection.
type Pipeline struct {
	sources   []SourceSpec
	validator Validator
	handler   Handler
	key       string
	maxAge    time.Duration
	clock     clock.Clock

	joinMu *concurrency.SmartMutex
	defrag *join.Defragmenter // nil for single-source pipelines

	br   broker.Broker
	pool *concurrency.WorkerPool

	stateMu sync.Mutex
	state   State
}

// New constructs a Pipeline. sources must be non-empty; key is required
// and must be non-empty whenever len(sources) > 1.
func New(sources []SourceSpec, validator Validator, handler Handler, key string, br broker.Broker, opts ...Option) (*Pipeline, error) {
	if len(sources) == 0 {
		return nil, ErrEmptySources()
	}
	if len(sources) > 1 && key == "" {
		return nil, ErrKeyRequired()
	}

	p := &Pipeline{
		sources:   sources,
		validator: validator,
		handler:   handler,
		key:       key,
		maxAge:    60 * time.Second,
		clock:     clock.Real{},
		joinMu:    concurrency.NewSmartMutex(concurrency.MutexConfig{Name: "pipeline-join"}),
		br:        br,
		pool:      concurrency.NewWorkerPool(1, 256),
		state:     StateUnstarted,
	}

	for _, opt := range opts {
		opt(p)
	}

	if len(sources) > 1 {
		names := make([]string, len(sources))
		for i, s := range sources {
			names[i] = s.Name
		}
		p.defrag = join.New(names, key, p.maxAge, p.clock)
	}

	return p, nil
}

// State returns the Pipeline's current lifecycle state.
func (p *Pipeline) State() State {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	return p.state
}

func (p *Pipeline) setState(s State) {
	p.stateMu.Lock()
	p.state = s
	p.stateMu.Unlock()
}

// Run connects to the single broker endpoint spanned by this pipeline's
// topics, registers a subject callback per topic, flushes the broker,
// and blocks until ctx is cancelled. It returns only on cancellation or
// a fatal error (multi-endpoint topics, connection failure, or a
// subscribe failure).
func (p *Pipeline) Run(ctx context.Context) error {
	server, err := p.singleEndpoint()
	if err != nil {
		p.setState(StateTerminated)
		return err
	}

	p.setState(StateConnecting)
	if err := p.br.Connect(ctx, server); err != nil {
		p.setState(StateTerminated)
		return errors.Wrap(err, "pipeline connect failed")
	}

	p.setState(StateSubscribing)
	p.pool.Start(ctx)

	for _, source := range p.sources {
		sourceName := source.Name
		for _, t := range source.Topics {
			subject := t.SubjectName()
			handler := p.frameHandler(sourceName, subject)
			if err := p.br.Subscribe(ctx, subject, handler); err != nil {
				p.setState(StateTerminated)
				p.pool.Stop()
				return errors.Wrap(err, "pipeline subscribe failed")
			}
		}
	}

	if err := p.br.Flush(ctx); err != nil {
		p.setState(StateTerminated)
		p.pool.Stop()
		return errors.Wrap(err, "pipeline flush failed")
	}

	p.setState(StateRunning)
	<-ctx.Done()

	p.setState(StateDraining)
	p.pool.Stop()
	_ = p.br.Close()
	p.setState(StateTerminated)

	return ctx.Err()
}

// singleEndpoint returns the one broker server every topic in this
// pipeline resolves to, or ErrMultiEndpoint if topics span more than one.
func (p *Pipeline) singleEndpoint() (string, error) {
	seen := make(map[string]struct{})
	var servers []string
	for _, source := range p.sources {
		for _, t := range source.Topics {
			srv := t.Server()
			if _, ok := seen[srv]; !ok {
				seen[srv] = struct{}{}
				servers = append(servers, srv)
			}
		}
	}
	if len(servers) != 1 {
		return "", ErrMultiEndpoint(servers)
	}
	return servers[0], nil
}

func (p *Pipeline) frameHandler(sourceName, subject string) broker.FrameHandler {
	return func(ctx context.Context, frame broker.Frame) {
		defer func() {
			if r := recover(); r != nil {
				logger.L().Error("unexpected panic handling frame",
					"source", sourceName, "subject", subject, "panic", fmt.Sprint(r))
			}
		}()
		p.handleFrame(ctx, sourceName, subject, frame)
	}
}

func (p *Pipeline) handleFrame(ctx context.Context, sourceName, subject string, frame broker.Frame) {
	pl, err := payload.Decode(frame.Data)
	if err != nil {
		p.logDrop(ctx, sourceName, subject, len(frame.Data), err)
		return
	}

	if p.defrag == nil {
		p.validateAndDispatch(ctx, sourceName, subject, pl)
		return
	}

	p.joinMu.Lock()
	merged, err := p.defrag.Push(sourceName, pl)
	p.joinMu.Unlock()

	if err != nil {
		p.logDrop(ctx, sourceName, subject, len(frame.Data), err)
		return
	}

	for _, m := range merged {
		p.validateAndDispatch(ctx, sourceName, subject, m)
	}
}

func (p *Pipeline) validateAndDispatch(ctx context.Context, sourceName, subject string, pl payload.Payload) {
	value, err := p.validator(pl)
	if err != nil {
		logger.L().WarnContext(ctx, "validator rejected payload",
			"source", sourceName, "subject", subject, "error_kind", "SCHEMA_ERROR", "error", err)
		return
	}

	p.pool.Submit(func(ctx context.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.L().ErrorContext(ctx, "handler panicked",
					"source", sourceName, "subject", subject, "panic", fmt.Sprint(r))
			}
		}()
		if err := p.handler(ctx, value); err != nil {
			logger.L().ErrorContext(ctx, "handler returned error",
				"source", sourceName, "subject", subject, "error_kind", "HANDLER_ERROR", "error", err)
		}
	})
}

func (p *Pipeline) logDrop(ctx context.Context, sourceName, subject string, size int, err error) {
	kind, _ := errors.CodeOf(err)
	logger.L().WarnContext(ctx, "dropping frame",
		"source", sourceName, "subject", subject, "size", size, "error_kind", kind, "error", err)
}
