// Package subscriber is the user-facing registration surface: a
// declarative binding of (subjects, validator, key, handler) that
// collects at most one Pipeline and runs it.
package subscriber

import (
	"context"
	"sync"
	"time"

	"github.com/nova-pipeline/joinbus/pkg/broker"
	"github.com/nova-pipeline/joinbus/pkg/pipeline"
	"github.com/nova-pipeline/joinbus/pkg/topic"
)

// SubscribeOptions describes one registration. Exactly one of Topics
// (single logical source, auto-named "source") or Sources (named
// multi-source join) must be set — mixing them fails with
// ErrAmbiguousSubscription.
type SubscribeOptions struct {
	Topics    []topic.Topic
	Sources   []pipeline.SourceSpec
	Validator pipeline.Validator
	Key       string

	// MaxAge overrides the defragmenter's default TTL when non-nil.
	MaxAge *time.Duration
}

// Subscriber registers at most one Pipeline and runs it to completion.
type Subscriber struct {
	br broker.Broker

	mu        sync.Mutex
	pipelines []*pipeline.Pipeline
}

// New creates a Subscriber bound to br.
func New(br broker.Broker) *Subscriber {
	return &Subscriber{br: br}
}

// Subscribe validates opts and returns a registration function: calling
// it with a handler constructs and stores the Pipeline. Validation
// errors (ambiguous subscription, missing key) are raised immediately,
// here, rather than deferred to the returned function.
func (s *Subscriber) Subscribe(opts SubscribeOptions) (func(pipeline.Handler) error, error) {
	if len(opts.Topics) > 0 && len(opts.Sources) > 0 {
		return nil, ErrAmbiguousSubscription()
	}

	sources := opts.Sources
	if len(opts.Topics) > 0 {
		sources = []pipeline.SourceSpec{{Name: "source", Topics: opts.Topics}}
	}

	if totalSubjects(sources) > 1 && opts.Key == "" {
		return nil, ErrKeyRequired()
	}

	return func(handler pipeline.Handler) error {
		var pipelineOpts []pipeline.Option
		if opts.MaxAge != nil {
			pipelineOpts = append(pipelineOpts, pipeline.WithMaxAge(*opts.MaxAge))
		}

		pl, err := pipeline.New(sources, opts.Validator, handler, opts.Key, s.br, pipelineOpts...)
		if err != nil {
			return err
		}

		s.mu.Lock()
		s.pipelines = append(s.pipelines, pl)
		s.mu.Unlock()
		return nil
	}, nil
}

// Run blocks running the single registered Pipeline until ctx is
// cancelled. Preconditions: exactly one Pipeline must be registered;
// zero raises ErrNoPipeline, more than one raises
// ErrMultiPipelineUnsupported.
func (s *Subscriber) Run(ctx context.Context) error {
	s.mu.Lock()
	n := len(s.pipelines)
	var pl *pipeline.Pipeline
	if n == 1 {
		pl = s.pipelines[0]
	}
	s.mu.Unlock()

	switch {
	case n == 0:
		return ErrNoPipeline()
	case n > 1:
		return ErrMultiPipelineUnsupported()
	}

	return pl.Run(ctx)
}

func totalSubjects(sources []pipeline.SourceSpec) int {
	n := 0
	for _, s := range sources {
		n += len(s.Topics)
	}
	return n
}
