package tests

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nova-pipeline/joinbus/pkg/broker/adapters/memory"
	"github.com/nova-pipeline/joinbus/pkg/errors"
	"github.com/nova-pipeline/joinbus/pkg/join/clock"
	"github.com/nova-pipeline/joinbus/pkg/payload"
	"github.com/nova-pipeline/joinbus/pkg/pipeline"
	"github.com/nova-pipeline/joinbus/pkg/test"
	"github.com/nova-pipeline/joinbus/pkg/topic"
	"github.com/vmihailenco/msgpack/v5"
)

type PipelineSuite struct {
	test.Suite
}

func identityValidator(p payload.Payload) (interface{}, error) {
	return p, nil
}

func mustTopic(s *PipelineSuite, raw string) topic.Topic {
	t, err := topic.Parse(raw)
	s.Require().NoError(err)
	return t
}

func mustFrame(s *PipelineSuite, v interface{}) []byte {
	b, err := msgpack.Marshal(v)
	s.Require().NoError(err)
	return b
}

// recordingHandler collects every value the pipeline dispatches.
type recordingHandler struct {
	mu     sync.Mutex
	values []interface{}
	done   chan struct{}
}

func newRecordingHandler(expect int) *recordingHandler {
	return &recordingHandler{done: make(chan struct{}, expect)}
}

func (r *recordingHandler) handle(ctx context.Context, v interface{}) error {
	r.mu.Lock()
	r.values = append(r.values, v)
	r.mu.Unlock()
	r.done <- struct{}{}
	return nil
}

func (r *recordingHandler) waitFor(n int, timeout time.Duration) bool {
	for i := 0; i < n; i++ {
		select {
		case <-r.done:
		case <-time.After(timeout):
			return false
		}
	}
	return true
}

func (r *recordingHandler) snapshot() []interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]interface{}, len(r.values))
	copy(out, r.values)
	return out
}

// Scenario 1 — single source passthrough.
func (s *PipelineSuite) TestSingleSourcePassthrough() {
	br := memory.New()
	rec := newRecordingHandler(1)

	pl, err := pipeline.New(
		[]pipeline.SourceSpec{{Name: "source", Topics: []topic.Topic{mustTopic(s, "nats://localhost:4222/foo")}}},
		identityValidator, rec.handle, "", br,
	)
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	go pl.Run(ctx)
	s.waitForState(pl, pipeline.StateRunning)

	br.Publish(ctx, "foo", mustFrame(s, map[string]interface{}{"a": int64(7)}))
	s.Require().True(rec.waitFor(1, time.Second))

	cancel()
	s.Equal(payload.Payload{"a": int64(7)}, rec.snapshot()[0])
}

// Scenario 2 — two-source join.
func (s *PipelineSuite) TestTwoSourceJoin() {
	br := memory.New()
	rec := newRecordingHandler(1)

	pl, err := pipeline.New(
		[]pipeline.SourceSpec{
			{Name: "raw", Topics: []topic.Topic{mustTopic(s, "nats://localhost:4222/raw")}},
			{Name: "enriched", Topics: []topic.Topic{mustTopic(s, "nats://localhost:4222/enriched")}},
		},
		identityValidator, rec.handle, "msg_uuid", br,
	)
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	go pl.Run(ctx)
	s.waitForState(pl, pipeline.StateRunning)

	br.Publish(ctx, "raw", mustFrame(s, map[string]interface{}{"msg_uuid": "1", "x": int64(1), "over": "raw"}))
	br.Publish(ctx, "enriched", mustFrame(s, map[string]interface{}{"msg_uuid": "1", "over": "enriched", "y": int64(2)}))

	s.Require().True(rec.waitFor(1, time.Second))
	cancel()

	got := rec.snapshot()[0].(payload.Payload)
	s.Equal("1", got["msg_uuid"])
	s.Equal(int64(1), got["x"])
	s.Equal(int64(2), got["y"])
	s.Equal("enriched", got["over"])
}

// Scenario 4 — poisoned message isolation.
func (s *PipelineSuite) TestPoisonedMessageIsolation() {
	br := memory.New()
	rec := newRecordingHandler(1)

	pl, err := pipeline.New(
		[]pipeline.SourceSpec{{Name: "source", Topics: []topic.Topic{mustTopic(s, "nats://localhost:4222/foo")}}},
		identityValidator, rec.handle, "", br,
	)
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	go pl.Run(ctx)
	s.waitForState(pl, pipeline.StateRunning)

	br.Publish(ctx, "foo", mustFrame(s, []int{1, 2, 3})) // not a mapping
	br.Publish(ctx, "foo", mustFrame(s, map[string]interface{}{"a": int64(7)}))

	s.Require().True(rec.waitFor(1, time.Second))
	cancel()
	s.Len(rec.snapshot(), 1)
}

// Scenario 5 — duplicate fragment does not duplicate emit.
func (s *PipelineSuite) TestDuplicateFragmentNoDuplicateEmit() {
	br := memory.New()
	rec := newRecordingHandler(1)

	pl, err := pipeline.New(
		[]pipeline.SourceSpec{
			{Name: "raw", Topics: []topic.Topic{mustTopic(s, "nats://localhost:4222/raw")}},
			{Name: "enriched", Topics: []topic.Topic{mustTopic(s, "nats://localhost:4222/enriched")}},
		},
		identityValidator, rec.handle, "msg_uuid", br,
	)
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	go pl.Run(ctx)
	s.waitForState(pl, pipeline.StateRunning)

	br.Publish(ctx, "raw", mustFrame(s, map[string]interface{}{"msg_uuid": "1", "x": int64(1)}))
	br.Publish(ctx, "raw", mustFrame(s, map[string]interface{}{"msg_uuid": "1", "x": int64(99)}))
	br.Publish(ctx, "enriched", mustFrame(s, map[string]interface{}{"msg_uuid": "1", "y": int64(2)}))

	s.Require().True(rec.waitFor(1, time.Second))
	cancel()

	got := rec.snapshot()
	s.Require().Len(got, 1)
	s.Equal(int64(99), got[0].(payload.Payload)["x"])
}

// Scenario 6 — multi-endpoint rejection.
func (s *PipelineSuite) TestMultiEndpointRejection() {
	br := memory.New()
	rec := newRecordingHandler(0)

	pl, err := pipeline.New(
		[]pipeline.SourceSpec{{Name: "source", Topics: []topic.Topic{
			mustTopic(s, "nats://a:4222/s"),
			mustTopic(s, "nats://b:4222/s"),
		}}},
		identityValidator, rec.handle, "", br,
	)
	s.Require().NoError(err)

	err = pl.Run(context.Background())
	s.Error(err)
	s.True(errors.Is(err, pipeline.CodeMultiEndpoint))
	s.Equal(pipeline.StateTerminated, pl.State())
}

func (s *PipelineSuite) TestEmptySourcesFailsConstruction() {
	br := memory.New()
	_, err := pipeline.New(nil, identityValidator, func(context.Context, interface{}) error { return nil }, "", br)
	s.Error(err)
	s.True(errors.Is(err, pipeline.CodeEmptySources))
}

func (s *PipelineSuite) TestTwoSourcesWithoutKeyFailsConstruction() {
	br := memory.New()
	_, err := pipeline.New(
		[]pipeline.SourceSpec{
			{Name: "raw", Topics: []topic.Topic{mustTopic(s, "nats://localhost:4222/raw")}},
			{Name: "enriched", Topics: []topic.Topic{mustTopic(s, "nats://localhost:4222/enriched")}},
		},
		identityValidator, func(context.Context, interface{}) error { return nil }, "", br,
	)
	s.Error(err)
	s.True(errors.Is(err, pipeline.CodeKeyRequired))
}

func (s *PipelineSuite) waitForState(pl *pipeline.Pipeline, want pipeline.State) {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if pl.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	s.FailNow("pipeline never reached state " + string(want))
}

// TestPartialJoinEvicted exercises the fake clock through a full pipeline,
// matching Scenario 3 — partial join evicted.
func (s *PipelineSuite) TestPartialJoinEvicted() {
	br := memory.New()
	rec := newRecordingHandler(1)
	fake := clock.NewFake(time.Unix(0, 0))

	pl, err := pipeline.New(
		[]pipeline.SourceSpec{
			{Name: "raw", Topics: []topic.Topic{mustTopic(s, "nats://localhost:4222/raw")}},
			{Name: "enriched", Topics: []topic.Topic{mustTopic(s, "nats://localhost:4222/enriched")}},
		},
		identityValidator, rec.handle, "msg_uuid", br,
		pipeline.WithMaxAge(time.Second), pipeline.WithClock(fake),
	)
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	go pl.Run(ctx)
	s.waitForState(pl, pipeline.StateRunning)

	br.Publish(ctx, "raw", mustFrame(s, map[string]interface{}{"msg_uuid": "1"}))
	fake.Advance(2 * time.Second)
	br.Publish(ctx, "raw", mustFrame(s, map[string]interface{}{"msg_uuid": "2"}))
	br.Publish(ctx, "enriched", mustFrame(s, map[string]interface{}{"msg_uuid": "1"}))

	// Key "1"'s raw fragment was evicted, so the enriched fragment starts a
	// fresh entry and no merged payload is dispatched.
	s.Require().False(rec.waitFor(1, 100*time.Millisecond), "evicted key 1 must not produce a merged payload")

	// A new raw fragment completes the fresh entry for key "1".
	br.Publish(ctx, "raw", mustFrame(s, map[string]interface{}{"msg_uuid": "1"}))

	s.Require().True(rec.waitFor(1, time.Second))
	cancel()

	got := rec.snapshot()
	s.Require().Len(got, 1)
	s.Equal("1", got[0].(payload.Payload)["msg_uuid"], "key 1 should re-emit as a fresh entry, not via the evicted one")
}

func TestPipelineSuite(t *testing.T) {
	test.Run(t, new(PipelineSuite))
}
