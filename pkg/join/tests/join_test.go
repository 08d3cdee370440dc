package tests

import (
	"testing"
	"time"

	"github.com/nova-pipeline/joinbus/pkg/errors"
	"github.com/nova-pipeline/joinbus/pkg/join"
	"github.com/nova-pipeline/joinbus/pkg/join/clock"
	"github.com/nova-pipeline/joinbus/pkg/payload"
	"github.com/nova-pipeline/joinbus/pkg/test"
)

type JoinSuite struct {
	test.Suite
}

func (s *JoinSuite) TestTwoSourceJoin() {
	d := join.New([]string{"raw", "enriched"}, "msg_uuid", time.Minute, clock.Real{})

	merged, err := d.Push("raw", payload.Payload{"msg_uuid": "1", "x": int64(1), "over": "raw"})
	s.Require().NoError(err)
	s.Empty(merged)

	merged, err = d.Push("enriched", payload.Payload{"msg_uuid": "1", "over": "enriched", "y": int64(2)})
	s.Require().NoError(err)
	s.Require().Len(merged, 1)
	s.Equal(join.MergedPayload{"msg_uuid": "1", "x": int64(1), "over": "enriched", "y": int64(2)}, merged[0])
}

func (s *JoinSuite) TestDuplicateFragmentDoesNotDuplicateEmit() {
	d := join.New([]string{"raw", "enriched"}, "msg_uuid", time.Minute, clock.Real{})

	_, err := d.Push("raw", payload.Payload{"msg_uuid": "1", "x": int64(1)})
	s.Require().NoError(err)

	_, err = d.Push("raw", payload.Payload{"msg_uuid": "1", "x": int64(99)})
	s.Require().NoError(err)

	merged, err := d.Push("enriched", payload.Payload{"msg_uuid": "1", "y": int64(2)})
	s.Require().NoError(err)
	s.Require().Len(merged, 1)
	s.Equal(int64(99), merged[0]["x"])
}

func (s *JoinSuite) TestPartialJoinEvicted() {
	fake := clock.NewFake(time.Unix(0, 0))
	d := join.New([]string{"raw", "enriched"}, "msg_uuid", time.Second, fake)

	_, err := d.Push("raw", payload.Payload{"msg_uuid": "1"})
	s.Require().NoError(err)

	fake.Advance(2 * time.Second)

	merged, err := d.Push("raw", payload.Payload{"msg_uuid": "2"})
	s.Require().NoError(err)
	s.Empty(merged)

	// Key "1" must no longer be pending: its raw fragment was evicted, so
	// the enriched fragment starts a fresh entry and nothing is emitted.
	merged, err = d.Push("enriched", payload.Payload{"msg_uuid": "1"})
	s.Require().NoError(err)
	s.Require().Empty(merged, "key 1 should have started a fresh entry, not resumed the evicted one")

	// A new raw fragment completes the fresh entry.
	merged, err = d.Push("raw", payload.Payload{"msg_uuid": "1"})
	s.Require().NoError(err)
	s.Require().Len(merged, 1)
}

func (s *JoinSuite) TestZeroTTLDisablesEviction() {
	fake := clock.NewFake(time.Unix(0, 0))
	d := join.New([]string{"raw", "enriched"}, "msg_uuid", 0, fake)

	_, err := d.Push("raw", payload.Payload{"msg_uuid": "1"})
	s.Require().NoError(err)

	fake.Advance(10 * time.Hour)

	merged, err := d.Push("enriched", payload.Payload{"msg_uuid": "1"})
	s.Require().NoError(err)
	s.Require().Len(merged, 1)
}

func (s *JoinSuite) TestMissingJoinKey() {
	d := join.New([]string{"raw", "enriched"}, "msg_uuid", time.Minute, clock.Real{})

	_, err := d.Push("raw", payload.Payload{"x": int64(1)})
	s.Error(err)
	s.True(errors.Is(err, join.CodeMissingJoinKey))
}

func (s *JoinSuite) TestUnhashableJoinKey() {
	d := join.New([]string{"raw", "enriched"}, "msg_uuid", time.Minute, clock.Real{})

	_, err := d.Push("raw", payload.Payload{"msg_uuid": []interface{}{"nope"}})
	s.Error(err)
	s.True(errors.Is(err, join.CodeUnhashableKey))
}

func TestJoinSuite(t *testing.T) {
	test.Run(t, new(JoinSuite))
}
