package tests

import (
	"testing"

	"github.com/nova-pipeline/joinbus/pkg/broker/adapters/nats"
	"github.com/nova-pipeline/joinbus/pkg/test"
)

type NATSSuite struct {
	test.Suite
}

// TestNewIsUnconnected checks construction alone never dials a server:
// Connect is the only operation that should touch the network, so a
// freshly built adapter must be usable as a value before any broker is
// reachable.
func (s *NATSSuite) TestNewIsUnconnected() {
	br := nats.New(nats.Config{Name: "joinbus-test"})
	s.Require().NotNil(br)
}

func TestNATSSuite(t *testing.T) {
	test.Run(t, new(NATSSuite))
}
