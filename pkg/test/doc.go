/*
Package test provides testing utilities for joinbus.

This package includes:
  - Suite: Base test suite with context and testify integration
  - Run: helper to run a Suite from a standard Test* function

Usage:

	import "github.com/nova-pipeline/joinbus/pkg/test"

	type MyTestSuite struct {
		test.Suite
	}

	func (s *MyTestSuite) TestSomething() {
		s.NoError(doSomething(s.Ctx))
	}

	func TestMySuite(t *testing.T) {
		test.Run(t, new(MyTestSuite))
	}
*/
package test
