package broker

import "github.com/nova-pipeline/joinbus/pkg/errors"

const CodeConnectFailure = "CONNECT_FAILURE"

// ErrConnectFailure builds the error returned when a broker connection
// cannot be established. Fatal at Pipeline.Run.
func ErrConnectFailure(cause error) error {
	return errors.New(CodeConnectFailure, "broker connection failed", cause)
}
