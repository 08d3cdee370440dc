package join

import "github.com/nova-pipeline/joinbus/pkg/errors"

const (
	CodeMissingJoinKey = "MISSING_JOIN_KEY"
	CodeUnhashableKey  = "UNHASHABLE_KEY"
)

// ErrMissingJoinKey builds the error returned when a payload lacks the
// field designated as the correlation key.
func ErrMissingJoinKey(field string) error {
	return errors.New(CodeMissingJoinKey, "payload missing join key field: "+field, nil)
}

// ErrUnhashableKey builds the error returned when the join key's value is
// not a text string, byte string, integer, or floating-point number.
func ErrUnhashableKey(field string) error {
	return errors.New(CodeUnhashableKey, "join key field has unhashable type: "+field, nil)
}
