package payload

import "github.com/nova-pipeline/joinbus/pkg/errors"

const (
	CodeNotAMapping = "NOT_A_MAPPING"
	CodeBadKeyType  = "BAD_KEY_TYPE"
)

// ErrNotAMapping builds the error returned when a decoded frame's top level
// is not a key-value container.
func ErrNotAMapping(message string) error {
	return errors.New(CodeNotAMapping, message, nil)
}

// ErrBadKeyType builds the error returned when a frame key is neither a
// text string nor a valid UTF-8 byte string.
func ErrBadKeyType(message string) error {
	return errors.New(CodeBadKeyType, message, nil)
}
