package topic

import "github.com/nova-pipeline/joinbus/pkg/errors"

const CodeBadTopic = "BAD_TOPIC"

// ErrBadTopic builds the error returned when a topic reference fails parsing
// or validation: wrong scheme, missing host, or empty subject.
func ErrBadTopic(message string) error {
	return errors.New(CodeBadTopic, message, nil)
}
