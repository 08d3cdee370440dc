package pipeline

import (
	"strings"

	"github.com/nova-pipeline/joinbus/pkg/errors"
)

const (
	CodeEmptySources  = "EMPTY_SOURCES"
	CodeKeyRequired   = "KEY_REQUIRED"
	CodeMultiEndpoint = "MULTI_ENDPOINT"
)

// ErrEmptySources builds the error returned when a Pipeline is
// constructed with no sources.
func ErrEmptySources() error {
	return errors.New(CodeEmptySources, "pipeline requires at least one source", nil)
}

// ErrKeyRequired builds the error returned when a multi-source Pipeline
// is constructed without a correlation key.
func ErrKeyRequired() error {
	return errors.New(CodeKeyRequired, "key is required for multi-source pipelines", nil)
}

// ErrMultiEndpoint builds the error returned when a Pipeline's topics
// span more than one broker endpoint. Fatal at Run.
func ErrMultiEndpoint(servers []string) error {
	return errors.New(CodeMultiEndpoint, "pipeline topics span more than one broker endpoint: "+strings.Join(servers, ", "), nil)
}
