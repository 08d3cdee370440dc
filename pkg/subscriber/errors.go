package subscriber

import "github.com/nova-pipeline/joinbus/pkg/errors"

const (
	CodeAmbiguousSubscription    = "AMBIGUOUS_SUBSCRIPTION"
	CodeKeyRequired              = "KEY_REQUIRED"
	CodeNoPipeline               = "NO_PIPELINE"
	CodeMultiPipelineUnsupported = "MULTI_PIPELINE_UNSUPPORTED"
)

// ErrAmbiguousSubscription builds the error returned when Subscribe is
// called with both positional topics and named sources.
func ErrAmbiguousSubscription() error {
	return errors.New(CodeAmbiguousSubscription, "subscribe called with both positional topics and named sources", nil)
}

// ErrKeyRequired builds the error returned when more than one subject is
// declared without a correlation key.
func ErrKeyRequired() error {
	return errors.New(CodeKeyRequired, "key is required when more than one subject is declared", nil)
}

// ErrNoPipeline builds the error returned when Run is called before any
// subscription has been registered.
func ErrNoPipeline() error {
	return errors.New(CodeNoPipeline, "run called with no pipeline registered", nil)
}

// ErrMultiPipelineUnsupported builds the error returned when Run is
// called after more than one subscription has been registered.
func ErrMultiPipelineUnsupported() error {
	return errors.New(CodeMultiPipelineUnsupported, "run called with more than one pipeline registered", nil)
}
