package broker

import (
	"context"

	"github.com/nova-pipeline/joinbus/pkg/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Instrumented wraps a Broker with tracing and structured logging around
// Connect and Subscribe, and opens a span per delivered frame. Flush is
// passed through unchanged; Close only logs.
type Instrumented struct {
	next   Broker
	tracer trace.Tracer
}

// NewInstrumented wraps next with tracing and logging.
func NewInstrumented(next Broker) *Instrumented {
	return &Instrumented{next: next, tracer: otel.Tracer("pkg/broker")}
}

func (b *Instrumented) Connect(ctx context.Context, url string) error {
	ctx, span := b.tracer.Start(ctx, "broker.Connect", trace.WithAttributes(
		attribute.String("broker.url", url),
	))
	defer span.End()

	logger.L().InfoContext(ctx, "connecting to broker", "url", url)

	if err := b.next.Connect(ctx, url); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.L().ErrorContext(ctx, "broker connect failed", "url", url, "error", err)
		return err
	}

	span.SetStatus(codes.Ok, "connected")
	return nil
}

func (b *Instrumented) Subscribe(ctx context.Context, subject string, handler FrameHandler) error {
	ctx, span := b.tracer.Start(ctx, "broker.Subscribe", trace.WithAttributes(
		attribute.String("broker.subject", subject),
	))
	defer span.End()

	instrumentedHandler := func(ctx context.Context, frame Frame) {
		ctx, span := b.tracer.Start(ctx, "broker.Deliver", trace.WithAttributes(
			attribute.String("broker.subject", frame.Subject),
			attribute.Int("broker.size", len(frame.Data)),
		))
		defer span.End()
		handler(ctx, frame)
	}

	if err := b.next.Subscribe(ctx, subject, instrumentedHandler); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.L().ErrorContext(ctx, "broker subscribe failed", "subject", subject, "error", err)
		return err
	}

	span.SetStatus(codes.Ok, "subscribed")
	return nil
}

func (b *Instrumented) Flush(ctx context.Context) error {
	return b.next.Flush(ctx)
}

func (b *Instrumented) Close() error {
	logger.L().Info("closing broker connection")
	return b.next.Close()
}
