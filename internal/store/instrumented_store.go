package store

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pelusa-v/finder-chat/internal/metrics"
)

const tracerName = "github.com/pelusa-v/finder-chat/internal/store"

// InstrumentedStore decorates a Store with tracing spans and latency metrics.
type InstrumentedStore struct {
	next   Store
	tracer trace.Tracer
}

func NewInstrumentedStore(next Store) *InstrumentedStore {
	return &InstrumentedStore{next: next, tracer: otel.Tracer(tracerName)}
}

func (s *InstrumentedStore) Append(ctx context.Context, conversationID, senderAddress, receiverAddress, content string) (*Message, error) {
	ctx, span := s.tracer.Start(ctx, "store.Append", trace.WithAttributes(
		attribute.String("chat.conversation_id", conversationID),
	))
	defer span.End()

	start := time.Now()
	msg, err := s.next.Append(ctx, conversationID, senderAddress, receiverAddress, content)
	observe("append", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "append failed")
		return nil, err
	}
	span.SetAttributes(attribute.String("chat.message_id", msg.ID))
	metrics.MessagesPersisted.Inc()
	return msg, nil
}

func (s *InstrumentedStore) ListByConversation(ctx context.Context, conversationID string) ([]Message, error) {
	ctx, span := s.tracer.Start(ctx, "store.ListByConversation", trace.WithAttributes(
		attribute.String("chat.conversation_id", conversationID),
	))
	defer span.End()

	start := time.Now()
	msgs, err := s.next.ListByConversation(ctx, conversationID)
	observe("list", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("chat.message_count", len(msgs)))
	return msgs, nil
}

func observe(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.StoreDuration.WithLabelValues(op, result).Observe(time.Since(start).Seconds())
}
