package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/m04kA/SMC-TourBookingService/internal/domain"
)

type fakeProducer struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (f *fakeProducer) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeProducer) Close() error {
	f.closed = true
	return nil
}

func sampleEvent() domain.BookingEvent {
	return domain.BookingEvent{
		Action:      domain.ActionBookingConfirmed,
		BookingID:   42,
		BookingCode: "AB12CD34",
		SlotID:      7,
		Qty:         2,
		FromState:   domain.StateInvoice,
		ToState:     domain.StateConfirm,
		CustomerID:  "c-1",
		OccurredAt:  time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestPublisher_WritesKeyedJSON(t *testing.T) {
	producer := &fakeProducer{}
	pub := NewPublisher(producer)

	require.NoError(t, pub.Publish(context.Background(), sampleEvent()))
	require.Len(t, producer.messages, 1)

	msg := producer.messages[0]
	assert.Equal(t, "AB12CD34", string(msg.Key))

	var decoded domain.BookingEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, sampleEvent(), decoded)

	carrier := headerCarrier(msg.Headers)
	assert.Equal(t, domain.ActionBookingConfirmed, carrier.Get("event-action"))
	assert.Empty(t, carrier.Get("traceparent"))
}

func TestPublisher_PropagatesTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	producer := &fakeProducer{}
	pub := NewPublisher(producer)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	require.NoError(t, pub.Publish(ctx, sampleEvent()))
	require.Len(t, producer.messages, 1)

	headers := producer.messages[0].Headers
	traceparent := (*headerCarrier)(&headers).Get("traceparent")
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", traceparent)
	assert.Equal(t, domain.ActionBookingConfirmed, (*headerCarrier)(&headers).Get("event-action"))
}

func TestPublisher_NoTraceHeadersWithoutSpan(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	producer := &fakeProducer{}
	require.NoError(t, NewPublisher(producer).Publish(context.Background(), sampleEvent()))

	headers := producer.messages[0].Headers
	assert.Equal(t, []string{"event-action"}, (*headerCarrier)(&headers).Keys())
}

func TestNewWriter_BatchesForLowLatency(t *testing.T) {
	w := NewWriter([]string{"localhost:9092"}, "bookings")

	assert.Equal(t, "bookings", w.Topic)
	assert.Equal(t, 10*time.Millisecond, w.BatchTimeout)
	assert.Equal(t, 100, w.BatchSize)
	assert.Equal(t, kafka.RequireOne, w.RequiredAcks)
}

func TestPublisher_WrapsProducerError(t *testing.T) {
	pub := NewPublisher(&fakeProducer{err: errors.New("broker down")})

	err := pub.Publish(context.Background(), sampleEvent())
	require.ErrorIs(t, err, ErrPublish)
}

func TestPublisher_Close(t *testing.T) {
	producer := &fakeProducer{}
	require.NoError(t, NewPublisher(producer).Close())
	assert.True(t, producer.closed)
}
