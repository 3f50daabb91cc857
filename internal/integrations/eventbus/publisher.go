package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"github.com/m04kA/SMC-TourBookingService/internal/domain"
)

var (
	// ErrEncode событие не сериализуется
	ErrEncode = errors.New("eventbus: failed to encode event")

	// ErrPublish брокер не принял сообщение
	ErrPublish = errors.New("eventbus: failed to publish event")
)

// Producer часть kafka.Writer, нужная публикатору
type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher отправляет события жизненного цикла брони в топик.
// Ключ сообщения - код брони, поэтому события одной брони попадают в одну партицию по порядку.
type Publisher struct {
	producer Producer
}

// NewPublisher создает публикатор поверх готового Producer
func NewPublisher(producer Producer) *Publisher {
	return &Publisher{producer: producer}
}

// NewWriter kafka.Writer для топика событий.
// Короткий BatchTimeout: по умолчанию kafka-go ждет секунду перед отправкой пачки.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		BatchSize:              100,
		AllowAutoTopicCreation: true,
	}
}

func (p *Publisher) Name() string {
	return "kafka"
}

// Publish пишет событие; контекст трейса уходит в заголовках сообщения
func (p *Publisher) Publish(ctx context.Context, event domain.BookingEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncode, err)
	}

	msg := kafka.Message{
		Key:   []byte(event.BookingCode),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event-action", Value: []byte(event.Action)},
		},
	}
	otel.GetTextMapPropagator().Inject(ctx, (*headerCarrier)(&msg.Headers))

	if err := p.producer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("%w: booking=%s action=%s: %w", ErrPublish, event.BookingCode, event.Action, err)
	}
	return nil
}

// Close сбрасывает буфер и закрывает соединения
func (p *Publisher) Close() error {
	return p.producer.Close()
}

// headerCarrier TextMapCarrier поверх заголовков kafka-сообщения
type headerCarrier []kafka.Header

func (c *headerCarrier) Get(key string) string {
	for _, h := range *c {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Set(key, value string) {
	for i, h := range *c {
		if h.Key == key {
			(*c)[i].Value = []byte(value)
			return
		}
	}
	*c = append(*c, kafka.Header{Key: key, Value: []byte(value)})
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(*c))
	for _, h := range *c {
		keys = append(keys, h.Key)
	}
	return keys
}
