package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"scams/internal/config"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher forwards booking events to a Kafka topic, keyed by room so that
// events of one room stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger *zerolog.Logger
}

func NewKafkaPublisher(cfg config.KafkaConfig, logger *zerolog.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	return newKafkaPublisher(writer, cfg.Topic, logger)
}

func newKafkaPublisher(w messageWriter, topic string, logger *zerolog.Logger) *KafkaPublisher {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &KafkaPublisher{writer: w, topic: topic, logger: logger}
}

// Publish writes the event synchronously.
func (p *KafkaPublisher) Publish(ctx context.Context, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	key := event.Type
	if booking, err := DecodeBooking(event); err == nil && booking.RoomID != 0 {
		key = strconv.FormatInt(booking.RoomID, 10)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  event.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	p.logger.Debug().Str("topic", p.topic).Str("key", key).Str("type", event.Type).Msg("Event published")
	return nil
}

func (p *KafkaPublisher) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}
