package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"agency_portal_echo/internal/models"
)

const EventPaymentStatusChanged = "payment.status_changed"

// StatusSource names who caused a payment status change.
type StatusSource string

const (
	SourceCallback StatusSource = "callback"
	SourceAdmin    StatusSource = "admin"
	SourceSweeper  StatusSource = "sweeper"
)

type PaymentStatusEvent struct {
	Event         string        `json:"event"`
	PaymentID     uint          `json:"paymentId"`
	TransactionID uint          `json:"transactionId"`
	UserID        uint          `json:"userId"`
	OrderID       string        `json:"orderId"`
	From          models.Status `json:"from"`
	To            models.Status `json:"to"`
	Source        StatusSource  `json:"source"`
	OccurredAt    time.Time     `json:"occurredAt"`
}

// EventPublisher announces committed payment status changes.
type EventPublisher interface {
	PublishPaymentStatus(ctx context.Context, ev PaymentStatusEvent) error
}

// LogPublisher only logs events. It is used when no broker is configured.
type LogPublisher struct{}

func (LogPublisher) PublishPaymentStatus(ctx context.Context, ev PaymentStatusEvent) error {
	zap.S().Infow("payment status changed",
		"payment_id", ev.PaymentID,
		"transaction_id", ev.TransactionID,
		"from", ev.From,
		"to", ev.To,
		"source", ev.Source,
	)
	return nil
}

// KafkaPublisher writes events to a Kafka topic keyed by order id.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll

	var producer sarama.SyncProducer
	var err error
	for i := 1; i <= 5; i++ {
		producer, err = sarama.NewSyncProducer(brokers, config)
		if err == nil {
			zap.S().Infow("Kafka producer initialized", "topic", topic)
			return &KafkaPublisher{producer: producer, topic: topic}, nil
		}
		zap.S().Warnw("Waiting for Kafka", "attempt", i, "error", err)
		time.Sleep(2 * time.Second)
	}
	return nil, fmt.Errorf("kafka producer: %w", err)
}

func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishPaymentStatus(ctx context.Context, ev PaymentStatusEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ev.Event, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(ev.OrderID),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event"), Value: []byte(ev.Event)},
		},
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("send %s: %w", ev.Event, err)
	}
	zap.S().Debugw("published event", "event", ev.Event, "partition", partition, "offset", offset)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
