package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"agency_portal_echo/internal/models"
)

func TestKafkaPublisherSendsEvent(t *testing.T) {
	producer := mocks.NewSyncProducer(t, sarama.NewConfig())
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var ev PaymentStatusEvent
		if err := json.Unmarshal(val, &ev); err != nil {
			return err
		}
		if ev.OrderID != "TRX-7" || ev.To != models.StatusPaid || ev.Source != SourceCallback {
			return errors.New("unexpected event payload: " + string(val))
		}
		return nil
	})

	pub := NewKafkaPublisherWithProducer(producer, "payments")
	err := pub.PublishPaymentStatus(context.Background(), PaymentStatusEvent{
		Event:   EventPaymentStatusChanged,
		OrderID: "TRX-7",
		From:    models.StatusPending,
		To:      models.StatusPaid,
		Source:  SourceCallback,
	})
	if err != nil {
		t.Fatalf("PublishPaymentStatus: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestKafkaPublisherReportsFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, sarama.NewConfig())
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	pub := NewKafkaPublisherWithProducer(producer, "payments")
	err := pub.PublishPaymentStatus(context.Background(), PaymentStatusEvent{Event: EventPaymentStatusChanged, OrderID: "TRX-8"})
	if !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Errorf("err = %v, want ErrOutOfBrokers", err)
	}
	pub.Close()
}
