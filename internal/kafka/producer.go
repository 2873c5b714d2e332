package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"payment-gateway/internal/config"
	"payment-gateway/internal/logger"
	"payment-gateway/internal/models"
)

// Publisher streams payment lifecycle events to the rest of the platform.
type Publisher interface {
	PublishPaymentCreated(payment models.Payment) error
	PublishPaymentSucceeded(payment models.Payment) error
	PublishPaymentFailed(payment models.Payment) error
	PublishChargeRefunded(charge models.Charge) error
}

type Producer struct {
	writer *kafka.Writer
	topics config.TopicConfig
	log    *logger.Logger
}

func NewProducer(brokers []string, topics config.TopicConfig, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	return &Producer{writer: writer, topics: topics, log: log}
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

func (p *Producer) PublishPaymentCreated(payment models.Payment) error {
	return p.publishPayment(p.topics.PaymentEvents, "payment.created", payment)
}

func (p *Producer) PublishPaymentSucceeded(payment models.Payment) error {
	return p.publishPayment(p.topics.PaymentSuccess, "payment.succeeded", payment)
}

func (p *Producer) PublishPaymentFailed(payment models.Payment) error {
	return p.publishPayment(p.topics.PaymentFailed, "payment.failed", payment)
}

func (p *Producer) PublishChargeRefunded(charge models.Charge) error {
	msgBytes, err := json.Marshal(charge)
	if err != nil {
		return err
	}

	p.log.LogKafka("PUBLISH", p.topics.PaymentRefunded, fmt.Sprintf("charge %s refunded", charge.ID))

	return p.writer.WriteMessages(context.Background(),
		kafka.Message{
			Topic: p.topics.PaymentRefunded,
			Key:   []byte(charge.ID),
			Value: msgBytes,
		},
	)
}

func (p *Producer) publishPayment(topic, eventType string, payment models.Payment) error {
	event := models.PaymentEvent{
		Type:      eventType,
		PaymentID: payment.PaymentID,
		OrderID:   payment.OrderID,
		Payment:   &payment,
		Timestamp: time.Now().UTC(),
	}

	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	p.log.LogKafka("PUBLISH", topic, fmt.Sprintf("%s for payment %s", eventType, payment.PaymentID))

	return p.writer.WriteMessages(context.Background(),
		kafka.Message{
			Topic: topic,
			Key:   []byte(payment.PaymentID),
			Value: msgBytes,
		},
	)
}

// MockProducer logs events instead of writing to Kafka. Used when Kafka is
// disabled or running in mock mode.
type MockProducer struct {
	log *logger.Logger
}

func NewMockProducer(log *logger.Logger) *MockProducer {
	return &MockProducer{log: log}
}

func (m *MockProducer) PublishPaymentCreated(payment models.Payment) error {
	m.log.LogKafka("MOCK", "payment-events", fmt.Sprintf("payment.created for %s", payment.PaymentID))
	return nil
}

func (m *MockProducer) PublishPaymentSucceeded(payment models.Payment) error {
	m.log.LogKafka("MOCK", "payment-success", fmt.Sprintf("payment.succeeded for %s", payment.PaymentID))
	return nil
}

func (m *MockProducer) PublishPaymentFailed(payment models.Payment) error {
	m.log.LogKafka("MOCK", "payment-failed", fmt.Sprintf("payment.failed for %s", payment.PaymentID))
	return nil
}

func (m *MockProducer) PublishChargeRefunded(charge models.Charge) error {
	m.log.LogKafka("MOCK", "payment-refunded", fmt.Sprintf("charge.refunded for %s", charge.ID))
	return nil
}
