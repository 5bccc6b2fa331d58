package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"lodgetix/internal/realtime"
	"lodgetix/internal/shared/constants"
	"lodgetix/pkg/logger"

	"github.com/IBM/sarama"
)

// Producer publishes notifications and system status broadcasts to Kafka
type Producer interface {
	PublishNotification(ctx context.Context, notification *EmailNotification) error
	PublishBatch(ctx context.Context, notifications []*EmailNotification) error
	PublishSystemStatus(ctx context.Context, status realtime.SystemStatusMessage) error
	Close() error
}

type ProducerConfig struct {
	Brokers           []string
	NotificationTopic string
	StatusTopic       string
	RetryMax          int
	Timeout           time.Duration
}

func DefaultProducerConfig() *ProducerConfig {
	return &ProducerConfig{
		Brokers:           []string{"localhost:9092"},
		NotificationTopic: "notifications",
		StatusTopic:       constants.SystemStatusEventName,
		RetryMax:          3,
		Timeout:           10 * time.Second,
	}
}

type kafkaProducer struct {
	producer sarama.SyncProducer
	config   *ProducerConfig
}

// NewKafkaProducer creates a synchronous, idempotent Kafka producer.
// Hash partitioning keeps all messages for one recipient in order.
func NewKafkaProducer(config *ProducerConfig) (Producer, error) {
	saramaConfig := sarama.NewConfig()

	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Retry.Max = config.RetryMax
	saramaConfig.Producer.Timeout = config.Timeout
	saramaConfig.Producer.Idempotent = true
	saramaConfig.Net.MaxOpenRequests = 1
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(config.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	logger.GetDefault().Info("kafka producer created",
		"notification_topic", config.NotificationTopic,
		"status_topic", config.StatusTopic)

	return &kafkaProducer{producer: producer, config: config}, nil
}

func (kp *kafkaProducer) PublishNotification(ctx context.Context, notification *EmailNotification) error {
	notification.Status = NotificationStatusQueued
	notification.UpdatedAt = time.Now()

	messageBytes, err := notification.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic:     kp.config.NotificationTopic,
		Key:       sarama.StringEncoder(notification.GetPartitionKey()),
		Value:     sarama.ByteEncoder(messageBytes),
		Headers:   kp.createHeaders(notification),
		Timestamp: notification.CreatedAt,
	}

	partition, offset, err := kp.producer.SendMessage(message)
	if err != nil {
		notification.MarkFailed(err)
		return fmt.Errorf("failed to send notification to Kafka: %w", err)
	}

	logger.GetDefault().Debug("notification published",
		"topic", kp.config.NotificationTopic,
		"partition", partition,
		"offset", offset,
		"type", string(notification.Type),
		"recipient", notification.RecipientEmail)

	return nil
}

func (kp *kafkaProducer) PublishBatch(ctx context.Context, notifications []*EmailNotification) error {
	if len(notifications) == 0 {
		return nil
	}

	messages := make([]*sarama.ProducerMessage, 0, len(notifications))
	for _, notification := range notifications {
		notification.Status = NotificationStatusQueued
		notification.UpdatedAt = time.Now()

		messageBytes, err := notification.ToJSON()
		if err != nil {
			logger.GetDefault().WithError(err).Warn("skipping unmarshalable notification",
				"recipient", notification.RecipientEmail)
			continue
		}

		messages = append(messages, &sarama.ProducerMessage{
			Topic:     kp.config.NotificationTopic,
			Key:       sarama.StringEncoder(notification.GetPartitionKey()),
			Value:     sarama.ByteEncoder(messageBytes),
			Headers:   kp.createHeaders(notification),
			Timestamp: notification.CreatedAt,
		})
	}

	if err := kp.producer.SendMessages(messages); err != nil {
		for _, notification := range notifications {
			notification.MarkFailed(err)
		}
		return fmt.Errorf("failed to send notification batch to Kafka: %w", err)
	}

	logger.GetDefault().Debug("notification batch published",
		"topic", kp.config.NotificationTopic, "count", len(messages))
	return nil
}

// PublishSystemStatus pushes a system broadcast onto the status topic,
// keyed by event so per-event ordering holds
func (kp *kafkaProducer) PublishSystemStatus(ctx context.Context, status realtime.SystemStatusMessage) error {
	messageBytes, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal system status: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: kp.config.StatusTopic,
		Key:   sarama.StringEncoder(status.EventID),
		Value: sarama.ByteEncoder(messageBytes),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_id"), Value: []byte(status.EventID)},
			{Key: []byte("status_type"), Value: []byte(status.Type)},
		},
	}

	if _, _, err := kp.producer.SendMessage(message); err != nil {
		return fmt.Errorf("failed to send system status to Kafka: %w", err)
	}

	return nil
}

func (kp *kafkaProducer) createHeaders(notification *EmailNotification) []sarama.RecordHeader {
	headers := []sarama.RecordHeader{
		{Key: []byte("notification_id"), Value: []byte(notification.ID.String())},
		{Key: []byte("notification_type"), Value: []byte(notification.Type)},
		{Key: []byte("priority"), Value: []byte(notification.Priority)},
		{Key: []byte("recipient_email"), Value: []byte(notification.RecipientEmail)},
		{Key: []byte("created_at"), Value: []byte(notification.CreatedAt.Format(time.RFC3339))},
	}

	if notification.EventID != nil {
		headers = append(headers, sarama.RecordHeader{
			Key:   []byte("event_id"),
			Value: []byte(notification.EventID.String()),
		})
	}
	if notification.RegistrationID != nil {
		headers = append(headers, sarama.RecordHeader{
			Key:   []byte("registration_id"),
			Value: []byte(notification.RegistrationID.String()),
		})
	}
	if notification.ExpiresAt != nil {
		headers = append(headers, sarama.RecordHeader{
			Key:   []byte("expires_at"),
			Value: []byte(notification.ExpiresAt.Format(time.RFC3339)),
		})
	}

	return headers
}

func (kp *kafkaProducer) Close() error {
	if kp.producer != nil {
		if err := kp.producer.Close(); err != nil {
			return fmt.Errorf("failed to close Kafka producer: %w", err)
		}
		logger.GetDefault().Info("kafka producer closed")
	}
	return nil
}
