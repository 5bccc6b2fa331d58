package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"lodgetix/internal/realtime"
	"lodgetix/pkg/logger"

	"github.com/IBM/sarama"
)

// StatusBroadcaster fans a Kafka status message out to the realtime
// channels. Implemented by the realtime notifier.
type StatusBroadcaster interface {
	BroadcastSystemStatus(ctx context.Context, msg realtime.SystemStatusMessage)
}

// Consumer drains the notification and status topics
type Consumer interface {
	Start(ctx context.Context, numWorkers int) error
	Stop() error
}

type ConsumerConfig struct {
	Brokers           []string
	GroupID           string
	NotificationTopic string
	StatusTopic       string
	SessionTimeout    time.Duration
	HeartbeatInterval time.Duration
	MaxRetries        int
	RetryBackoff      time.Duration
}

func DefaultConsumerConfig() *ConsumerConfig {
	return &ConsumerConfig{
		Brokers:           []string{"localhost:9092"},
		GroupID:           "lodgetix-notification-workers",
		NotificationTopic: "notifications",
		StatusTopic:       "ticket-system-status",
		SessionTimeout:    30 * time.Second,
		HeartbeatInterval: 3 * time.Second,
		MaxRetries:        3,
		RetryBackoff:      time.Second,
	}
}

type kafkaConsumer struct {
	consumerGroup sarama.ConsumerGroup
	config        *ConsumerConfig
	emailService  EmailService
	broadcaster   StatusBroadcaster
	topics        []string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewKafkaConsumer(config *ConsumerConfig, emailService EmailService, broadcaster StatusBroadcaster) (Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Consumer.Group.Session.Timeout = config.SessionTimeout
	saramaConfig.Consumer.Group.Heartbeat.Interval = config.HeartbeatInterval
	saramaConfig.Consumer.Return.Errors = true
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Offsets.AutoCommit.Enable = true
	saramaConfig.Consumer.Offsets.AutoCommit.Interval = time.Second

	consumerGroup, err := sarama.NewConsumerGroup(config.Brokers, config.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return &kafkaConsumer{
		consumerGroup: consumerGroup,
		config:        config,
		emailService:  emailService,
		broadcaster:   broadcaster,
		topics:        []string{config.NotificationTopic, config.StatusTopic},
	}, nil
}

func (kc *kafkaConsumer) Start(ctx context.Context, numWorkers int) error {
	runCtx, cancel := context.WithCancel(ctx)
	kc.cancel = cancel

	go kc.drainErrors()

	for i := 0; i < numWorkers; i++ {
		kc.wg.Add(1)
		go func(workerID int) {
			defer kc.wg.Done()
			kc.runWorker(runCtx, workerID)
		}(i)
	}

	logger.GetDefault().Info("notification consumers started",
		"workers", numWorkers, "topics", fmt.Sprintf("%v", kc.topics))
	return nil
}

func (kc *kafkaConsumer) runWorker(ctx context.Context, workerID int) {
	handler := &groupHandler{consumer: kc, workerID: workerID}

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if err := kc.consumerGroup.Consume(ctx, kc.topics, handler); err != nil {
				logger.GetDefault().WithError(err).Error("consumer worker error", "worker", workerID)
				time.Sleep(time.Second)
			}
		}
	}
}

func (kc *kafkaConsumer) drainErrors() {
	for err := range kc.consumerGroup.Errors() {
		logger.GetDefault().WithError(err).Error("consumer group error")
	}
}

func (kc *kafkaConsumer) Stop() error {
	if kc.cancel != nil {
		kc.cancel()
	}
	kc.wg.Wait()

	if err := kc.consumerGroup.Close(); err != nil {
		return fmt.Errorf("failed to close consumer group: %w", err)
	}

	logger.GetDefault().Info("notification consumers stopped")
	return nil
}

type groupHandler struct {
	consumer *kafkaConsumer
	workerID int
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message := <-claim.Messages():
			if message == nil {
				return nil
			}

			var err error
			switch message.Topic {
			case h.consumer.config.StatusTopic:
				err = h.processStatusMessage(session.Context(), message)
			default:
				err = h.processEmailMessage(session.Context(), message)
			}

			if err != nil {
				logger.GetDefault().WithError(err).Error("failed to process message",
					"worker", h.workerID, "topic", message.Topic, "offset", message.Offset)
			} else {
				session.MarkMessage(message, "")
			}

		case <-session.Context().Done():
			return nil
		}
	}
}

// processStatusMessage rebroadcasts a system status onto the realtime
// channels so connected browsers see it
func (h *groupHandler) processStatusMessage(ctx context.Context, message *sarama.ConsumerMessage) error {
	var status realtime.SystemStatusMessage
	if err := json.Unmarshal(message.Value, &status); err != nil {
		return fmt.Errorf("failed to unmarshal system status: %w", err)
	}

	if h.consumer.broadcaster != nil {
		h.consumer.broadcaster.BroadcastSystemStatus(ctx, status)
	}
	return nil
}

func (h *groupHandler) processEmailMessage(ctx context.Context, message *sarama.ConsumerMessage) error {
	var notification EmailNotification
	if err := json.Unmarshal(message.Value, &notification); err != nil {
		return fmt.Errorf("failed to unmarshal notification: %w", err)
	}

	if notification.IsExpired() {
		logger.GetDefault().Debug("skipping expired notification",
			"notification_id", notification.ID.String())
		return nil
	}

	notification.Status = NotificationStatusSending

	if err := h.sendWithRetry(ctx, &notification); err != nil {
		notification.MarkFailed(err)
		return err
	}

	notification.MarkSent()
	logger.GetDefault().Debug("email notification sent",
		"worker", h.workerID, "recipient", notification.RecipientEmail,
		"type", string(notification.Type))
	return nil
}

func (h *groupHandler) sendWithRetry(ctx context.Context, notification *EmailNotification) error {
	maxRetries := h.consumer.config.MaxRetries
	backoff := h.consumer.config.RetryBackoff

	for attempt := 0; ; attempt++ {
		err := h.consumer.emailService.SendNotification(ctx, notification)
		if err == nil {
			return nil
		}
		if attempt == maxRetries {
			return err
		}

		// Exponential backoff
		delay := backoff * time.Duration(1<<attempt)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
