package notifications

import (
	"context"
	"fmt"
	"sync"
	"time"

	"lodgetix/internal/realtime"
	"lodgetix/internal/registrations"
	"lodgetix/internal/shared/config"
	"lodgetix/pkg/logger"

	"github.com/google/uuid"
)

// Service is the notification facade. It implements the registration
// publisher and the auth OTP sender, and owns the Kafka producer and
// consumer lifecycle.
type Service interface {
	PublishRegistrationConfirmed(ctx context.Context, registration *registrations.Registration) error
	PublishRegistrationCancelled(ctx context.Context, registration *registrations.Registration) error
	SendOneTimePassword(ctx context.Context, email, code, redirectURL string) error
	BroadcastSystemStatus(ctx context.Context, status realtime.SystemStatusMessage) error

	Start(ctx context.Context) error
	Stop() error
}

type service struct {
	producer Producer
	consumer Consumer
	workers  int

	mu      sync.Mutex
	running bool
}

// NewService wires the producer, consumer and email delivery from config.
// Falls back to the mock email sender when SMTP is not configured.
func NewService(cfg *config.Config, broadcaster StatusBroadcaster) (Service, error) {
	producerConfig := DefaultProducerConfig()
	producerConfig.Brokers = cfg.Kafka.Brokers
	producerConfig.NotificationTopic = cfg.Kafka.NotificationTopic
	producerConfig.StatusTopic = cfg.Kafka.StatusTopic

	producer, err := NewKafkaProducer(producerConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification producer: %w", err)
	}

	var emailService EmailService
	if cfg.Email.SMTPHost != "" {
		emailService, err = NewSMTPEmailService(cfg.Email)
		if err != nil {
			return nil, fmt.Errorf("failed to create SMTP email service: %w", err)
		}
	} else {
		logger.GetDefault().Warn("SMTP not configured, using mock email delivery")
		emailService = NewMockEmailService()
	}

	consumerConfig := DefaultConsumerConfig()
	consumerConfig.Brokers = cfg.Kafka.Brokers
	consumerConfig.NotificationTopic = cfg.Kafka.NotificationTopic
	consumerConfig.StatusTopic = cfg.Kafka.StatusTopic

	consumer, err := NewKafkaConsumer(consumerConfig, emailService, broadcaster)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification consumer: %w", err)
	}

	return &service{
		producer: producer,
		consumer: consumer,
		workers:  3,
	}, nil
}

func (s *service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("notification service is already running")
	}
	if err := s.consumer.Start(ctx, s.workers); err != nil {
		return fmt.Errorf("failed to start consumers: %w", err)
	}

	s.running = true
	return nil
}

func (s *service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	if err := s.consumer.Stop(); err != nil {
		logger.GetDefault().WithError(err).Error("error stopping consumer")
	}
	if err := s.producer.Close(); err != nil {
		logger.GetDefault().WithError(err).Error("error closing producer")
	}

	s.running = false
	return nil
}

// PublishRegistrationConfirmed emails the primary attendee their
// confirmation. Registrations without a reachable attendee are skipped.
func (s *service) PublishRegistrationConfirmed(ctx context.Context, registration *registrations.Registration) error {
	recipient, ok := primaryAttendee(registration)
	if !ok {
		logger.GetDefault().Debug("no attendee email, skipping confirmation",
			"registration_id", registration.ID.String())
		return nil
	}

	notification := NewNotificationBuilder().
		WithType(NotificationTypeRegistrationConfirmed).
		WithRecipient(registration.UserID, recipient.Email, recipient.FirstName+" "+recipient.LastName).
		WithSubject(fmt.Sprintf("Registration confirmed: %s", registration.Reference)).
		WithEventContext(registration.EventID).
		WithRegistrationContext(registration.ID).
		WithTemplateData(map[string]interface{}{
			"reference":      registration.Reference,
			"event_name":     registration.EventID.String(),
			"attendee_count": len(registration.Attendees),
		}).
		Build()

	return s.producer.PublishNotification(ctx, notification)
}

func (s *service) PublishRegistrationCancelled(ctx context.Context, registration *registrations.Registration) error {
	recipient, ok := primaryAttendee(registration)
	if !ok {
		return nil
	}

	notification := NewNotificationBuilder().
		WithType(NotificationTypeRegistrationCancelled).
		WithRecipient(registration.UserID, recipient.Email, recipient.FirstName+" "+recipient.LastName).
		WithSubject(fmt.Sprintf("Registration cancelled: %s", registration.Reference)).
		WithEventContext(registration.EventID).
		WithRegistrationContext(registration.ID).
		WithTemplateData(map[string]interface{}{
			"reference": registration.Reference,
		}).
		Build()

	return s.producer.PublishNotification(ctx, notification)
}

// SendOneTimePassword emails a sign-in code. The notification expires
// with the code so stale deliveries are dropped.
func (s *service) SendOneTimePassword(ctx context.Context, email, code, redirectURL string) error {
	notification := NewNotificationBuilder().
		WithType(NotificationTypeOneTimePassword).
		WithRecipient(uuid.Nil, email, email).
		WithSubject("Your LodgeTix sign-in code").
		WithExpiration(time.Now().Add(10 * time.Minute)).
		WithTemplateData(map[string]interface{}{
			"code":         code,
			"redirect_url": redirectURL,
		}).
		Build()

	return s.producer.PublishNotification(ctx, notification)
}

func (s *service) BroadcastSystemStatus(ctx context.Context, status realtime.SystemStatusMessage) error {
	return s.producer.PublishSystemStatus(ctx, status)
}

func primaryAttendee(registration *registrations.Registration) (*registrations.Attendee, bool) {
	var fallback *registrations.Attendee
	for i := range registration.Attendees {
		attendee := &registration.Attendees[i]
		if attendee.Email == "" {
			continue
		}
		if attendee.IsPrimary {
			return attendee, true
		}
		if fallback == nil {
			fallback = attendee
		}
	}
	if fallback != nil {
		return fallback, true
	}
	return nil, false
}
