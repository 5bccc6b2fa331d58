package notifications

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strconv"
	"time"

	"lodgetix/internal/shared/config"
	"lodgetix/pkg/logger"
)

// EmailService delivers a notification over email
type EmailService interface {
	SendNotification(ctx context.Context, notification *EmailNotification) error
	SendHTML(ctx context.Context, to, subject, htmlBody, textBody string) error
}

// SMTPEmailService sends mail over SMTP with STARTTLS
type SMTPEmailService struct {
	cfg      config.EmailConfig
	fromName string
}

func NewSMTPEmailService(cfg config.EmailConfig) (*SMTPEmailService, error) {
	if cfg.SMTPHost == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if cfg.SMTPPort <= 0 || cfg.SMTPPort > 65535 {
		return nil, fmt.Errorf("SMTP port must be between 1 and 65535")
	}
	if cfg.FromEmail == "" {
		return nil, fmt.Errorf("from email is required")
	}

	return &SMTPEmailService{cfg: cfg, fromName: "LodgeTix"}, nil
}

func (s *SMTPEmailService) SendNotification(ctx context.Context, notification *EmailNotification) error {
	htmlBody, textBody := renderContent(notification)
	return s.SendHTML(ctx, notification.RecipientEmail, notification.Subject, htmlBody, textBody)
}

func (s *SMTPEmailService) SendHTML(ctx context.Context, to, subject, htmlBody, textBody string) error {
	message := s.buildMessage(to, subject, htmlBody, textBody)
	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)

	var auth smtp.Auth
	if s.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	}

	if err := s.sendWithSTARTTLS(addr, auth, to, message); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	logger.GetDefault().Debug("email sent", "to", to, "subject", subject)
	return nil
}

func (s *SMTPEmailService) sendWithSTARTTLS(addr string, auth smtp.Auth, to string, message []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Quit()

	tlsConfig := &tls.Config{ServerName: s.cfg.SMTPHost}
	if err = client.StartTLS(tlsConfig); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}

	if auth != nil {
		if err = client.Auth(auth); err != nil {
			return fmt.Errorf("failed to authenticate: %w", err)
		}
	}

	if err = client.Mail(s.cfg.FromEmail); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err = client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to get data writer: %w", err)
	}
	if _, err = w.Write(message); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return w.Close()
}

func (s *SMTPEmailService) buildMessage(to, subject, htmlBody, textBody string) []byte {
	boundary := "boundary_" + strconv.FormatInt(time.Now().UnixNano(), 10)

	message := fmt.Sprintf("From: %s <%s>\r\n", s.fromName, s.cfg.FromEmail)
	message += fmt.Sprintf("To: %s\r\n", to)
	message += fmt.Sprintf("Subject: %s\r\n", subject)
	message += "MIME-Version: 1.0\r\n"
	message += fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	message += fmt.Sprintf("Content-Type: multipart/alternative; boundary=%s\r\n", boundary)
	message += "\r\n"

	if textBody != "" {
		message += fmt.Sprintf("--%s\r\n", boundary)
		message += "Content-Type: text/plain; charset=UTF-8\r\n\r\n"
		message += textBody + "\r\n"
	}
	if htmlBody != "" {
		message += fmt.Sprintf("--%s\r\n", boundary)
		message += "Content-Type: text/html; charset=UTF-8\r\n\r\n"
		message += htmlBody + "\r\n"
	}
	message += fmt.Sprintf("--%s--\r\n", boundary)

	return []byte(message)
}

// renderContent builds the HTML and text bodies for a notification
func renderContent(notification *EmailNotification) (string, string) {
	data := notification.TemplateData

	switch notification.Type {
	case NotificationTypeRegistrationConfirmed:
		htmlBody := fmt.Sprintf(`
			<h2>Registration Confirmed</h2>
			<p>Dear %s,</p>
			<p>Your registration for <strong>%v</strong> has been confirmed.</p>
			<p>Reference: <strong>%v</strong></p>
			<p>Attendees: %v</p>
			<p>We look forward to welcoming you.</p>
			<p>LodgeTix</p>
		`, notification.RecipientName, data["event_name"], data["reference"], data["attendee_count"])

		textBody := fmt.Sprintf(
			"Dear %s,\n\nYour registration for %v has been confirmed.\nReference: %v\nAttendees: %v\n\nWe look forward to welcoming you.\n\nLodgeTix",
			notification.RecipientName, data["event_name"], data["reference"], data["attendee_count"])
		return htmlBody, textBody

	case NotificationTypeRegistrationCancelled:
		htmlBody := fmt.Sprintf(`
			<h2>Registration Cancelled</h2>
			<p>Dear %s,</p>
			<p>Your registration <strong>%v</strong> has been cancelled and any held tickets released.</p>
			<p>LodgeTix</p>
		`, notification.RecipientName, data["reference"])

		textBody := fmt.Sprintf(
			"Dear %s,\n\nYour registration %v has been cancelled and any held tickets released.\n\nLodgeTix",
			notification.RecipientName, data["reference"])
		return htmlBody, textBody

	case NotificationTypeOneTimePassword:
		htmlBody := fmt.Sprintf(`
			<h2>Your sign-in code</h2>
			<p>Use the code below to sign in. It expires shortly.</p>
			<p style="font-size: 24px; letter-spacing: 4px;"><strong>%v</strong></p>
			<p>Or continue directly: <a href="%v">%v</a></p>
			<p>If you did not request this, ignore this email.</p>
			<p>LodgeTix</p>
		`, data["code"], data["redirect_url"], data["redirect_url"])

		textBody := fmt.Sprintf(
			"Your sign-in code: %v\n\nOr continue directly: %v\n\nIf you did not request this, ignore this email.\n\nLodgeTix",
			data["code"], data["redirect_url"])
		return htmlBody, textBody

	default:
		htmlBody := fmt.Sprintf(`
			<h2>%s</h2>
			<p>Dear %s,</p>
			<p>This is a notification from LodgeTix.</p>
		`, notification.Subject, notification.RecipientName)

		textBody := fmt.Sprintf(
			"Dear %s,\n\nThis is a notification from LodgeTix.\n",
			notification.RecipientName)
		return htmlBody, textBody
	}
}

// MockEmailService logs instead of sending. Used when SMTP is not
// configured, which is the default in development.
type MockEmailService struct{}

func NewMockEmailService() *MockEmailService {
	return &MockEmailService{}
}

func (s *MockEmailService) SendNotification(ctx context.Context, notification *EmailNotification) error {
	logger.GetDefault().Info("mock email",
		"type", string(notification.Type),
		"to", notification.RecipientEmail,
		"subject", notification.Subject)
	return nil
}

func (s *MockEmailService) SendHTML(ctx context.Context, to, subject, htmlBody, textBody string) error {
	logger.GetDefault().Info("mock email", "to", to, "subject", subject)
	return nil
}
