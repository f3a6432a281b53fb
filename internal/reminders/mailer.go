package reminders

import (
	"context"
	"log/slog"
)

// SubjectEmail is the suffix, under the configured prefix, reminder e-mails are published on.
const SubjectEmail = "reminders.email"

// JSONPublisher publishes a payload under a subject suffix.
type JSONPublisher interface {
	PublishJSON(suffix string, data any) error
}

// NATSMailer hands messages to an e-mail relay listening on NATS.
type NATSMailer struct {
	pub JSONPublisher
}

func NewNATSMailer(pub JSONPublisher) *NATSMailer {
	return &NATSMailer{pub: pub}
}

func (m *NATSMailer) Send(_ context.Context, msg Message) error {
	return m.pub.PublishJSON(SubjectEmail, msg)
}

// LogMailer writes messages to the log instead of delivering them.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) Send(_ context.Context, msg Message) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("reminders.mail", "to", msg.To, "subject", msg.Subject)
	return nil
}
