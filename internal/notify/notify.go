// Package notify delivers user notifications by email.
package notify

import (
	"context"

	"go.uber.org/zap"

	"spendwise/internal/logger"
)

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers a message. A nil error means the provider accepted it.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the log instead of sending them. It is used
// when no email provider is configured.
type LogSender struct {
	log *zap.SugaredLogger
}

// NewLogSender creates a LogSender.
func NewLogSender() *LogSender {
	return &LogSender{log: logger.Named("notify")}
}

// Send logs the message and reports success.
func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.log.Infow("email delivery not configured, logging message",
		"to", msg.To,
		"subject", msg.Subject,
		"html_bytes", len(msg.HTML),
	)
	return nil
}

// NewSender returns a Resend sender when apiKey is set, otherwise a LogSender.
func NewSender(apiKey, baseURL, from string) Sender {
	if apiKey == "" {
		return NewLogSender()
	}
	return NewResendSender(baseURL, apiKey, from, nil)
}
