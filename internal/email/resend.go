package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"

	"murmur/internal/middleware"
)

// ResendSender delivers email through the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
}

func NewResendSender(apiKey, from string) *ResendSender {
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
	}

	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("resend send: %w", err)
	}

	middleware.Logger.DebugContext(ctx, "Email sent",
		slog.String("email_id", sent.Id),
		slog.String("subject", msg.Subject))
	return nil
}

// LogSender logs emails instead of sending them. Used in development
// when no Resend API key is configured.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, msg Message) error {
	middleware.Logger.InfoContext(ctx, "Email suppressed (no API key configured)",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject))
	return nil
}

// NewSender returns a ResendSender when an API key is configured and a
// LogSender otherwise.
func NewSender(apiKey, from string) Sender {
	if apiKey == "" {
		return LogSender{}
	}
	return NewResendSender(apiKey, from)
}
