package otp

import (
	"context"
	"log/slog"
)

// Sender delivers a one-time code out-of-band. Production wiring injects the
// platform's email provider; any failure is reported to the service as an
// error and surfaced to callers as a boolean delivery failure.
type Sender interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// LogSender writes the message to the log instead of delivering it.
// Development only: the body contains the plaintext code.
type LogSender struct {
	Logger *slog.Logger
}

// Send logs the outgoing message.
func (s *LogSender) Send(ctx context.Context, recipient, subject, body string) error {
	s.Logger.InfoContext(ctx, "otp email (dev sender)",
		"recipient", recipient,
		"subject", subject,
		"body", body,
	)
	return nil
}

var _ Sender = (*LogSender)(nil)
