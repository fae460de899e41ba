package external

import (
	"context"
	"fmt"
	"log/slog"

	"leasenotify/internal/types"
)

// StubEmailSender implements EmailSender by logging calls and returning a
// fake message id. Used when APP_ENV=local or no API key is configured, so
// the worker can boot without real provider credentials.
type StubEmailSender struct {
	logger *slog.Logger
}

// NewStubEmailSender creates a new StubEmailSender.
func NewStubEmailSender(logger *slog.Logger) *StubEmailSender {
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) SendTemplatedEmail(ctx context.Context, input types.SendInput) (string, error) {
	s.logger.InfoContext(ctx, "stub: SendTemplatedEmail called",
		"to", RedactEmail(input.Recipient),
		"template_id", input.TemplateID,
		"personalisation_keys", len(input.Personalisation),
	)
	return fmt.Sprintf("msg_stub_%s", input.Reference), nil
}

var _ EmailSender = (*StubEmailSender)(nil)
