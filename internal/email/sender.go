package email

import (
	"context"
	"errors"
	"time"
)

// Sender define la interfaz para envío de correos de activación de cuenta.
type Sender interface {
	SendActivationCode(ctx context.Context, toEmail, name, code string, expiresAt time.Time) error
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) SendActivationCode(_ context.Context, _, _, _ string, _ time.Time) error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}
