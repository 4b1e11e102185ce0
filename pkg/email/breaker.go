package email

import (
	"context"
	"log/slog"

	"mywill/pkg/platform/circuit"
)

// BreakerMailer sends through a primary Mailer and, once the primary has
// failed repeatedly, hands failed messages to a fallback so they are at least
// recorded for a manual resend.
type BreakerMailer struct {
	primary  Mailer
	fallback Mailer
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

func NewBreakerMailer(primary, fallback Mailer, breaker *circuit.Breaker, logger *slog.Logger) *BreakerMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &BreakerMailer{primary: primary, fallback: fallback, breaker: breaker, logger: logger}
}

func (m *BreakerMailer) Send(ctx context.Context, to, subject, body string) error {
	err := m.primary.Send(ctx, to, subject, body)
	if err == nil {
		if _, change := m.breaker.RecordSuccess(); change.Closed {
			m.logger.InfoContext(ctx, "mail circuit closed", "breaker", m.breaker.Name())
		}
		return nil
	}

	useFallback, change := m.breaker.RecordFailure()
	if change.Opened {
		m.logger.WarnContext(ctx, "mail circuit opened", "breaker", m.breaker.Name(), "error", err)
	}
	if !useFallback || m.fallback == nil {
		return err
	}
	if fbErr := m.fallback.Send(ctx, to, subject, body); fbErr != nil {
		return err
	}
	return nil
}
