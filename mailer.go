package goIdentity

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// LogMailer writes reset tokens to the log instead of sending mail. It is
// the default when no [Mailer] is configured and is only suitable for
// development.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer returns a [LogMailer] writing to logger.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendPasswordReset(_ context.Context, email, token string, expiresAt time.Time) error {
	m.logger.Info("goIdentity: password reset issued",
		zap.String("email", email),
		zap.String("token", token),
		zap.Time("expires_at", expiresAt))
	return nil
}
