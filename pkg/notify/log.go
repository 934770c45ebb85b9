package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogMailer records emails instead of sending them. Used when no provider is configured.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendEmail(_ context.Context, msg Email) error {
	m.logger.Info("email not sent, no provider configured", zap.String("to", msg.ToAddr), zap.String("subject", msg.Subject))
	return nil
}

// LogSMSSender records text messages instead of sending them.
type LogSMSSender struct {
	logger *zap.Logger
}

func NewLogSMSSender(logger *zap.Logger) *LogSMSSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSMSSender{logger: logger}
}

func (s *LogSMSSender) SendSMS(_ context.Context, msg SMS) error {
	s.logger.Info("sms not sent, no provider configured", zap.String("to", msg.To))
	return nil
}
