package notification

import (
	"context"
	"log/slog"
)

// Sender delivers a single message to the outside world.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the log instead of delivering them. It backs
// development setups and serves as the fallback while the primary is down.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "notification",
		"to", msg.To,
		"template", msg.Template,
		"data", msg.Data,
	)
	return nil
}
