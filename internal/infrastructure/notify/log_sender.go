package notify

import (
	"context"
	"log/slog"

	"github.com/nardi-attend/attendance-hub/internal/domain/member"
	"github.com/nardi-attend/attendance-hub/internal/domain/notification"
	"github.com/nardi-attend/attendance-hub/pkg/logger"
)

// LogSender writes escalation messages to the log instead of sending them.
type LogSender struct {
	logger *slog.Logger
}

var _ notification.Sender = (*LogSender)(nil)

// NewLogSender creates a LogSender.
func NewLogSender(log *slog.Logger) *LogSender {
	if log == nil {
		log = slog.Default()
	}
	return &LogSender{logger: log.With(logger.Component("notify"))}
}

// SendWarning implements notification.Sender.
func (s *LogSender) SendWarning(ctx context.Context, m *member.Member, streak int) error {
	return s.log(ctx, m, notification.WarningMessage(m, streak))
}

// SendBlock implements notification.Sender.
func (s *LogSender) SendBlock(ctx context.Context, m *member.Member) error {
	return s.log(ctx, m, notification.BlockMessage(m))
}

func (s *LogSender) log(ctx context.Context, m *member.Member, msg notification.Message) error {
	s.logger.InfoContext(ctx, "notification",
		logger.MemberID(m.ID),
		slog.String("kind", string(msg.Kind)),
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
	)
	return nil
}
