// Package notify delivers reminder text to students.
package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// ErrUndeliverable marks failures that retrying will not fix, such as a user who blocked the bot.
var ErrUndeliverable = errors.New("recipient unreachable")

// Gateway sends a message to a chat. Delivery is best-effort.
type Gateway interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// LogGateway writes messages to the log instead of delivering them.
type LogGateway struct {
	logger *zap.Logger
}

// NewLogGateway constructs a LogGateway.
func NewLogGateway(logger *zap.Logger) *LogGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogGateway{logger: logger}
}

// Send logs the message.
func (g *LogGateway) Send(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.logger.Info("notification (dry run)", zap.Int64("chat_id", chatID), zap.String("text", text))
	return nil
}
