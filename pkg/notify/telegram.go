package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramGateway delivers messages through the Telegram Bot API.
type TelegramGateway struct {
	sender messageSender
	logger *zap.Logger
}

// NewTelegramGateway authenticates the bot token and returns a gateway.
func NewTelegramGateway(token string, logger *zap.Logger) (*TelegramGateway, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("telegram bot authorised", zap.String("username", api.Self.UserName))
	return &TelegramGateway{sender: api, logger: logger}, nil
}

func newTelegramGateway(sender messageSender, logger *zap.Logger) *TelegramGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TelegramGateway{sender: sender, logger: logger}
}

// Send delivers an HTML-formatted message to chatID.
func (g *TelegramGateway) Send(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := g.sender.Send(msg); err != nil {
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) && (apiErr.Code == http.StatusForbidden || apiErr.Code == http.StatusBadRequest) {
			return fmt.Errorf("telegram chat %d: %s: %w", chatID, apiErr.Message, ErrUndeliverable)
		}
		return fmt.Errorf("telegram send to %d: %w", chatID, err)
	}
	return nil
}
