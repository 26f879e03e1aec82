package notify

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, f.err
}

func TestTelegramGatewaySend(t *testing.T) {
	sender := &fakeSender{}
	gateway := newTelegramGateway(sender, zap.NewNop())

	err := gateway.Send(context.Background(), 42, "<b>Payment due</b>")

	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(42), sender.sent[0].ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, sender.sent[0].ParseMode)
	assert.Equal(t, "<b>Payment due</b>", sender.sent[0].Text)
}

func TestTelegramGatewayBlockedUserIsUndeliverable(t *testing.T) {
	sender := &fakeSender{err: &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}}
	gateway := newTelegramGateway(sender, nil)

	err := gateway.Send(context.Background(), 42, "hi")

	assert.ErrorIs(t, err, ErrUndeliverable)
}

func TestTelegramGatewayTransientError(t *testing.T) {
	sender := &fakeSender{err: errors.New("connection reset")}
	gateway := newTelegramGateway(sender, nil)

	err := gateway.Send(context.Background(), 42, "hi")

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUndeliverable)
}

func TestTelegramGatewayCancelledContext(t *testing.T) {
	sender := &fakeSender{}
	gateway := newTelegramGateway(sender, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := gateway.Send(ctx, 42, "hi")

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sender.sent)
}

func TestLogGatewaySend(t *testing.T) {
	assert.NoError(t, NewLogGateway(nil).Send(context.Background(), 1, "hello"))
}
