package telegram

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/walletlink/core"
)

func TestSendText(t *testing.T) {
	api := newFakeAPI()
	sender := NewSender(api)

	require.NoError(t, sender.Send(context.Background(), ErrorMessage(42, "boom")))

	require.Len(t, api.sent, 1)
	msg, ok := api.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
	assert.True(t, msg.DisableWebPagePreview)

	markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 1)
	button := markup.InlineKeyboard[0][0]
	assert.Equal(t, "Retry", button.Text)
	require.NotNil(t, button.CallbackData)
	assert.Equal(t, CallbackRetry, *button.CallbackData)
}

func TestSendTextWithoutButtons(t *testing.T) {
	api := newFakeAPI()
	sender := NewSender(api)

	require.NoError(t, sender.Send(context.Background(), ConnectedMessage(42, "0xDEAD")))

	msg, ok := api.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Nil(t, msg.ReplyMarkup)
}

func TestSendPhoto(t *testing.T) {
	api := newFakeAPI()
	sender := NewSender(api)

	err := sender.Send(context.Background(), core.Message{
		ChatID:    42,
		Text:      "scan me",
		Photo:     []byte("\x89PNG..."),
		PhotoName: "qr_42.png",
		Buttons:   [][]core.Button{{{Text: "Connect Wallet", URL: "http://localhost/wallet_connect"}}},
	})
	require.NoError(t, err)

	photo, ok := api.sent[0].(tgbotapi.PhotoConfig)
	require.True(t, ok)
	assert.Equal(t, "scan me", photo.Caption)
	assert.Equal(t, tgbotapi.ModeHTML, photo.ParseMode)

	file, ok := photo.File.(tgbotapi.FileBytes)
	require.True(t, ok)
	assert.Equal(t, "qr_42.png", file.Name)

	markup, ok := photo.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.NotNil(t, markup.InlineKeyboard[0][0].URL)
	assert.Equal(t, "http://localhost/wallet_connect", *markup.InlineKeyboard[0][0].URL)
}

func TestSendError(t *testing.T) {
	api := newFakeAPI()
	api.sendErr = errors.New("Forbidden: bot was blocked by the user")

	err := NewSender(api).Send(context.Background(), StartMessage(42))
	assert.ErrorContains(t, err, "blocked")
}

func TestSendCancelled(t *testing.T) {
	api := newFakeAPI()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewSender(api).Send(ctx, StartMessage(42))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, api.sent)
}
