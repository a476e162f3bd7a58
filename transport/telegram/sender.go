package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/layer-3/walletlink/core"
	"github.com/layer-3/walletlink/ports"
)

// Sender delivers core messages through the Bot API
type Sender struct {
	api botAPI
}

// NewSender creates a sender on top of a bot client
func NewSender(api botAPI) ports.Sender {
	return &Sender{api: api}
}

// Send delivers msg as a photo when it has one and as HTML text otherwise
func (s *Sender) Send(ctx context.Context, msg core.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var chattable tgbotapi.Chattable
	if msg.IsPhoto() {
		photo := tgbotapi.NewPhoto(msg.ChatID, tgbotapi.FileBytes{Name: msg.PhotoName, Bytes: msg.Photo})
		photo.Caption = msg.Text
		photo.ParseMode = tgbotapi.ModeHTML
		if len(msg.Buttons) > 0 {
			photo.ReplyMarkup = keyboard(msg.Buttons)
		}
		chattable = photo
	} else {
		text := tgbotapi.NewMessage(msg.ChatID, msg.Text)
		text.ParseMode = tgbotapi.ModeHTML
		text.DisableWebPagePreview = true
		if len(msg.Buttons) > 0 {
			text.ReplyMarkup = keyboard(msg.Buttons)
		}
		chattable = text
	}

	if _, err := s.api.Send(chattable); err != nil {
		return fmt.Errorf("failed to send message to chat %d: %w", msg.ChatID, err)
	}
	return nil
}

func keyboard(rows [][]core.Button) tgbotapi.InlineKeyboardMarkup {
	markup := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			if b.URL != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
			} else {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
			}
		}
		markup = append(markup, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(markup...)
}
