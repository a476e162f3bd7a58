// Package telegram is the chat front end of the wallet pairing flow.
package telegram

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/layer-3/walletlink/core"
	"github.com/layer-3/walletlink/service"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"
)

const qrSize = 256

// botAPI is the part of *tgbotapi.BotAPI the bot uses
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Pairer runs pairing attempts and queues replies
type Pairer interface {
	Connect(ctx context.Context, userID int64) (service.Pairing, error)
	Result(ctx context.Context, userID int64) (core.Outcome, error)
	Send(msg core.Message)
}

// Bot turns chat updates into pairing attempts
type Bot struct {
	api     botAPI
	pairing Pairer
}

// NewBot creates a new bot
func NewBot(api botAPI, pairing Pairer) *Bot {
	return &Bot{
		api:     api,
		pairing: pairing,
	}
}

// Run registers the command menu and handles updates until ctx is done
func (b *Bot) Run(ctx context.Context) error {
	commands := tgbotapi.NewSetMyCommands(tgbotapi.BotCommand{
		Command:     CommandStart,
		Description: "Start working with the bot",
	})
	if _, err := b.api.Request(commands); err != nil {
		log.Warn().Err(err).Msg("Failed to register bot commands")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{"message", "callback_query", "my_chat_member"}
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	log.Info().Msg("Telegram bot started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return errors.New("telegram update channel closed")
			}
			service.Guard("telegram update", func() { b.handleUpdate(ctx, update) })
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		msg := update.Message
		if msg.From == nil || !msg.IsCommand() {
			return
		}
		if msg.Command() == CommandStart {
			b.pairing.Send(StartMessage(msg.From.ID))
		}

	case update.CallbackQuery != nil:
		query := update.CallbackQuery
		if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
			log.Warn().Err(err).Msg("Failed to answer callback query")
		}
		if query.From == nil {
			return
		}

		switch query.Data {
		case CallbackConnect, CallbackRetry:
			userID := query.From.ID
			go service.Guard("wallet pairing", func() { b.pairWallet(ctx, userID) })
		}

	case update.MyChatMember != nil:
		member := update.MyChatMember
		if member.NewChatMember.Status == "member" {
			b.pairing.Send(StartMessage(member.From.ID))
		}
	}
}

// pairWallet shows the user a pairing QR code and reports how pairing ended
func (b *Bot) pairWallet(ctx context.Context, userID int64) {
	logger := log.With().Int64("user_id", userID).Logger()

	pairing, err := b.pairing.Connect(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrAlreadyPending) {
			b.pairing.Send(PendingMessage(userID))
			return
		}
		logger.Error().Err(err).Str("fault", service.ClassifyFault(err)).Msg("Failed to create connection session")
		b.pairing.Send(ErrorMessage(userID, "Failed to create connection session"))
		return
	}

	if pairing.URI != "" {
		b.sendQR(pairing)
	}

	outcome, err := b.pairing.Result(ctx, userID)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Error().Err(err).Msg("Error pairing wallet")
		b.pairing.Send(ErrorMessage(userID, core.Describe(err)))
		return
	}

	if outcome.OK() {
		b.pairing.Send(ConnectedMessage(userID, outcome.Address))
		return
	}
	b.pairing.Send(ErrorMessage(userID, core.Describe(outcome.Err)))
}

func (b *Bot) sendQR(pairing service.Pairing) {
	qr, err := qrcode.Encode(pairing.URI, qrcode.High, qrSize)
	if err != nil {
		log.Error().Err(err).Int64("user_id", pairing.UserID).Msg("Error generating QR code")
		b.pairing.Send(ErrorMessage(pairing.UserID, "Error generating QR code"))
		return
	}
	b.pairing.Send(PairingMessage(pairing, qr))
}
