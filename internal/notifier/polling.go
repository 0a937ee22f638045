package notifier

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// CommandHandler is called when a user command is received. An empty reply sends nothing.
type CommandHandler func(ctx context.Context, command string) string

// StartPolling begins long-polling for Telegram commands. Blocks until ctx is cancelled.
func (t *TelegramNotifier) StartPolling(ctx context.Context, handler CommandHandler) {
	t.bot.RegisterHandler(bot.HandlerTypeMessageText, "/", bot.MatchTypePrefix,
		func(ctx context.Context, _ *bot.Bot, update *models.Update) {
			t.handleUpdate(ctx, update, handler)
		})
	t.log.Info().Msg("telegram polling started")
	t.bot.Start(ctx)
	t.log.Info().Msg("telegram polling stopped")
}

// handleUpdate answers commands sent from the configured chat.
func (t *TelegramNotifier) handleUpdate(ctx context.Context, update *models.Update, handler CommandHandler) {
	if update == nil || update.Message == nil || update.Message.Text == "" {
		return
	}
	if id, ok := t.chatID.(int64); ok && update.Message.Chat.ID != id {
		t.log.Warn().Int64("chat_id", update.Message.Chat.ID).Msg("ignoring command from unknown chat")
		return
	}
	text := strings.TrimSpace(update.Message.Text)
	t.log.Info().Str("command", text).Msg("received command")
	reply := handler(ctx, text)
	if reply == "" {
		return
	}
	if err := t.Send(ctx, reply); err != nil {
		t.log.Error().Err(err).Msg("send reply")
	}
}
