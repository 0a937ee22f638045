package notifier

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"
)

// TelegramNotifier sends messages to one chat through the Telegram Bot API.
type TelegramNotifier struct {
	bot     *bot.Bot
	chatID  any // int64 for numeric ids, string for @channel names
	log     zerolog.Logger
	backoff time.Duration
}

// NewTelegramNotifier creates a notifier with optional proxy support.
// Extra bot options (e.g. bot.WithServerURL) are appended after the defaults.
func NewTelegramNotifier(botToken, chatID, proxyURL string, log zerolog.Logger, opts ...bot.Option) (*TelegramNotifier, error) {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	pollTimeout := 30 * time.Second
	client := &http.Client{
		Timeout:   pollTimeout + 5*time.Second,
		Transport: transport,
	}

	options := append([]bot.Option{
		bot.WithSkipGetMe(),
		bot.WithHTTPClient(pollTimeout, client),
	}, opts...)
	b, err := bot.New(botToken, options...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &TelegramNotifier{
		bot:     b,
		chatID:  parseChatID(chatID),
		log:     log.With().Str("component", "telegram").Logger(),
		backoff: time.Second,
	}, nil
}

func parseChatID(s string) any {
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return id
	}
	return s
}

// Send sends an HTML message to the configured chat.
func (t *TelegramNotifier) Send(ctx context.Context, text string) error {
	_, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    t.chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// SendWithRetry sends a message with exponential backoff retry.
func (t *TelegramNotifier) SendWithRetry(ctx context.Context, text string, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		err := t.Send(ctx, text)
		if err == nil {
			return nil
		}
		lastErr = err
		if i == maxRetries {
			break
		}
		backoff := t.backoff * time.Duration(1<<uint(i))
		t.log.Warn().Err(err).Int("attempt", i+1).Int("max", maxRetries+1).Dur("retry_in", backoff).Msg("telegram send failed")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("all %d retries exhausted: %w", maxRetries+1, lastErr)
}
