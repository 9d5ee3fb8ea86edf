package bot

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	clierr "github.com/ggonzalez94/lpman/internal/errors"
)

// Error text the Bot API returns once a user has blocked the bot.
const blockedSignature = "bot was blocked by the user"

// Telegram adapts the Bot API to Sender and feeds inbound updates to a
// Dispatcher. Updates are handled concurrently.
type Telegram struct {
	api        *tgbot.Bot
	dispatcher *Dispatcher
	logger     *slog.Logger
}

type TelegramOptions struct {
	Token         string
	WebhookSecret string
	Logger        *slog.Logger
}

func NewTelegram(opts TelegramOptions) (*Telegram, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, clierr.New(clierr.CodeConfig, "bot token is required")
	}
	t := &Telegram{logger: opts.Logger}
	if t.logger == nil {
		t.logger = slog.Default()
	}

	options := []tgbot.Option{
		tgbot.WithDefaultHandler(t.onUpdate),
		tgbot.WithErrorsHandler(func(err error) {
			t.logger.Warn("telegram transport error", "error", err)
		}),
	}
	if opts.WebhookSecret != "" {
		options = append(options, tgbot.WithWebhookSecretToken(opts.WebhookSecret))
	}

	api, err := tgbot.New(opts.Token, options...)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeConfig, "initialize telegram client", err)
	}
	t.api = api
	return t, nil
}

// Bind routes inbound updates to d.
func (t *Telegram) Bind(d *Dispatcher) { t.dispatcher = d }

// Poll receives updates by long polling until ctx ends.
func (t *Telegram) Poll(ctx context.Context) {
	if _, err := t.api.DeleteWebhook(ctx, &tgbot.DeleteWebhookParams{}); err != nil {
		t.logger.Warn("delete webhook failed", "error", err)
	}
	t.api.Start(ctx)
}

// RegisterWebhook points the Bot API at publicURL.
func (t *Telegram) RegisterWebhook(ctx context.Context, publicURL, secret string) error {
	_, err := t.api.SetWebhook(ctx, &tgbot.SetWebhookParams{URL: publicURL, SecretToken: secret})
	if err != nil {
		return clierr.Wrap(clierr.CodeConfig, "register webhook", err)
	}
	return nil
}

// ServeWebhook processes updates accepted by WebhookHandler until ctx ends.
func (t *Telegram) ServeWebhook(ctx context.Context) { t.api.StartWebhook(ctx) }

func (t *Telegram) WebhookHandler() http.HandlerFunc { return t.api.WebhookHandler() }

func (t *Telegram) Send(ctx context.Context, chatID int64, r Reply) error {
	params := &tgbot.SendMessageParams{
		ChatID:              chatID,
		Text:                r.Text,
		DisableNotification: r.Silent,
	}
	if r.HTML {
		params.ParseMode = models.ParseModeHTML
	}
	if markup := replyMarkup(r); markup != nil {
		params.ReplyMarkup = markup
	}
	_, err := t.api.SendMessage(ctx, params)
	return deliveryError(err)
}

func (t *Telegram) Typing(ctx context.Context, chatID int64) error {
	_, err := t.api.SendChatAction(ctx, &tgbot.SendChatActionParams{ChatID: chatID, Action: models.ChatActionTyping})
	return deliveryError(err)
}

func (t *Telegram) onUpdate(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	msg, ok := messageFromUpdate(update)
	if !ok || t.dispatcher == nil {
		return
	}
	t.dispatcher.Handle(ctx, msg)
}

func messageFromUpdate(update *models.Update) (Message, bool) {
	if update == nil || update.Message == nil {
		return Message{}, false
	}
	m := update.Message
	msg := Message{ChatID: m.Chat.ID, Text: m.Text, HasText: m.Text != ""}
	if m.From != nil {
		msg.UserID = m.From.ID
	}
	return msg, true
}

func replyMarkup(r Reply) models.ReplyMarkup {
	switch {
	case r.WebAppURL != "":
		return &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{{
			{Text: "Open", WebApp: &models.WebAppInfo{URL: r.WebAppURL}},
		}}}
	case r.RemoveKeyboard:
		return &models.ReplyKeyboardRemove{RemoveKeyboard: true}
	default:
		return nil
	}
}

func deliveryError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, tgbot.ErrorForbidden) || strings.Contains(err.Error(), blockedSignature) {
		return clierr.Wrap(clierr.CodeDelivery, "recipient unreachable", err)
	}
	return clierr.Wrap(clierr.CodeInternal, "telegram request failed", err)
}
