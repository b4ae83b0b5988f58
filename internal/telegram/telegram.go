// Package telegram hosts the Telegram client, routing, and handlers.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"github.com/kveex/Aktt-Telegram-Bot/internal/config"
	"github.com/kveex/Aktt-Telegram-Bot/internal/domain"
	"github.com/kveex/Aktt-Telegram-Bot/internal/logging"
	"github.com/kveex/Aktt-Telegram-Bot/internal/schedule"
)

type botRunner interface {
	Start(ctx context.Context)
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	AnswerInlineQuery(ctx context.Context, params *bot.AnswerInlineQueryParams) (bool, error)
}

var (
	defaultAllowedUpdates = bot.AllowedUpdates{
		"message",
		"edited_message",
		"inline_query",
	}

	createBot = func(token string, options ...bot.Option) (botRunner, error) {
		return bot.New(token, options...)
	}
)

// lookupService resolves names against the upstream directory and renders
// schedules.
type lookupService interface {
	KnownGroup(ctx context.Context, name string) (bool, error)
	KnownTeacher(ctx context.Context, name string) (bool, error)
	Classify(ctx context.Context, name string) (isGroup, isTeacher bool, err error)
	GroupSchedule(ctx context.Context, groupName string, sub schedule.SubGroup) (string, error)
	TeacherSchedule(ctx context.Context, teacherName string) (string, error)
}

// subscriptionService manages the chat's schedule subscriptions.
type subscriptionService interface {
	Overview(ctx context.Context, chatID int64) ([]domain.Subscription, int64, error)
	Subscribe(ctx context.Context, chatID int64, scope domain.Scope) (bool, error)
	UnsubscribeByNumber(ctx context.Context, chatID int64, number int) (bool, error)
}

// Client wraps the Telegram bot instance, the schedule services, and the
// per-chat conversation sessions.
type Client struct {
	bot      botRunner
	lookups  lookupService
	subs     subscriptionService
	sessions *sessionStore
	logger   *logrus.Entry
}

// NewClient initializes the Telegram bot with long polling and the schedule
// handlers.
func NewClient(cfg config.Config, lookups lookupService, subs subscriptionService, logger *logrus.Entry) (*Client, error) {
	if strings.TrimSpace(cfg.TelegramToken) == "" {
		return nil, errors.New("telegram token is required")
	}
	if lookups == nil || subs == nil {
		return nil, errors.New("lookup and subscription services are required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	client := &Client{
		lookups:  lookups,
		subs:     subs,
		sessions: newSessionStore(),
		logger:   logger,
	}

	tgBot, err := createBot(cfg.TelegramToken,
		bot.WithAllowedUpdates(defaultAllowedUpdates),
		bot.WithDefaultHandler(client.handleUpdate),
		bot.WithErrorsHandler(errorHandler(logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot client: %w", err)
	}

	client.bot = tgBot

	return client, nil
}

// Start begins receiving updates via long polling until the context is canceled.
func (c *Client) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	c.logger.WithFields(logging.Fields{
		"event":           "telegram_listen",
		"allowed_updates": defaultAllowedUpdates,
	}).Info("starting telegram long polling")

	c.bot.Start(ctx)

	c.logger.WithField("event", "telegram_stopped").Info("telegram polling stopped")
}

// SendMessage delivers plain text to a chat. The change notifier pushes
// schedule updates through it.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	_, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		return fmt.Errorf("send message to chat %d: %w", chatID, err)
	}

	return nil
}

// reply sends a handler response, optionally swapping the reply keyboard.
// Send failures are logged, not surfaced: a lost reply must not wedge the
// polling loop.
func (c *Client) reply(ctx context.Context, chatID int64, text string, markup models.ReplyMarkup) {
	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}
	if markup != nil {
		params.ReplyMarkup = markup
	}

	if _, err := c.bot.SendMessage(ctx, params); err != nil {
		c.logger.WithFields(logging.Fields{
			"event":   "telegram_reply_failed",
			"chat_id": chatID,
		}).WithError(err).Error("failed to send reply")
	}
}

func (c *Client) handleUpdate(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update == nil {
		return
	}

	switch {
	case update.Message != nil:
		c.handleMessage(ctx, update.Message)
	case update.InlineQuery != nil:
		c.handleInlineQuery(ctx, update.InlineQuery)
	default:
		meta := extractUpdateMeta(update)
		c.logger.WithFields(logging.Fields{
			"event":       "telegram_update_skipped",
			"update_type": meta.updateType,
		}).Debug("ignoring update")
	}
}

type updateMeta struct {
	userID     int64
	chatID     int64
	text       string
	updateType string
}

func extractUpdateMeta(update *models.Update) updateMeta {
	switch {
	case update.Message != nil:
		return updateMeta{
			userID:     userID(update.Message.From),
			chatID:     chatID(&update.Message.Chat),
			text:       strings.TrimSpace(update.Message.Text),
			updateType: "message",
		}
	case update.EditedMessage != nil:
		return updateMeta{
			userID:     userID(update.EditedMessage.From),
			chatID:     chatID(&update.EditedMessage.Chat),
			text:       strings.TrimSpace(update.EditedMessage.Text),
			updateType: "edited_message",
		}
	case update.InlineQuery != nil:
		return updateMeta{
			userID:     userID(update.InlineQuery.From),
			text:       strings.TrimSpace(update.InlineQuery.Query),
			updateType: "inline_query",
		}
	default:
		return updateMeta{updateType: "unknown"}
	}
}

func errorHandler(logger *logrus.Entry) bot.ErrorsHandler {
	if logger == nil {
		logger = logging.Logger()
	}

	return func(err error) {
		if err == nil {
			return
		}

		logger.WithField("event", "telegram_error").WithError(err).Error("telegram polling error")
	}
}

func userID(user *models.User) int64 {
	if user == nil {
		return 0
	}

	return user.ID
}

func chatID(chat *models.Chat) int64 {
	if chat == nil {
		return 0
	}

	return chat.ID
}
