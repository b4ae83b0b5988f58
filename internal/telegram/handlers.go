package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/kveex/Aktt-Telegram-Bot/internal/domain"
	"github.com/kveex/Aktt-Telegram-Bot/internal/logging"
	"github.com/kveex/Aktt-Telegram-Bot/internal/schedule"
)

const (
	msgAskGroup          = "Напиши название группы:"
	msgAskTeacher        = "Напишите имя преподавателя по примеру (Дианов В.П.)"
	msgAskSubscribeName  = "Напиши название группы или имя преподавателя по примеру (Дианов В.П.)"
	msgPickSubGroup      = "Выберите подгруппу ниже:"
	msgPickSubGroupSub   = "Выбери подгруппу ниже:"
	msgUnknownGroup      = "Этой группы нет в списке, попробуйте ещё раз:\nИспользуйте /cancel чтобы отменить"
	msgUnknownTeacher    = "Этого преподавателя нет в списке, попробуйте ещё раз:\nИспользуйте /cancel чтобы отменить"
	msgNameNotFound      = "Указанная группа или преподаватель не найдены :/"
	msgPickToRemove      = "Нажми на подписку, которую нужно удалить:"
	msgBadNumber         = "Что-то неправильно введено, нужно написать имеено число, например 2, попробуй снова\nИспользуй /cancel чтобы отменить"
	msgRemoved           = "Подписка удалена!"
	msgStoreHiccup       = "Что-то пошло не так во время создания подписки, программисту опять что-то чинить :D"
	msgCanceled          = "Отменено."
	msgSubCanceled       = "Работа с подписками отменена."
	msgScheduleAPIDown   = "Не получилось связаться с сервером расписания, попробуй позже."
	greetingTemplate     = "Здравствуй, %s!\n\nЭтот бот поможет тебе получить информацию о расписании. Можешь использовать кнопки ниже или оформить подписку на расписание, оно будет приходить автоматически примерно в то же время, как его обновят на сайте.\n\nПрошу учесть, что расписание иногда может быть некорректным, так как формируется из расписания на сайте, которое кишит опечатками :("
	subscribedGroupFmt   = "Подписка на расписание группы %s оформлена успешно!"
	subscribedTeacherFmt = "Подписка на расписание преподавателя %s оформлена успешно!"
)

func (c *Client) handleMessage(ctx context.Context, msg *models.Message) {
	chat := chatID(&msg.Chat)
	text := strings.TrimSpace(msg.Text)
	if chat == 0 || text == "" {
		return
	}

	switch text {
	case "/start":
		c.handleStart(ctx, chat, msg.From)
		return
	case "/cancel":
		c.handleCancel(ctx, chat)
		return
	}

	if sess := c.sessions.get(chat); sess.state != stateIdle {
		c.continueConversation(ctx, chat, text, sess)
		return
	}

	switch text {
	case btnGroupSchedule:
		c.sessions.set(chat, session{state: stateLookupGroupName})
		c.reply(ctx, chat, msgAskGroup, nil)
	case btnTeacherSchedule:
		c.sessions.set(chat, session{state: stateLookupTeacherName})
		c.reply(ctx, chat, msgAskTeacher, nil)
	case btnSubscribe:
		c.sessions.set(chat, session{state: stateSubscribeName})
		c.reply(ctx, chat, msgAskSubscribeName, nil)
	case btnUnsubscribe:
		c.startUnsubscribe(ctx, chat)
	default:
		c.logger.WithFields(logging.Fields{
			"event":   "telegram_update",
			"chat_id": chat,
			"text":    text,
		}).Info("unhandled message")
	}
}

func (c *Client) handleStart(ctx context.Context, chat int64, from *models.User) {
	c.sessions.reset(chat)
	c.reply(ctx, chat, fmt.Sprintf(greetingTemplate, userFullName(from)), c.menuKeyboard(ctx, chat))
}

func (c *Client) handleCancel(ctx context.Context, chat int64) {
	sess := c.sessions.get(chat)
	c.sessions.reset(chat)

	text := msgCanceled
	switch sess.state {
	case stateSubscribeName, stateSubscribeSubGroup, stateUnsubscribePick:
		text = msgSubCanceled
	}

	c.reply(ctx, chat, text, c.menuKeyboard(ctx, chat))
}

func (c *Client) continueConversation(ctx context.Context, chat int64, text string, sess session) {
	switch sess.state {
	case stateLookupGroupName:
		c.lookupGroupNameReceived(ctx, chat, text)
	case stateLookupSubGroup:
		c.lookupSubGroupReceived(ctx, chat, text, sess.groupName)
	case stateLookupTeacherName:
		c.lookupTeacherNameReceived(ctx, chat, text)
	case stateSubscribeName:
		c.subscribeNameReceived(ctx, chat, text)
	case stateSubscribeSubGroup:
		c.subscribeSubGroupReceived(ctx, chat, text, sess.groupName)
	case stateUnsubscribePick:
		c.unsubscribePickReceived(ctx, chat, text)
	}
}

func (c *Client) lookupGroupNameReceived(ctx context.Context, chat int64, text string) {
	known, err := c.lookups.KnownGroup(ctx, text)
	if err != nil {
		c.failConversation(ctx, chat, "lookup_group", err)
		return
	}
	if !known {
		c.reply(ctx, chat, msgUnknownGroup, nil)
		return
	}

	c.sessions.set(chat, session{
		state:     stateLookupSubGroup,
		groupName: strings.ToLower(strings.TrimSpace(text)),
	})
	c.reply(ctx, chat, msgPickSubGroup, subGroupKeyboard())
}

func (c *Client) lookupSubGroupReceived(ctx context.Context, chat int64, text, groupName string) {
	sub, err := schedule.SubGroupFromDisplayName(text)
	if err != nil {
		c.reply(ctx, chat, msgPickSubGroup, subGroupKeyboard())
		return
	}

	rendered, err := c.lookups.GroupSchedule(ctx, groupName, sub)
	if err != nil {
		c.failConversation(ctx, chat, "group_schedule", err)
		return
	}

	c.sessions.reset(chat)
	c.reply(ctx, chat, rendered, c.menuKeyboard(ctx, chat))
}

func (c *Client) lookupTeacherNameReceived(ctx context.Context, chat int64, text string) {
	known, err := c.lookups.KnownTeacher(ctx, text)
	if err != nil {
		c.failConversation(ctx, chat, "lookup_teacher", err)
		return
	}
	if !known {
		c.reply(ctx, chat, msgUnknownTeacher, nil)
		return
	}

	rendered, err := c.lookups.TeacherSchedule(ctx, text)
	if err != nil {
		c.failConversation(ctx, chat, "teacher_schedule", err)
		return
	}

	c.sessions.reset(chat)
	c.reply(ctx, chat, rendered, c.menuKeyboard(ctx, chat))
}

func (c *Client) subscribeNameReceived(ctx context.Context, chat int64, text string) {
	isGroup, isTeacher, err := c.lookups.Classify(ctx, text)
	if err != nil {
		c.failConversation(ctx, chat, "classify_subscription", err)
		return
	}

	switch {
	case isGroup:
		c.sessions.set(chat, session{
			state:     stateSubscribeSubGroup,
			groupName: strings.ToLower(strings.TrimSpace(text)),
		})
		c.reply(ctx, chat, msgPickSubGroupSub, subGroupKeyboard())
	case isTeacher:
		teacherName := strings.TrimSpace(text)
		c.finishSubscribe(ctx, chat, domain.TeacherScope(teacherName), fmt.Sprintf(subscribedTeacherFmt, teacherName))
	default:
		c.sessions.reset(chat)
		c.reply(ctx, chat, msgNameNotFound, c.menuKeyboard(ctx, chat))
	}
}

func (c *Client) subscribeSubGroupReceived(ctx context.Context, chat int64, text, groupName string) {
	sub, err := schedule.SubGroupFromDisplayName(text)
	if err != nil {
		c.reply(ctx, chat, msgPickSubGroupSub, subGroupKeyboard())
		return
	}

	c.finishSubscribe(ctx, chat, domain.GroupScope(groupName, sub), fmt.Sprintf(subscribedGroupFmt, groupName))
}

// finishSubscribe creates the subscription and reports the outcome. Business
// rule violations carry user-facing Russian text and are shown verbatim.
func (c *Client) finishSubscribe(ctx context.Context, chat int64, scope domain.Scope, successText string) {
	c.sessions.reset(chat)

	created, err := c.subs.Subscribe(ctx, chat, scope)
	markup := c.menuKeyboard(ctx, chat)

	switch {
	case errors.Is(err, domain.ErrSubscriptionLimit), errors.Is(err, domain.ErrAlreadySubscribed):
		c.reply(ctx, chat, err.Error(), markup)
	case err != nil:
		c.logger.WithFields(logging.Fields{
			"event":   "subscribe_failed",
			"chat_id": chat,
		}).WithError(err).Error("failed to create subscription")
		c.reply(ctx, chat, msgStoreHiccup, markup)
	case !created:
		c.reply(ctx, chat, msgStoreHiccup, markup)
	default:
		c.reply(ctx, chat, successText, markup)
	}
}

func (c *Client) startUnsubscribe(ctx context.Context, chat int64) {
	subs, _, err := c.subs.Overview(ctx, chat)
	if err != nil {
		c.failConversation(ctx, chat, "list_subscriptions", err)
		return
	}
	if len(subs) == 0 {
		return
	}

	c.sessions.set(chat, session{state: stateUnsubscribePick})
	c.reply(ctx, chat, msgPickToRemove, unsubscribeKeyboard(subs))
}

func (c *Client) unsubscribePickReceived(ctx context.Context, chat int64, text string) {
	if strings.EqualFold(strings.TrimSpace(text), btnCancel) {
		c.handleCancel(ctx, chat)
		return
	}

	number, err := parsePickedNumber(text)
	if err != nil {
		c.reply(ctx, chat, msgBadNumber, nil)
		return
	}

	removed, err := c.subs.UnsubscribeByNumber(ctx, chat, number)
	c.sessions.reset(chat)
	markup := c.menuKeyboard(ctx, chat)

	if err != nil {
		c.logger.WithFields(logging.Fields{
			"event":   "unsubscribe_failed",
			"chat_id": chat,
		}).WithError(err).Error("failed to remove subscription")
		c.reply(ctx, chat, msgStoreHiccup, markup)
		return
	}
	if !removed {
		c.reply(ctx, chat, msgStoreHiccup, markup)
		return
	}

	c.reply(ctx, chat, msgRemoved, markup)
}

// failConversation aborts the flow after an upstream or store failure so the
// chat is not left stuck in a state that can no longer progress.
func (c *Client) failConversation(ctx context.Context, chat int64, step string, err error) {
	c.logger.WithFields(logging.Fields{
		"event":   "conversation_failed",
		"step":    step,
		"chat_id": chat,
	}).WithError(err).Error("conversation step failed")

	c.sessions.reset(chat)
	c.reply(ctx, chat, msgScheduleAPIDown, c.menuKeyboard(ctx, chat))
}

// menuKeyboard builds the default keyboard for the chat's current
// subscription count. A store failure falls back to the zero-count menu.
func (c *Client) menuKeyboard(ctx context.Context, chat int64) *models.ReplyKeyboardMarkup {
	_, count, err := c.subs.Overview(ctx, chat)
	if err != nil {
		c.logger.WithFields(logging.Fields{
			"event":   "keyboard_subscriptions_failed",
			"chat_id": chat,
		}).WithError(err).Warn("failed to count subscriptions for keyboard")
		count = 0
	}

	return defaultKeyboard(count)
}

func userFullName(user *models.User) string {
	if user == nil {
		return "друг"
	}

	name := strings.TrimSpace(strings.TrimSpace(user.FirstName) + " " + strings.TrimSpace(user.LastName))
	if name == "" {
		name = user.Username
	}
	if name == "" {
		name = "друг"
	}

	return name
}
