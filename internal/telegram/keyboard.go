package telegram

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/kveex/Aktt-Telegram-Bot/internal/domain"
	"github.com/kveex/Aktt-Telegram-Bot/internal/schedule"
)

const (
	btnGroupSchedule   = "Расписание для группы"
	btnTeacherSchedule = "Расписание для преподавателя"
	btnSubscribe       = "Подписка на расписание"
	btnUnsubscribe     = "Отписка от расписания"
	btnCancel          = "Отмена"
)

func buttonRow(labels ...string) []models.KeyboardButton {
	row := make([]models.KeyboardButton, 0, len(labels))
	for _, label := range labels {
		row = append(row, models.KeyboardButton{Text: label})
	}

	return row
}

// defaultKeyboard builds the main menu. The subscribe button is offered only
// while the chat is under the subscription cap, the unsubscribe button only
// when there is something to remove.
func defaultKeyboard(subscriptionCount int64) *models.ReplyKeyboardMarkup {
	rows := [][]models.KeyboardButton{
		buttonRow(btnGroupSchedule),
		buttonRow(btnTeacherSchedule),
	}

	if subscriptionCount < domain.MaxSubscriptions {
		rows = append(rows, buttonRow(btnSubscribe))
	}
	if subscriptionCount > 0 {
		rows = append(rows, buttonRow(btnUnsubscribe))
	}

	return &models.ReplyKeyboardMarkup{
		Keyboard:       rows,
		ResizeKeyboard: true,
	}
}

func subGroupKeyboard() *models.ReplyKeyboardMarkup {
	return &models.ReplyKeyboardMarkup{
		Keyboard: [][]models.KeyboardButton{
			buttonRow(schedule.SubGroupFirst.DisplayName(), schedule.SubGroupSecond.DisplayName()),
			buttonRow(schedule.SubGroupBoth.DisplayName()),
		},
		ResizeKeyboard:  true,
		OneTimeKeyboard: true,
	}
}

// unsubscribeKeyboard lists the chat's subscriptions as numbered buttons in
// the order the repository returns them, plus a cancel row.
func unsubscribeKeyboard(subs []domain.Subscription) *models.ReplyKeyboardMarkup {
	rows := make([][]models.KeyboardButton, 0, len(subs)+1)
	for i, sub := range subs {
		rows = append(rows, buttonRow(subscriptionLabel(i+1, sub)))
	}
	rows = append(rows, buttonRow(btnCancel))

	return &models.ReplyKeyboardMarkup{
		Keyboard:        rows,
		ResizeKeyboard:  true,
		OneTimeKeyboard: true,
	}
}

func subscriptionLabel(number int, sub domain.Subscription) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%d. ", number)
	if sub.TeacherName != "" {
		fmt.Fprintf(&b, "Преподаватель: %s", sub.TeacherName)
	} else {
		fmt.Fprintf(&b, "Группа: %s", strings.ToUpper(sub.GroupName))
	}
	if sub.GroupName != "" {
		fmt.Fprintf(&b, " Подгруппа: %s", sub.SubGroup.DisplayName())
	}

	return b.String()
}

// parsePickedNumber extracts the leading number from an unsubscribe button
// label, e.g. "2. Группа: IT-21 Подгруппа: Обе" yields 2. Free-typed bare
// numbers work too.
func parsePickedNumber(text string) (int, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(text), ".", "")
	fields := strings.Fields(cleaned)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty subscription pick")
	}

	number, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, fmt.Errorf("parse subscription pick %q: %w", text, err)
	}

	return number, nil
}
