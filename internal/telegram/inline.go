package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"

	"github.com/kveex/Aktt-Telegram-Bot/internal/logging"
	"github.com/kveex/Aktt-Telegram-Bot/internal/schedule"
)

const (
	inlineTitleBoth   = "Обе подгруппы"
	inlineTitleFirst  = "Первая подгруппа"
	inlineTitleSecond = "Вторая подгруппа"
)

// handleInlineQuery serves @-mention queries. A group name yields three
// results (both sub-groups plus each one alone), a teacher name yields one,
// anything else is left unanswered.
func (c *Client) handleInlineQuery(ctx context.Context, query *models.InlineQuery) {
	text := strings.TrimSpace(query.Query)
	if text == "" {
		return
	}

	isGroup, isTeacher, err := c.lookups.Classify(ctx, text)
	if err != nil {
		c.logger.WithFields(logging.Fields{
			"event": "inline_classify_failed",
			"query": text,
		}).WithError(err).Error("failed to classify inline query")
		return
	}

	switch {
	case isGroup:
		c.answerGroupInline(ctx, query.ID, text)
	case isTeacher:
		c.answerTeacherInline(ctx, query.ID, text)
	}
}

func (c *Client) answerGroupInline(ctx context.Context, queryID, groupName string) {
	variants := []struct {
		title string
		sub   schedule.SubGroup
	}{
		{inlineTitleBoth, schedule.SubGroupBoth},
		{inlineTitleFirst, schedule.SubGroupFirst},
		{inlineTitleSecond, schedule.SubGroupSecond},
	}

	results := make([]models.InlineQueryResult, 0, len(variants))
	for _, variant := range variants {
		rendered, err := c.lookups.GroupSchedule(ctx, groupName, variant.sub)
		if err != nil {
			c.logger.WithFields(logging.Fields{
				"event": "inline_render_failed",
				"query": groupName,
			}).WithError(err).Error("failed to render inline group schedule")
			return
		}

		results = append(results, &models.InlineQueryResultArticle{
			ID:                  uuid.NewString(),
			Title:               variant.title,
			InputMessageContent: &models.InputTextMessageContent{MessageText: rendered},
		})
	}

	c.answerInline(ctx, queryID, results)
}

func (c *Client) answerTeacherInline(ctx context.Context, queryID, teacherName string) {
	rendered, err := c.lookups.TeacherSchedule(ctx, teacherName)
	if err != nil {
		c.logger.WithFields(logging.Fields{
			"event": "inline_render_failed",
			"query": teacherName,
		}).WithError(err).Error("failed to render inline teacher schedule")
		return
	}

	c.answerInline(ctx, queryID, []models.InlineQueryResult{
		&models.InlineQueryResultArticle{
			ID:                  uuid.NewString(),
			Title:               fmt.Sprintf("Расписание для %s", teacherName),
			InputMessageContent: &models.InputTextMessageContent{MessageText: rendered},
		},
	})
}

func (c *Client) answerInline(ctx context.Context, queryID string, results []models.InlineQueryResult) {
	_, err := c.bot.AnswerInlineQuery(ctx, &bot.AnswerInlineQueryParams{
		InlineQueryID: queryID,
		Results:       results,
	})
	if err != nil {
		c.logger.WithField("event", "inline_answer_failed").WithError(err).Error("failed to answer inline query")
	}
}
