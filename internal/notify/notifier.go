// Package notify runs the recurring schedule-change check and fans rendered
// schedules out to every subscribed chat.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kveex/Aktt-Telegram-Bot/internal/domain"
	"github.com/kveex/Aktt-Telegram-Bot/internal/logging"
	"github.com/kveex/Aktt-Telegram-Bot/internal/schedule"
)

// ErrBadInterval rejects a non-positive check interval before the loop is
// armed.
var ErrBadInterval = errors.New("check interval must be positive")

// DefaultStartupDelay is how long the loop waits before its first check, so
// startup is not serialized behind a network round trip.
const DefaultStartupDelay = 10 * time.Second

// ChangeChecker reports whether the upstream schedule was republished.
type ChangeChecker interface {
	CheckChanged(ctx context.Context) (bool, error)
}

// ScheduleResolver fetches a rendered-ready schedule for one scope.
type ScheduleResolver interface {
	StudentSchedule(ctx context.Context, groupName string) (schedule.Group, error)
	TeacherSchedule(ctx context.Context, teacherName string) (schedule.Group, error)
}

// SubscriptionLister loads every persisted subscription.
type SubscriptionLister interface {
	ListAll(ctx context.Context) ([]domain.Subscription, error)
}

// Sender delivers one plain-text message to a chat.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Notifier owns the poll-and-notify loop. It is idle between ticks; a tick
// that observes a change dispatches the full subscription list before the
// loop goes idle again.
type Notifier struct {
	checker      ChangeChecker
	lister       SubscriptionLister
	resolver     ScheduleResolver
	sender       Sender
	logger       *logrus.Entry
	interval     time.Duration
	startupDelay time.Duration
}

// NewNotifier validates the interval and wires the loop's collaborators.
func NewNotifier(checker ChangeChecker, lister SubscriptionLister, resolver ScheduleResolver, sender Sender, interval time.Duration, logger *logrus.Entry) (*Notifier, error) {
	if checker == nil || lister == nil || resolver == nil || sender == nil {
		return nil, errors.New("all notifier collaborators are required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("%w: got %s", ErrBadInterval, interval)
	}
	if logger == nil {
		logger = logging.Logger()
	}

	return &Notifier{
		checker:      checker,
		lister:       lister,
		resolver:     resolver,
		sender:       sender,
		logger:       logger,
		interval:     interval,
		startupDelay: DefaultStartupDelay,
	}, nil
}

// Run drives the loop until the context is canceled. An in-flight tick runs
// to completion; cancellation only stops scheduling of further ticks.
func (n *Notifier) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	n.logger.WithFields(logging.Fields{
		"event":    "notifier_started",
		"interval": n.interval.String(),
	}).Info("schedule check loop armed")

	first := time.NewTimer(n.startupDelay)
	defer first.Stop()

	select {
	case <-ctx.Done():
		return
	case <-first.C:
	}

	n.tick(ctx)

	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			n.logger.WithField("event", "notifier_stopped").Info("schedule check loop stopped")
			return
		case <-ticker.C:
			n.tick(ctx)
		}
	}
}

func (n *Notifier) tick(ctx context.Context) {
	changed, err := n.checker.CheckChanged(ctx)
	if err != nil {
		n.logger.WithField("event", "change_check_failed").WithError(err).Error("schedule change check failed")
		return
	}
	if !changed {
		n.logger.WithField("event", "no_change").Debug("schedule unchanged")
		return
	}

	subs, err := n.lister.ListAll(ctx)
	if err != nil {
		n.logger.WithField("event", "list_subscriptions_failed").WithError(err).Error("could not load subscriptions")
		return
	}

	n.logger.WithFields(logging.Fields{
		"event":         "schedule_changed",
		"subscriptions": len(subs),
	}).Info("schedule changed, dispatching notifications")

	delivered := 0
	for _, sub := range subs {
		delivered += n.dispatch(ctx, sub)
	}

	n.logger.WithFields(logging.Fields{
		"event":     "dispatch_complete",
		"delivered": delivered,
	}).Info("notification dispatch finished")
}

// dispatch sends up to two messages for one subscription record: the fields
// are checked independently, so a record carrying both a group and a teacher
// produces both schedules. A failure on one never blocks the other, nor the
// rest of the batch.
func (n *Notifier) dispatch(ctx context.Context, sub domain.Subscription) int {
	delivered := 0

	if sub.GroupName != "" {
		if err := n.deliverGroup(ctx, sub); err != nil {
			n.logger.WithFields(logging.Fields{
				"event":      "notify_failed",
				"chat_id":    sub.ChatID,
				"group_name": sub.GroupName,
			}).WithError(err).Error("failed to deliver group schedule")
		} else {
			delivered++
		}
	}

	if sub.TeacherName != "" {
		if err := n.deliverTeacher(ctx, sub); err != nil {
			n.logger.WithFields(logging.Fields{
				"event":        "notify_failed",
				"chat_id":      sub.ChatID,
				"teacher_name": sub.TeacherName,
			}).WithError(err).Error("failed to deliver teacher schedule")
		} else {
			delivered++
		}
	}

	return delivered
}

func (n *Notifier) deliverGroup(ctx context.Context, sub domain.Subscription) error {
	group, err := n.resolver.StudentSchedule(ctx, sub.GroupName)
	if err != nil {
		return fmt.Errorf("resolve group schedule: %w", err)
	}

	// The stored sub-group is a lookup preference; notifications carry the
	// full group schedule.
	text, err := group.Render()
	if err != nil {
		return fmt.Errorf("render group schedule: %w", err)
	}

	if err := n.sender.SendMessage(ctx, sub.ChatID, text); err != nil {
		return fmt.Errorf("send group schedule: %w", err)
	}

	return nil
}

func (n *Notifier) deliverTeacher(ctx context.Context, sub domain.Subscription) error {
	group, err := n.resolver.TeacherSchedule(ctx, sub.TeacherName)
	if err != nil {
		return fmt.Errorf("resolve teacher schedule: %w", err)
	}

	text, err := group.Render()
	if err != nil {
		return fmt.Errorf("render teacher schedule: %w", err)
	}

	if err := n.sender.SendMessage(ctx, sub.ChatID, text); err != nil {
		return fmt.Errorf("send teacher schedule: %w", err)
	}

	return nil
}
