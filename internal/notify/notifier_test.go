package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/kveex/Aktt-Telegram-Bot/internal/domain"
	"github.com/kveex/Aktt-Telegram-Bot/internal/schedule"
)

type fakeChecker struct {
	changed bool
	err     error
	calls   int
}

func (f *fakeChecker) CheckChanged(context.Context) (bool, error) {
	f.calls++
	return f.changed, f.err
}

type fakeLister struct {
	subs  []domain.Subscription
	err   error
	calls int
}

func (f *fakeLister) ListAll(context.Context) ([]domain.Subscription, error) {
	f.calls++
	return f.subs, f.err
}

type fakeResolver struct {
	studentErrFor string
	teacherErrFor string
	studentCalls  []string
	teacherCalls  []string
}

func (f *fakeResolver) StudentSchedule(_ context.Context, groupName string) (schedule.Group, error) {
	f.studentCalls = append(f.studentCalls, groupName)
	if groupName == f.studentErrFor {
		return schedule.Group{}, errors.New("student schedule unavailable")
	}
	return schedule.Group{ScheduleDate: "2024-01-10", GroupName: groupName}, nil
}

func (f *fakeResolver) TeacherSchedule(_ context.Context, teacherName string) (schedule.Group, error) {
	f.teacherCalls = append(f.teacherCalls, teacherName)
	if teacherName == f.teacherErrFor {
		return schedule.Group{}, errors.New("teacher schedule unavailable")
	}
	return schedule.Group{ScheduleDate: "2024-01-10", TeacherName: teacherName}, nil
}

type sentMessage struct {
	chatID int64
	text   string
}

type fakeSender struct {
	errForChat int64
	sent       []sentMessage
}

func (f *fakeSender) SendMessage(_ context.Context, chatID int64, text string) error {
	if chatID == f.errForChat {
		return errors.New("chat unreachable")
	}
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

func testNotifier(t *testing.T, checker *fakeChecker, lister *fakeLister, resolver *fakeResolver, sender *fakeSender) (*Notifier, *logtest.Hook) {
	t.Helper()

	logger, hook := logtest.NewNullLogger()
	notifier, err := NewNotifier(checker, lister, resolver, sender, 30*time.Minute, logrus.NewEntry(logger))
	if err != nil {
		t.Fatalf("NewNotifier returned error: %v", err)
	}
	return notifier, hook
}

func TestNewNotifierRejectsNonPositiveInterval(t *testing.T) {
	checker, lister, resolver, sender := &fakeChecker{}, &fakeLister{}, &fakeResolver{}, &fakeSender{}

	for _, interval := range []time.Duration{0, -time.Minute} {
		_, err := NewNotifier(checker, lister, resolver, sender, interval, nil)
		if !errors.Is(err, ErrBadInterval) {
			t.Fatalf("expected bad interval error for %s, got %v", interval, err)
		}
	}
}

func TestNewNotifierRequiresCollaborators(t *testing.T) {
	if _, err := NewNotifier(nil, &fakeLister{}, &fakeResolver{}, &fakeSender{}, time.Minute, nil); err == nil {
		t.Fatalf("expected error for missing checker")
	}
}

func TestTickDoesNothingWhenUnchanged(t *testing.T) {
	checker := &fakeChecker{changed: false}
	lister := &fakeLister{}
	sender := &fakeSender{}
	notifier, _ := testNotifier(t, checker, lister, &fakeResolver{}, sender)

	notifier.tick(context.Background())

	if lister.calls != 0 {
		t.Fatalf("unchanged tick must not touch the store, got %d list calls", lister.calls)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("unchanged tick must not send, got %d messages", len(sender.sent))
	}
}

func TestTickDispatchesToAllSubscriptions(t *testing.T) {
	checker := &fakeChecker{changed: true}
	lister := &fakeLister{subs: []domain.Subscription{
		{ChatID: 1, GroupName: "it-21", SubGroup: schedule.SubGroupFirst},
		{ChatID: 2, TeacherName: "Иванов А.Б.", SubGroup: schedule.SubGroupBoth},
	}}
	resolver := &fakeResolver{}
	sender := &fakeSender{}
	notifier, _ := testNotifier(t, checker, lister, resolver, sender)

	notifier.tick(context.Background())

	if len(sender.sent) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(sender.sent))
	}
	if sender.sent[0].chatID != 1 || sender.sent[1].chatID != 2 {
		t.Fatalf("expected deliveries to chats 1 and 2, got %+v", sender.sent)
	}
	if len(resolver.studentCalls) != 1 || resolver.studentCalls[0] != "it-21" {
		t.Fatalf("expected one student resolution for it-21, got %v", resolver.studentCalls)
	}
	if len(resolver.teacherCalls) != 1 {
		t.Fatalf("expected one teacher resolution, got %v", resolver.teacherCalls)
	}
}

func TestTickSendsTwoMessagesForDualScopeRecord(t *testing.T) {
	checker := &fakeChecker{changed: true}
	lister := &fakeLister{subs: []domain.Subscription{
		{ChatID: 1, GroupName: "it-21", TeacherName: "Иванов А.Б.", SubGroup: schedule.SubGroupBoth},
	}}
	sender := &fakeSender{}
	notifier, _ := testNotifier(t, checker, lister, &fakeResolver{}, sender)

	notifier.tick(context.Background())

	if len(sender.sent) != 2 {
		t.Fatalf("a record with both scopes must produce two messages, got %d", len(sender.sent))
	}
}

func TestTickIsolatesPerSubscriptionFailures(t *testing.T) {
	checker := &fakeChecker{changed: true}
	lister := &fakeLister{subs: []domain.Subscription{
		{ChatID: 1, GroupName: "broken", SubGroup: schedule.SubGroupBoth},
		{ChatID: 2, GroupName: "it-21", SubGroup: schedule.SubGroupBoth},
		{ChatID: 3, TeacherName: "Иванов А.Б.", SubGroup: schedule.SubGroupBoth},
	}}
	resolver := &fakeResolver{studentErrFor: "broken"}
	sender := &fakeSender{}
	notifier, hook := testNotifier(t, checker, lister, resolver, sender)

	notifier.tick(context.Background())

	if len(sender.sent) != 2 {
		t.Fatalf("expected remaining subscriptions to be delivered, got %d", len(sender.sent))
	}

	var failureLogged bool
	for _, entry := range hook.AllEntries() {
		if entry.Data["event"] == "notify_failed" {
			failureLogged = true
		}
	}
	if !failureLogged {
		t.Fatalf("expected the per-subscription failure to be logged")
	}
}

func TestTickIsolatesSendFailures(t *testing.T) {
	checker := &fakeChecker{changed: true}
	lister := &fakeLister{subs: []domain.Subscription{
		{ChatID: 1, GroupName: "it-21", SubGroup: schedule.SubGroupBoth},
		{ChatID: 2, GroupName: "it-22", SubGroup: schedule.SubGroupBoth},
	}}
	sender := &fakeSender{errForChat: 1}
	notifier, _ := testNotifier(t, checker, lister, &fakeResolver{}, sender)

	notifier.tick(context.Background())

	if len(sender.sent) != 1 || sender.sent[0].chatID != 2 {
		t.Fatalf("expected delivery to continue past the failing chat, got %+v", sender.sent)
	}
}

func TestTickStopsOnCheckError(t *testing.T) {
	checker := &fakeChecker{err: errors.New("upstream down")}
	lister := &fakeLister{}
	notifier, hook := testNotifier(t, checker, lister, &fakeResolver{}, &fakeSender{})

	notifier.tick(context.Background())

	if lister.calls != 0 {
		t.Fatalf("check failure must not reach the store")
	}
	if len(hook.AllEntries()) == 0 {
		t.Fatalf("expected the failure to be logged")
	}
}

func TestTickStopsOnListError(t *testing.T) {
	checker := &fakeChecker{changed: true}
	lister := &fakeLister{err: errors.New("store down")}
	sender := &fakeSender{}
	notifier, _ := testNotifier(t, checker, lister, &fakeResolver{}, sender)

	notifier.tick(context.Background())

	if len(sender.sent) != 0 {
		t.Fatalf("list failure must not dispatch anything")
	}
}

func TestRunHonorsStartupDelayAndCancellation(t *testing.T) {
	checker := &fakeChecker{changed: false}
	notifier, _ := testNotifier(t, checker, &fakeLister{}, &fakeResolver{}, &fakeSender{})
	notifier.startupDelay = 5 * time.Millisecond
	notifier.interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		notifier.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not stop after cancellation")
	}

	if checker.calls == 0 {
		t.Fatalf("expected at least one change check")
	}
}

func TestRunStopsBeforeFirstTickWhenCanceledEarly(t *testing.T) {
	checker := &fakeChecker{changed: true}
	notifier, _ := testNotifier(t, checker, &fakeLister{}, &fakeResolver{}, &fakeSender{})
	notifier.startupDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		notifier.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not stop on pre-canceled context")
	}

	if checker.calls != 0 {
		t.Fatalf("expected no checks before the startup delay elapsed")
	}
}
