package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kveex/Aktt-Telegram-Bot/internal/schedule"
)

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(server.URL, testLogger())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	return client, server
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := New("   ", testLogger()); err == nil {
		t.Fatalf("expected error for empty base url")
	}
}

func TestListGroupsAndTeachers(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/schedule/groups", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"groupsList": ["it-21", "it-22"]}`)
	})
	mux.HandleFunc("/api/schedule/teachers", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"teachersList": ["Иванов А.Б."]}`)
	})

	client, _ := newTestClient(t, mux)
	ctx := context.Background()

	groups, err := client.ListGroups(ctx)
	if err != nil {
		t.Fatalf("ListGroups returned error: %v", err)
	}
	if len(groups) != 2 || groups[0] != "it-21" {
		t.Fatalf("unexpected groups: %v", groups)
	}

	teachers, err := client.ListTeachers(ctx)
	if err != nil {
		t.Fatalf("ListTeachers returned error: %v", err)
	}
	if len(teachers) != 1 || teachers[0] != "Иванов А.Б." {
		t.Fatalf("unexpected teachers: %v", teachers)
	}
}

func TestListGroupsReportsUnavailableOnErrorStatus(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	if _, err := client.ListGroups(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}

func TestStudentScheduleMapsDocumentAndKeepsTrailingSlash(t *testing.T) {
	var gotPath string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, `{
			"scheduleDate": "2024-01-10",
			"groupName": "it-21",
			"scheduleItems": [
				{"time": "8:30-10:05", "subjectName": "Математика", "groupName": "it-21", "teacherName": "Иванов А.Б.", "roomNumber": "204", "subGroup": "BOTH", "state": "OK"}
			]
		}`)
	}))

	group, err := client.StudentSchedule(context.Background(), "it-21")
	if err != nil {
		t.Fatalf("StudentSchedule returned error: %v", err)
	}

	if gotPath != "/api/schedule/student/it-21/" {
		t.Fatalf("expected student path with trailing slash, got %q", gotPath)
	}
	if group.GroupName != "it-21" || len(group.Items) != 1 {
		t.Fatalf("unexpected schedule: %+v", group)
	}
}

func TestTeacherScheduleEscapesName(t *testing.T) {
	var gotEscaped string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEscaped = r.URL.EscapedPath()
		fmt.Fprint(w, `{"scheduleDate": "2024-01-10", "teacherName": "Иванов А.Б.", "scheduleItems": []}`)
	}))

	group, err := client.TeacherSchedule(context.Background(), "Иванов А.Б.")
	if err != nil {
		t.Fatalf("TeacherSchedule returned error: %v", err)
	}

	if gotEscaped == "/api/schedule/teacher/Иванов А.Б." {
		t.Fatalf("expected teacher name to be path escaped, got %q", gotEscaped)
	}
	if group.TeacherName != "Иванов А.Б." {
		t.Fatalf("unexpected teacher name: %q", group.TeacherName)
	}
}

func TestStudentScheduleFailsClosedOnUnknownEnum(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{
			"scheduleDate": "2024-01-10",
			"scheduleItems": [{"time": "8:30", "subjectName": "x", "subGroup": "THIRD", "state": "OK"}]
		}`)
	}))

	if _, err := client.StudentSchedule(context.Background(), "it-21"); !errors.Is(err, schedule.ErrMalformedData) {
		t.Fatalf("expected malformed data error, got %v", err)
	}
}

type dateSequenceHandler struct {
	mu    sync.Mutex
	dates []string
	calls int
}

func (h *dateSequenceHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	date := h.dates[h.calls]
	if h.calls < len(h.dates)-1 {
		h.calls++
	}
	fmt.Fprintf(w, `{"scheduleDate": %q}`, date)
}

func TestCheckChangedSeedsAdvancesAndIgnoresRollback(t *testing.T) {
	handler := &dateSequenceHandler{dates: []string{"2024-01-10", "2024-01-10", "2024-01-12", "2024-01-11"}}
	client, _ := newTestClient(t, handler)
	ctx := context.Background()

	steps := []struct {
		name string
		want bool
	}{
		{"first call seeds baseline", false},
		{"equal date", false},
		{"strictly newer date", true},
		{"rollback to older date", false},
	}

	for _, step := range steps {
		changed, err := client.CheckChanged(ctx)
		if err != nil {
			t.Fatalf("%s: CheckChanged returned error: %v", step.name, err)
		}
		if changed != step.want {
			t.Fatalf("%s: expected changed=%v, got %v", step.name, step.want, changed)
		}
	}

	// The rollback must not have moved the baseline backwards: the same older
	// date still reports no change, and the original newest date is not "new".
	if !client.baseline.Equal(mustDate(t, "2024-01-12")) {
		t.Fatalf("expected baseline to remain at 2024-01-12, got %v", client.baseline)
	}
}

func TestCheckChangedPropagatesFetchErrors(t *testing.T) {
	client, server := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	if _, err := client.CheckChanged(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}

	if client.seeded {
		t.Fatalf("failed fetch must not seed the baseline")
	}
}

func TestScheduleDateRejectsMalformedDate(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"scheduleDate": "12.01.2024"}`)
	}))

	if _, err := client.ScheduleDate(context.Background()); !errors.Is(err, schedule.ErrMalformedData) {
		t.Fatalf("expected malformed data error, got %v", err)
	}
}

func mustDate(t *testing.T, value string) time.Time {
	t.Helper()

	parsed, err := time.Parse(schedule.DateLayout, value)
	if err != nil {
		t.Fatalf("bad test date %q: %v", value, err)
	}
	return parsed
}
