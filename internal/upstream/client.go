// Package upstream implements the client for the external schedule HTTP API
// and owns the process-wide change-detection baseline.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kveex/Aktt-Telegram-Bot/internal/logging"
	"github.com/kveex/Aktt-Telegram-Bot/internal/schedule"
)

// ErrUnavailable marks transport failures and non-success responses from the
// schedule API. Callers decide whether to retry; the client never does.
var ErrUnavailable = errors.New("schedule api unavailable")

const defaultRequestTimeout = 15 * time.Second

// Client talks to the schedule API. One instance is shared per process; it is
// safe for concurrent use. The last observed schedule date survives only for
// the process lifetime, so the first change check after a restart always
// reseeds the baseline and reports no change.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *logrus.Entry

	mu       sync.Mutex
	baseline time.Time
	seeded   bool
}

// New constructs a Client for the given API base URL.
func New(baseURL string, logger *logrus.Entry) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errors.New("schedule api base url is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	return &Client{
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		baseURL:    trimmed,
		logger:     logger,
	}, nil
}

type groupsResponse struct {
	GroupsList []string `json:"groupsList"`
}

type teachersResponse struct {
	TeachersList []string `json:"teachersList"`
}

type dateResponse struct {
	ScheduleDate string `json:"scheduleDate"`
}

// ListGroups fetches the known group names.
func (c *Client) ListGroups(ctx context.Context) ([]string, error) {
	var payload groupsResponse
	if err := c.getJSON(ctx, "/api/schedule/groups", &payload); err != nil {
		return nil, err
	}

	return payload.GroupsList, nil
}

// ListTeachers fetches the known teacher names.
func (c *Client) ListTeachers(ctx context.Context) ([]string, error) {
	var payload teachersResponse
	if err := c.getJSON(ctx, "/api/schedule/teachers", &payload); err != nil {
		return nil, err
	}

	return payload.TeachersList, nil
}

// StudentSchedule fetches and maps the schedule document for a class group.
func (c *Client) StudentSchedule(ctx context.Context, groupName string) (schedule.Group, error) {
	var doc schedule.Document
	// Upstream requires the trailing slash on the student route.
	if err := c.getJSON(ctx, "/api/schedule/student/"+url.PathEscape(groupName)+"/", &doc); err != nil {
		return schedule.Group{}, err
	}

	return schedule.FromDocument(doc)
}

// TeacherSchedule fetches and maps the schedule document for a teacher.
func (c *Client) TeacherSchedule(ctx context.Context, teacherName string) (schedule.Group, error) {
	var doc schedule.Document
	if err := c.getJSON(ctx, "/api/schedule/teacher/"+url.PathEscape(teacherName), &doc); err != nil {
		return schedule.Group{}, err
	}

	return schedule.FromDocument(doc)
}

// ScheduleDate fetches the upstream last-modified date.
func (c *Client) ScheduleDate(ctx context.Context) (time.Time, error) {
	var payload dateResponse
	if err := c.getJSON(ctx, "/api/schedule/date", &payload); err != nil {
		return time.Time{}, err
	}

	date, err := time.Parse(schedule.DateLayout, payload.ScheduleDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("schedule date %q: %w", payload.ScheduleDate, schedule.ErrMalformedData)
	}

	return date, nil
}

// CheckChanged reports whether the schedule was republished since the last
// check. The first call after process start seeds the baseline and reports
// false. Later calls report true only for a strictly newer date; equal and
// older dates leave the baseline untouched, so an upstream rollback never
// re-arms a notification.
func (c *Client) CheckChanged(ctx context.Context) (bool, error) {
	fetched, err := c.ScheduleDate(ctx)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.seeded {
		c.baseline = fetched
		c.seeded = true
		c.logger.WithFields(logging.Fields{
			"event":         "baseline_seeded",
			"schedule_date": fetched.Format(schedule.DateLayout),
		}).Info("seeded schedule change baseline")
		return false, nil
	}

	if fetched.After(c.baseline) {
		c.baseline = fetched
		return true, nil
	}

	return false, nil
}

func (c *Client) getJSON(ctx context.Context, path string, target interface{}) error {
	if ctx == nil {
		ctx = context.Background()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: get %s: %v", ErrUnavailable, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: get %s: unexpected status %d", ErrUnavailable, path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, schedule.ErrMalformedData)
	}

	return nil
}
