// Package lookup resolves user-requested group and teacher schedules against
// the upstream directory.
package lookup

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/kveex/Aktt-Telegram-Bot/internal/logging"
	"github.com/kveex/Aktt-Telegram-Bot/internal/schedule"
)

// directory is the subset of the upstream client the service needs.
type directory interface {
	ListGroups(ctx context.Context) ([]string, error)
	ListTeachers(ctx context.Context) ([]string, error)
	StudentSchedule(ctx context.Context, groupName string) (schedule.Group, error)
	TeacherSchedule(ctx context.Context, teacherName string) (schedule.Group, error)
}

// Service validates names against the upstream directory and produces
// rendered schedules.
type Service struct {
	api    directory
	logger *logrus.Entry
}

// NewService constructs a lookup Service.
func NewService(api directory, logger *logrus.Entry) *Service {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Service{api: api, logger: logger}
}

// KnownGroup reports whether the name is a known group. Group names are
// matched lowercased, the form the upstream list uses.
func (s *Service) KnownGroup(ctx context.Context, name string) (bool, error) {
	groups, err := s.api.ListGroups(ctx)
	if err != nil {
		return false, fmt.Errorf("list groups: %w", err)
	}

	needle := strings.ToLower(strings.TrimSpace(name))
	for _, group := range groups {
		if group == needle {
			return true, nil
		}
	}
	return false, nil
}

// KnownTeacher reports whether the name is a known teacher. Teacher names are
// matched verbatim: upstream stores them with initials and case intact.
func (s *Service) KnownTeacher(ctx context.Context, name string) (bool, error) {
	teachers, err := s.api.ListTeachers(ctx)
	if err != nil {
		return false, fmt.Errorf("list teachers: %w", err)
	}

	needle := strings.TrimSpace(name)
	for _, teacher := range teachers {
		if teacher == needle {
			return true, nil
		}
	}
	return false, nil
}

// Classify resolves a free-form name to a group or teacher scope kind.
func (s *Service) Classify(ctx context.Context, name string) (isGroup, isTeacher bool, err error) {
	isGroup, err = s.KnownGroup(ctx, name)
	if err != nil {
		return false, false, err
	}

	isTeacher, err = s.KnownTeacher(ctx, name)
	if err != nil {
		return false, false, err
	}

	return isGroup, isTeacher, nil
}

// GroupSchedule renders the schedule of a known group, filtered to the
// requested sub-group.
func (s *Service) GroupSchedule(ctx context.Context, groupName string, sub schedule.SubGroup) (string, error) {
	group, err := s.api.StudentSchedule(ctx, strings.ToLower(strings.TrimSpace(groupName)))
	if err != nil {
		return "", fmt.Errorf("student schedule: %w", err)
	}

	text, err := group.Filtered(sub).Render()
	if err != nil {
		return "", err
	}

	return text, nil
}

// TeacherSchedule renders the schedule of a known teacher.
func (s *Service) TeacherSchedule(ctx context.Context, teacherName string) (string, error) {
	group, err := s.api.TeacherSchedule(ctx, strings.TrimSpace(teacherName))
	if err != nil {
		return "", fmt.Errorf("teacher schedule: %w", err)
	}

	text, err := group.Render()
	if err != nil {
		return "", err
	}

	return text, nil
}
