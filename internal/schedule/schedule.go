// Package schedule defines the immutable schedule document model and its
// pure transformations: sub-group filtering and text rendering.
package schedule

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the strict wire format of upstream schedule dates.
const DateLayout = "2006-01-02"

// SubGroup identifies which half of a class group a schedule item applies to.
type SubGroup string

// Known sub-group codes. Both matches any sub-group filter.
const (
	SubGroupFirst  SubGroup = "FIRST"
	SubGroupSecond SubGroup = "SECOND"
	SubGroupBoth   SubGroup = "BOTH"
)

// ParseSubGroup validates a wire-level sub-group code. Unknown codes are
// rejected rather than coerced to a default.
func ParseSubGroup(code string) (SubGroup, error) {
	switch SubGroup(code) {
	case SubGroupFirst, SubGroupSecond, SubGroupBoth:
		return SubGroup(code), nil
	default:
		return "", fmt.Errorf("unknown sub group code %q: %w", code, ErrMalformedData)
	}
}

// DisplayName returns the user-facing Russian label for the sub-group.
func (s SubGroup) DisplayName() string {
	switch s {
	case SubGroupFirst:
		return "Первая"
	case SubGroupSecond:
		return "Вторая"
	case SubGroupBoth:
		return "Обе"
	default:
		return "Неизвестно"
	}
}

// SubGroupFromDisplayName resolves a keyboard label back to a sub-group.
// Raw wire codes are accepted as well so callers can round-trip either form.
func SubGroupFromDisplayName(label string) (SubGroup, error) {
	switch strings.TrimSpace(label) {
	case "Первая":
		return SubGroupFirst, nil
	case "Вторая":
		return SubGroupSecond, nil
	case "Обе":
		return SubGroupBoth, nil
	}

	return ParseSubGroup(strings.TrimSpace(label))
}

// State describes how a schedule item is held. It is parsed strictly but not
// consulted by rendering; upstream may start driving formatting with it later.
type State string

// Known item states.
const (
	StateOK      State = "OK"
	StateDistant State = "DISTANT"
	StateEmpty   State = "EMPTY"
)

// ParseState validates a wire-level state code.
func ParseState(code string) (State, error) {
	switch State(code) {
	case StateOK, StateDistant, StateEmpty:
		return State(code), nil
	default:
		return "", fmt.Errorf("unknown state code %q: %w", code, ErrMalformedData)
	}
}

// Item is one timetable entry.
type Item struct {
	Time        string
	SubjectName string
	GroupName   string
	TeacherName string
	RoomNumber  string
	SubGroup    SubGroup
	State       State
}

// Group is a full schedule for one scope: a class group or a teacher. Both
// name fields are always present as strings; only one is meaningful per
// instance and the empty string is the absent sentinel.
type Group struct {
	ScheduleDate string
	GroupName    string
	TeacherName  string
	Items        []Item
}

// Filtered returns a schedule containing only the items that apply to the
// requested sub-group. Items marked Both always match; filtering by Both is
// the identity and returns the receiver as-is.
func (g Group) Filtered(sub SubGroup) Group {
	if sub == SubGroupBoth {
		return g
	}

	items := make([]Item, 0, len(g.Items))
	for _, item := range g.Items {
		if item.SubGroup == sub || item.SubGroup == SubGroupBoth {
			items = append(items, item)
		}
	}

	return Group{
		ScheduleDate: g.ScheduleDate,
		GroupName:    g.GroupName,
		TeacherName:  g.TeacherName,
		Items:        items,
	}
}

var monthNames = []string{
	"января", "февраля", "марта", "апреля", "мая", "июня",
	"июля", "августа", "сентября", "октября", "ноября", "декабря",
}

const itemSeparator = "-------------------------------\n"

// Render produces the deterministic plain-text representation sent to chats.
// The schedule date must be a strict YYYY-MM-DD value.
func (g Group) Render() (string, error) {
	date, err := time.Parse(DateLayout, g.ScheduleDate)
	if err != nil {
		return "", fmt.Errorf("parse schedule date %q: %w", g.ScheduleDate, ErrMalformedData)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Расписание на %d %s %d\n", date.Day(), monthNames[date.Month()-1], date.Year())

	if g.TeacherName != "" {
		fmt.Fprintf(&b, "Для преподавателя: %s\n\n", g.TeacherName)
	}
	if g.GroupName != "" {
		fmt.Fprintf(&b, "Для группы: %s\n\n", g.GroupName)
	}

	for _, item := range g.Items {
		fmt.Fprintf(&b, "- %s | %s\n", item.Time, item.SubjectName)
		fmt.Fprintf(&b, "- Кабинет: %s\n", item.RoomNumber)
		if item.TeacherName != g.TeacherName {
			fmt.Fprintf(&b, "- Преподаватель: %s\n", item.TeacherName)
		}
		if item.GroupName != g.GroupName {
			fmt.Fprintf(&b, "- Группа: %s\n", item.GroupName)
		}
		if item.SubGroup != SubGroupBoth {
			fmt.Fprintf(&b, "- Подгруппа: %s\n", item.SubGroup.DisplayName())
		}
		b.WriteString(itemSeparator)
	}

	if len(g.Items) == 0 {
		b.WriteString("Нет расписания")
	}

	return b.String(), nil
}
