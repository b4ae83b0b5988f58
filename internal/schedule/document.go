package schedule

import (
	"errors"
	"fmt"
	"time"
)

// ErrMalformedData marks upstream responses that cannot be mapped into the
// schedule model: unknown enumeration codes or unparsable dates. Such
// responses fail the fetch instead of being coerced.
var ErrMalformedData = errors.New("malformed schedule data")

// Sentinels used when upstream omits the scope name entirely.
const (
	UnknownGroupName   = "Не указана"
	UnknownTeacherName = "Не указан"
)

// Document mirrors the upstream JSON schedule document. Name fields are
// pointers to distinguish an absent key from a present empty string.
type Document struct {
	ScheduleDate  string         `json:"scheduleDate"`
	GroupName     *string        `json:"groupName"`
	TeacherName   *string        `json:"teacherName"`
	ScheduleItems []ItemDocument `json:"scheduleItems"`
}

// ItemDocument mirrors one upstream schedule item.
type ItemDocument struct {
	Time        string `json:"time"`
	SubjectName string `json:"subjectName"`
	GroupName   string `json:"groupName"`
	TeacherName string `json:"teacherName"`
	RoomNumber  string `json:"roomNumber"`
	SubGroup    string `json:"subGroup"`
	State       string `json:"state"`
}

// FromDocument maps an upstream document into a Group. Absent textual fields
// fall back to sentinels, but enumeration codes and the date are validated
// strictly.
func FromDocument(doc Document) (Group, error) {
	if _, err := time.Parse(DateLayout, doc.ScheduleDate); err != nil {
		return Group{}, fmt.Errorf("schedule date %q: %w", doc.ScheduleDate, ErrMalformedData)
	}

	group := Group{
		ScheduleDate: doc.ScheduleDate,
		GroupName:    UnknownGroupName,
		TeacherName:  UnknownTeacherName,
	}
	if doc.GroupName != nil {
		group.GroupName = *doc.GroupName
	}
	if doc.TeacherName != nil {
		group.TeacherName = *doc.TeacherName
	}

	items := make([]Item, 0, len(doc.ScheduleItems))
	for _, itemDoc := range doc.ScheduleItems {
		item, err := fromItemDocument(itemDoc)
		if err != nil {
			return Group{}, err
		}
		items = append(items, item)
	}
	group.Items = items

	return group, nil
}

func fromItemDocument(doc ItemDocument) (Item, error) {
	subGroup, err := ParseSubGroup(doc.SubGroup)
	if err != nil {
		return Item{}, err
	}

	state, err := ParseState(doc.State)
	if err != nil {
		return Item{}, err
	}

	return Item{
		Time:        doc.Time,
		SubjectName: doc.SubjectName,
		GroupName:   doc.GroupName,
		TeacherName: doc.TeacherName,
		RoomNumber:  doc.RoomNumber,
		SubGroup:    subGroup,
		State:       state,
	}, nil
}
