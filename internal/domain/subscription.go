// Package domain defines the subscription model and its persistence rules.
package domain

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kveex/Aktt-Telegram-Bot/internal/schedule"
)

// MaxSubscriptions caps how many subscriptions a single chat may hold. The
// keyboard logic uses the same constant to decide whether to offer the
// subscribe button at all.
const MaxSubscriptions = 5

// Business-rule outcomes of subscription creation. Handlers branch on these
// with errors.Is and show them to the user instead of crashing.
var (
	ErrSubscriptionLimit = errors.New("нельзя добавить больше 5 подписок")
	ErrAlreadySubscribed = errors.New("такая подписка уже есть")
)

// ScopeKind tags what a subscription scope points at.
type ScopeKind int

// Scope kinds.
const (
	ScopeGroup ScopeKind = iota + 1
	ScopeTeacher
)

// Scope is the tagged target of a subscription: exactly one of a class group
// (with a sub-group filter) or a teacher.
type Scope struct {
	Kind     ScopeKind
	Name     string
	SubGroup schedule.SubGroup
}

// GroupScope builds a scope for a class group filtered to the given sub-group.
func GroupScope(name string, sub schedule.SubGroup) Scope {
	return Scope{Kind: ScopeGroup, Name: name, SubGroup: sub}
}

// TeacherScope builds a scope for a teacher. Teacher schedules have no
// sub-group split, so the filter is pinned to Both.
func TeacherScope(name string) Scope {
	return Scope{Kind: ScopeTeacher, Name: name, SubGroup: schedule.SubGroupBoth}
}

// Validate reports whether the scope is well-formed.
func (s Scope) Validate() error {
	if s.Name == "" {
		return errors.New("scope name is required")
	}

	switch s.Kind {
	case ScopeGroup:
		if s.SubGroup == "" {
			return errors.New("group scope requires a sub group")
		}
		return nil
	case ScopeTeacher:
		return nil
	default:
		return fmt.Errorf("unknown scope kind %d", s.Kind)
	}
}

// Subscription is one persisted request for automatic schedule notifications.
// The id is assigned by the store on insert and never changes; records are
// only ever created and deleted, never updated in place.
type Subscription struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ChatID      int64              `bson:"chat_id" json:"chat_id"`
	GroupName   string             `bson:"group_name,omitempty" json:"group_name,omitempty"`
	TeacherName string             `bson:"teacher_name,omitempty" json:"teacher_name,omitempty"`
	SubGroup    schedule.SubGroup  `bson:"sub_group" json:"sub_group"`
}

// NewSubscription builds an unsaved subscription for the chat and scope.
func NewSubscription(chatID int64, scope Scope) (Subscription, error) {
	if chatID == 0 {
		return Subscription{}, errors.New("chat id is required")
	}
	if err := scope.Validate(); err != nil {
		return Subscription{}, err
	}

	sub := Subscription{ChatID: chatID, SubGroup: scope.SubGroup}
	switch scope.Kind {
	case ScopeGroup:
		sub.GroupName = scope.Name
	case ScopeTeacher:
		sub.TeacherName = scope.Name
	}

	return sub, nil
}

// Validate checks the stored-record invariant: at least one scope name set.
func (s Subscription) Validate() error {
	if s.GroupName == "" && s.TeacherName == "" {
		return errors.New("subscription needs a group or a teacher")
	}
	return nil
}

// Scope reconstructs the tagged scope from the stored record. Teacher scope
// wins when both names are somehow present, matching how the notify loop
// treats the fields independently.
func (s Subscription) Scope() Scope {
	if s.TeacherName != "" {
		return TeacherScope(s.TeacherName)
	}
	return GroupScope(s.GroupName, s.SubGroup)
}
