// Package validation holds the pure input checks shared by every mutator.
// Each function returns the normalized value or a *model.Error.
package validation

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hiroki-koketsu/taskboard/internal/model"
)

const (
	MaxTitleLen       = 100
	MaxDescriptionLen = 500
	MaxTagLen         = 20
	MaxUserNameLen    = 50
)

var emailPattern = regexp.MustCompile(`^[\w.-]+@[\w.-]+\.\w+$`)

// dateLayouts are the ISO-8601 forms accepted by Date, tried in order.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// Title trims s and requires 1..100 characters.
func Title(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", model.NewError(model.KindValidation, "title is required")
	}
	if utf8.RuneCountInString(s) > MaxTitleLen {
		return "", model.NewError(model.KindValidation, "title cannot exceed %d characters", MaxTitleLen)
	}
	return s, nil
}

// Description trims s and allows at most 500 characters. Empty is fine.
func Description(s string) (string, error) {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > MaxDescriptionLen {
		return "", model.NewError(model.KindValidation, "description cannot exceed %d characters", MaxDescriptionLen)
	}
	return s, nil
}

// Tag trims s and requires 1..20 characters.
func Tag(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", model.NewError(model.KindValidation, "tag cannot be empty")
	}
	if utf8.RuneCountInString(s) > MaxTagLen {
		return "", model.NewError(model.KindValidation, "tag %q cannot exceed %d characters", s, MaxTagLen)
	}
	return s, nil
}

// Status requires an exact member of the status enum.
func Status(s string) (model.Status, error) {
	st := model.Status(s)
	switch st {
	case model.StatusTodo, model.StatusOngoing, model.StatusDone:
		return st, nil
	}
	return "", model.NewError(model.KindInvalidStatus, "invalid status %q, allowed values: TODO, ONGOING, DONE", s)
}

// Priority requires an exact member of the priority enum.
func Priority(s string) (model.Priority, error) {
	p := model.Priority(s)
	switch p {
	case model.PriorityLow, model.PriorityNormal, model.PriorityHigh, model.PriorityCritical:
		return p, nil
	}
	return "", model.NewError(model.KindInvalidPriority, "invalid priority %q, allowed values: LOW, NORMAL, HIGH, CRITICAL", s)
}

// Date parses an ISO-8601 date-time. Values without an offset are read in
// the local time zone.
func Date(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		var (
			t   time.Time
			err error
		)
		if layout == time.RFC3339Nano {
			t, err = time.Parse(layout, s)
		} else {
			t, err = time.ParseInLocation(layout, s, time.Local)
		}
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, model.NewError(model.KindInvalidDate, "invalid date %q, expected ISO-8601 (YYYY-MM-DD or YYYY-MM-DDTHH:MM:SS)", s)
}

// UserName trims s and requires 1..50 characters.
func UserName(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", model.NewError(model.KindValidation, "name is required")
	}
	if utf8.RuneCountInString(s) > MaxUserNameLen {
		return "", model.NewError(model.KindValidation, "name cannot exceed %d characters", MaxUserNameLen)
	}
	return s, nil
}

// Email trims and lower-cases s and requires a local@domain.tld shape.
func Email(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !emailPattern.MatchString(s) {
		return "", model.NewError(model.KindValidation, "invalid email format")
	}
	return s, nil
}
