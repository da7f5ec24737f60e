package model

import (
	"slices"
	"time"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusTodo    Status = "TODO"
	StatusOngoing Status = "ONGOING"
	StatusDone    Status = "DONE"
)

// Statuses lists every valid status in rank order.
var Statuses = []Status{StatusTodo, StatusOngoing, StatusDone}

// Rank orders statuses TODO, ONGOING, DONE. Unknown values sort last.
func (s Status) Rank() int {
	switch s {
	case StatusTodo:
		return 0
	case StatusOngoing:
		return 1
	case StatusDone:
		return 2
	default:
		return 99
	}
}

// Open reports whether work on the task is still pending.
func (s Status) Open() bool {
	return s == StatusTodo || s == StatusOngoing
}

// Priority determines how urgent a task is.
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityNormal   Priority = "NORMAL"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// Priorities lists every valid priority, most urgent first.
var Priorities = []Priority{PriorityCritical, PriorityHigh, PriorityNormal, PriorityLow}

// OrDefault treats a missing priority as NORMAL.
func (p Priority) OrDefault() Priority {
	if p == "" {
		return PriorityNormal
	}
	return p
}

// Rank orders priorities CRITICAL, HIGH, NORMAL, LOW.
func (p Priority) Rank() int {
	switch p.OrDefault() {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 3
	default:
		return 99
	}
}

// History event tags.
const (
	EventCreation           = "creation"
	EventTitleUpdated       = "title_updated"
	EventDescriptionUpdated = "description_updated"
	EventStatusUpdated      = "status_updated"
	EventPriorityUpdated    = "priority_updated"
	EventDueDateUpdated     = "due_date_updated"
	EventTagAdded           = "tag_added"
	EventTagRemoved         = "tag_removed"
	EventUserAssigned       = "user_assigned"
	EventUserUnassigned     = "user_unassigned"
)

// HistoryEvent is an immutable audit record of one change on a task.
type HistoryEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	Event     string         `json:"event"`
	Details   map[string]any `json:"details"`
}

// Task represents one unit of work.
type Task struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Status       Status         `json:"status"`
	Priority     Priority       `json:"priority"`
	AssignedUser string         `json:"assigned_user,omitempty"`
	DueDate      *time.Time     `json:"due_date,omitempty"`
	Tags         []string       `json:"tags"`
	CreatedAt    time.Time      `json:"created_at"`
	History      []HistoryEvent `json:"history"`

	// Overdue is derived at read time and never persisted.
	Overdue bool `json:"overdue"`
}

// IsOverdue reports whether the due date is on a day before now's day while
// the task is still open.
func (t *Task) IsOverdue(now time.Time) bool {
	if t.DueDate == nil || !t.Status.Open() {
		return false
	}
	due := t.DueDate.In(now.Location()).Format(time.DateOnly)
	return due < now.Format(time.DateOnly)
}

// HasTag reports whether tag is in the task's tag set.
func (t *Task) HasTag(tag string) bool {
	return slices.Contains(t.Tags, tag)
}

// Clone returns a copy that shares no mutable state with t.
func (t *Task) Clone() *Task {
	c := *t
	c.Tags = slices.Clone(t.Tags)
	c.History = slices.Clone(t.History)
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	return &c
}

// CreateTaskRequest carries the fields for a new task. Empty Priority means
// NORMAL and empty DueDate means no deadline.
type CreateTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority,omitempty"`
	DueDate     string `json:"due_date,omitempty"`
}

// UpdateTaskRequest carries optional field updates. A nil field is left
// untouched; an empty DueDate clears the deadline.
type UpdateTaskRequest struct {
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	Status      *string  `json:"status,omitempty"`
	Priority    *string  `json:"priority,omitempty"`
	DueDate     *string  `json:"due_date,omitempty"`
	AddTags     []string `json:"add_tags,omitempty"`
	RemoveTags  []string `json:"remove_tags,omitempty"`
}

// AssignTaskRequest names the user to assign. Blank unassigns.
type AssignTaskRequest struct {
	UserID string `json:"user_id"`
}
