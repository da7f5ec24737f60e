package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hiroki-koketsu/taskboard/internal/model"
	"github.com/hiroki-koketsu/taskboard/internal/validation"
)

// flexID accepts either a JSON string or a JSON number, so snapshots written
// with numeric ids still load.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

type historyRecord struct {
	Timestamp string         `json:"timestamp"`
	Event     string         `json:"event"`
	Details   map[string]any `json:"details"`
}

// taskRecord is the persisted shape of a task. It has no field for the
// derived overdue flag.
type taskRecord struct {
	ID           flexID          `json:"id"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Status       string          `json:"status"`
	Priority     string          `json:"priority,omitempty"`
	AssignedUser *string         `json:"assigned_user,omitempty"`
	DueDate      *string         `json:"due_date,omitempty"`
	Tags         []string        `json:"tags"`
	CreatedAt    string          `json:"created_at,omitempty"`
	History      []historyRecord `json:"history"`
}

type userRecord struct {
	ID        flexID `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at,omitempty"`
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

// parseTime falls back to the zero time, which sorts before any real date.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := validation.Date(s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func toTaskRecord(t model.Task) taskRecord {
	r := taskRecord{
		ID:          flexID(t.ID),
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority.OrDefault()),
		Tags:        t.Tags,
		CreatedAt:   formatTime(t.CreatedAt),
		History:     make([]historyRecord, 0, len(t.History)),
	}
	if r.Tags == nil {
		r.Tags = []string{}
	}
	if t.AssignedUser != "" {
		u := t.AssignedUser
		r.AssignedUser = &u
	}
	if t.DueDate != nil {
		d := formatTime(*t.DueDate)
		r.DueDate = &d
	}
	for _, h := range t.History {
		r.History = append(r.History, historyRecord{
			Timestamp: formatTime(h.Timestamp),
			Event:     h.Event,
			Details:   h.Details,
		})
	}
	return r
}

func fromTaskRecord(r taskRecord) model.Task {
	t := model.Task{
		ID:          string(r.ID),
		Title:       r.Title,
		Description: r.Description,
		Status:      model.Status(r.Status),
		Priority:    model.Priority(r.Priority).OrDefault(),
		Tags:        r.Tags,
		CreatedAt:   parseTime(r.CreatedAt),
		History:     make([]model.HistoryEvent, 0, len(r.History)),
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	if r.AssignedUser != nil {
		t.AssignedUser = *r.AssignedUser
	}
	if r.DueDate != nil && *r.DueDate != "" {
		if d, err := validation.Date(*r.DueDate); err == nil {
			t.DueDate = &d
		}
	}
	for _, h := range r.History {
		t.History = append(t.History, model.HistoryEvent{
			Timestamp: parseTime(h.Timestamp),
			Event:     h.Event,
			Details:   h.Details,
		})
	}
	return t
}

func toUserRecord(u model.User) userRecord {
	return userRecord{
		ID:        flexID(u.ID),
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: formatTime(u.CreatedAt),
	}
}

func fromUserRecord(r userRecord) model.User {
	return model.User{
		ID:        string(r.ID),
		Name:      r.Name,
		Email:     r.Email,
		CreatedAt: parseTime(r.CreatedAt),
	}
}

// EncodeTasks renders tasks as an indented UTF-8 JSON document.
func EncodeTasks(tasks []model.Task) ([]byte, error) {
	records := make([]taskRecord, 0, len(tasks))
	for _, t := range tasks {
		records = append(records, toTaskRecord(t))
	}
	return encode(records)
}

// DecodeTasks parses a task snapshot document.
func DecodeTasks(data []byte) ([]model.Task, error) {
	var records []taskRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}
	tasks := make([]model.Task, 0, len(records))
	for _, r := range records {
		tasks = append(tasks, fromTaskRecord(r))
	}
	return tasks, nil
}

// EncodeUsers renders users as an indented UTF-8 JSON document.
func EncodeUsers(users []model.User) ([]byte, error) {
	records := make([]userRecord, 0, len(users))
	for _, u := range users {
		records = append(records, toUserRecord(u))
	}
	return encode(records)
}

// DecodeUsers parses a user snapshot document.
func DecodeUsers(data []byte) ([]model.User, error) {
	var records []userRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	users := make([]model.User, 0, len(records))
	for _, r := range records {
		users = append(users, fromUserRecord(r))
	}
	return users, nil
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
