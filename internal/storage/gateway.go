// Package storage loads and saves full snapshots of the task and user
// collections.
package storage

import (
	"context"

	"github.com/hiroki-koketsu/taskboard/internal/model"
)

// Gateway persists full snapshots. Load never fails on a missing or
// malformed snapshot; it returns the built-in default instead.
type Gateway interface {
	LoadTasks(ctx context.Context) ([]model.Task, error)
	SaveTasks(ctx context.Context, tasks []model.Task) error
	LoadUsers(ctx context.Context) ([]model.User, error)
	SaveUsers(ctx context.Context, users []model.User) error
}

// DefaultTasks returns the snapshot used when no task data can be read.
func DefaultTasks() []model.Task {
	return []model.Task{
		{
			ID:          "5f0c8a52-3f1e-4a8e-9a0b-6d2f1c7e4b01",
			Title:       "First task",
			Description: "Description of the first task",
			Status:      model.StatusTodo,
			Priority:    model.PriorityNormal,
			Tags:        []string{},
			History:     []model.HistoryEvent{},
		},
		{
			ID:          "9b7d3e10-2c4a-4f5b-8e6d-1a0f9c8b7e02",
			Title:       "Second task",
			Description: "Description of the second task",
			Status:      model.StatusDone,
			Priority:    model.PriorityNormal,
			Tags:        []string{},
			History:     []model.HistoryEvent{},
		},
	}
}
