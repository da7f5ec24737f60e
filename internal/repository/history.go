package repository

import (
	"context"
	"slices"

	"github.com/hiroki-koketsu/taskboard/internal/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// record appends an audit event to the task. Earlier events are never
// edited or removed.
func (r *TaskRepository) record(task *model.Task, event string, details map[string]any) {
	task.History = append(task.History, model.HistoryEvent{
		Timestamp: r.now().UTC(),
		Event:     event,
		Details:   details,
	})
}

// History returns a task's audit events, most recent first, one page at a
// time. The stored order is left unchanged.
func (r *TaskRepository) History(ctx context.Context, id string, page, size int) (*model.Page[model.HistoryEvent], error) {
	ctx, span := tracer.Start(ctx, "TaskRepository.History",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	task, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Events sharing a timestamp keep reverse recording order.
	events := slices.Clone(task.History)
	slices.Reverse(events)
	slices.SortStableFunc(events, func(a, b model.HistoryEvent) int {
		return b.Timestamp.Compare(a.Timestamp)
	})

	span.SetAttributes(attribute.Int("history.count", len(events)))
	return model.Paginate(events, page, size)
}
