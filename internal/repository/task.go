package repository

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hiroki-koketsu/taskboard/internal/model"
	"github.com/hiroki-koketsu/taskboard/internal/storage"
	"github.com/hiroki-koketsu/taskboard/internal/validation"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// UserDirectory answers whether a user id refers to a registered user.
type UserDirectory interface {
	Exists(id string) bool
}

// TaskRepository provides in-memory, snapshot-persisted storage for tasks.
type TaskRepository struct {
	mu      sync.RWMutex
	tasks   []*model.Task
	users   UserDirectory
	gateway storage.Gateway
	logger  *slog.Logger
	now     func() time.Time
}

// NewTaskRepository creates an empty TaskRepository. Call Load to read the
// persisted snapshot.
func NewTaskRepository(gateway storage.Gateway, users UserDirectory, logger *slog.Logger, opts ...Option) *TaskRepository {
	o := buildOptions(opts)
	return &TaskRepository{
		users:   users,
		gateway: gateway,
		logger:  logger,
		now:     o.now,
	}
}

// Load replaces the in-memory tasks with the persisted snapshot.
func (r *TaskRepository) Load(ctx context.Context) error {
	tasks, err := r.gateway.LoadTasks(ctx)
	if err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = make([]*model.Task, 0, len(tasks))
	for i := range tasks {
		r.tasks = append(r.tasks, &tasks[i])
	}
	r.logger.InfoContext(ctx, "tasks loaded", slog.Int("count", len(r.tasks)))
	return nil
}

// Create validates the request and adds a new TODO task with a creation
// history event.
func (r *TaskRepository) Create(ctx context.Context, req *model.CreateTaskRequest) (*model.Task, error) {
	ctx, span := tracer.Start(ctx, "TaskRepository.Create",
		trace.WithAttributes(attribute.String("task.title", req.Title)),
	)
	defer span.End()

	title, err := validation.Title(req.Title)
	if err != nil {
		return nil, err
	}
	description, err := validation.Description(req.Description)
	if err != nil {
		return nil, err
	}
	priority := model.PriorityNormal
	if req.Priority != "" {
		if priority, err = validation.Priority(req.Priority); err != nil {
			return nil, err
		}
	}
	var dueDate *time.Time
	if strings.TrimSpace(req.DueDate) != "" {
		d, err := validation.Date(req.DueDate)
		if err != nil {
			return nil, err
		}
		dueDate = &d
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	task := &model.Task{
		ID:          uuid.New().String(),
		Title:       title,
		Description: description,
		Status:      model.StatusTodo,
		Priority:    priority,
		DueDate:     dueDate,
		Tags:        []string{},
		CreatedAt:   r.now().UTC(),
		History:     []model.HistoryEvent{},
	}
	r.record(task, model.EventCreation, map[string]any{
		"title":       task.Title,
		"description": task.Description,
		"status":      string(task.Status),
		"priority":    string(task.Priority),
		"due_date":    dateDetail(task.DueDate),
	})

	r.tasks = append(r.tasks, task)
	r.persist(ctx)

	span.SetAttributes(attribute.String("task.id", task.ID))
	return r.view(task), nil
}

// GetByID retrieves a task by its ID with the overdue flag computed.
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*model.Task, error) {
	_, span := tracer.Start(ctx, "TaskRepository.GetByID",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	if err := checkID(id); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	_, task, ok := r.find(id)
	if !ok {
		span.SetAttributes(attribute.Bool("task.found", false))
		return nil, model.ErrTaskNotFound
	}

	span.SetAttributes(attribute.Bool("task.found", true))
	return r.view(task), nil
}

// Update applies the supplied fields in the order title, description,
// status, priority, due date, added tags, removed tags. Only changed values
// are applied and recorded. A failing field leaves the task untouched.
func (r *TaskRepository) Update(ctx context.Context, id string, req *model.UpdateTaskRequest) (*model.Task, error) {
	ctx, span := tracer.Start(ctx, "TaskRepository.Update",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	if err := checkID(id); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	idx, current, ok := r.find(id)
	if !ok {
		span.SetAttributes(attribute.Bool("task.found", false))
		return nil, model.ErrTaskNotFound
	}
	span.SetAttributes(attribute.Bool("task.found", true))

	task := current.Clone()
	before := len(task.History)
	if err := r.apply(task, req); err != nil {
		return nil, err
	}

	changes := len(task.History) - before
	span.SetAttributes(attribute.Int("task.changes", changes))
	if changes == 0 {
		return r.view(current), nil
	}

	r.tasks[idx] = task
	r.persist(ctx)
	return r.view(task), nil
}

func (r *TaskRepository) apply(task *model.Task, req *model.UpdateTaskRequest) error {
	if req.Title != nil {
		title, err := validation.Title(*req.Title)
		if err != nil {
			return err
		}
		if title != task.Title {
			r.record(task, model.EventTitleUpdated, change(task.Title, title))
			task.Title = title
		}
	}

	if req.Description != nil {
		description, err := validation.Description(*req.Description)
		if err != nil {
			return err
		}
		if description != task.Description {
			r.record(task, model.EventDescriptionUpdated, change(task.Description, description))
			task.Description = description
		}
	}

	if req.Status != nil {
		status, err := validation.Status(*req.Status)
		if err != nil {
			return err
		}
		if status != task.Status {
			r.record(task, model.EventStatusUpdated, change(string(task.Status), string(status)))
			task.Status = status
		}
	}

	if req.Priority != nil {
		priority, err := validation.Priority(*req.Priority)
		if err != nil {
			return err
		}
		if old := task.Priority.OrDefault(); priority != old {
			r.record(task, model.EventPriorityUpdated, change(string(old), string(priority)))
			task.Priority = priority
		}
	}

	if req.DueDate != nil {
		var due *time.Time
		if strings.TrimSpace(*req.DueDate) != "" {
			d, err := validation.Date(*req.DueDate)
			if err != nil {
				return err
			}
			due = &d
		}
		if !sameDate(task.DueDate, due) {
			r.record(task, model.EventDueDateUpdated, change(dateDetail(task.DueDate), dateDetail(due)))
			task.DueDate = due
		}
	}

	for _, raw := range req.AddTags {
		tag, err := validation.Tag(raw)
		if err != nil {
			return err
		}
		if !task.HasTag(tag) {
			task.Tags = append(task.Tags, tag)
			r.record(task, model.EventTagAdded, map[string]any{"tag": tag})
		}
	}

	for _, raw := range req.RemoveTags {
		tag, err := validation.Tag(raw)
		if err != nil {
			return err
		}
		if i := slices.Index(task.Tags, tag); i >= 0 {
			task.Tags = slices.Delete(task.Tags, i, i+1)
			r.record(task, model.EventTagRemoved, map[string]any{"tag": tag})
		}
	}

	return nil
}

// Delete removes a task from the repository.
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "TaskRepository.Delete",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	idx, _, ok := r.find(id)
	if !ok {
		span.SetAttributes(attribute.Bool("task.found", false))
		return model.ErrTaskNotFound
	}

	r.tasks = slices.Delete(r.tasks, idx, idx+1)
	r.persist(ctx)

	span.SetAttributes(attribute.Bool("task.found", true))
	return nil
}

// Assign sets the task's assignee. A blank userID unassigns the task.
func (r *TaskRepository) Assign(ctx context.Context, id, userID string) (*model.Task, error) {
	ctx, span := tracer.Start(ctx, "TaskRepository.Assign",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	userID = strings.TrimSpace(userID)

	r.mu.Lock()
	defer r.mu.Unlock()

	idx, current, ok := r.find(id)
	if !ok {
		span.SetAttributes(attribute.Bool("task.found", false))
		return nil, model.ErrTaskNotFound
	}
	if userID != "" && !r.users.Exists(userID) {
		return nil, model.NewError(model.KindUserNotFound, "user %s not found", userID)
	}

	task := current
	if userID != current.AssignedUser {
		task = current.Clone()
		if userID == "" {
			r.record(task, model.EventUserUnassigned, map[string]any{"old": task.AssignedUser})
		} else {
			r.record(task, model.EventUserAssigned, change(optional(task.AssignedUser), userID))
		}
		task.AssignedUser = userID
		r.tasks[idx] = task
	}
	r.persist(ctx)

	span.SetAttributes(attribute.String("task.assigned_user", task.AssignedUser))
	return r.view(task), nil
}

// Tags counts how many tasks carry each tag.
func (r *TaskRepository) Tags(ctx context.Context) map[string]int {
	_, span := tracer.Start(ctx, "TaskRepository.Tags")
	defer span.End()

	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int)
	for _, t := range r.tasks {
		for _, tag := range t.Tags {
			counts[tag]++
		}
	}
	span.SetAttributes(attribute.Int("tag.count", len(counts)))
	return counts
}

// Count returns the current number of tasks.
func (r *TaskRepository) Count() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.tasks))
}

func (r *TaskRepository) find(id string) (int, *model.Task, bool) {
	for i, t := range r.tasks {
		if t.ID == id {
			return i, t, true
		}
	}
	return -1, nil, false
}

// view returns a detached copy with the overdue flag set.
func (r *TaskRepository) view(t *model.Task) *model.Task {
	v := t.Clone()
	v.Overdue = v.IsOverdue(r.now())
	return v
}

// persist must be called with the write lock held. Failures are logged and
// swallowed; the in-memory state stays authoritative.
func (r *TaskRepository) persist(ctx context.Context) {
	snapshot := make([]model.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		snapshot = append(snapshot, *t.Clone())
	}
	if err := r.gateway.SaveTasks(ctx, snapshot); err != nil {
		r.logger.WarnContext(ctx, "failed to save tasks", slog.Any("error", err))
	}
}

func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return model.NewError(model.KindInvalidIDFormat, "invalid id format: %q", id)
	}
	return nil
}

func change(from, to any) map[string]any {
	return map[string]any{"old": from, "new": to}
}

// optional maps an empty string to a JSON null in history details.
func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func dateDetail(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
