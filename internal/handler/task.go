package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hiroki-koketsu/taskboard/internal/model"
	"github.com/hiroki-koketsu/taskboard/internal/repository"
	"github.com/hiroki-koketsu/taskboard/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TaskHandler handles HTTP requests for tasks.
type TaskHandler struct {
	base
	repo     *repository.TaskRepository
	pageSize int
}

// NewTaskHandler creates a new TaskHandler. pageSize is used when a request
// does not name one.
func NewTaskHandler(repo *repository.TaskRepository, logger *slog.Logger, metrics *telemetry.Metrics, pageSize int) *TaskHandler {
	if pageSize < 1 {
		pageSize = model.DefaultPageSize
	}
	return &TaskHandler{
		base:     base{logger: logger, metrics: metrics},
		repo:     repo,
		pageSize: pageSize,
	}
}

// Routes returns the chi router with task routes.
func (h *TaskHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.Search)
	r.Post("/", h.Create)
	r.Get("/tags", h.Tags)
	r.Get("/{id}", h.GetByID)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Put("/{id}/assignee", h.Assign)
	r.Get("/{id}/history", h.History)

	return r
}

// Search filters, sorts and paginates tasks from the query string.
func (h *TaskHandler) Search(w http.ResponseWriter, r *http.Request) {
	c := newCall("GET", "/api/v1/tasks")
	ctx, span := tracer.Start(r.Context(), "TaskHandler.Search")
	defer span.End()

	q, err := h.parseQuery(r.URL.Query())
	if err != nil {
		h.fail(ctx, w, c, err)
		return
	}

	h.logger.InfoContext(ctx, "searching tasks",
		slog.String("query", q.Query),
		slog.String("sort_by", q.SortBy),
		slog.Int("page", q.Page),
	)

	page, err := h.repo.Search(ctx, q)
	if err != nil {
		h.fail(ctx, w, c, err)
		return
	}

	span.SetAttributes(attribute.Int("task.count", page.TotalItems))
	h.logger.InfoContext(ctx, "tasks searched", slog.Int("count", page.TotalItems))

	h.ok(ctx, w, c, http.StatusOK, page)
}

// Create adds a new task.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	c := newCall("POST", "/api/v1/tasks")
	ctx, span := tracer.Start(r.Context(), "TaskHandler.Create")
	defer span.End()

	var req model.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(ctx, w, c, "invalid request body", err)
		return
	}

	h.logger.InfoContext(ctx, "creating task", slog.String("title", req.Title))

	task, err := h.repo.Create(ctx, &req)
	if err != nil {
		h.fail(ctx, w, c, err)
		return
	}

	span.SetAttributes(attribute.String("task.id", task.ID))
	h.logger.InfoContext(ctx, "task created", slog.String("id", task.ID))
	h.metrics.RecordMutation(ctx, "task.create")

	h.ok(ctx, w, c, http.StatusCreated, task)
}

// Tags returns the number of tasks carrying each tag.
func (h *TaskHandler) Tags(w http.ResponseWriter, r *http.Request) {
	c := newCall("GET", "/api/v1/tasks/tags")
	ctx, span := tracer.Start(r.Context(), "TaskHandler.Tags")
	defer span.End()

	counts := h.repo.Tags(ctx)
	h.ok(ctx, w, c, http.StatusOK, counts)
}

// GetByID returns a task by ID.
func (h *TaskHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	c := newCall("GET", "/api/v1/tasks/{id}")
	id := chi.URLParam(r, "id")
	ctx, span := tracer.Start(r.Context(), "TaskHandler.GetByID",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	h.logger.InfoContext(ctx, "getting task", slog.String("id", id))

	task, err := h.repo.GetByID(ctx, id)
	if err != nil {
		h.fail(ctx, w, c, err)
		return
	}

	h.ok(ctx, w, c, http.StatusOK, task)
}

// Update applies a partial update to an existing task.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	c := newCall("PATCH", "/api/v1/tasks/{id}")
	id := chi.URLParam(r, "id")
	ctx, span := tracer.Start(r.Context(), "TaskHandler.Update",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	var req model.UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(ctx, w, c, "invalid request body", err)
		return
	}

	h.logger.InfoContext(ctx, "updating task", slog.String("id", id))

	task, err := h.repo.Update(ctx, id, &req)
	if err != nil {
		h.fail(ctx, w, c, err)
		return
	}

	h.logger.InfoContext(ctx, "task updated", slog.String("id", id))
	h.metrics.RecordMutation(ctx, "task.update")

	h.ok(ctx, w, c, http.StatusOK, task)
}

// Delete removes a task.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	c := newCall("DELETE", "/api/v1/tasks/{id}")
	id := chi.URLParam(r, "id")
	ctx, span := tracer.Start(r.Context(), "TaskHandler.Delete",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	h.logger.InfoContext(ctx, "deleting task", slog.String("id", id))

	if err := h.repo.Delete(ctx, id); err != nil {
		h.fail(ctx, w, c, err)
		return
	}

	h.logger.InfoContext(ctx, "task deleted", slog.String("id", id))
	h.metrics.RecordMutation(ctx, "task.delete")

	h.ok(ctx, w, c, http.StatusNoContent, nil)
}

// Assign sets or clears the task's assignee.
func (h *TaskHandler) Assign(w http.ResponseWriter, r *http.Request) {
	c := newCall("PUT", "/api/v1/tasks/{id}/assignee")
	id := chi.URLParam(r, "id")
	ctx, span := tracer.Start(r.Context(), "TaskHandler.Assign",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	var req model.AssignTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(ctx, w, c, "invalid request body", err)
		return
	}

	h.logger.InfoContext(ctx, "assigning task", slog.String("id", id), slog.String("user_id", req.UserID))

	task, err := h.repo.Assign(ctx, id, req.UserID)
	if err != nil {
		h.fail(ctx, w, c, err)
		return
	}

	h.metrics.RecordMutation(ctx, "task.assign")

	h.ok(ctx, w, c, http.StatusOK, task)
}

// History returns one page of the task's history, most recent first.
func (h *TaskHandler) History(w http.ResponseWriter, r *http.Request) {
	c := newCall("GET", "/api/v1/tasks/{id}/history")
	id := chi.URLParam(r, "id")
	ctx, span := tracer.Start(r.Context(), "TaskHandler.History",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	page, size, err := parsePage(r.URL.Query(), h.pageSize)
	if err != nil {
		h.fail(ctx, w, c, err)
		return
	}

	events, err := h.repo.History(ctx, id, page, size)
	if err != nil {
		h.fail(ctx, w, c, err)
		return
	}

	h.ok(ctx, w, c, http.StatusOK, events)
}

// Health returns a health check response.
func (h *TaskHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"tasks":  h.repo.Count(),
	})
}

// parseQuery turns query-string values into a TaskQuery. A filter is only
// set when its parameter is present.
func (h *TaskHandler) parseQuery(values url.Values) (model.TaskQuery, error) {
	q := model.NewTaskQuery()
	q.Size = h.pageSize

	q.Query = values.Get("query")
	if values.Has("search_in") {
		q.SearchIn = values.Get("search_in")
	}
	if values.Has("status") {
		q.Status = optionalParam(values, "status")
	}
	if values.Has("user_id") {
		q.UserID = optionalParam(values, "user_id")
	}
	if values.Has("priority") {
		q.Priority = optionalParam(values, "priority")
	}
	if raw := values.Get("tags"); raw != "" {
		q.Tags = strings.Split(raw, ",")
	}
	if values.Has("overdue") {
		overdue, err := strconv.ParseBool(values.Get("overdue"))
		if err != nil {
			return q, model.NewError(model.KindValidation, "overdue must be true or false, got %q", values.Get("overdue"))
		}
		q.Overdue = &overdue
	}
	if values.Has("sort_by") {
		q.SortBy = values.Get("sort_by")
	}
	if values.Has("ascending") {
		ascending, err := strconv.ParseBool(values.Get("ascending"))
		if err != nil {
			return q, model.NewError(model.KindValidation, "ascending must be true or false, got %q", values.Get("ascending"))
		}
		q.Ascending = ascending
	}

	page, size, err := parsePage(values, q.Size)
	if err != nil {
		return q, err
	}
	q.Page, q.Size = page, size
	return q, nil
}

func optionalParam(values url.Values, key string) *string {
	v := values.Get(key)
	return &v
}

// parsePage reads page and size, falling back to page 1 and defaultSize.
// Range checks are left to the repository.
func parsePage(values url.Values, defaultSize int) (int, int, error) {
	page, size := model.DefaultPage, defaultSize
	if raw := values.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return 0, 0, model.NewError(model.KindInvalidPagination, "page must be an integer, got %q", raw)
		}
		page = n
	}
	if raw := values.Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return 0, 0, model.NewError(model.KindInvalidPagination, "size must be an integer, got %q", raw)
		}
		size = n
	}
	return page, size, nil
}
