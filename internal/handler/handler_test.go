package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/hiroki-koketsu/taskboard/internal/model"
	"github.com/hiroki-koketsu/taskboard/internal/repository"
	"github.com/hiroki-koketsu/taskboard/internal/storage"
	"github.com/hiroki-koketsu/taskboard/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

type testServer struct {
	handler http.Handler
	tasks   *repository.TaskRepository
	users   *repository.UserRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	gw, err := storage.NewFileGateway(t.TempDir(), logger)
	require.NoError(t, err)

	users := repository.NewUserRepository(gw, logger)
	tasks := repository.NewTaskRepository(gw, users, logger)
	require.NoError(t, users.Load(ctx))
	require.NoError(t, tasks.Load(ctx))

	metrics, err := telemetry.NewMetrics(noop.NewMeterProvider().Meter("test"), tasks.Count, users.Count)
	require.NoError(t, err)

	router := NewRouter(
		NewTaskHandler(tasks, logger, metrics, 10),
		NewUserHandler(users, logger, metrics, 10),
	)
	return &testServer{handler: router, tasks: tasks, users: users}
}

func (s *testServer) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestTaskLifecycle(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/tasks", model.CreateTaskRequest{
		Title:    "Fix brake pads",
		Priority: "HIGH",
		DueDate:  "2030-01-02",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[model.Task](t, rec)
	assert.Equal(t, model.StatusTodo, created.Status)
	assert.Equal(t, model.PriorityHigh, created.Priority)
	require.NotNil(t, created.DueDate)

	rec = s.do(t, http.MethodGet, "/api/v1/tasks/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Fix brake pads", decode[model.Task](t, rec).Title)

	rec = s.do(t, http.MethodPatch, "/api/v1/tasks/"+created.ID, map[string]any{
		"status":   "ONGOING",
		"add_tags": []string{"car"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[model.Task](t, rec)
	assert.Equal(t, model.StatusOngoing, updated.Status)
	assert.Equal(t, []string{"car"}, updated.Tags)

	rec = s.do(t, http.MethodGet, "/api/v1/tasks/tags", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]int{"car": 1}, decode[map[string]int](t, rec))

	rec = s.do(t, http.MethodGet, "/api/v1/tasks/"+created.ID+"/history?size=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[model.Page[model.HistoryEvent]](t, rec)
	assert.Equal(t, 3, history.TotalItems)
	require.Len(t, history.Items, 2)
	assert.Equal(t, model.EventTagAdded, history.Items[0].Event)
	assert.Equal(t, model.EventStatusUpdated, history.Items[1].Event)

	rec = s.do(t, http.MethodGet, "/api/v1/tasks/"+created.ID+"/history?size=2&page=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history = decode[model.Page[model.HistoryEvent]](t, rec)
	require.Len(t, history.Items, 1)
	assert.Equal(t, model.EventCreation, history.Items[0].Event)

	rec = s.do(t, http.MethodDelete, "/api/v1/tasks/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/tasks/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(model.KindNotFound), decode[ErrorResponse](t, rec).Kind)
}

func TestTaskErrors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		method string
		target string
		body   any
		status int
		kind   model.ErrorKind
	}{
		{"blank title", http.MethodPost, "/api/v1/tasks", model.CreateTaskRequest{Title: "  "}, http.StatusBadRequest, model.KindValidation},
		{"bad priority", http.MethodPost, "/api/v1/tasks", model.CreateTaskRequest{Title: "x", Priority: "urgent"}, http.StatusBadRequest, model.KindInvalidPriority},
		{"bad id", http.MethodGet, "/api/v1/tasks/not-a-uuid", nil, http.StatusBadRequest, model.KindInvalidIDFormat},
		{"unknown id", http.MethodGet, "/api/v1/tasks/" + uuid.NewString(), nil, http.StatusNotFound, model.KindNotFound},
		{"bad status", http.MethodPatch, "/api/v1/tasks/" + storage.DefaultTasks()[0].ID, map[string]any{"status": "done"}, http.StatusBadRequest, model.KindInvalidStatus},
		{"bad page", http.MethodGet, "/api/v1/tasks?page=0", nil, http.StatusBadRequest, model.KindInvalidPagination},
		{"non-numeric size", http.MethodGet, "/api/v1/tasks?size=lots", nil, http.StatusBadRequest, model.KindInvalidPagination},
		{"bad sort", http.MethodGet, "/api/v1/tasks?sort_by=color", nil, http.StatusBadRequest, model.KindInvalidSortField},
		{"bad overdue", http.MethodGet, "/api/v1/tasks?overdue=maybe", nil, http.StatusBadRequest, model.KindValidation},
		{"unknown user filter", http.MethodGet, "/api/v1/tasks?user_id=ghost", nil, http.StatusNotFound, model.KindUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, string(tt.kind), decode[ErrorResponse](t, rec).Kind)
		})
	}
}

func TestTaskInvalidBody(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request body", decode[ErrorResponse](t, rec).Error)
}

func TestSearchQueryParameters(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	for _, title := range []string{"Fix brake pads", "Buy milk", "Fix sink"} {
		_, err := s.tasks.Create(ctx, &model.CreateTaskRequest{Title: title})
		require.NoError(t, err)
	}

	rec := s.do(t, http.MethodGet, "/api/v1/tasks?query=fix&search_in=title&sort_by=title&ascending=false", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[model.Page[model.Task]](t, rec)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Fix sink", page.Items[0].Title)
	assert.Equal(t, "Fix brake pads", page.Items[1].Title)

	// Two default tasks plus three created ones, ten per page.
	rec = s.do(t, http.MethodGet, "/api/v1/tasks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page = decode[model.Page[model.Task]](t, rec)
	assert.Equal(t, 5, page.TotalItems)
	assert.Equal(t, 10, page.PageSize)

	rec = s.do(t, http.MethodGet, "/api/v1/tasks?status=DONE", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page = decode[model.Page[model.Task]](t, rec)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Second task", page.Items[0].Title)

	rec = s.do(t, http.MethodGet, "/api/v1/tasks?page=4611686018427387904&size=4", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page = decode[model.Page[model.Task]](t, rec)
	assert.Empty(t, page.Items)
	assert.Equal(t, 2, page.TotalPages)

	rec = s.do(t, http.MethodGet, "/api/v1/tasks?user_id=unassigned&size=2&page=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page = decode[model.Page[model.Task]](t, rec)
	assert.Equal(t, 3, page.TotalPages)
	assert.Len(t, page.Items, 1)
}

func TestAssignAndUsers(t *testing.T) {
	s := newTestServer(t)
	taskID := storage.DefaultTasks()[0].ID

	rec := s.do(t, http.MethodPost, "/api/v1/users", model.CreateUserRequest{Name: "Ada", Email: "Ada@Example.com"})
	require.Equal(t, http.StatusCreated, rec.Code)
	user := decode[model.User](t, rec)
	assert.Equal(t, "ada@example.com", user.Email)

	rec = s.do(t, http.MethodPost, "/api/v1/users", model.CreateUserRequest{Name: "Other", Email: "ada@example.com"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/users", model.CreateUserRequest{Name: "Bad", Email: "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/users/"+user.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ada", decode[model.User](t, rec).Name)

	rec = s.do(t, http.MethodGet, "/api/v1/users/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[model.Page[model.User]](t, rec).TotalItems)

	rec = s.do(t, http.MethodPut, "/api/v1/tasks/"+taskID+"/assignee", model.AssignTaskRequest{UserID: "ghost"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(model.KindUserNotFound), decode[ErrorResponse](t, rec).Kind)

	rec = s.do(t, http.MethodPut, "/api/v1/tasks/"+taskID+"/assignee", model.AssignTaskRequest{UserID: " " + user.ID + " "})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, user.ID, decode[model.Task](t, rec).AssignedUser)

	rec = s.do(t, http.MethodGet, "/api/v1/tasks?user_id="+user.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[model.Page[model.Task]](t, rec).TotalItems)

	rec = s.do(t, http.MethodPut, "/api/v1/tasks/"+taskID+"/assignee", model.AssignTaskRequest{UserID: ""})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[model.Task](t, rec).AssignedUser)
}
